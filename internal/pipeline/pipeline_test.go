// file: internal/pipeline/pipeline_test.go
// version: 1.0.0
// guid: 8a9b0c1d-2e3f-4a5b-8c6d-7e8f9a0b1c2d

package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/epub-enricher/internal/config"
	"github.com/jdfalk/epub-enricher/internal/decision"
	"github.com/jdfalk/epub-enricher/internal/epub"
	"github.com/jdfalk/epub-enricher/internal/finder"
	"github.com/jdfalk/epub-enricher/internal/providers"
	"github.com/jdfalk/epub-enricher/internal/testutil"
	"github.com/jdfalk/epub-enricher/internal/upload"
)

const pipelineOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Dune</dc:title>
    <dc:creator opf:role="aut">Frank Herbert</dc:creator>
    <dc:identifier id="bookid" opf:scheme="ISBN">9780441013593</dc:identifier>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

func writePipelineEpub(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = mt.Write([]byte("application/epub+zip"))
	require.NoError(t, err)

	files := map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,
		"content.opf":    pipelineOPF,
		"chapter1.xhtml": "<html><body>It begins.</body></html>",
	}
	for fname, content := range files {
		fw, err := w.Create(fname)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func testPipeline(t *testing.T, stub *testutil.StubProvider, outputDir string) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.EnableKepubify = false
	cfg.EnableRename = true
	cfg.OutputDir = outputDir
	return New(cfg, finder.New([]providers.Provider{stub}), decision.Automatic{}, &upload.Local{OutputDir: outputDir})
}

func TestProcessFileUpdatesAndDelivers(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	path := writePipelineEpub(t, srcDir, "dune.epub")

	remote := testutil.Book("Dune", "Frank Herbert")
	remote.Publisher = "Ace Books"
	remote.PublishedDate = "1965-08-01"
	remote.Description = "<p>The <b>desert</b> planet.</p>"
	stub := testutil.NewStubProvider("stub")
	stub.ISBNHits["9780441013593"] = remote

	p := testPipeline(t, stub, outDir)
	res := p.ProcessFile(context.Background(), path)
	require.NoError(t, res.Err)

	assert.True(t, res.Updated)
	assert.Equal(t, 100, res.Match.Confidence)

	delivered := filepath.Join(outDir, "dune-frank-herbert-1965.epub")
	assert.Equal(t, filepath.Join(srcDir, "dune-frank-herbert-1965.epub"), res.OutputPath)
	book, err := epub.Open(delivered)
	require.NoError(t, err)
	local := book.Metadata()
	assert.Equal(t, "Ace Books", local.Publisher)
	assert.Equal(t, "1965-08-01", local.Date)
}

func TestProcessFileNoMatchStillDelivers(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	path := writePipelineEpub(t, srcDir, "dune.epub")

	stub := &testutil.StubProvider{ProviderName: "stub"}
	p := testPipeline(t, stub, outDir)

	res := p.ProcessFile(context.Background(), path)
	require.NoError(t, res.Err)
	assert.False(t, res.Updated)
	assert.Equal(t, "None", res.Match.Strategy)

	// No update means no rename; the file moves under its original name.
	assert.FileExists(t, filepath.Join(outDir, "dune.epub"))
}

func TestProcessDirIsolatesFailures(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	writePipelineEpub(t, srcDir, "a.epub")
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.epub"), []byte("not a zip"), 0644))
	writePipelineEpub(t, srcDir, "c.epub")

	stub := &testutil.StubProvider{ProviderName: "stub"}
	p := testPipeline(t, stub, outDir)
	p.cfg.EnableRename = false

	results, err := p.ProcessDir(context.Background(), srcDir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.FileExists(t, filepath.Join(outDir, "a.epub"))
	assert.FileExists(t, filepath.Join(outDir, "c.epub"))
}

func TestProcessDirEmpty(t *testing.T) {
	stub := &testutil.StubProvider{ProviderName: "stub"}
	p := testPipeline(t, stub, t.TempDir())
	_, err := p.ProcessDir(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestListEpubsSkipsConverted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.epub", "a.epub", "a.kepub.epub", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	paths, err := listEpubs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.epub"), filepath.Join(dir, "b.epub")}, paths)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "dune-messiah-frank-herbert-1969", Slug("Dune Messiah", "Frank Herbert", "1969"))
	assert.Equal(t, "l-etranger-albert-camus", Slug("L'Étranger!!", "Albert Camus", ""))
	assert.Equal(t, "", Slug("", "", ""))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "The desert planet.", StripHTML("<p>The <b>desert</b> planet.</p>"))
	assert.Equal(t, "plain text stays put", StripHTML("plain text stays put"))
	assert.Equal(t, "a < b", StripHTML("a &lt; b"))
}
