// file: internal/epub/epub_test.go
// version: 1.0.0
// guid: 6b7c8d9e-0f1a-4b2c-8d3e-4f5a6b7c8d9e

package epub

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Dune (Deluxe Edition)</dc:title>
    <dc:creator opf:role="aut">Frank Herbert</dc:creator>
    <dc:publisher>Ace Books</dc:publisher>
    <dc:date>1965-08-01</dc:date>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid" opf:scheme="ISBN">978-0-441-01359-3</dc:identifier>
    <dc:subject>Science Fiction</dc:subject>
    <dc:subject>Classics</dc:subject>
    <meta name="calibre:series" content="Dune Chronicles"/>
    <meta name="calibre:series_index" content="1.0"/>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

func writeTestEpub(t *testing.T, name, opf string) string {
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
		"content.opf":      opf,
		"images/cover.jpg": "OLDCOVER",
		"chapter1.xhtml":   "<html><body>It begins.</body></html>",
	}
	for fname, content := range files {
		fw, err := w.Create(fname)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestOpenAndMetadata(t *testing.T) {
	path := writeTestEpub(t, "dune.epub", testOPF)
	book, err := Open(path)
	require.NoError(t, err)

	local := book.Metadata()
	assert.Equal(t, "Dune (Deluxe Edition)", local.Title)
	assert.Equal(t, "Frank Herbert", local.Author)
	assert.Equal(t, "Ace Books", local.Publisher)
	assert.Equal(t, "1965-08-01", local.Date)
	assert.Equal(t, "1965", local.Year())
	assert.Equal(t, "en", local.Language)
	assert.Equal(t, "9780441013593", local.ISBN)
	assert.Equal(t, []string{"Science Fiction", "Classics"}, local.Tags)
	assert.Equal(t, "Dune Chronicles", local.Series)
	assert.True(t, local.HasSeriesIndex)
	assert.Equal(t, 1.0, local.SeriesIndex)
}

func TestMetadataISBNFromFilename(t *testing.T) {
	opf := `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Mystery Book</dc:title>
  </metadata>
  <manifest/>
  <spine/>
</package>`
	path := writeTestEpub(t, "mystery-9780441013593.epub", opf)
	book, err := Open(path)
	require.NoError(t, err)

	local := book.Metadata()
	assert.Equal(t, "9780441013593", local.ISBN)
	assert.Empty(t, local.Author)
}

func TestOpenRejectsNonEpub(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-epub.epub")
	require.NoError(t, os.WriteFile(path, []byte("just text"), 0644))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpenRejectsMissingContainer(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("something.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("hello"))
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "bare.epub")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	_, err = Open(path)
	assert.Error(t, err)
}

func TestUpdateRoundTrip(t *testing.T) {
	path := writeTestEpub(t, "dune.epub", testOPF)
	book, err := Open(path)
	require.NoError(t, err)

	book.SetTitle("Dune")
	book.SetAuthors([]string{"Frank Herbert", "Someone Else"})
	book.SetPublisher("Chilton Books")
	book.SetDate("1965")
	book.SetDescription("A desert planet & its spice.")
	book.SetSubjects([]string{"Science Fiction"})

	out := filepath.Join(t.TempDir(), "updated.epub")
	require.NoError(t, book.Save(out))

	reopened, err := Open(out)
	require.NoError(t, err)
	local := reopened.Metadata()
	assert.Equal(t, "Dune", local.Title)
	assert.Equal(t, "Frank Herbert", local.Author)
	assert.Equal(t, "Chilton Books", local.Publisher)
	assert.Equal(t, "1965", local.Date)
	assert.Equal(t, []string{"Science Fiction"}, local.Tags)
	// Identifier and series metadata must survive the rewrite.
	assert.Equal(t, "9780441013593", local.ISBN)
	assert.Equal(t, "Dune Chronicles", local.Series)

	// Non-metadata entries are untouched.
	assert.Equal(t, "<html><body>It begins.</body></html>", string(reopened.entry("chapter1.xhtml")))

	// The mimetype entry must stay first and uncompressed.
	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "mimetype", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
}

func TestSetCoverReplacesExisting(t *testing.T) {
	path := writeTestEpub(t, "dune.epub", testOPF)
	book, err := Open(path)
	require.NoError(t, err)

	book.SetCover([]byte("NEWCOVER"))
	out := filepath.Join(t.TempDir(), "covered.epub")
	require.NoError(t, book.Save(out))

	reopened, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, "NEWCOVER", string(reopened.entry("images/cover.jpg")))
}

func TestRawMetadata(t *testing.T) {
	path := writeTestEpub(t, "dune.epub", testOPF)
	book, err := Open(path)
	require.NoError(t, err)

	items := book.RawMetadata()
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}
	assert.Contains(t, names, "DC:title")
	assert.Contains(t, names, "DC:identifier")
	assert.Contains(t, names, "meta:calibre:series")
}
