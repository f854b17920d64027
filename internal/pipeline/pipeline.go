// file: internal/pipeline/pipeline.go
// version: 1.0.0
// guid: 7f8e9d0c-1b2a-4c3d-8e5f-6a7b8c9d0e1f

package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jdfalk/epub-enricher/internal/config"
	"github.com/jdfalk/epub-enricher/internal/cover"
	"github.com/jdfalk/epub-enricher/internal/decision"
	"github.com/jdfalk/epub-enricher/internal/epub"
	"github.com/jdfalk/epub-enricher/internal/finder"
	"github.com/jdfalk/epub-enricher/internal/models"
	"github.com/jdfalk/epub-enricher/internal/upload"
)

// Pipeline runs the full per-book flow: extract metadata, search, decide,
// apply, convert, rename, deliver. Every stage after the decision is
// optional and config-gated.
type Pipeline struct {
	cfg      config.Config
	finder   *finder.Finder
	policy   decision.Policy
	uploader upload.Uploader
}

// New assembles a pipeline from already-constructed collaborators.
func New(cfg config.Config, f *finder.Finder, policy decision.Policy, uploader upload.Uploader) *Pipeline {
	return &Pipeline{cfg: cfg, finder: f, policy: policy, uploader: uploader}
}

// Result reports what happened to one book.
type Result struct {
	Path       string
	Match      models.MatchResult
	Updated    bool
	OutputPath string
	Err        error
}

// ProcessFile runs one book through every enabled stage. Search misses and
// rejected updates are not errors; the book still flows to delivery so a
// batch always drains its input directory.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) Result {
	res := Result{Path: path, OutputPath: path}

	book, err := epub.Open(path)
	if err != nil {
		res.Err = fmt.Errorf("open %s: %w", filepath.Base(path), err)
		return res
	}
	local := book.Metadata()

	res.Match = p.finder.Find(ctx, local)
	update := p.policy.Decide(local, res.Match)
	if !update.Empty() {
		if err := p.apply(ctx, book, update); err != nil {
			res.Err = fmt.Errorf("apply %s: %w", filepath.Base(path), err)
			return res
		}
		if err := book.Save(path); err != nil {
			res.Err = fmt.Errorf("save %s: %w", filepath.Base(path), err)
			return res
		}
		res.Updated = true
	}

	out := path
	if p.cfg.EnableRename && res.Updated {
		renamed, err := p.rename(out, book.Metadata())
		if err != nil {
			res.Err = err
			return res
		}
		out = renamed
	}
	if p.cfg.EnableKepubify {
		converted, err := p.kepubify(ctx, out)
		if err != nil {
			log.Printf("kepubify %s: %v (delivering epub as is)", filepath.Base(out), err)
		} else {
			out = converted
		}
	}
	res.OutputPath = out

	if p.uploader != nil {
		if err := p.uploader.Deliver(ctx, out); err != nil {
			res.Err = fmt.Errorf("deliver %s: %w", filepath.Base(out), err)
			return res
		}
	}
	return res
}

// ProcessDir runs every .epub in dir through the pipeline. A failing book is
// reported and skipped; the batch never aborts early unless the context is
// canceled.
func (p *Pipeline) ProcessDir(ctx context.Context, dir string) ([]Result, error) {
	paths, err := listEpubs(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no epub files in %s", dir)
	}

	runID := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	log.Printf("run %s: processing %d books in %s", runID, len(paths), dir)

	bar := progressbar.Default(int64(len(paths)), "enriching")
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res := p.ProcessFile(ctx, path)
		if res.Err != nil {
			log.Printf("run %s: %v", runID, res.Err)
		}
		results = append(results, res)
		bar.Add(1)
	}
	bar.Finish()
	return results, nil
}

// listEpubs returns the .epub files directly under dir, sorted. Already
// converted .kepub.epub files are skipped so reruns do not reprocess output.
func listEpubs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".epub") || strings.HasSuffix(name, ".kepub.epub") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// apply writes an approved update into the book's OPF.
func (p *Pipeline) apply(ctx context.Context, book *epub.Book, update *decision.Update) error {
	for field, value := range update.Fields {
		switch field {
		case "title":
			book.SetTitle(value)
		case "publisher":
			book.SetPublisher(value)
		case "date":
			book.SetDate(value)
		case "language":
			book.SetLanguage(value)
		case "description":
			book.SetDescription(StripHTML(value))
		}
	}
	if update.Authors != nil {
		book.SetAuthors(update.Authors)
	}
	if update.Cover != "" {
		data, err := cover.Download(ctx, update.Cover)
		if err != nil {
			log.Printf("cover download: %v (keeping existing cover)", err)
			return nil
		}
		processed, err := cover.Process(data)
		if err != nil {
			log.Printf("cover process: %v (keeping existing cover)", err)
			return nil
		}
		book.SetCover(processed)
	}
	return nil
}

// rename moves the book to a title-author-year slug in the same directory.
func (p *Pipeline) rename(path string, local *models.LocalBook) (string, error) {
	name := Slug(local.Title, local.Author, local.Year())
	if name == "" {
		return path, nil
	}
	target := filepath.Join(filepath.Dir(path), name+".epub")
	if target == path {
		return path, nil
	}
	if err := os.Rename(path, target); err != nil {
		return path, fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return target, nil
}

// kepubify shells out to the kepubify binary to produce a Kobo epub next to
// the source file.
func (p *Pipeline) kepubify(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("kepubify"); err != nil {
		return "", fmt.Errorf("kepubify not installed: %w", err)
	}
	out := strings.TrimSuffix(path, ".epub") + ".kepub.epub"
	cmd := exec.CommandContext(ctx, "kepubify", "-o", out, path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("kepubify: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return out, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

var slugFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug builds a filesystem-safe "title-author-year" file stem. Diacritics
// fold to their base letters; empty parts are dropped; an all-empty input
// yields "".
func Slug(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if folded, _, err := transform.String(slugFolder, part); err == nil {
			part = folded
		}
		cleaned := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(part), "-"), "-")
		if cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	return strings.Join(kept, "-")
}

// StripHTML reduces an HTML fragment to its text content. Provider
// descriptions frequently arrive with markup that has no place in a dc
// element.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}
}
