// file: internal/format/format.go
// version: 1.0.0
// guid: 1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d

package format

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jdfalk/epub-enricher/internal/epub"
	"github.com/jdfalk/epub-enricher/internal/models"
)

// Printer renders user-facing output. The confidence bands only affect
// coloring; decisions never consult them.
type Printer struct {
	Out        io.Writer
	High       int
	Medium     int
	FullOutput bool
}

func (p *Printer) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

// Metadata prints the curated local record for one book.
func (p *Printer) Metadata(local *models.LocalBook) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out())
	t.SetTitle(local.Filename)
	t.AppendRows([]table.Row{
		{"Title", orDash(local.Title)},
		{"Author", orDash(local.Author)},
		{"ISBN", orDash(local.ISBN)},
		{"Publisher", orDash(local.Publisher)},
		{"Date", orDash(local.Date)},
		{"Language", orDash(local.Language)},
	})
	if local.Series != "" {
		series := local.Series
		if local.HasSeriesIndex {
			series = fmt.Sprintf("%s #%g", series, local.SeriesIndex)
		}
		t.AppendRow(table.Row{"Series", series})
	}
	if len(local.Tags) > 0 {
		t.AppendRow(table.Row{"Tags", strings.Join(local.Tags, ", ")})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// RawMetadata dumps every OPF metadata element, for the inspect command.
func (p *Printer) RawMetadata(items []epub.RawItem) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out())
	t.AppendHeader(table.Row{"Element", "Value", "Attributes"})
	for _, item := range items {
		var attrs []string
		for k, v := range item.Attrs {
			attrs = append(attrs, fmt.Sprintf("%s=%s", k, v))
		}
		t.AppendRow(table.Row{item.Name, truncate(item.Value, 60), strings.Join(attrs, " ")})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// SearchResult prints the outcome of a waterfall search.
func (p *Printer) SearchResult(result models.MatchResult, reasons []string) {
	w := p.out()
	if !result.Found() {
		fmt.Fprintln(w, "No match found.")
		return
	}

	fmt.Fprintf(w, "Match: %s by %s\n", result.Book.Title, strings.Join(result.Book.Authors, ", "))
	fmt.Fprintf(w, "Strategy: %s (%d hits)\n", result.Strategy, result.TotalHits)
	fmt.Fprintf(w, "Confidence: %s\n", p.colorConfidence(result.Confidence))
	for _, reason := range reasons {
		if reason != "" {
			fmt.Fprintf(w, "  - %s\n", reason)
		}
	}

	if p.FullOutput {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendRows([]table.Row{
			{"Publisher", orDash(result.Book.Publisher)},
			{"Date", orDash(result.Book.PublishedDate)},
			{"Language", orDash(result.Book.Language)},
			{"Pages", result.Book.PageCount},
			{"Categories", strings.Join(result.Book.Categories, ", ")},
			{"Cover", orDash(result.Book.CoverURL())},
			{"Link", orDash(result.Book.Link)},
		})
		t.SetStyle(table.StyleLight)
		t.Render()
	}
}

// colorConfidence renders the score in the band color. Cosmetic only.
func (p *Printer) colorConfidence(confidence int) string {
	s := fmt.Sprintf("%d%%", confidence)
	switch {
	case confidence >= p.High:
		return text.FgGreen.Sprint(s)
	case confidence >= p.Medium:
		return text.FgYellow.Sprint(s)
	default:
		return text.FgRed.Sprint(s)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
