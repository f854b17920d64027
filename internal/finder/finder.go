// file: internal/finder/finder.go
// version: 1.0.0
// guid: 1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f

package finder

import (
	"context"
	"fmt"
	"log"

	"github.com/jdfalk/epub-enricher/internal/confidence"
	"github.com/jdfalk/epub-enricher/internal/isbn"
	"github.com/jdfalk/epub-enricher/internal/models"
	"github.com/jdfalk/epub-enricher/internal/providers"
)

// textAcceptBar is the fixed confidence a text-phase candidate must exceed
// to stop the waterfall. Not operator-tunable.
const textAcceptBar = 40

// relaxationAttempts is the fixed relaxation ladder, strictest context
// first. The last attempt is title+author only.
var relaxationAttempts = []models.SearchAttempt{
	{Name: "Full Context", UsePublisher: true, UseYear: true, UseSeries: true},
	{Name: "No Publisher", UsePublisher: false, UseYear: true, UseSeries: true},
	{Name: "No Year", UsePublisher: false, UseYear: false, UseSeries: true},
	{Name: "Basic", UsePublisher: false, UseYear: false, UseSeries: false},
}

// Finder drives the waterfall search across an ordered provider list. It is
// stateless across calls; every Find is a pure function of its inputs.
type Finder struct {
	providers []providers.Provider
	verbose   bool
}

// New creates a Finder over the given providers. Provider order is the
// priority order for both phases.
func New(providerList []providers.Provider) *Finder {
	return &Finder{providers: providerList}
}

// SetVerbose enables per-attempt diagnostics.
func (f *Finder) SetVerbose(verbose bool) {
	f.verbose = verbose
}

// noMatch is the explicit empty result; absence of a match is never an error.
func noMatch() models.MatchResult {
	return models.MatchResult{Book: nil, Confidence: 0, Strategy: "None", TotalHits: 0}
}

// Find locates the best remote record for a local book using a two-phase
// waterfall:
//
//  1. Identifier phase: when the local record carries an ISBN, try the
//     identifier and its ISBN-13 equivalent against every provider in
//     priority order. The first hit wins immediately; identifiers are
//     presumed authoritative, so no acceptance bar applies.
//  2. Text phase: progressively relax the query from full context down to
//     title+author only. Providers are iterated OUTER and attempts INNER, so
//     a provider's entire relaxation ladder runs before the next provider is
//     consulted; when two providers could satisfy the same attempt, the
//     earlier-registered one wins. A candidate is accepted once its
//     confidence exceeds the fixed bar.
//
// The search is satisficing, not optimizing: it stops at the first
// good-enough match and leaves residual uncertainty to the decision policy.
func (f *Finder) Find(ctx context.Context, local *models.LocalBook) models.MatchResult {
	if result, found := f.findByISBN(ctx, local); found {
		return result
	}
	if result, found := f.findByText(ctx, local); found {
		return result
	}
	return noMatch()
}

func (f *Finder) findByISBN(ctx context.Context, local *models.LocalBook) (models.MatchResult, bool) {
	if local.ISBN == "" {
		return noMatch(), false
	}
	f.logf("strategy: ISBN (%s)", local.ISBN)

	variants := []string{local.ISBN}
	if len(local.ISBN) == 10 {
		if v13 := isbn.To13(local.ISBN); v13 != "" {
			variants = append(variants, v13)
		}
	}

	for _, provider := range f.providers {
		for _, variant := range variants {
			book, total := provider.GetByISBN(ctx, variant)
			if book == nil {
				continue
			}
			conf, reasons := confidence.Score(confidence.KindISBN, local, book, total)
			f.logf("%s: ISBN hit %q confidence %d %v", provider.Name(), book.Title, conf, reasons)
			return models.MatchResult{
				Book:       book,
				Confidence: conf,
				Strategy:   fmt.Sprintf("ISBN (%s)", provider.Name()),
				TotalHits:  total,
			}, true
		}
		f.logf("%s: ISBN not found", provider.Name())
	}
	return noMatch(), false
}

func (f *Finder) findByText(ctx context.Context, local *models.LocalBook) (models.MatchResult, bool) {
	if !local.HasTitle() {
		return noMatch(), false
	}
	f.logf("strategy: text search with relaxation")

	for _, provider := range f.providers {
		for _, attempt := range relaxationAttempts {
			f.logf("%s: trying %q", provider.Name(), attempt.Name)

			book, total := provider.SearchByText(ctx, local, attempt)
			if book == nil {
				continue
			}
			conf, _ := confidence.Score(confidence.KindText, local, book, total)
			if conf > textAcceptBar {
				return models.MatchResult{
					Book:       book,
					Confidence: conf,
					Strategy:   fmt.Sprintf("Text %s (%s)", provider.Name(), attempt.Name),
					TotalHits:  total,
				}, true
			}
			f.logf("%s: low confidence (%d), continuing", provider.Name(), conf)
		}
	}
	return noMatch(), false
}

func (f *Finder) logf(format string, args ...any) {
	if f.verbose {
		log.Printf("[finder] "+format, args...)
	}
}
