// file: internal/testutil/stub_provider.go
// version: 1.0.0
// guid: c3d4e5f6-a7b8-4012-8def-345678901abc

package testutil

import (
	"context"
	"fmt"

	"github.com/jdfalk/epub-enricher/internal/models"
)

// StubProvider is a deterministic Provider implementation for tests. It
// records every call and serves canned responses keyed by ISBN or by
// attempt name.
type StubProvider struct {
	ProviderName string

	// ISBNHits maps an identifier to a canned record.
	ISBNHits map[string]*models.RemoteBook
	// ISBNTotals overrides the reported total per identifier (default 1).
	ISBNTotals map[string]int

	// TextHits maps an attempt name to a canned record.
	TextHits map[string]*models.RemoteBook
	// TextTotals overrides the reported total per attempt name (default 1).
	TextTotals map[string]int

	// Calls is the ordered trace of operations, e.g. "isbn:9780441013593"
	// or "text:Basic".
	Calls []string
}

// NewStubProvider creates an empty stub with the given display name.
func NewStubProvider(name string) *StubProvider {
	return &StubProvider{
		ProviderName: name,
		ISBNHits:     map[string]*models.RemoteBook{},
		ISBNTotals:   map[string]int{},
		TextHits:     map[string]*models.RemoteBook{},
		TextTotals:   map[string]int{},
	}
}

// Name implements providers.Provider.
func (s *StubProvider) Name() string {
	return s.ProviderName
}

// GetByISBN implements providers.Provider.
func (s *StubProvider) GetByISBN(_ context.Context, isbn string) (*models.RemoteBook, int) {
	s.Calls = append(s.Calls, "isbn:"+isbn)
	book, ok := s.ISBNHits[isbn]
	if !ok {
		return nil, 0
	}
	total := 1
	if t, ok := s.ISBNTotals[isbn]; ok {
		total = t
	}
	return book, total
}

// SearchByText implements providers.Provider.
func (s *StubProvider) SearchByText(_ context.Context, _ *models.LocalBook, attempt models.SearchAttempt) (*models.RemoteBook, int) {
	s.Calls = append(s.Calls, "text:"+attempt.Name)
	book, ok := s.TextHits[attempt.Name]
	if !ok {
		return nil, 0
	}
	total := 1
	if t, ok := s.TextTotals[attempt.Name]; ok {
		total = t
	}
	return book, total
}

// ISBNCalls counts identifier lookups in the trace.
func (s *StubProvider) ISBNCalls() int {
	return s.countPrefix("isbn:")
}

// TextCalls counts text searches in the trace.
func (s *StubProvider) TextCalls() int {
	return s.countPrefix("text:")
}

func (s *StubProvider) countPrefix(prefix string) int {
	n := 0
	for _, c := range s.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Book builds a minimal remote record for stub responses.
func Book(title string, authors ...string) *models.RemoteBook {
	if len(authors) == 0 {
		authors = []string{"Unknown"}
	}
	return &models.RemoteBook{
		Title:      title,
		Authors:    authors,
		ProviderID: fmt.Sprintf("stub-%s", title),
	}
}
