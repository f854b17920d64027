// file: internal/models/book.go
// version: 1.1.0
// guid: 3f8a1c2d-9b4e-4f7a-8c1d-2e5b6a7c8d9e

package models

// LocalBook is the metadata extracted from a local EPUB file. It is produced
// once per book by the extractor and treated as read-only during a search.
type LocalBook struct {
	Title          string
	Author         string
	ISBN           string // cleaned 10/13-char form, "" when absent
	Publisher      string
	Date           string // "YYYY" or "YYYY-MM-DD"
	Language       string
	Series         string
	SeriesIndex    float64
	HasSeriesIndex bool
	Tags           []string
	Filename       string
}

// HasTitle reports whether a usable title exists. An empty title suppresses
// the text-search phase entirely.
func (b *LocalBook) HasTitle() bool {
	return b.Title != ""
}

// HasAuthor reports whether a usable author exists for query building.
func (b *LocalBook) HasAuthor() bool {
	return b.Author != ""
}

// Year returns the leading four-digit year of the publication date, or ""
// when the date is absent or too short.
func (b *LocalBook) Year() string {
	if len(b.Date) < 4 {
		return ""
	}
	return b.Date[:4]
}

// IndustryIdentifier is a typed catalog identifier attached to a remote hit,
// e.g. {Type: "ISBN_13", Identifier: "9780306406157"}.
type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// RemoteBook is the canonical shape every provider adapter must produce.
// It never carries provider-specific keys; normalization happens strictly
// inside the adapters.
type RemoteBook struct {
	Title         string
	Authors       []string
	Publisher     string
	PublishedDate string
	Description   string
	PageCount     int
	Categories    []string
	ImageLinks    map[string]string // size name ("thumbnail", ...) to URL
	Identifiers   []IndustryIdentifier
	Language      string
	ProviderID    string
	Link          string
}

// CoverURL returns the best available cover image URL, preferring the
// standard thumbnail size.
func (b *RemoteBook) CoverURL() string {
	if b == nil || len(b.ImageLinks) == 0 {
		return ""
	}
	for _, key := range []string{"thumbnail", "smallThumbnail", "medium", "large", "small"} {
		if url := b.ImageLinks[key]; url != "" {
			return url
		}
	}
	for _, url := range b.ImageLinks {
		if url != "" {
			return url
		}
	}
	return ""
}

// SearchAttempt describes how much local context a text query folds in.
// Attempts run from strictest to loosest during the relaxation ladder.
type SearchAttempt struct {
	Name         string
	UsePublisher bool
	UseYear      bool
	UseSeries    bool
}

// MatchResult is what the finder hands back to the caller. A nil Book with
// strategy "None" means the waterfall exhausted every option.
type MatchResult struct {
	Book       *RemoteBook
	Confidence int // clamped to [0,100]
	Strategy   string
	TotalHits  int
}

// Found reports whether the waterfall accepted a candidate.
func (r MatchResult) Found() bool {
	return r.Book != nil
}
