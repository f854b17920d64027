// file: internal/providers/google.go
// version: 1.0.0
// guid: c4d5e6f7-a8b9-4c0d-9e1f-2a3b4c5d6e7f

package providers

import (
	"context"
	"log"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"github.com/jdfalk/epub-enricher/internal/config"
	"github.com/jdfalk/epub-enricher/internal/models"
)

// GoogleBooks fetches metadata from the Google Books Volume API. No API key
// is required for basic searches (free tier, ~1000 req/day).
type GoogleBooks struct {
	catalogClient
	baseURL          string
	usePublisher     bool
	useYear          bool
	useSeries        bool
	filterByLanguage bool
}

// NewGoogleBooks creates a Google Books adapter from the configuration.
func NewGoogleBooks(cfg config.Config) *GoogleBooks {
	return &GoogleBooks{
		catalogClient:    newCatalogClient(cfg),
		baseURL:          strings.TrimRight(cfg.GoogleBaseURL, "/"),
		usePublisher:     cfg.UsePublisherInSearch,
		useYear:          cfg.UseYearInSearch,
		useSeries:        cfg.UseSeriesInSearch,
		filterByLanguage: cfg.FilterByLanguage,
	}
}

// Name returns the display name for this provider.
func (g *GoogleBooks) Name() string {
	return "Google Books"
}

type googleVolumesResponse struct {
	TotalItems int          `json:"totalItems"`
	Items      []googleItem `json:"items"`
}

type googleItem struct {
	ID         string           `json:"id"`
	VolumeInfo googleVolumeInfo `json:"volumeInfo"`
}

type googleVolumeInfo struct {
	Title               string                      `json:"title"`
	Authors             []string                    `json:"authors"`
	Publisher           string                      `json:"publisher"`
	PublishedDate       string                      `json:"publishedDate"`
	Description         string                      `json:"description"`
	PageCount           int                         `json:"pageCount"`
	Categories          []string                    `json:"categories"`
	ImageLinks          map[string]string           `json:"imageLinks"`
	IndustryIdentifiers []models.IndustryIdentifier `json:"industryIdentifiers"`
	Language            string                      `json:"language"`
	InfoLink            string                      `json:"infoLink"`
}

// GetByISBN looks a volume up by identifier.
func (g *GoogleBooks) GetByISBN(ctx context.Context, isbn string) (*models.RemoteBook, int) {
	return g.fetch(ctx, "isbn:"+isbn, "")
}

// SearchByText runs a text query with the context the attempt allows.
func (g *GoogleBooks) SearchByText(ctx context.Context, local *models.LocalBook, attempt models.SearchAttempt) (*models.RemoteBook, int) {
	query := g.buildQuery(local, attempt)
	if query == "" {
		return nil, 0
	}
	langRestrict := ""
	if g.filterByLanguage {
		langRestrict = baseLanguage(local.Language)
	}
	return g.fetch(ctx, query, langRestrict)
}

func (g *GoogleBooks) fetch(ctx context.Context, query, langRestrict string) (*models.RemoteBook, int) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", "5")
	if langRestrict != "" {
		params.Set("langRestrict", langRestrict)
	}
	searchURL := g.baseURL + "/volumes?" + params.Encode()

	var resp googleVolumesResponse
	if err := g.getJSON(ctx, searchURL, &resp); err != nil {
		log.Printf("[google] query %q failed: %v", query, err)
		return nil, 0
	}
	if len(resp.Items) == 0 {
		return nil, 0
	}
	return g.normalize(resp.Items[0]), resp.TotalItems
}

// buildQuery assembles the intitle/inauthor/inpublisher query string,
// folding in only the context the relaxation attempt and the configuration
// both allow.
func (g *GoogleBooks) buildQuery(local *models.LocalBook, attempt models.SearchAttempt) string {
	if !local.HasTitle() {
		return ""
	}
	parts := []string{"intitle:" + stripSubtitle(local.Title)}

	if local.HasAuthor() {
		parts = append(parts, "inauthor:"+local.Author)
	}
	if attempt.UsePublisher && g.usePublisher && local.Publisher != "" {
		parts = append(parts, "inpublisher:"+cleanPublisher(local.Publisher))
	}

	var keywords []string
	if attempt.UseSeries && g.useSeries && local.Series != "" {
		keywords = append(keywords, stripSubtitle(local.Series))
	}
	if attempt.UseYear && g.useYear && local.Year() != "" {
		keywords = append(keywords, local.Year())
	}

	query := strings.Join(parts, " ")
	if len(keywords) > 0 {
		query += " " + strings.Join(keywords, " ")
	}
	return query
}

func (g *GoogleBooks) normalize(item googleItem) *models.RemoteBook {
	vi := item.VolumeInfo
	book := &models.RemoteBook{
		Title:         vi.Title,
		Authors:       vi.Authors,
		Publisher:     vi.Publisher,
		PublishedDate: vi.PublishedDate,
		Description:   vi.Description,
		PageCount:     vi.PageCount,
		Categories:    vi.Categories,
		ImageLinks:    vi.ImageLinks,
		Identifiers:   vi.IndustryIdentifiers,
		Language:      vi.Language,
		ProviderID:    item.ID,
		Link:          vi.InfoLink,
	}
	if book.Title == "" {
		book.Title = "Unknown"
	}
	if len(book.Authors) == 0 {
		book.Authors = []string{"Unknown"}
	}
	return book
}

// baseLanguage reduces a BCP 47 tag like "fr-FR" to its base language "fr",
// which is what the langRestrict parameter expects.
func baseLanguage(tag string) string {
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	base, _ := parsed.Base()
	return base.String()
}
