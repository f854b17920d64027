// file: internal/providers/openlibrary.go
// version: 1.0.0
// guid: d5e6f7a8-b9c0-4d1e-af2a-3b4c5d6e7f8a

package providers

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/jdfalk/epub-enricher/internal/config"
	"github.com/jdfalk/epub-enricher/internal/models"
)

// OpenLibrary fetches metadata from the Open Library APIs. Identifier
// lookups use the books API (jscmd=data), text queries the search API; the
// two return different document shapes and are normalized separately.
type OpenLibrary struct {
	catalogClient
	baseURL      string
	usePublisher bool
}

// NewOpenLibrary creates an Open Library adapter from the configuration.
func NewOpenLibrary(cfg config.Config) *OpenLibrary {
	return &OpenLibrary{
		catalogClient: newCatalogClient(cfg),
		baseURL:       strings.TrimRight(cfg.OpenLibraryBaseURL, "/"),
		usePublisher:  cfg.UsePublisherInSearch,
	}
}

// Name returns the display name for this provider.
func (o *OpenLibrary) Name() string {
	return "OpenLibrary"
}

type olNamed struct {
	Name string `json:"name"`
}

type olExcerpt struct {
	Text string `json:"text"`
}

type olBookData struct {
	Title         string              `json:"title"`
	Authors       []olNamed           `json:"authors"`
	Publishers    []olNamed           `json:"publishers"`
	PublishDate   string              `json:"publish_date"`
	Excerpts      []olExcerpt         `json:"excerpts"`
	NumberOfPages int                 `json:"number_of_pages"`
	Subjects      []olNamed           `json:"subjects"`
	Identifiers   map[string][]string `json:"identifiers"`
	Cover         map[string]string   `json:"cover"`
	URL           string              `json:"url"`
	Key           string              `json:"key"`
}

type olSearchDoc struct {
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	Publisher           []string `json:"publisher"`
	FirstPublishYear    int      `json:"first_publish_year"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
	Subject             []string `json:"subject"`
	Language            []string `json:"language"`
	CoverI              int      `json:"cover_i"`
	Key                 string   `json:"key"`
}

type olSearchResponse struct {
	NumFound int           `json:"numFound"`
	Docs     []olSearchDoc `json:"docs"`
}

// GetByISBN looks an edition up through the books API. The endpoint returns
// at most one record per bibkey, so a hit always reports a total of 1.
func (o *OpenLibrary) GetByISBN(ctx context.Context, isbn string) (*models.RemoteBook, int) {
	lookupURL := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", o.baseURL, url.QueryEscape(isbn))

	var resp map[string]olBookData
	if err := o.getJSON(ctx, lookupURL, &resp); err != nil {
		log.Printf("[openlibrary] isbn %s lookup failed: %v", isbn, err)
		return nil, 0
	}
	data, ok := resp["ISBN:"+isbn]
	if !ok {
		return nil, 0
	}
	return o.normalizeBook(data), 1
}

// SearchByText queries the search API. Open Library has no year or series
// fields, so those attempt flags only matter for the other providers.
func (o *OpenLibrary) SearchByText(ctx context.Context, local *models.LocalBook, attempt models.SearchAttempt) (*models.RemoteBook, int) {
	if !local.HasTitle() {
		return nil, 0
	}
	params := url.Values{}
	params.Set("title", stripSubtitle(local.Title))
	if local.HasAuthor() {
		params.Set("author", local.Author)
	}
	if attempt.UsePublisher && o.usePublisher && local.Publisher != "" {
		params.Set("publisher", cleanPublisher(local.Publisher))
	}
	searchURL := o.baseURL + "/search.json?" + params.Encode()

	var resp olSearchResponse
	if err := o.getJSON(ctx, searchURL, &resp); err != nil {
		log.Printf("[openlibrary] search %q failed: %v", local.Title, err)
		return nil, 0
	}
	if len(resp.Docs) == 0 {
		return nil, 0
	}
	return o.normalizeSearch(resp.Docs[0]), resp.NumFound
}

func (o *OpenLibrary) normalizeBook(data olBookData) *models.RemoteBook {
	book := &models.RemoteBook{
		Title:         data.Title,
		PublishedDate: data.PublishDate,
		PageCount:     data.NumberOfPages,
		ImageLinks:    data.Cover,
		Link:          data.URL,
		ProviderID:    data.Key,
	}
	for _, a := range data.Authors {
		book.Authors = append(book.Authors, a.Name)
	}
	if len(data.Publishers) > 0 {
		book.Publisher = data.Publishers[0].Name
	}
	if len(data.Excerpts) > 0 {
		book.Description = data.Excerpts[0].Text
	}
	for i, s := range data.Subjects {
		if i == 5 {
			break
		}
		book.Categories = append(book.Categories, s.Name)
	}
	for key, values := range data.Identifiers {
		if !strings.Contains(strings.ToLower(key), "isbn") {
			continue
		}
		for _, v := range values {
			book.Identifiers = append(book.Identifiers, models.IndustryIdentifier{
				Type:       strings.ToUpper(key),
				Identifier: v,
			})
		}
	}
	return fillUnknowns(book)
}

func (o *OpenLibrary) normalizeSearch(doc olSearchDoc) *models.RemoteBook {
	book := &models.RemoteBook{
		Title:      doc.Title,
		Authors:    doc.AuthorName,
		PageCount:  doc.NumberOfPagesMedian,
		ProviderID: doc.Key,
	}
	if len(doc.Publisher) > 0 {
		book.Publisher = doc.Publisher[0]
	}
	if doc.FirstPublishYear > 0 {
		book.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
	}
	if len(doc.Subject) > 5 {
		book.Categories = doc.Subject[:5]
	} else {
		book.Categories = doc.Subject
	}
	if len(doc.Language) > 0 {
		book.Language = doc.Language[0]
	}
	if doc.CoverI > 0 {
		book.ImageLinks = map[string]string{
			"thumbnail": fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverI),
		}
	}
	if doc.Key != "" {
		book.Link = "https://openlibrary.org" + doc.Key
	}
	return fillUnknowns(book)
}

// fillUnknowns applies the canonical sentinel for records that genuinely
// lack a title or authors upstream.
func fillUnknowns(book *models.RemoteBook) *models.RemoteBook {
	if book.Title == "" {
		book.Title = "Unknown"
	}
	if len(book.Authors) == 0 {
		book.Authors = []string{"Unknown"}
	}
	return book
}
