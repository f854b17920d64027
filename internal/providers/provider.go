// file: internal/providers/provider.go
// version: 1.0.0
// guid: b3c4d5e6-f7a8-4b9c-8d0e-1f2a3b4c5d6e

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jdfalk/epub-enricher/internal/config"
	"github.com/jdfalk/epub-enricher/internal/models"
)

// Provider is a pluggable external catalog. Adapters normalize their
// upstream schema into models.RemoteBook and never let failures escape:
// every error and "not found" path collapses to (nil, 0).
type Provider interface {
	Name() string
	GetByISBN(ctx context.Context, isbn string) (*models.RemoteBook, int)
	SearchByText(ctx context.Context, local *models.LocalBook, attempt models.SearchAttempt) (*models.RemoteBook, int)
}

// ForSource builds the active provider list for the configured source
// selector. Registration order is priority order for the waterfall.
func ForSource(cfg config.Config) []Provider {
	var providers []Provider
	if cfg.Source == config.SourceAll || cfg.Source == config.SourceGoogle {
		providers = append(providers, NewGoogleBooks(cfg))
	}
	if cfg.Source == config.SourceAll || cfg.Source == config.SourceOpenLibrary {
		providers = append(providers, NewOpenLibrary(cfg))
	}
	return providers
}

// statusError carries a non-2xx upstream status for retry classification.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.code)
}

// retryableStatus reports whether a status code signals a transient upstream
// condition worth backing off and retrying.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// catalogClient bundles the HTTP plumbing shared by the adapters: request
// timeout, a client-side politeness limiter for the free API tiers, and
// retry with exponential backoff on transient failures.
type catalogClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration // unit of the 2^attempt backoff curve
}

func newCatalogClient(cfg config.Config) catalogClient {
	return catalogClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		retries:    cfg.MaxRetries,
		backoff:    time.Second,
	}
}

// getJSON issues a GET and decodes the JSON body into out. Transient
// failures (timeouts, connection errors, 429, 5xx) are retried up to the
// configured attempt count with 2^attempt backoff; other failures return
// immediately. The caller downgrades any returned error to "no data".
func (c catalogClient) getJSON(ctx context.Context, rawURL string, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, c.backoff*time.Duration(1<<(attempt-1))); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			// Timeouts and connection resets are worth another try.
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("malformed response from %s: %w", rawURL, err)
			}
			return nil
		}
		resp.Body.Close()
		if !retryableStatus(resp.StatusCode) {
			return &statusError{code: resp.StatusCode}
		}
		lastErr = &statusError{code: resp.StatusCode}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stripSubtitle cuts a title at the first parenthetical or subtitle
// separator, leaving the searchable core.
func stripSubtitle(title string) string {
	if i := strings.Index(title, "("); i >= 0 {
		title = title[:i]
	}
	if i := strings.Index(title, ":"); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

// cleanPublisher trims administrative noise words that confuse publisher
// field queries.
func cleanPublisher(publisher string) string {
	for _, word := range []string{"Editions", "Éditions"} {
		publisher = strings.ReplaceAll(publisher, word, "")
	}
	return strings.TrimSpace(publisher)
}
