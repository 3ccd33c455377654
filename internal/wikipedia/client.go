// Package wikipedia fetches short page summaries used to enrich
// observations, with a search fallback when the scientific name has no
// page of its own.
package wikipedia

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amt2283/hunterleaf-go/internal/httpclient"
	"github.com/amt2283/hunterleaf-go/internal/logging"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "wikipedia.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "wikipedia", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize wikipedia file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.NewDiscardLogger("wikipedia", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// Config holds configuration for the Wikipedia client.
type Config struct {
	// BaseURL is a template with one %s verb for the language subdomain.
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// DefaultConfig returns client defaults for the public Wikipedia REST API.
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://%s.wikipedia.org",
		Language: "en",
		Timeout:  10 * time.Second,
	}
}

type summaryResponse struct {
	Extract string `json:"extract"`
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

// Client fetches page summaries. Enrichment is best-effort: failures
// resolve to an empty summary, never an error.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *httpclient.Client
}

// NewClient creates a new Wikipedia client.
func NewClient(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Language == "" {
		config.Language = def.Language
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}

	baseURL := config.BaseURL
	if strings.Contains(baseURL, "%s") {
		baseURL = fmt.Sprintf(baseURL, config.Language)
	}

	return &Client{
		baseURL:    baseURL,
		timeout:    config.Timeout,
		httpClient: httpclient.New(&httpclient.Config{DefaultTimeout: config.Timeout}),
	}
}

// Close releases client resources.
func (c *Client) Close() {
	c.httpClient.Close()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing wikipedia logger: %v", err)
		}
	}
}

// Summary returns the page extract for a scientific name, trying the exact
// title first and falling back to a full-text search for the closest page.
// Returns an empty string when nothing usable is found.
func (c *Client) Summary(ctx context.Context, scientificName string) string {
	reqID := uuid.New().String()

	if extract := c.pageSummary(ctx, reqID, scientificName); extract != "" {
		return extract
	}

	title := c.searchTitle(ctx, reqID, scientificName)
	if title == "" || strings.EqualFold(title, scientificName) {
		return ""
	}
	return c.pageSummary(ctx, reqID, title)
}

// pageSummary fetches the REST summary for one page title.
func (c *Client) pageSummary(ctx context.Context, reqID, title string) string {
	requestURL := fmt.Sprintf("%s/api/rest_v1/page/summary/%s",
		c.baseURL, url.PathEscape(strings.ReplaceAll(title, " ", "_")))

	var resp summaryResponse
	// Summary lookups are not retried: a missing page is the common case
	// and the search fallback is cheaper than a backoff cycle.
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp,
		httpclient.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Second}, nil)
	if err != nil {
		logger.Debug("summary lookup failed",
			"request_id", reqID,
			"title", title,
			"error", err.Error())
		return ""
	}
	return resp.Extract
}

// searchTitle finds the closest page title for a query.
func (c *Client) searchTitle(ctx context.Context, reqID, query string) string {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "1")
	params.Set("format", "json")

	requestURL := fmt.Sprintf("%s/w/api.php?%s", c.baseURL, params.Encode())

	var resp searchResponse
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp,
		httpclient.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Second}, nil)
	if err != nil {
		logger.Debug("search fallback failed",
			"request_id", reqID,
			"query", query,
			"error", err.Error())
		return ""
	}
	if len(resp.Query.Search) == 0 {
		return ""
	}
	return resp.Query.Search[0].Title
}
