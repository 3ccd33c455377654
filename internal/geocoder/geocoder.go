// Package geocoder resolves free-text addresses to coordinates via the
// Nominatim search API.
package geocoder

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/amt2283/hunterleaf-go/internal/errors"
	"github.com/amt2283/hunterleaf-go/internal/httpclient"
)

// Config holds configuration for the geocoder.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns defaults for the public Nominatim instance.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://nominatim.openstreetmap.org",
		Timeout: 15 * time.Second,
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Client is a Nominatim forward-geocoding client.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
}

// NewClient creates a new geocoder client.
func NewClient(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	return &Client{
		baseURL: config.BaseURL,
		httpClient: httpclient.New(&httpclient.Config{
			DefaultTimeout: config.Timeout,
			// Nominatim's usage policy requires an identifying user agent.
			UserAgent: "HunterLeaf-Go (plant observation lookup)",
		}),
	}
}

// Close releases client resources.
func (c *Client) Close() {
	c.httpClient.Close()
}

// Geocode resolves an address to (lat, lng). Returns a not-found error when
// Nominatim has no result for the address.
func (c *Client) Geocode(ctx context.Context, address string) (lat, lng float64, err error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	requestURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	var results []searchResult
	if err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &results,
		httpclient.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Second, MaxDelay: 2 * time.Second}, nil); err != nil {
		return 0, 0, err
	}

	if len(results) == 0 {
		return 0, 0, errors.Newf("no coordinates found for address %q", address).
			Category(errors.CategoryNotFound).
			Component("geocoder").
			Build()
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, errors.Newf("unparseable coordinates in geocoder response for %q", address).
			Category(errors.CategoryParsing).
			Component("geocoder").
			Build()
	}

	return lat, lng, nil
}
