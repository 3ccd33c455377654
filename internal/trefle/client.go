// Package trefle provides a client for the Trefle plants API. Trefle has no
// geographic query capability: records always carry nil coordinates, and a
// fixed set of non-flowering plant groups outside its taxonomy is skipped
// entirely.
package trefle

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/httpclient"
	"github.com/amt2283/hunterleaf-go/internal/logging"
	"github.com/amt2283/hunterleaf-go/internal/observability"
	"github.com/amt2283/hunterleaf-go/internal/observation"
	"github.com/amt2283/hunterleaf-go/internal/taxon"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "trefle.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "trefle", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize trefle file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.NewDiscardLogger("trefle", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// unsupportedGroups are interest terms Trefle's taxonomy cannot answer;
// queries for them are skipped rather than sent upstream. Keys are
// normalized category names.
var unsupportedGroups = map[string]bool{
	"alga":        true,
	"hongo":       true,
	"liquen":      true,
	"briofito":    true,
	"pteridofito": true,
}

// Config holds configuration for the Trefle client.
type Config struct {
	BaseURL string                 `json:"base_url"`
	APIKey  string                 `json:"api_key"`
	PerPage int                    `json:"per_page"`
	Timeout time.Duration          `json:"timeout"`
	Retry   httpclient.RetryPolicy `json:"-"`
}

// DefaultConfig returns client defaults matching the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://trefle.io/api/v1",
		PerPage: 50,
		Timeout: 15 * time.Second,
		Retry:   httpclient.DefaultRetryPolicy(),
	}
}

// plantsSearchResponse is the /plants/search envelope.
type plantsSearchResponse struct {
	Data []apiPlant `json:"data"`
}

type apiPlant struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
	Family         string `json:"family"`
	ImageURL       string `json:"image_url"`
}

// Client provides methods for interacting with the Trefle API.
type Client struct {
	config     Config
	httpClient *httpclient.Client
	metrics    *observability.Metrics
}

// NewClient creates a new Trefle API client.
func NewClient(config Config, metrics *observability.Metrics) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.PerPage == 0 {
		config.PerPage = def.PerPage
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}

	client := &Client{
		config:     config,
		httpClient: httpclient.New(&httpclient.Config{DefaultTimeout: config.Timeout}),
		metrics:    metrics,
	}

	logger.Info("Trefle client initialized",
		"base_url", config.BaseURL,
		"api_key_configured", config.APIKey != "")

	return client
}

// Close releases client resources.
func (c *Client) Close() {
	c.httpClient.Close()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing trefle logger: %v", err)
		}
	}
}

// Name identifies the source in aggregated output.
func (c *Client) Name() observation.Source {
	return observation.SourceTrefle
}

// Fetch runs a text search for one interest term. The area is accepted for
// interface symmetry but cannot constrain the search. Upstream failure
// after the retry budget degrades to an empty slice.
func (c *Client) Fetch(ctx context.Context, area geo.Query, term string) ([]observation.Record, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}

	if unsupportedGroups[taxon.NormalizeCategory(term)] {
		logger.Debug("term not supported by Trefle taxonomy, skipping query", "term", term)
		return []observation.Record{}, nil
	}

	params := url.Values{}
	params.Set("q", term)
	params.Set("token", c.config.APIKey)
	params.Set("limit", strconv.Itoa(c.config.PerPage))

	requestURL := fmt.Sprintf("%s/plants/search?%s", c.config.BaseURL, params.Encode())

	start := time.Now()
	var resp plantsSearchResponse
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp, c.config.Retry, logger)
	c.metrics.RecordUpstream("trefle", outcome(err), time.Since(start).Seconds())
	if err != nil {
		logger.Error("plant search failed, returning empty result",
			"term", term,
			"error", err.Error())
		return []observation.Record{}, nil
	}

	records := make([]observation.Record, 0, len(resp.Data))
	for i := range resp.Data {
		record, ok := mapPlant(&resp.Data[i])
		if !ok {
			continue
		}
		records = append(records, record)
	}

	logger.Debug("plants fetched",
		"term", term,
		"raw", len(resp.Data),
		"mapped", len(records))

	return records, nil
}

// mapPlant normalizes one Trefle search hit. Coordinates are always absent.
func mapPlant(plant *apiPlant) (observation.Record, bool) {
	name := strings.TrimSpace(plant.ScientificName)
	if !taxon.IsValidScientificName(name) {
		return observation.Record{}, false
	}

	var descParts []string
	if plant.CommonName != "" {
		descParts = append(descParts, fmt.Sprintf("Common name: %s.", plant.CommonName))
	}
	if plant.Family != "" {
		descParts = append(descParts, fmt.Sprintf("Family: %s.", plant.Family))
	}

	var chain taxon.Chain
	if plant.Family != "" {
		chain = taxon.Chain{{Rank: "family", Name: plant.Family}}
	}

	return observation.Record{
		Observation: observation.Observation{
			ScientificName:      name,
			Genus:               taxon.ExtractGenus(name),
			IdentificationCount: 1,
			Quality:             "Trefle reference data",
			Description:         strings.Join(descParts, " "),
			ImageURL:            plant.ImageURL,
			Source:              observation.SourceTrefle,
		},
		Ancestors: chain,
	}, true
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
