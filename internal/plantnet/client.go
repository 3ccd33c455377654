// Package plantnet provides a client for the PlantNet observations API,
// which mirrors iNaturalist's bounding-box parameter shape and adds
// API-key authentication.
package plantnet

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
	logFilePath := filepath.Join("logs", "plantnet.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "plantnet", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize plantnet file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.NewDiscardLogger("plantnet", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// Config holds configuration for the PlantNet client.
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
		BaseURL: "https://api.plantnet.org/v2",
		PerPage: 50,
		Timeout: 15 * time.Second,
		Retry:   httpclient.DefaultRetryPolicy(),
	}
}

type observationsResponse struct {
	Results []apiObservation `json:"results"`
}

type apiObservation struct {
	ObservedOn           string    `json:"observed_on"`
	Description          string    `json:"description"`
	IdentificationsCount int       `json:"identifications_count"`
	QualityGrade         string    `json:"quality_grade"`
	Latitude             *float64  `json:"latitude"`
	Longitude            *float64  `json:"longitude"`
	Location             string    `json:"location"`
	Taxon                *apiTaxon `json:"taxon"`
}

type apiTaxon struct {
	Name string `json:"name"`
}

// Client provides methods for interacting with the PlantNet API.
type Client struct {
	config     Config
	httpClient *httpclient.Client
	metrics    *observability.Metrics
}

// NewClient creates a new PlantNet API client.
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

	logger.Info("PlantNet client initialized",
		"base_url", config.BaseURL,
		"api_key_configured", config.APIKey != "")

	return client
}

// Close releases client resources.
func (c *Client) Close() {
	c.httpClient.Close()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing plantnet logger: %v", err)
		}
	}
}

// Name identifies the source in aggregated output.
func (c *Client) Name() observation.Source {
	return observation.SourcePlantNet
}

// Fetch queries /observations for one interest term over the given area.
// Upstream failure after the retry budget degrades to an empty slice.
func (c *Client) Fetch(ctx context.Context, area geo.Query, term string) ([]observation.Record, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("taxon_name", term)
	params.Set("per_page", strconv.Itoa(c.config.PerPage))
	params.Set("api-key", c.config.APIKey)

	switch {
	case area.Point != nil:
		params.Set("lat", formatCoord(area.Point.Lat))
		params.Set("lng", formatCoord(area.Point.Lng))
		params.Set("radius", formatCoord(area.Point.RadiusKm))
	case area.Box != nil:
		params.Set("swlat", formatCoord(area.Box.SwLat))
		params.Set("swlng", formatCoord(area.Box.SwLng))
		params.Set("nelat", formatCoord(area.Box.NeLat))
		params.Set("nelng", formatCoord(area.Box.NeLng))
	}

	requestURL := fmt.Sprintf("%s/observations?%s", c.config.BaseURL, params.Encode())

	start := time.Now()
	var resp observationsResponse
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp, c.config.Retry, logger)
	c.metrics.RecordUpstream("plantnet", outcome(err), time.Since(start).Seconds())
	if err != nil {
		logger.Error("observation fetch failed, returning empty result",
			"term", term,
			"error", err.Error())
		return []observation.Record{}, nil
	}

	records := make([]observation.Record, 0, len(resp.Results))
	for i := range resp.Results {
		record, ok := mapObservation(&resp.Results[i])
		if !ok {
			continue
		}
		records = append(records, record)
	}

	logger.Debug("observations fetched",
		"term", term,
		"raw", len(resp.Results),
		"mapped", len(records))

	return records, nil
}

// mapObservation normalizes one raw observation.
func mapObservation(obs *apiObservation) (observation.Record, bool) {
	if obs.Taxon == nil || !taxon.IsValidScientificName(obs.Taxon.Name) {
		return observation.Record{}, false
	}
	name := obs.Taxon.Name

	lat, lng := obs.Latitude, obs.Longitude
	if lat == nil || lng == nil {
		lat, lng = parseLocation(obs.Location)
	}
	if lat == nil || lng == nil || (*lat == 0 && *lng == 0) {
		logger.Debug("invalid coordinates, skipping observation", "name", name)
		return observation.Record{}, false
	}

	return observation.Record{
		Observation: observation.Observation{
			ScientificName:      name,
			Genus:               taxon.ExtractGenus(name),
			Latitude:            lat,
			Longitude:           lng,
			ObservedOn:          obs.ObservedOn,
			IdentificationCount: obs.IdentificationsCount,
			Quality:             obs.QualityGrade,
			Description:         obs.Description,
			Source:              observation.SourcePlantNet,
		},
	}, true
}

func parseLocation(location string) (*float64, *float64) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &lat, &lng
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
