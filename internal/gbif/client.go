// Package gbif provides a client for the GBIF API v1: genus key lookup via
// species search and occurrence search over a WKT polygon.
package gbif

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

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
	logFilePath := filepath.Join("logs", "gbif.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "gbif", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize gbif file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.NewDiscardLogger("gbif", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// Config holds configuration for the GBIF client.
type Config struct {
	BaseURL  string                 `json:"base_url"`
	PerPage  int                    `json:"per_page"`
	Timeout  time.Duration          `json:"timeout"`
	CacheTTL time.Duration          `json:"cache_ttl"`
	Retry    httpclient.RetryPolicy `json:"-"`
}

// DefaultConfig returns client defaults matching the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://api.gbif.org/v1",
		PerPage:  50,
		Timeout:  15 * time.Second,
		CacheTTL: 12 * time.Hour,
		Retry:    httpclient.DefaultRetryPolicy(),
	}
}

// speciesSearchResponse is the /species/search envelope.
type speciesSearchResponse struct {
	Results []struct {
		Key  int64  `json:"key"`
		Rank string `json:"rank"`
	} `json:"results"`
}

// occurrenceSearchResponse is the /occurrence/search envelope.
type occurrenceSearchResponse struct {
	Results []apiOccurrence `json:"results"`
}

type apiOccurrence struct {
	ScientificName   string   `json:"scientificName"`
	DecimalLatitude  *float64 `json:"decimalLatitude"`
	DecimalLongitude *float64 `json:"decimalLongitude"`
	EventDate        string   `json:"eventDate"`
	OccurrenceStatus string   `json:"occurrenceStatus"`
	Habitat          string   `json:"habitat"`
	TaxonKey         int64    `json:"taxonKey"`
	Kingdom          string   `json:"kingdom"`
	Phylum           string   `json:"phylum"`
	Class            string   `json:"class"`
	Order            string   `json:"order"`
	Family           string   `json:"family"`
}

// Client provides methods for interacting with the GBIF API.
type Client struct {
	config        Config
	httpClient    *httpclient.Client
	genusKeyCache *cache.Cache
	metrics       *observability.Metrics
}

// NewClient creates a new GBIF API client.
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
	if config.CacheTTL == 0 {
		config.CacheTTL = def.CacheTTL
	}

	client := &Client{
		config:        config,
		httpClient:    httpclient.New(&httpclient.Config{DefaultTimeout: config.Timeout}),
		genusKeyCache: cache.New(config.CacheTTL, config.CacheTTL*2),
		metrics:       metrics,
	}

	logger.Info("GBIF client initialized",
		"base_url", config.BaseURL,
		"per_page", config.PerPage)

	return client
}

// Close releases client resources.
func (c *Client) Close() {
	c.httpClient.Close()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing gbif logger: %v", err)
		}
	}
}

// Name identifies the source in aggregated output.
func (c *Client) Name() observation.Source {
	return observation.SourceGBIF
}

// Fetch resolves the term to a genus key, then queries occurrences inside
// the area. Upstream failure after the retry budget degrades to an empty
// slice; the error return is reserved for invalid internal parameters.
func (c *Client) Fetch(ctx context.Context, area geo.Query, term string) ([]observation.Record, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}

	genusKey, err := c.GenusKey(ctx, term)
	if err != nil {
		logger.Error("genus key lookup failed, returning empty result",
			"term", term,
			"error", err.Error())
		return []observation.Record{}, nil
	}

	// GBIF's occurrence search takes a polygon; point+radius queries are
	// widened to an enclosing box here and distance-filtered downstream.
	box := area.Box
	if box == nil {
		b := enclosingBox(*area.Point)
		box = &b
	}

	params := url.Values{}
	params.Set("geometry", box.WKTPolygon())
	params.Set("genusKey", strconv.FormatInt(genusKey, 10))
	params.Set("hasCoordinate", "true")
	params.Set("limit", strconv.Itoa(c.config.PerPage))

	requestURL := fmt.Sprintf("%s/occurrence/search?%s", c.config.BaseURL, params.Encode())

	start := time.Now()
	var resp occurrenceSearchResponse
	err = httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp, c.config.Retry, logger)
	c.metrics.RecordUpstream("gbif", outcome(err), time.Since(start).Seconds())
	if err != nil {
		logger.Error("occurrence fetch failed, returning empty result",
			"term", term,
			"error", err.Error())
		return []observation.Record{}, nil
	}

	records := make([]observation.Record, 0, len(resp.Results))
	for i := range resp.Results {
		record, ok := mapOccurrence(&resp.Results[i])
		if !ok {
			continue
		}
		records = append(records, record)
	}

	logger.Debug("occurrences fetched",
		"term", term,
		"genus_key", genusKey,
		"raw", len(resp.Results),
		"mapped", len(records))

	return records, nil
}

// GenusKey resolves a genus name to its GBIF species key. Results are cached.
func (c *Client) GenusKey(ctx context.Context, genus string) (int64, error) {
	cacheKey := strings.ToLower(genus)
	if cached, found := c.genusKeyCache.Get(cacheKey); found {
		if key, ok := cached.(int64); ok {
			c.metrics.RecordCacheHit("gbif_genus_key")
			return key, nil
		}
	}
	c.metrics.RecordCacheMiss("gbif_genus_key")

	params := url.Values{}
	params.Set("q", genus)
	params.Set("rank", "GENUS")
	params.Set("limit", "1")

	requestURL := fmt.Sprintf("%s/species/search?%s", c.config.BaseURL, params.Encode())

	start := time.Now()
	var resp speciesSearchResponse
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp, c.config.Retry, logger)
	c.metrics.RecordUpstream("gbif", outcome(err), time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("no GBIF genus key for %q", genus)
	}

	key := resp.Results[0].Key
	c.genusKeyCache.Set(cacheKey, key, cache.DefaultExpiration)
	return key, nil
}

// mapOccurrence normalizes one GBIF occurrence. The higher-rank name fields
// GBIF reports inline become the ancestor chain for category matching.
func mapOccurrence(occ *apiOccurrence) (observation.Record, bool) {
	if !taxon.IsValidScientificName(occ.ScientificName) {
		return observation.Record{}, false
	}
	lat, lng := occ.DecimalLatitude, occ.DecimalLongitude
	if lat == nil || lng == nil || (*lat == 0 && *lng == 0) {
		logger.Debug("invalid coordinates, skipping occurrence", "name", occ.ScientificName)
		return observation.Record{}, false
	}

	// GBIF scientific names often carry authorship ("Quercus robur L.");
	// keep the binomial for the dedupe identity.
	name := binomial(occ.ScientificName)

	description := ""
	if occ.Habitat != "" {
		description = fmt.Sprintf("Habitat: %s.", occ.Habitat)
	}

	var chain taxon.Chain
	for _, a := range []struct{ rank, name string }{
		{"kingdom", occ.Kingdom},
		{"phylum", occ.Phylum},
		{"class", occ.Class},
		{"order", occ.Order},
		{"family", occ.Family},
	} {
		if a.name != "" {
			chain = append(chain, taxon.Ancestor{Rank: a.rank, Name: a.name})
		}
	}

	return observation.Record{
		Observation: observation.Observation{
			ScientificName: name,
			Genus:          taxon.ExtractGenus(name),
			Latitude:       lat,
			Longitude:      lng,
			ObservedOn:     datePart(occ.EventDate),
			Quality:        occ.OccurrenceStatus,
			Description:    description,
			Source:         observation.SourceGBIF,
		},
		TaxonID:   occ.TaxonKey,
		Ancestors: chain,
	}, true
}

// binomial trims a scientific name to its first two tokens.
func binomial(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return name
	}
	return fields[0] + " " + fields[1]
}

// datePart extracts the YYYY-MM-DD prefix of a GBIF eventDate, which may be
// a full timestamp or a date range.
func datePart(eventDate string) string {
	if len(eventDate) < 10 {
		return ""
	}
	candidate := eventDate[:10]
	if _, err := time.Parse(observation.DateLayout, candidate); err != nil {
		return ""
	}
	return candidate
}

// enclosingBox widens a point+radius query into its bounding box. The
// longitude span stretches with latitude; one degree is ~111 km at the
// equator.
func enclosingBox(p geo.PointRadius) geo.BoundingBox {
	latDelta := p.RadiusKm / 111.0
	lngDelta := latDelta
	if cosLat := math.Abs(math.Cos(p.Lat * math.Pi / 180)); cosLat > 0.01 {
		lngDelta = latDelta / cosLat
	}
	return geo.BoundingBox{
		SwLat: p.Lat - latDelta,
		SwLng: p.Lng - lngDelta,
		NeLat: p.Lat + latDelta,
		NeLng: p.Lng + lngDelta,
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
