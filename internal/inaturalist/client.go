package inaturalist

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

	"github.com/patrickmn/go-cache"

	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/httpclient"
	"github.com/amt2283/hunterleaf-go/internal/logging"
	"github.com/amt2283/hunterleaf-go/internal/observability"
	"github.com/amt2283/hunterleaf-go/internal/observation"
	"github.com/amt2283/hunterleaf-go/internal/taxon"
)

// Package-level logger specific to the iNaturalist service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "inaturalist.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "inaturalist", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize inaturalist file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.NewDiscardLogger("inaturalist", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// Client provides methods for interacting with the iNaturalist API.
type Client struct {
	config     Config
	httpClient *httpclient.Client
	taxonCache *cache.Cache
	metrics    *observability.Metrics
}

// NewClient creates a new iNaturalist API client.
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
		config:     config,
		httpClient: httpclient.New(&httpclient.Config{DefaultTimeout: config.Timeout}),
		taxonCache: cache.New(config.CacheTTL, config.CacheTTL*2),
		metrics:    metrics,
	}

	logger.Info("iNaturalist client initialized",
		"base_url", config.BaseURL,
		"per_page", config.PerPage,
		"cache_ttl", config.CacheTTL)

	return client
}

// Close releases client resources.
func (c *Client) Close() {
	c.httpClient.Close()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing inaturalist logger: %v", err)
		}
	}
}

// Name identifies the source in aggregated output.
func (c *Client) Name() observation.Source {
	return observation.SourceINaturalist
}

// Fetch queries /observations for one interest term over the given area and
// maps the results into normalized records. Upstream failure after the
// retry budget degrades to an empty slice; the error return is reserved for
// invalid internal parameters.
func (c *Client) Fetch(ctx context.Context, area geo.Query, term string) ([]observation.Record, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("taxon_name", term)
	params.Set("per_page", strconv.Itoa(c.config.PerPage))
	params.Set("iconic_taxa[]", "Plantae")

	switch {
	case area.Point != nil:
		params.Set("lat", formatCoord(area.Point.Lat))
		params.Set("lng", formatCoord(area.Point.Lng))
		params.Set("radius", formatCoord(area.Point.RadiusKm))
		params.Set("order", "desc")
		params.Set("order_by", "observed_on")
	case area.Box != nil:
		params.Set("swlat", formatCoord(area.Box.SwLat))
		params.Set("swlng", formatCoord(area.Box.SwLng))
		params.Set("nelat", formatCoord(area.Box.NeLat))
		params.Set("nelng", formatCoord(area.Box.NeLng))
		params.Set("order", "desc")
		params.Set("order_by", "created_at")
	}

	requestURL := fmt.Sprintf("%s/observations?%s", c.config.BaseURL, params.Encode())

	start := time.Now()
	var resp observationsResponse
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp, c.config.Retry, logger)
	c.metrics.RecordUpstream("inaturalist", outcome(err), time.Since(start).Seconds())
	if err != nil {
		logger.Error("observation fetch failed, returning empty result",
			"term", term,
			"error", err.Error())
		return []observation.Record{}, nil
	}

	records := make([]observation.Record, 0, len(resp.Results))
	for i := range resp.Results {
		record, ok := c.mapObservation(&resp.Results[i])
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

// mapObservation normalizes one raw observation. Records without a valid
// two-token scientific name, without usable coordinates, or outside the
// Plantae iconic taxon are dropped.
func (c *Client) mapObservation(obs *apiObservation) (observation.Record, bool) {
	if obs.Taxon == nil {
		return observation.Record{}, false
	}
	if !strings.EqualFold(obs.Taxon.IconicTaxonName, "Plantae") {
		return observation.Record{}, false
	}
	name := obs.Taxon.Name
	if !taxon.IsValidScientificName(name) {
		return observation.Record{}, false
	}

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
			Source:              observation.SourceINaturalist,
		},
		TaxonID:   obs.Taxon.ID,
		Ancestors: mapAncestors(obs.Taxon.Ancestors),
	}, true
}

// TaxonAncestors fetches the ancestor chain for a taxon id via /taxa/{id}.
// Used as the fallback when the observation payload carried no ancestors.
// Results are cached.
func (c *Client) TaxonAncestors(ctx context.Context, taxonID int64) (taxon.Chain, error) {
	cacheKey := fmt.Sprintf("taxon:%d", taxonID)
	if cached, found := c.taxonCache.Get(cacheKey); found {
		if chain, ok := cached.(taxon.Chain); ok {
			c.metrics.RecordCacheHit("inaturalist_taxon")
			return chain, nil
		}
	}
	c.metrics.RecordCacheMiss("inaturalist_taxon")

	requestURL := fmt.Sprintf("%s/taxa/%d", c.config.BaseURL, taxonID)

	start := time.Now()
	var resp taxaResponse
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp, c.config.Retry, logger)
	c.metrics.RecordUpstream("inaturalist", outcome(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("taxon %d not found", taxonID)
	}

	chain := mapAncestors(resp.Results[0].Ancestors)
	c.taxonCache.Set(cacheKey, chain, cache.DefaultExpiration)
	return chain, nil
}

// SearchTaxonPhoto searches /taxa by free text and returns the first
// result's default photo. Used by the image resolver.
func (c *Client) SearchTaxonPhoto(ctx context.Context, query string) (Photo, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", "1")

	requestURL := fmt.Sprintf("%s/taxa?%s", c.config.BaseURL, params.Encode())

	start := time.Now()
	var resp taxaResponse
	err := httpclient.GetJSONWithRetry(ctx, c.httpClient, requestURL, nil, &resp, c.config.Retry, logger)
	c.metrics.RecordUpstream("inaturalist", outcome(err), time.Since(start).Seconds())
	if err != nil {
		return Photo{}, err
	}
	if len(resp.Results) == 0 || resp.Results[0].DefaultPhoto == nil {
		return Photo{}, fmt.Errorf("no photo found for %q", query)
	}

	photo := resp.Results[0].DefaultPhoto
	return Photo{MediumURL: photo.MediumURL, SquareURL: photo.SquareURL}, nil
}

// mapAncestors converts raw ancestor entries into a matcher chain.
func mapAncestors(ancestors []apiAncestor) taxon.Chain {
	if len(ancestors) == 0 {
		return nil
	}
	chain := make(taxon.Chain, 0, len(ancestors))
	for i := range ancestors {
		var vernaculars []string
		if ancestors[i].PreferredCommon != "" {
			vernaculars = append(vernaculars, ancestors[i].PreferredCommon)
		}
		if ancestors[i].EnglishCommon != "" && ancestors[i].EnglishCommon != ancestors[i].PreferredCommon {
			vernaculars = append(vernaculars, ancestors[i].EnglishCommon)
		}
		chain = append(chain, taxon.Ancestor{
			Rank:            ancestors[i].Rank,
			Name:            ancestors[i].Name,
			VernacularNames: vernaculars,
		})
	}
	return chain
}

// parseLocation parses the "lat,lng" location string fallback.
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
