// Package inaturalist provides a client for the iNaturalist API v1:
// observation search, free-text taxa search, and taxon detail lookup.
package inaturalist

import (
	"time"

	"github.com/amt2283/hunterleaf-go/internal/httpclient"
)

// Config holds configuration for the iNaturalist client.
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
		BaseURL:  "https://api.inaturalist.org/v1",
		PerPage:  50,
		Timeout:  15 * time.Second,
		CacheTTL: 1 * time.Hour,
		Retry:    httpclient.DefaultRetryPolicy(),
	}
}

// observationsResponse is the /observations envelope.
type observationsResponse struct {
	TotalResults int              `json:"total_results"`
	Results      []apiObservation `json:"results"`
}

// apiObservation is one raw observation as the API reports it.
type apiObservation struct {
	ObservedOn           string    `json:"observed_on"`
	Description          string    `json:"description"`
	IdentificationsCount int       `json:"identifications_count"`
	QualityGrade         string    `json:"quality_grade"`
	Latitude             *float64  `json:"latitude"`
	Longitude            *float64  `json:"longitude"`
	Location             string    `json:"location"` // "lat,lng" fallback when lat/lng absent
	Taxon                *apiTaxon `json:"taxon"`
}

// apiTaxon is the taxon block embedded in observations and returned by the
// taxa endpoints.
type apiTaxon struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Rank            string        `json:"rank"`
	IconicTaxonName string        `json:"iconic_taxon_name"`
	PreferredCommon string        `json:"preferred_common_name"`
	DefaultPhoto    *apiPhoto     `json:"default_photo"`
	Ancestors       []apiAncestor `json:"ancestors"`
}

type apiPhoto struct {
	MediumURL string `json:"medium_url"`
	SquareURL string `json:"square_url"`
}

type apiAncestor struct {
	Rank            string `json:"rank"`
	Name            string `json:"name"`
	PreferredCommon string `json:"preferred_common_name"`
	EnglishCommon   string `json:"english_common_name"`
}

// taxaResponse is the /taxa and /taxa/{id} envelope.
type taxaResponse struct {
	Results []apiTaxon `json:"results"`
}

// Photo is a representative taxon photo surfaced to the image resolver.
type Photo struct {
	MediumURL string
	SquareURL string
}
