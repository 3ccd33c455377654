// Package observation defines the common record every source adapter
// produces, plus the merge, ordering, and pagination helpers the
// aggregator applies to combined result sets.
package observation

import (
	"sort"
	"time"
)

// Source identifies the upstream biodiversity API a record came from.
type Source string

const (
	SourceINaturalist Source = "iNaturalist"
	SourceGBIF        Source = "GBIF"
	SourceTrefle      Source = "Trefle"
	SourcePlantNet    Source = "PlantNet"
)

// DateLayout is the upstream-reported observation date format.
const DateLayout = "2006-01-02"

// Observation is the normalized record shared across all sources.
// Latitude/Longitude are nil when the source provides no usable coordinate;
// DistanceKm is nil unless the search was a point-plus-radius query.
type Observation struct {
	ScientificName      string   `json:"scientific_name"`
	Genus               string   `json:"genus"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	DistanceKm          *float64 `json:"distance_km,omitempty"`
	ObservedOn          string   `json:"observed_on,omitempty"`
	IdentificationCount int      `json:"identification_count"`
	Quality             string   `json:"quality,omitempty"`
	Description         string   `json:"description,omitempty"`
	WikipediaSummary    string   `json:"wikipedia_summary,omitempty"`
	ImageURL            string   `json:"representative_image_url"`
	Source              Source   `json:"source"`
}

// Key is the deduplication identity: two observations with the same key
// collapse to one regardless of source.
type Key struct {
	ScientificName string
	Latitude       float64
	Longitude      float64
	HasCoordinates bool
}

// DedupeKey returns the observation's deduplication identity.
func (o *Observation) DedupeKey() Key {
	k := Key{ScientificName: o.ScientificName}
	if o.Latitude != nil && o.Longitude != nil {
		k.Latitude = *o.Latitude
		k.Longitude = *o.Longitude
		k.HasCoordinates = true
	}
	return k
}

// HasValidDate reports whether ObservedOn holds a parseable YYYY-MM-DD date.
func (o *Observation) HasValidDate() bool {
	_, ok := o.parsedDate()
	return ok
}

func (o *Observation) parsedDate() (time.Time, bool) {
	if o.ObservedOn == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, o.ObservedOn)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Dedupe removes duplicate observations by deduplication identity,
// first occurrence wins. Input order is preserved.
func Dedupe(observations []Observation) []Observation {
	seen := make(map[Key]bool, len(observations))
	out := make([]Observation, 0, len(observations))
	for i := range observations {
		key := observations[i].DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, observations[i])
	}
	return out
}

// SortByIdentifications orders observations by descending identification
// count, the default for unordered area queries. The sort is stable so the
// source priority order breaks ties.
func SortByIdentifications(observations []Observation) {
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].IdentificationCount > observations[j].IdentificationCount
	})
}

// SortByDate orders observations by observation date. Records without a
// parseable date sort after all dated records regardless of direction.
func SortByDate(observations []Observation, descending bool) {
	sort.SliceStable(observations, func(i, j int) bool {
		di, iOK := observations[i].parsedDate()
		dj, jOK := observations[j].parsedDate()
		switch {
		case iOK && !jOK:
			return true
		case !iOK && jOK:
			return false
		case !iOK && !jOK:
			return false
		}
		if descending {
			return di.After(dj)
		}
		return di.Before(dj)
	})
}

// Page is one page of a combined result set.
type Page struct {
	Observations []Observation `json:"observations"`
	TotalCount   int           `json:"total_count"`
	TotalPages   int           `json:"total_pages"`
	PageNumber   int           `json:"page_number"`
	PageSize     int           `json:"page_size"`
}

// Paginate slices a result set into 1-based pages of the given size.
// Out-of-range pages yield an empty page, not an error.
func Paginate(observations []Observation, pageNumber, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = 20
	}
	total := len(observations)
	totalPages := (total + pageSize - 1) / pageSize

	page := Page{
		Observations: []Observation{},
		TotalCount:   total,
		TotalPages:   totalPages,
		PageNumber:   pageNumber,
		PageSize:     pageSize,
	}

	if pageNumber < 1 {
		return page
	}
	start := (pageNumber - 1) * pageSize
	if start >= total {
		return page
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	page.Observations = observations[start:end]
	return page
}
