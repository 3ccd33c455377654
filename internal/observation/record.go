package observation

import "github.com/amt2283/hunterleaf-go/internal/taxon"

// Record couples a normalized observation with the taxonomic context a
// category filter needs. TaxonID is the upstream taxon identifier when the
// source exposes one (0 otherwise); Ancestors may be empty, in which case
// the aggregator attempts one detail fetch by TaxonID before matching.
type Record struct {
	Observation Observation
	TaxonID     int64
	Ancestors   taxon.Chain
}

// Observations extracts the plain observations from a slice of records.
func Observations(records []Record) []Observation {
	out := make([]Observation, 0, len(records))
	for i := range records {
		out = append(out, records[i].Observation)
	}
	return out
}
