// Package aggregator combines observations from multiple biodiversity
// sources: it fans out one fetch per (source, term) branch, filters by
// taxonomic category, annotates distance, deduplicates, sorts, and
// paginates the merged result set.
package aggregator

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/logging"
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
	logFilePath := filepath.Join("logs", "aggregator.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "aggregator", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize aggregator file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.NewDiscardLogger("aggregator", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// Source is one upstream adapter. Fetch degrades to an empty slice on
// upstream trouble; its error return is reserved for invalid parameters.
type Source interface {
	Name() observation.Source
	Fetch(ctx context.Context, area geo.Query, term string) ([]observation.Record, error)
}

// AncestorFetcher supplies the fallback taxon-detail lookup used when an
// observation arrives without its ancestor chain.
type AncestorFetcher interface {
	TaxonAncestors(ctx context.Context, taxonID int64) (taxon.Chain, error)
}

// ImageResolver attaches a representative image URL per genus.
type ImageResolver interface {
	ImageForGenus(ctx context.Context, genus string) string
}

// SummaryProvider enriches records with an encyclopedia summary.
type SummaryProvider interface {
	Summary(ctx context.Context, scientificName string) string
}

// Config tunes the fan-out.
type Config struct {
	// Timeout bounds one whole Search call, retries included.
	Timeout time.Duration
	// Concurrency is the worker count for (source, term) branches.
	Concurrency int
	// PageSize is the fixed page size of returned result sets.
	PageSize int
}

// DefaultConfig returns the standard aggregation tuning.
func DefaultConfig() Config {
	return Config{
		Timeout:     2 * time.Minute,
		Concurrency: 4,
		PageSize:    20,
	}
}

// Order selects the sort applied to the merged result set.
type Order string

const (
	// OrderByIdentifications sorts by descending identification count,
	// the default for unordered area queries.
	OrderByIdentifications Order = "identifications"
	OrderByDateAsc         Order = "date_asc"
	OrderByDateDesc        Order = "date_desc"
)

// Request describes one aggregation call.
type Request struct {
	// Area is the bounding box or point+radius to search.
	Area geo.Query
	// Terms are the interest terms (genus or group names) queried per
	// source. Empty falls back to a single broad "Plantae" query.
	Terms []string
	// Category optionally filters results to a high-level taxonomic
	// category via ancestor matching. Empty means no filtering.
	Category string
	// SourceFilter restricts the fan-out to a single source when set.
	SourceFilter observation.Source
	// OrderBy selects the sort; empty defaults to identification count.
	OrderBy Order
	// Page is the 1-based page to return.
	Page int
	// Summaries enables encyclopedia-summary enrichment of the returned
	// page.
	Summaries bool
}

// Aggregator merges observations across a fixed priority order of sources.
type Aggregator struct {
	sources   []Source
	matcher   *taxon.Matcher
	ancestors AncestorFetcher
	images    ImageResolver
	summaries SummaryProvider
	config    Config
}

// New creates an aggregator. The source slice order is the priority order
// used for merge and dedupe. ancestors, images and summaries may be nil to
// disable the corresponding step.
func New(sources []Source, matcher *taxon.Matcher, ancestors AncestorFetcher, images ImageResolver, summaries SummaryProvider, config Config) *Aggregator {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	return &Aggregator{
		sources:   sources,
		matcher:   matcher,
		ancestors: ancestors,
		images:    images,
		summaries: summaries,
		config:    config,
	}
}

// branch is one (source, term) fetch unit. Results land in a fixed slot so
// concatenation order stays deterministic regardless of completion order.
type branch struct {
	source Source
	term   string
	slot   int
}

// Search runs the full pipeline and returns one page of the merged result
// set. Upstream trouble never surfaces as an error: failed branches
// contribute empty results. The error return covers invalid requests only.
func (a *Aggregator) Search(ctx context.Context, req Request) (observation.Page, error) {
	if err := req.Area.Validate(); err != nil {
		return observation.Page{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	terms := req.Terms
	if len(terms) == 0 {
		terms = []string{"Plantae"}
	}

	var branches []branch
	slot := 0
	for _, source := range a.sources {
		if req.SourceFilter != "" && source.Name() != req.SourceFilter {
			continue
		}
		for _, term := range terms {
			branches = append(branches, branch{source: source, term: term, slot: slot})
			slot++
		}
	}

	start := time.Now()
	results := a.fanOut(ctx, req.Area, branches)

	var merged []observation.Record
	for _, records := range results {
		merged = append(merged, records...)
	}

	logger.Debug("fan-out settled",
		"branches", len(branches),
		"records", len(merged),
		"elapsed", time.Since(start))

	if req.Category != "" {
		merged = a.filterByCategory(ctx, merged, req.Category)
	}

	if req.Area.Point != nil {
		merged = annotateDistance(merged, *req.Area.Point)
	}

	observations := observation.Dedupe(observation.Observations(merged))

	switch req.OrderBy {
	case OrderByDateAsc:
		observation.SortByDate(observations, false)
	case OrderByDateDesc:
		observation.SortByDate(observations, true)
	default:
		observation.SortByIdentifications(observations)
	}

	page := observation.Paginate(observations, req.Page, a.config.PageSize)
	a.enrich(ctx, page.Observations, req.Summaries)

	return page, nil
}

// fanOut runs every branch through a bounded worker pool and collects
// results into fixed slots. A failing branch yields an empty slot; it never
// cancels its siblings.
func (a *Aggregator) fanOut(ctx context.Context, area geo.Query, branches []branch) [][]observation.Record {
	results := make([][]observation.Record, len(branches))

	workers := a.config.Concurrency
	if workers > len(branches) {
		workers = len(branches)
	}
	if workers < 1 {
		workers = 1
	}

	work := make(chan branch)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for b := range work {
				records, err := b.source.Fetch(ctx, area, b.term)
				if err != nil {
					logger.Error("branch failed",
						"source", b.source.Name(),
						"term", b.term,
						"error", err.Error())
					continue
				}
				results[b.slot] = records
			}
		}()
	}

	for _, b := range branches {
		work <- b
	}
	close(work)
	wg.Wait()

	return results
}

// filterByCategory keeps the records whose ancestor chain matches the
// category. Records that arrive without ancestors get one fallback detail
// fetch by taxon id before matching.
func (a *Aggregator) filterByCategory(ctx context.Context, records []observation.Record, category string) []observation.Record {
	out := records[:0]
	for i := range records {
		chain := records[i].Ancestors
		if len(chain) == 0 && records[i].TaxonID != 0 && a.ancestors != nil {
			fetched, err := a.ancestors.TaxonAncestors(ctx, records[i].TaxonID)
			if err != nil {
				logger.Debug("ancestor fallback fetch failed",
					"taxon_id", records[i].TaxonID,
					"name", records[i].Observation.ScientificName,
					"error", err.Error())
			} else {
				chain = fetched
			}
		}
		if a.matcher.Matches(chain, category) {
			out = append(out, records[i])
		}
	}
	return out
}

// annotateDistance computes the distance from the query point for every
// record with coordinates and drops records beyond the requested radius.
// The upstream radius parameter is advisory and can over-return, so the
// filter reapplies it here. Records without coordinates pass through with
// an unknown distance.
func annotateDistance(records []observation.Record, point geo.PointRadius) []observation.Record {
	out := records[:0]
	for i := range records {
		obs := &records[i].Observation
		if obs.Latitude == nil || obs.Longitude == nil {
			out = append(out, records[i])
			continue
		}
		d := geo.Distance(point.Lat, point.Lng, *obs.Latitude, *obs.Longitude)
		if d > point.RadiusKm {
			continue
		}
		obs.DistanceKm = &d
		out = append(out, records[i])
	}
	return out
}

// enrich fills the representative image and, when requested, the
// encyclopedia summary for the records of the returned page. Enrichment is
// best-effort and never removes a record.
func (a *Aggregator) enrich(ctx context.Context, observations []observation.Observation, summaries bool) {
	for i := range observations {
		if observations[i].ImageURL == "" && a.images != nil {
			observations[i].ImageURL = a.images.ImageForGenus(ctx, observations[i].Genus)
		}
		if summaries && a.summaries != nil && observations[i].WikipediaSummary == "" {
			observations[i].WikipediaSummary = a.summaries.Summary(ctx, observations[i].ScientificName)
		}
	}
}

// Close closes the aggregator's service log.
func (a *Aggregator) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing aggregator logger: %v", err)
		}
	}
}
