// Package imageresolver resolves and caches a representative image URL per
// plant genus, falling back to a placeholder on any failure.
package imageresolver

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/amt2283/hunterleaf-go/internal/inaturalist"
	"github.com/amt2283/hunterleaf-go/internal/logging"
	"github.com/amt2283/hunterleaf-go/internal/observability"
	"github.com/amt2283/hunterleaf-go/internal/taxon"
)

// PlaceholderURL is returned whenever no representative image can be found.
const PlaceholderURL = "https://via.placeholder.com/100?text=No+Image"

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "imageresolver.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "imageresolver", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize imageresolver file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.NewDiscardLogger("imageresolver", serviceLevelVar)
		closeLogger = func() error { return nil }
	}
}

// PhotoProvider is the upstream taxon photo search. Implemented by the
// iNaturalist client.
type PhotoProvider interface {
	SearchTaxonPhoto(ctx context.Context, query string) (inaturalist.Photo, error)
}

// Resolver caches one representative image URL per genus. Entries expire on
// a TTL rather than growing without bound; failures are cached as the
// placeholder so a missing photo is not re-fetched per record.
type Resolver struct {
	provider PhotoProvider
	cache    *cache.Cache
	limiter  *rate.Limiter
	metrics  *observability.Metrics
}

// NewResolver creates a resolver over the given photo provider. A zero ttl
// defaults to 24 hours.
func NewResolver(provider PhotoProvider, ttl time.Duration, metrics *observability.Metrics) *Resolver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Resolver{
		provider: provider,
		cache:    cache.New(ttl, time.Hour),
		// Two requests per second keeps image resolution polite toward the
		// shared taxa endpoint during large result sets.
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		metrics: metrics,
	}
}

// ImageForGenus returns a representative image URL for the genus. Never
// fails: any upstream problem resolves to the placeholder, which is cached
// like a real hit.
func (r *Resolver) ImageForGenus(ctx context.Context, genus string) string {
	key := strings.ToLower(strings.TrimSpace(genus))
	if key == "" || key == taxon.UnknownGenus {
		return PlaceholderURL
	}

	if cached, found := r.cache.Get(key); found {
		if url, ok := cached.(string); ok {
			r.metrics.RecordCacheHit("image")
			return url
		}
	}
	r.metrics.RecordCacheMiss("image")

	url := r.fetch(ctx, genus)
	r.cache.Set(key, url, cache.DefaultExpiration)
	return url
}

func (r *Resolver) fetch(ctx context.Context, genus string) string {
	if err := r.limiter.Wait(ctx); err != nil {
		logger.Debug("rate limiter wait aborted", "genus", genus, "error", err.Error())
		return PlaceholderURL
	}

	photo, err := r.provider.SearchTaxonPhoto(ctx, genus)
	if err != nil {
		logger.Debug("image lookup failed, using placeholder",
			"genus", genus,
			"error", err.Error())
		return PlaceholderURL
	}

	switch {
	case photo.MediumURL != "":
		return photo.MediumURL
	case photo.SquareURL != "":
		return photo.SquareURL
	default:
		return PlaceholderURL
	}
}

// Close flushes the cache and closes the service log.
func (r *Resolver) Close() {
	r.cache.Flush()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing imageresolver logger: %v", err)
		}
	}
}
