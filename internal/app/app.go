// Package app assembles the application from settings: upstream clients,
// enrichment providers, the group store, and the aggregation pipeline.
package app

import (
	"os"

	"github.com/amt2283/hunterleaf-go/internal/aggregator"
	"github.com/amt2283/hunterleaf-go/internal/conf"
	"github.com/amt2283/hunterleaf-go/internal/gbif"
	"github.com/amt2283/hunterleaf-go/internal/geocoder"
	"github.com/amt2283/hunterleaf-go/internal/groupstore"
	"github.com/amt2283/hunterleaf-go/internal/httpclient"
	"github.com/amt2283/hunterleaf-go/internal/imageresolver"
	"github.com/amt2283/hunterleaf-go/internal/inaturalist"
	"github.com/amt2283/hunterleaf-go/internal/logging"
	"github.com/amt2283/hunterleaf-go/internal/observability"
	"github.com/amt2283/hunterleaf-go/internal/plantnet"
	"github.com/amt2283/hunterleaf-go/internal/taxon"
	"github.com/amt2283/hunterleaf-go/internal/trefle"
	"github.com/amt2283/hunterleaf-go/internal/wikipedia"
)

// App holds the wired application components.
type App struct {
	Settings   *conf.Settings
	Metrics    *observability.Metrics
	Aggregator *aggregator.Aggregator
	Geocoder   *geocoder.Client
	Groups     *groupstore.Store

	closers []func()
}

// New wires the application from settings. Source clients are created for
// every enabled source; iNaturalist is always created because it also backs
// image resolution and the taxon-detail fallback.
func New(settings *conf.Settings) (*App, error) {
	metrics := observability.NewMetrics()

	retry := httpclient.RetryPolicy{
		MaxAttempts:  settings.Retry.MaxAttempts,
		InitialDelay: settings.Retry.InitialDelay,
		MaxDelay:     settings.Retry.MaxDelay,
	}

	a := &App{Settings: settings, Metrics: metrics}

	inat := inaturalist.NewClient(inaturalist.Config{
		BaseURL: settings.Sources.INaturalist.BaseURL,
		PerPage: settings.Sources.INaturalist.PerPage,
		Retry:   retry,
	}, metrics)
	a.closers = append(a.closers, inat.Close)

	// Source order is the merge priority: on duplicate observations the
	// earlier source's record wins.
	var sources []aggregator.Source
	if settings.Sources.INaturalist.Enabled {
		sources = append(sources, inat)
	}
	if settings.Sources.GBIF.Enabled {
		client := gbif.NewClient(gbif.Config{
			BaseURL: settings.Sources.GBIF.BaseURL,
			PerPage: settings.Sources.GBIF.PerPage,
			Retry:   retry,
		}, metrics)
		a.closers = append(a.closers, client.Close)
		sources = append(sources, client)
	}
	if settings.Sources.PlantNet.Enabled && settings.Sources.PlantNet.APIKey != "" {
		client := plantnet.NewClient(plantnet.Config{
			BaseURL: settings.Sources.PlantNet.BaseURL,
			APIKey:  settings.Sources.PlantNet.APIKey,
			PerPage: settings.Sources.PlantNet.PerPage,
			Retry:   retry,
		}, metrics)
		a.closers = append(a.closers, client.Close)
		sources = append(sources, client)
	}
	if settings.Sources.Trefle.Enabled && settings.Sources.Trefle.APIKey != "" {
		client := trefle.NewClient(trefle.Config{
			BaseURL: settings.Sources.Trefle.BaseURL,
			APIKey:  settings.Sources.Trefle.APIKey,
			PerPage: settings.Sources.Trefle.PerPage,
			Retry:   retry,
		}, metrics)
		a.closers = append(a.closers, client.Close)
		sources = append(sources, client)
	}

	images := imageresolver.NewResolver(inat, settings.ImageCache.TTL, metrics)
	a.closers = append(a.closers, images.Close)

	summaries := wikipedia.NewClient(wikipedia.Config{
		BaseURL:  settings.Wikipedia.BaseURL,
		Language: settings.Wikipedia.Language,
	})
	a.closers = append(a.closers, summaries.Close)

	a.Geocoder = geocoder.NewClient(geocoder.Config{BaseURL: settings.Geocoder.BaseURL})
	a.closers = append(a.closers, a.Geocoder.Close)

	groups, err := groupstore.Open(settings.Groups.DatabasePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Groups = groups
	a.closers = append(a.closers, func() { _ = groups.Close() })

	if seed := settings.Groups.SeedFile; seed != "" {
		if _, err := os.Stat(seed); err == nil {
			if err := groups.ImportJSON(seed); err != nil {
				logging.Warn("failed to import group seed file",
					"path", seed,
					"error", err.Error())
			}
		}
	}

	matcher := taxon.NewMatcher(logging.ForService("taxon"))
	a.Aggregator = aggregator.New(sources, matcher, inat, images, summaries, aggregator.Config{
		Timeout:     settings.Aggregator.Timeout,
		Concurrency: settings.Aggregator.Concurrency,
		PageSize:    settings.Aggregator.PageSize,
	})
	a.closers = append(a.closers, a.Aggregator.Close)

	return a, nil
}

// Close releases all wired components in reverse creation order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
