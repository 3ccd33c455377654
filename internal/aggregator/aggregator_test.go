package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/observation"
	"github.com/amt2283/hunterleaf-go/internal/taxon"
)

func ptr(v float64) *float64 { return &v }

type fakeSource struct {
	name    observation.Source
	records []observation.Record
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) Name() observation.Source { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, area geo.Query, term string) ([]observation.Record, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeAncestors struct {
	chains map[int64]taxon.Chain
	calls  atomic.Int32
}

func (f *fakeAncestors) TaxonAncestors(ctx context.Context, taxonID int64) (taxon.Chain, error) {
	f.calls.Add(1)
	chain, ok := f.chains[taxonID]
	if !ok {
		return nil, fmt.Errorf("taxon %d not found", taxonID)
	}
	return chain, nil
}

type fakeImages struct{}

func (fakeImages) ImageForGenus(ctx context.Context, genus string) string {
	return "https://img/" + genus + ".jpg"
}

type fakeSummaries struct{}

func (fakeSummaries) Summary(ctx context.Context, scientificName string) string {
	return "About " + scientificName
}

func record(name string, lat, lng float64, source observation.Source) observation.Record {
	return observation.Record{
		Observation: observation.Observation{
			ScientificName: name,
			Genus:          taxon.ExtractGenus(name),
			Latitude:       ptr(lat),
			Longitude:      ptr(lng),
			Source:         source,
		},
	}
}

func testConfig() Config {
	return Config{Timeout: 5 * time.Second, Concurrency: 4, PageSize: 20}
}

func TestSearchMergesAndDeduplicates(t *testing.T) {
	primary := &fakeSource{name: observation.SourceINaturalist, records: []observation.Record{
		record("Quercus robur", 40.1, -3.5, observation.SourceINaturalist),
		record("Pinus sylvestris", 40.2, -3.6, observation.SourceINaturalist),
	}}
	secondary := &fakeSource{name: observation.SourceGBIF, records: []observation.Record{
		record("Quercus robur", 40.1, -3.5, observation.SourceGBIF),
		record("Fagus sylvatica", 40.3, -3.4, observation.SourceGBIF),
	}}

	agg := New([]Source{primary, secondary}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	page, err := agg.Search(context.Background(), Request{
		Area: geo.BoxQuery(40, -4, 41, -3),
		Page: 1,
	})
	require.NoError(t, err)

	require.Len(t, page.Observations, 3)
	assert.Equal(t, 3, page.TotalCount)

	// The duplicate oak keeps the higher-priority source.
	for _, o := range page.Observations {
		if o.ScientificName == "Quercus robur" {
			assert.Equal(t, observation.SourceINaturalist, o.Source)
		}
	}
}

func TestSearchIsolatesFailingSources(t *testing.T) {
	healthy := &fakeSource{name: observation.SourceINaturalist, records: []observation.Record{
		record("Quercus robur", 40.1, -3.5, observation.SourceINaturalist),
	}}
	broken := &fakeSource{name: observation.SourceGBIF, err: errors.New("invalid parameters")}

	agg := New([]Source{healthy, broken}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	page, err := agg.Search(context.Background(), Request{
		Area: geo.BoxQuery(40, -4, 41, -3),
		Page: 1,
	})
	require.NoError(t, err)
	require.Len(t, page.Observations, 1)
	assert.Equal(t, "Quercus robur", page.Observations[0].ScientificName)
	assert.Equal(t, int32(1), broken.calls.Load())
}

func TestSearchFansOutPerTerm(t *testing.T) {
	source := &fakeSource{name: observation.SourceINaturalist}

	agg := New([]Source{source}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	_, err := agg.Search(context.Background(), Request{
		Area:  geo.BoxQuery(40, -4, 41, -3),
		Terms: []string{"Quercus", "Pinus", "Fagus"},
		Page:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), source.calls.Load())
}

func TestSearchSourceFilter(t *testing.T) {
	first := &fakeSource{name: observation.SourceINaturalist}
	second := &fakeSource{name: observation.SourceGBIF}

	agg := New([]Source{first, second}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	_, err := agg.Search(context.Background(), Request{
		Area:         geo.BoxQuery(40, -4, 41, -3),
		SourceFilter: observation.SourceGBIF,
		Page:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), first.calls.Load())
	assert.Equal(t, int32(1), second.calls.Load())
}

func TestSearchCategoryFilterWithAncestorFallback(t *testing.T) {
	flowering := record("Quercus robur", 40.1, -3.5, observation.SourceINaturalist)
	flowering.Ancestors = taxon.Chain{{Rank: "class", Name: "Magnoliopsida"}}

	conifer := record("Pinus sylvestris", 40.2, -3.6, observation.SourceINaturalist)
	conifer.Ancestors = taxon.Chain{{Rank: "class", Name: "Pinopsida"}}

	// Arrives without a chain; the fallback detail fetch supplies one.
	lateFlowering := record("Fagus sylvatica", 40.3, -3.4, observation.SourceINaturalist)
	lateFlowering.TaxonID = 77

	source := &fakeSource{name: observation.SourceINaturalist,
		records: []observation.Record{flowering, conifer, lateFlowering}}
	ancestors := &fakeAncestors{chains: map[int64]taxon.Chain{
		77: {{Rank: "class", Name: "Magnoliopsida"}},
	}}

	agg := New([]Source{source}, taxon.NewMatcher(nil), ancestors, nil, nil, testConfig())

	page, err := agg.Search(context.Background(), Request{
		Area:     geo.BoxQuery(40, -4, 41, -3),
		Category: "angiosperma",
		Page:     1,
	})
	require.NoError(t, err)

	require.Len(t, page.Observations, 2)
	assert.Equal(t, "Quercus robur", page.Observations[0].ScientificName)
	assert.Equal(t, "Fagus sylvatica", page.Observations[1].ScientificName)
	assert.Equal(t, int32(1), ancestors.calls.Load())
}

func TestSearchUnknownCategoryMatchesNothing(t *testing.T) {
	source := &fakeSource{name: observation.SourceINaturalist, records: []observation.Record{
		record("Quercus robur", 40.1, -3.5, observation.SourceINaturalist),
	}}

	agg := New([]Source{source}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	page, err := agg.Search(context.Background(), Request{
		Area:     geo.BoxQuery(40, -4, 41, -3),
		Category: "cactus",
		Page:     1,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Observations)
}

func TestSearchPointQueryAnnotatesAndFiltersDistance(t *testing.T) {
	near := record("Quercus robur", 40.405, -3.70, observation.SourceINaturalist)
	far := record("Pinus sylvestris", 45.0, 5.0, observation.SourceINaturalist)

	coordless := observation.Record{Observation: observation.Observation{
		ScientificName: "Lavandula angustifolia",
		Genus:          "Lavandula",
		Source:         observation.SourceTrefle,
	}}

	source := &fakeSource{name: observation.SourceINaturalist,
		records: []observation.Record{near, far, coordless}}

	agg := New([]Source{source}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	page, err := agg.Search(context.Background(), Request{
		Area: geo.PointQuery(40.4168, -3.7038, 10),
		Page: 1,
	})
	require.NoError(t, err)

	require.Len(t, page.Observations, 2)

	oak := page.Observations[0]
	assert.Equal(t, "Quercus robur", oak.ScientificName)
	require.NotNil(t, oak.DistanceKm)
	assert.Less(t, *oak.DistanceKm, 10.0)

	lavender := page.Observations[1]
	assert.Equal(t, "Lavandula angustifolia", lavender.ScientificName)
	assert.Nil(t, lavender.DistanceKm, "coordless records pass through without a distance")
}

func TestSearchSortsAndPaginates(t *testing.T) {
	records := make([]observation.Record, 45)
	for i := range records {
		records[i] = record(fmt.Sprintf("Species number%d", i), 40.0+float64(i)*0.001, -3.5, observation.SourceINaturalist)
		records[i].Observation.IdentificationCount = i
	}
	source := &fakeSource{name: observation.SourceINaturalist, records: records}

	agg := New([]Source{source}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	page, err := agg.Search(context.Background(), Request{
		Area: geo.BoxQuery(40, -4, 41, -3),
		Page: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 45, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Observations, 5)
	// Default order is descending identification count.
	assert.Equal(t, 4, page.Observations[0].IdentificationCount)

	empty, err := agg.Search(context.Background(), Request{
		Area: geo.BoxQuery(40, -4, 41, -3),
		Page: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, empty.Observations)
	assert.Equal(t, 45, empty.TotalCount)
}

func TestSearchOrderByDate(t *testing.T) {
	dated := record("Quercus robur", 40.1, -3.5, observation.SourceINaturalist)
	dated.Observation.ObservedOn = "2020-01-01"
	newer := record("Pinus sylvestris", 40.2, -3.6, observation.SourceINaturalist)
	newer.Observation.ObservedOn = "2024-06-01"
	undated := record("Fagus sylvatica", 40.3, -3.4, observation.SourceINaturalist)

	source := &fakeSource{name: observation.SourceINaturalist,
		records: []observation.Record{undated, dated, newer}}

	agg := New([]Source{source}, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	asc, err := agg.Search(context.Background(), Request{
		Area:    geo.BoxQuery(40, -4, 41, -3),
		OrderBy: OrderByDateAsc,
		Page:    1,
	})
	require.NoError(t, err)
	require.Len(t, asc.Observations, 3)
	assert.Equal(t, "Quercus robur", asc.Observations[0].ScientificName)
	assert.Equal(t, "Pinus sylvestris", asc.Observations[1].ScientificName)
	assert.Equal(t, "Fagus sylvatica", asc.Observations[2].ScientificName)

	desc, err := agg.Search(context.Background(), Request{
		Area:    geo.BoxQuery(40, -4, 41, -3),
		OrderBy: OrderByDateDesc,
		Page:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pinus sylvestris", desc.Observations[0].ScientificName)
	assert.Equal(t, "Fagus sylvatica", desc.Observations[2].ScientificName, "undated records sort last in both directions")
}

func TestSearchEnrichesReturnedPage(t *testing.T) {
	withImage := record("Quercus robur", 40.1, -3.5, observation.SourceINaturalist)
	withImage.Observation.ImageURL = "https://already/set.jpg"
	withoutImage := record("Pinus sylvestris", 40.2, -3.6, observation.SourceINaturalist)

	source := &fakeSource{name: observation.SourceINaturalist,
		records: []observation.Record{withImage, withoutImage}}

	agg := New([]Source{source}, taxon.NewMatcher(nil), nil, fakeImages{}, fakeSummaries{}, testConfig())

	page, err := agg.Search(context.Background(), Request{
		Area:      geo.BoxQuery(40, -4, 41, -3),
		Page:      1,
		Summaries: true,
	})
	require.NoError(t, err)
	require.Len(t, page.Observations, 2)

	for _, o := range page.Observations {
		assert.NotEmpty(t, o.ImageURL)
		assert.Equal(t, "About "+o.ScientificName, o.WikipediaSummary)
	}
	assert.Equal(t, "https://already/set.jpg", page.Observations[0].ImageURL, "an upstream image must not be overwritten")
	assert.Equal(t, "https://img/Pinus.jpg", page.Observations[1].ImageURL)
}

func TestSearchRejectsInvalidArea(t *testing.T) {
	agg := New(nil, taxon.NewMatcher(nil), nil, nil, nil, testConfig())

	_, err := agg.Search(context.Background(), Request{Page: 1})
	require.Error(t, err)
}
