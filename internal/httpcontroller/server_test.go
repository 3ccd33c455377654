package httpcontroller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amt2283/hunterleaf-go/internal/aggregator"
	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/geocoder"
	"github.com/amt2283/hunterleaf-go/internal/groupstore"
	"github.com/amt2283/hunterleaf-go/internal/observability"
	"github.com/amt2283/hunterleaf-go/internal/observation"
	"github.com/amt2283/hunterleaf-go/internal/taxon"
)

type fakeSource struct {
	records []observation.Record
}

func (f *fakeSource) Name() observation.Source { return observation.SourceINaturalist }

func (f *fakeSource) Fetch(ctx context.Context, area geo.Query, term string) ([]observation.Record, error) {
	return f.records, nil
}

func testRecord(name string, lat, lng float64) observation.Record {
	return observation.Record{
		Observation: observation.Observation{
			ScientificName: name,
			Genus:          taxon.ExtractGenus(name),
			Latitude:       &lat,
			Longitude:      &lng,
			ImageURL:       "https://img/test.jpg",
			Source:         observation.SourceINaturalist,
		},
	}
}

func newTestServer(t *testing.T, records []observation.Record) *Server {
	t.Helper()

	agg := aggregator.New(
		[]aggregator.Source{&fakeSource{records: records}},
		taxon.NewMatcher(nil), nil, nil, nil,
		aggregator.Config{Timeout: 5 * time.Second, Concurrency: 2, PageSize: 20},
	)

	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "Nowhere") {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat": "40.4168", "lon": "-3.7038"}]`))
	}))
	t.Cleanup(nominatim.Close)
	geocoderClient := geocoder.NewClient(geocoder.Config{BaseURL: nominatim.URL})
	t.Cleanup(geocoderClient.Close)

	store, err := groupstore.Open(filepath.Join(t.TempDir(), "groups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seedPath := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seedPath,
		[]byte(`{"Coníferas": [{"family": "Pinaceae", "genus": "Pinus"}]}`), 0o644))
	require.NoError(t, store.ImportJSON(seedPath))

	return New(agg, geocoderClient, store, observability.NewMetrics())
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	s.echo.ServeHTTP(recorder, req)
	return recorder
}

func TestHomePage(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Coníferas")
	assert.Contains(t, rec.Body.String(), `action="/search"`)
}

func TestAreaEndpoint(t *testing.T) {
	s := newTestServer(t, []observation.Record{
		testRecord("Quercus robur", 40.4, -3.7),
	})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/api/v1/area?swlat=40&swlng=-4&nelat=41&nelng=-3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"scientific_name":"Quercus robur"`)
	assert.Contains(t, body, `"total_count":1`)
}

func TestAreaEndpointRejectsNonNumericCoordinates(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/api/v1/area?swlat=forty&swlng=-4&nelat=41&nelng=-3", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAreaEndpointRejectsBadPageAndOrder(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/api/v1/area?swlat=40&swlng=-4&nelat=41&nelng=-3&page=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, httptest.NewRequest(http.MethodGet,
		"/api/v1/area?swlat=40&swlng=-4&nelat=41&nelng=-3&order=upside_down", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func postForm(s *Server, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doRequest(s, req)
}

func TestSearchFormWithCoordinates(t *testing.T) {
	s := newTestServer(t, []observation.Record{
		testRecord("Quercus robur", 40.42, -3.70),
	})

	rec := postForm(s, url.Values{
		"latitude":  {"40.4168"},
		"longitude": {"-3.7038"},
		"radius_km": {"10"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Quercus robur")
}

func TestSearchFormGeocodesAddress(t *testing.T) {
	s := newTestServer(t, []observation.Record{
		testRecord("Quercus robur", 40.42, -3.70),
	})

	rec := postForm(s, url.Values{"address": {"Madrid, Spain"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "40.4168")
}

func TestSearchFormRejectsInvalidInput(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusBadRequest,
		postForm(s, url.Values{"latitude": {"forty"}, "longitude": {"-3.7"}}).Code)
	assert.Equal(t, http.StatusBadRequest,
		postForm(s, url.Values{"latitude": {"40.4"}, "longitude": {"west"}}).Code)
	assert.Equal(t, http.StatusBadRequest,
		postForm(s, url.Values{"latitude": {"40.4"}, "longitude": {"-3.7"}, "radius_km": {"-1"}}).Code)
	assert.Equal(t, http.StatusBadRequest,
		postForm(s, url.Values{"address": {"Nowhere At All"}}).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
