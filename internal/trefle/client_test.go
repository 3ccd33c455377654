package trefle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/httpclient"
	"github.com/amt2283/hunterleaf-go/internal/observation"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-token",
		Retry:   httpclient.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, nil)
	t.Cleanup(client.Close)
	return client
}

const plantsFixture = `{
	"data": [
		{
			"scientific_name": "Lavandula angustifolia",
			"common_name": "English lavender",
			"family": "Lamiaceae",
			"image_url": "https://img/lavender.jpg"
		},
		{
			"scientific_name": "Lavandula",
			"common_name": "lavender"
		}
	]
}`

func TestFetchMapsPlants(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/plants/search", r.URL.Path)
		assert.Equal(t, "Lavandula", r.URL.Query().Get("q"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(plantsFixture))
	}))

	records, err := client.Fetch(context.Background(), geo.PointQuery(40, -3, 10), "Lavandula")
	require.NoError(t, err)

	// The genus-only entry is dropped.
	require.Len(t, records, 1)

	plant := records[0].Observation
	assert.Equal(t, "Lavandula angustifolia", plant.ScientificName)
	assert.Equal(t, "Lavandula", plant.Genus)
	assert.Equal(t, observation.SourceTrefle, plant.Source)
	assert.Equal(t, "Common name: English lavender. Family: Lamiaceae.", plant.Description)
	assert.Equal(t, 1, plant.IdentificationCount)
	assert.Equal(t, "Trefle reference data", plant.Quality)
	assert.Equal(t, "https://img/lavender.jpg", plant.ImageURL)
	assert.Nil(t, plant.Latitude, "Trefle records never carry coordinates")
	assert.Nil(t, plant.Longitude)

	require.Len(t, records[0].Ancestors, 1)
	assert.Equal(t, "family", records[0].Ancestors[0].Rank)
	assert.Equal(t, "Lamiaceae", records[0].Ancestors[0].Name)
}

func TestFetchSkipsUnsupportedGroups(t *testing.T) {
	for _, term := range []string{"alga", "Hongos", "Líquen", "briofito", "Pteridófitos"} {
		t.Run(term, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("no upstream query expected for %q", term)
			}))

			records, err := client.Fetch(context.Background(), geo.PointQuery(40, -3, 10), term)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestFetchDegradesToEmptyOnUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	records, err := client.Fetch(context.Background(), geo.PointQuery(40, -3, 10), "Lavandula")
	require.NoError(t, err)
	assert.Empty(t, records)
}
