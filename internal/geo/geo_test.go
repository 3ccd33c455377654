package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, Distance(40.4168, -3.7038, 40.4168, -3.7038), 1e-9)
}

func TestDistanceSymmetry(t *testing.T) {
	t.Parallel()

	d1 := Distance(40.4168, -3.7038, 41.3874, 2.1686)
	d2 := Distance(41.3874, 2.1686, 40.4168, -3.7038)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDistanceKnownValues(t *testing.T) {
	t.Parallel()

	// One degree of latitude along a meridian is ~111.19 km.
	assert.InDelta(t, 111.19, Distance(0, 0, 1, 0), 0.1)

	// Madrid to Barcelona is roughly 505 km great-circle.
	assert.InDelta(t, 505, Distance(40.4168, -3.7038, 41.3874, 2.1686), 5)
}

func TestWKTPolygon(t *testing.T) {
	t.Parallel()

	box := BoundingBox{SwLat: 40.0, SwLng: -4.0, NeLat: 41.0, NeLng: -3.0}
	wkt := box.WKTPolygon()

	// Lon/lat order, closed at the first vertex.
	assert.Equal(t,
		"POLYGON((-4.000000 40.000000,-3.000000 40.000000,-3.000000 41.000000,-4.000000 41.000000,-4.000000 40.000000))",
		wkt)
}

func TestQueryValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"valid box", BoxQuery(40, -4, 41, -3), false},
		{"valid point", PointQuery(40, -4, 10), false},
		{"empty query", Query{}, true},
		{"both box and point", Query{Box: &BoundingBox{}, Point: &PointRadius{RadiusKm: 1}}, true},
		{"zero radius", PointQuery(40, -4, 0), true},
		{"negative radius", PointQuery(40, -4, -5), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.query.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
