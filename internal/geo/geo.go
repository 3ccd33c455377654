// Package geo provides geographic primitives: great-circle distance and the
// query area types shared by all source adapters.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between two
// coordinates using the haversine formula. Pure and total for finite inputs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := toRadians(lat2 - lat1)
	dlon := toRadians(lon2 - lon1)

	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// BoundingBox is a rectangular area defined by its southwest and northeast corners.
type BoundingBox struct {
	SwLat float64
	SwLng float64
	NeLat float64
	NeLng float64
}

// WKTPolygon renders the box as a WKT POLYGON in lon/lat order, closed at
// the first vertex, the shape GBIF's occurrence search expects.
func (b BoundingBox) WKTPolygon() string {
	return fmt.Sprintf("POLYGON((%f %f,%f %f,%f %f,%f %f,%f %f))",
		b.SwLng, b.SwLat,
		b.NeLng, b.SwLat,
		b.NeLng, b.NeLat,
		b.SwLng, b.NeLat,
		b.SwLng, b.SwLat)
}

// PointRadius is a circular area around a center point.
type PointRadius struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// Query is the area a search covers: exactly one of Box or Point is set.
type Query struct {
	Box   *BoundingBox
	Point *PointRadius
}

// BoxQuery builds a bounding-box query.
func BoxQuery(swLat, swLng, neLat, neLng float64) Query {
	return Query{Box: &BoundingBox{SwLat: swLat, SwLng: swLng, NeLat: neLat, NeLng: neLng}}
}

// PointQuery builds a point-plus-radius query.
func PointQuery(lat, lng, radiusKm float64) Query {
	return Query{Point: &PointRadius{Lat: lat, Lng: lng, RadiusKm: radiusKm}}
}

// Validate reports whether the query is well-formed.
func (q Query) Validate() error {
	switch {
	case q.Box == nil && q.Point == nil:
		return fmt.Errorf("query has neither bounding box nor point")
	case q.Box != nil && q.Point != nil:
		return fmt.Errorf("query has both bounding box and point")
	case q.Point != nil && q.Point.RadiusKm <= 0:
		return fmt.Errorf("point query radius must be positive, got %f", q.Point.RadiusKm)
	}
	return nil
}
