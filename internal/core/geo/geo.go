// Package geo provides geographic primitives shared by the normalizer,
// the provider adapters and the evidence processor.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point represents a geographic coordinate (WGS 84).
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point carries plausible coordinates. The zero
// value (0,0) is treated as "no coordinates" since no supported market sits
// on the null island.
func (p Point) Valid() bool {
	if p.Lat == 0 && p.Lon == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point falls inside the box.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Distance returns the great-circle distance between two points in meters
// (haversine formula).
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// BoundsAround returns a bounding box that fully covers the circle of
// radiusMeters around center. Used to turn a radius query into a SQL range
// scan; callers still apply the exact distance filter afterwards.
func BoundsAround(center Point, radiusMeters float64) Bounds {
	dLat := radiusMeters / 111320.0
	cos := math.Cos(center.Lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLon := radiusMeters / (111320.0 * cos)

	return Bounds{
		MinLat: center.Lat - dLat,
		MinLon: center.Lon - dLon,
		MaxLat: center.Lat + dLat,
		MaxLon: center.Lon + dLon,
	}
}
