// Package mercator builds the engine's local coordinate frame: a linear
// projection derived from a study area's WGS84 bounds, used everywhere
// internally so that edge lengths and bearings are plain Euclidean math
// instead of repeated haversine calls.
package mercator

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6371000.0
const metersPerDegreeLat = earthRadiusMeters * math.Pi / 180.0

// Frame is a linear equirectangular projection anchored at a study area's
// WGS84 bounding box: degrees of longitude are scaled by the cosine of the
// bound's center latitude, so distances near that latitude are close to
// true meters without the distortion a full spherical Mercator projection
// would introduce at the scale of a single city or region.
type Frame struct {
	Bound orb.Bound // WGS84 bound this frame was derived from

	metersPerDegreeLon float64
}

// NewFrame derives a Frame from a WGS84 bound. Callers build the bound from
// every node an OSM lift touches (internal/osmlift) before lifting any
// geometry into it.
func NewFrame(bound orb.Bound) Frame {
	centerLat := (bound.Min[1] + bound.Max[1]) / 2.0
	return Frame{
		Bound:              bound,
		metersPerDegreeLon: metersPerDegreeLat * math.Cos(centerLat*math.Pi/180.0),
	}
}

// ToMercator converts a WGS84 point into this frame's local meters, with
// the origin at Bound.Min and y increasing northward.
func (f Frame) ToMercator(p orb.Point) orb.Point {
	return orb.Point{
		(p[0] - f.Bound.Min[0]) * f.metersPerDegreeLon,
		(p[1] - f.Bound.Min[1]) * metersPerDegreeLat,
	}
}

// ToWGS84 inverts ToMercator.
func (f Frame) ToWGS84(p orb.Point) orb.Point {
	return orb.Point{
		p[0]/f.metersPerDegreeLon + f.Bound.Min[0],
		p[1]/metersPerDegreeLat + f.Bound.Min[1],
	}
}

// LineStringToMercator maps every point of ls into this frame.
func (f Frame) LineStringToMercator(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = f.ToMercator(p)
	}
	return out
}

// LineStringToWGS84 inverts LineStringToMercator.
func (f Frame) LineStringToWGS84(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = f.ToWGS84(p)
	}
	return out
}

// PolygonToWGS84 maps every ring of a Mercator-space polygon back to WGS84,
// used when emitting the study area's boundary as GeoJSON.
func (f Frame) PolygonToWGS84(poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		out[i] = orb.Ring(f.LineStringToWGS84(orb.LineString(ring)))
	}
	return out
}

// Contains reports whether a WGS84 point falls within this frame's bound
// (spec §7 OutOfBounds: "query point outside the Mercator frame").
func (f Frame) Contains(p orb.Point) bool {
	return f.Bound.Contains(p)
}

// BoundFromPoints computes a WGS84 bound covering every point yielded by
// next, which should return false once exhausted.
func BoundFromPoints(next func() (orb.Point, bool)) orb.Bound {
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	any := false
	for {
		p, ok := next()
		if !ok {
			break
		}
		any = true
		bound = bound.Extend(p)
	}
	if !any {
		return orb.Bound{}
	}
	return bound
}
