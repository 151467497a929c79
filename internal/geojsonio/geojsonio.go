// Package geojsonio adapts the engine's internal results — routes,
// isochrones, and snap outputs — into WGS84 GeoJSON FeatureCollections for
// external consumers (spec §6 "Outputs"). It is one of the non-core
// collaborators spec.md §1 describes only by the interface it consumes:
// everywhere else in this engine works in Mercator meters, but GeoJSON is
// always WGS84, so every conversion here goes through graphmodel.Graph's
// mercator.Frame.
package geojsonio

import (
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/passbi/transitengine/internal/flood"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/routeassembly"
)

func lineStringCoords(ls orb.LineString) [][]float64 {
	coords := make([][]float64, len(ls))
	for i, p := range ls {
		coords[i] = []float64{p[0], p[1]}
	}
	return coords
}

func pointCoords(p orb.Point) []float64 {
	return []float64{p[0], p[1]}
}

func polygonCoords(poly orb.Polygon) [][][]float64 {
	rings := make([][][]float64, len(poly))
	for i, ring := range poly {
		rings[i] = lineStringCoords(orb.LineString(ring))
	}
	return rings
}

// RouteFeatures renders route as a FeatureCollection with one Feature per
// contiguous same-kind run (spec §4.8 "collapse consecutive steps sharing
// a kind into one feature"), each carrying a `kind` of "road" or "transit"
// and, for transit runs, `trip`, `route`, and `num_stops` (spec §6
// "Outputs"). times, if non-nil, is the per-step arrival time produced by
// internal/transitsearch.Result.Times and is used to annotate each feature
// with `time1`/`time2`; pass nil when the route carries no time model
// (e.g. a plain internal/router.Route).
func RouteFeatures(g *graphmodel.Graph, route *graphmodel.Route, times []time.Duration) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	segments := routeassembly.SplitLinestrings(g, route, routeassembly.DefaultGroupKey)

	for _, seg := range segments {
		wgs84 := g.Frame.LineStringToWGS84(seg.Linestring)
		f := geojson.NewFeature(geojson.NewLineStringGeometry(lineStringCoords(wgs84)))

		first := seg.Steps[0]
		if first.Kind == graphmodel.StepTransit {
			f.SetProperty("kind", "transit")
			f.SetProperty("trip", int(first.Trip))
			f.SetProperty("num_stops", len(seg.Steps))
			if g.Gtfs != nil {
				transitRoute := g.Gtfs.Routes[g.Gtfs.Trips[first.Trip].Route]
				f.SetProperty("route", transitRoute.Describe())
			}
		} else {
			f.SetProperty("kind", "road")
		}

		if times != nil && seg.ToIndex <= len(times) {
			annotateTimes(f, times, seg.FromIndex, seg.ToIndex)
		}

		fc.AddFeature(f)
	}
	return fc
}

func annotateTimes(f *geojson.Feature, times []time.Duration, from, to int) {
	var time1 time.Duration
	if from > 0 {
		time1 = times[from-1]
	} else {
		time1 = times[0]
	}
	time2 := times[to-1]
	f.SetProperty("time1", time1.String())
	f.SetProperty("time2", time2.String())
}

// IsochroneStyle selects how Isochrone renders a flood.Result (spec §6
// "IsochroneRequest.style").
type IsochroneStyle string

const (
	StyleRoads    IsochroneStyle = "roads"
	StyleGrid     IsochroneStyle = "grid"
	StyleContours IsochroneStyle = "contours"
)

// gridCellMeters is the side length of the coarse square grid the "grid"
// style buckets reached points into; no spec constant is given for this,
// so a single city-block-scale value is chosen.
const gridCellMeters = 200.0

// Isochrone renders a flood-fill result per style (spec §6, SPEC_FULL §4
// "Isochrone styles"). "contours" has no true isoline implementation
// anywhere in this engine's dependency stack (it needs a raster/
// marching-squares library this pack doesn't carry), so it degrades to
// "grid" and logs a warning rather than failing the request.
func Isochrone(g *graphmodel.Graph, result flood.Result, style IsochroneStyle, log *zap.SugaredLogger) *geojson.FeatureCollection {
	if style == StyleContours {
		if log != nil {
			log.Warnw("isochrone style 'contours' is not implemented, degrading to 'grid'")
		}
		style = StyleGrid
	}

	switch style {
	case StyleRoads:
		return isochroneRoads(g, result)
	default:
		return isochroneGrid(g, result)
	}
}

func isochroneRoads(g *graphmodel.Graph, result flood.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for roadID, elapsed := range result {
		road := &g.Roads[roadID]
		wgs84 := g.Frame.LineStringToWGS84(road.Linestring)
		f := geojson.NewFeature(geojson.NewLineStringGeometry(lineStringCoords(wgs84)))
		f.SetProperty("seconds", elapsed.Seconds())
		fc.AddFeature(f)
	}
	return fc
}

type gridCell struct{ x, y int }

// isochroneGrid buckets each reached road's Mercator midpoint into a
// gridCellMeters square cell, keeping the minimum arrival time per cell,
// and emits one square Polygon Feature per occupied cell.
func isochroneGrid(g *graphmodel.Graph, result flood.Result) *geojson.FeatureCollection {
	best := make(map[gridCell]time.Duration)
	for roadID, elapsed := range result {
		road := &g.Roads[roadID]
		mid := midpoint(road.Linestring)
		cell := gridCell{x: int(mid[0] / gridCellMeters), y: int(mid[1] / gridCellMeters)}
		if cur, ok := best[cell]; !ok || elapsed < cur {
			best[cell] = elapsed
		}
	}

	fc := geojson.NewFeatureCollection()
	for cell, elapsed := range best {
		minX := float64(cell.x) * gridCellMeters
		minY := float64(cell.y) * gridCellMeters
		square := orb.Polygon{orb.Ring{
			{minX, minY},
			{minX + gridCellMeters, minY},
			{minX + gridCellMeters, minY + gridCellMeters},
			{minX, minY + gridCellMeters},
			{minX, minY},
		}}
		wgs84 := g.Frame.PolygonToWGS84(square)
		f := geojson.NewFeature(geojson.NewPolygonGeometry(polygonCoords(wgs84)))
		f.SetProperty("seconds", elapsed.Seconds())
		fc.AddFeature(f)
	}
	return fc
}

func midpoint(ls orb.LineString) orb.Point {
	if len(ls) == 0 {
		return orb.Point{}
	}
	return ls[len(ls)/2]
}

// SnapFeatures renders a snap.Greedy/snap.ByEndpoints result the same way
// as any other Route, plus the QA similarity score as FeatureCollection-
// level metadata (spec §4.10 "Similarity score").
func SnapFeatures(g *graphmodel.Graph, route *graphmodel.Route, lengthRatio, sampledDistance float64) *geojson.FeatureCollection {
	fc := RouteFeatures(g, route, nil)
	for _, f := range fc.Features {
		f.SetProperty("length_ratio", lengthRatio)
		f.SetProperty("sampled_distance_meters", sampledDistance)
	}
	return fc
}

// PointFeature wraps a single Mercator point as a WGS84 Point Feature,
// used for rendering e.g. a flood's start intersections for debugging.
func PointFeature(g *graphmodel.Graph, p orb.Point, properties map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(geojson.NewPointGeometry(pointCoords(g.Frame.ToWGS84(p))))
	for k, v := range properties {
		f.SetProperty(k, v)
	}
	return f
}
