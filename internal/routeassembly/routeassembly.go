// Package routeassembly turns a graphmodel.Route's abstract PathSteps into
// Mercator geometry (spec §4.6): slicing partial road linestrings at the
// route's start/end fractions, concatenating whole steps in between, and
// partitioning the result into contiguous same-kind runs for rendering
// (spec §4.8 "collapse consecutive steps sharing a kind into one feature").
package routeassembly

import (
	"github.com/paulmach/orb"

	"github.com/passbi/transitengine/internal/geomutil"
	"github.com/passbi/transitengine/internal/graphmodel"
)

// Linestring renders route as a single Mercator polyline, precisely sliced
// at route.Start/route.End's fractional positions (spec §4.6).
func Linestring(g *graphmodel.Graph, route *graphmodel.Route) orb.LineString {
	parts := make([]orb.LineString, len(route.Steps))
	for i, step := range route.Steps {
		parts[i] = stepLinestring(g, route, step, i, len(route.Steps))
	}
	return geomutil.Concat(parts...)
}

func stepLinestring(g *graphmodel.Graph, route *graphmodel.Route, step graphmodel.PathStep, i, n int) orb.LineString {
	if step.Kind == graphmodel.StepTransit {
		return transitLinestring(g, step)
	}
	return roadStepLinestring(g, route, step, i == 0, i == n-1)
}

// transitLinestring draws a boarding as a straight line between its two
// stop points; GTFS carries no shape geometry for the ride itself (mirrors
// the original renderer, which does the same).
func transitLinestring(g *graphmodel.Graph, step graphmodel.PathStep) orb.LineString {
	if g.Gtfs == nil {
		return orb.LineString{}
	}
	return orb.LineString{g.Gtfs.Stops[step.FromStop].Point, g.Gtfs.Stops[step.ToStop].Point}
}

// roadStepLinestring implements spec §4.6's First/Middle/Last/Only slicing.
// geomutil.Slice already reverses its output when start > end, which is
// exactly the order a backwards-traveling step needs, so no separate
// reversal is required here.
func roadStepLinestring(g *graphmodel.Graph, route *graphmodel.Route, step graphmodel.PathStep, first, last bool) orb.LineString {
	ls := g.Roads[step.Road].Linestring

	switch {
	case first && last: // Only: start and end on the same road.
		return geomutil.Slice(ls, route.Start.FractionAlong, route.End.FractionAlong)
	case first:
		if step.Forwards {
			return geomutil.Slice(ls, route.Start.FractionAlong, 1)
		}
		return geomutil.Slice(ls, route.Start.FractionAlong, 0)
	case last:
		if step.Forwards {
			return geomutil.Slice(ls, 0, route.End.FractionAlong)
		}
		return geomutil.Slice(ls, 1, route.End.FractionAlong)
	default: // Middle: taken whole.
		if step.Forwards {
			return ls
		}
		return geomutil.Slice(ls, 1, 0)
	}
}

// Segment is one contiguous run of a Route's steps sharing a key, together
// with its own assembled geometry (spec §4.6 split_linestrings). FromIndex
// and ToIndex are the run's bounds within the original Route.Steps (ToIndex
// exclusive), letting callers that track a parallel per-step value (e.g.
// internal/transitsearch's Times) slice it to match.
type Segment struct {
	Steps              []graphmodel.PathStep
	Linestring         orb.LineString
	FromIndex, ToIndex int
}

// SplitLinestrings partitions route into contiguous runs where keyFn(step)
// is constant (compared with ==), rendering each run's geometry
// independently (spec §4.6). keyFn's return value must be comparable.
func SplitLinestrings(g *graphmodel.Graph, route *graphmodel.Route, keyFn func(graphmodel.PathStep) any) []Segment {
	var segments []Segment
	start := 0
	for i := 1; i <= len(route.Steps); i++ {
		if i < len(route.Steps) && keyFn(route.Steps[i]) == keyFn(route.Steps[start]) {
			continue
		}
		segments = append(segments, buildSegment(g, route, start, i))
		start = i
	}
	return segments
}

func buildSegment(g *graphmodel.Graph, route *graphmodel.Route, from, to int) Segment {
	steps := route.Steps[from:to]
	parts := make([]orb.LineString, len(steps))
	for i := from; i < to; i++ {
		parts[i-from] = stepLinestring(g, route, route.Steps[i], i, len(route.Steps))
	}
	out := make([]graphmodel.PathStep, len(steps))
	copy(out, steps)
	return Segment{Steps: out, Linestring: geomutil.Concat(parts...), FromIndex: from, ToIndex: to}
}

// StepGroupKey is the default split_linestrings key: it merges every
// consecutive Road step into one run regardless of which road, but only
// merges Transit steps that ride the same trip (spec §4.8 "collapse
// consecutive steps sharing a kind into one feature").
type StepGroupKey struct {
	Kind graphmodel.StepKind
	Trip graphmodel.TripID
}

// DefaultGroupKey is the keyFn SplitLinestrings callers pass when rendering
// a route as road/transit features for display.
func DefaultGroupKey(step graphmodel.PathStep) any {
	if step.Kind == graphmodel.StepTransit {
		return StepGroupKey{Kind: graphmodel.StepTransit, Trip: step.Trip}
	}
	return StepGroupKey{Kind: graphmodel.StepRoad}
}
