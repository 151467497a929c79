// Package snap matches a raw (e.g. GPS-derived) polyline onto the road
// network (spec §4.10): a simple "by endpoints" strategy that only snaps
// the trace's two ends, and the default "greedy" strategy that walks the
// graph intersection by intersection, choosing, among neighbors that
// progress forward along the input trace, the one lying closest to it.
package snap

import (
	"github.com/paulmach/orb"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/geomutil"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/router"
)

// ByEndpoints snaps only input's first and last coordinates to Positions
// via the profile's road R-tree, then finds a route between them with
// internal/router (spec §4.10 "By endpoints").
func ByEndpoints(r *router.Router, input orb.LineString) (*graphmodel.Route, error) {
	if len(input) < 2 {
		return nil, engineerr.New(engineerr.InputParse, "snap: linestring needs at least 2 points")
	}
	start, ok := r.SnapToRoad(input[0])
	if !ok {
		return nil, engineerr.New(engineerr.SnapStuck, "snap: no road near start point")
	}
	end, ok := r.SnapToRoad(input[len(input)-1])
	if !ok {
		return nil, engineerr.New(engineerr.SnapStuck, "snap: no road near end point")
	}
	return r.Route(start, end)
}

// maxGreedyStepsPerRoad bounds the greedy walk's intersection count, a
// defensive guard against an otherwise-infinite loop on a malformed
// graph; legitimate inputs never come close to it since fraction_along
// strictly increases and is bounded in [0,1].
const maxGreedyStepsPerRoad = 4

// Greedy snaps input onto the graph via the default greedy strategy of
// spec §4.10: starting from input's endpoint-snapped Positions, repeatedly
// hop along the incident road chosen by bestCandidate (forward along
// input, closest to it), until the end intersection is reached.
func Greedy(g *graphmodel.Graph, r *router.Router, input orb.LineString, profileID graphmodel.ProfileID) (*graphmodel.Route, error) {
	if len(input) < 2 {
		return nil, engineerr.New(engineerr.InputParse, "snap: linestring needs at least 2 points")
	}
	start, ok := r.SnapToRoad(input[0])
	if !ok {
		return nil, engineerr.New(engineerr.SnapStuck, "snap: no road near start point")
	}
	end, ok := r.SnapToRoad(input[len(input)-1])
	if !ok {
		return nil, engineerr.New(engineerr.SnapStuck, "snap: no road near end point")
	}

	if start.Road == end.Road {
		forwards := start.FractionAlong < end.FractionAlong
		return &graphmodel.Route{
			Start: start, End: end,
			Steps: []graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: start.Road, Forwards: forwards}},
		}, nil
	}

	var steps []graphmodel.PathStep
	current := start.Intersection
	fractionAlong := 0.0
	limit := len(g.Intersections)*maxGreedyStepsPerRoad + 16

	for current != end.Intersection {
		if limit--; limit < 0 {
			return nil, engineerr.New(engineerr.SnapStuck, "snap: greedy walk exceeded step limit")
		}

		bestRoad, bestFar, bestT, ok := bestCandidate(g, input, current, fractionAlong, profileID)
		if !ok {
			return nil, engineerr.New(engineerr.SnapStuck, "snap: stuck, no forward-progressing candidate")
		}

		road := &g.Roads[bestRoad]
		steps = append(steps, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: bestRoad, Forwards: road.SrcI == current})
		current = bestFar
		fractionAlong = bestT
	}

	if len(steps) == 0 || steps[0].Road != start.Road {
		startRoad := &g.Roads[start.Road]
		steps = append([]graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: start.Road, Forwards: startRoad.DstI == start.Intersection}}, steps...)
	}
	if last := steps[len(steps)-1]; last.Road != end.Road {
		endRoad := &g.Roads[end.Road]
		steps = append(steps, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: end.Road, Forwards: endRoad.SrcI == end.Intersection})
	}

	return &graphmodel.Route{Start: start, End: end, Steps: steps}, nil
}

// bestCandidate considers the incident roads at current whose far
// intersection projects onto input past fractionAlong, and picks the one
// whose far intersection has the smallest Euclidean distance to that
// projection (spec §4.10 step 2).
func bestCandidate(g *graphmodel.Graph, input orb.LineString, current graphmodel.IntersectionID, fractionAlong float64, profileID graphmodel.ProfileID) (road graphmodel.RoadID, far graphmodel.IntersectionID, t float64, ok bool) {
	bestDist := -1.0
	for _, rid := range g.Intersections[current].Roads {
		r := &g.Roads[rid]
		forwards := r.SrcI == current
		if forwards && !r.AllowsForwards(profileID) {
			continue
		}
		if !forwards && !r.AllowsBackwards(profileID) {
			continue
		}

		farI := r.OtherEnd(current)
		farPoint := g.Intersections[farI].Point
		candidateT, _ := geomutil.LocatePoint(input, farPoint)
		if candidateT <= fractionAlong {
			continue
		}

		p := geomutil.PointAtFraction(input, candidateT)
		d := geomutil.Distance(p, farPoint)
		if !ok || d < bestDist {
			ok = true
			bestDist = d
			road, far, t = rid, farI, candidateT
		}
	}
	return
}

// Similarity reports a QA score for a snap result: length_ratio (>= 1 when
// both lines have length, 1 when neither does, 0 when exactly one has zero
// length) and the summed distance between input and output sampled at 101
// evenly spaced parameters (spec §4.10 "Similarity score"). A length
// ratio over 10 typically indicates a bad snap.
func Similarity(input, output orb.LineString) (lengthRatio float64, sampledDistance float64) {
	inLen := geomutil.Length(input)
	outLen := geomutil.Length(output)
	switch {
	case inLen == 0 && outLen == 0:
		lengthRatio = 1
	case inLen == 0 || outLen == 0:
		lengthRatio = 0 // degenerate: one side has no length to ratio against
	case outLen >= inLen:
		lengthRatio = outLen / inLen
	default:
		lengthRatio = inLen / outLen
	}

	const samples = 101
	for i := 0; i < samples; i++ {
		f := float64(i) / float64(samples-1)
		p1 := geomutil.PointAtFraction(input, f)
		p2 := geomutil.PointAtFraction(output, f)
		sampledDistance += geomutil.Distance(p1, p2)
	}
	return lengthRatio, sampledDistance
}
