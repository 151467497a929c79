package router

import (
	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/graphmodel"
)

// towardIntersection reports the Forwards orientation for a step that
// travels along road ending at intersection (forwards==src->dst ends at
// DstI).
func towardIntersection(road *graphmodel.Road, intersection graphmodel.IntersectionID) bool {
	return road.DstI == intersection
}

// awayFromIntersection reports the Forwards orientation for a step that
// travels along road starting at intersection.
func awayFromIntersection(road *graphmodel.Road, intersection graphmodel.IntersectionID) bool {
	return road.SrcI == intersection
}

// Route answers a point-to-point query between two Positions on this
// profile's graph (spec §4.5).
func (r *Router) Route(start, end graphmodel.Position) (*graphmodel.Route, error) {
	if start == end {
		return nil, engineerr.New(engineerr.NoPath, "route: start == end")
	}

	if start.Road == end.Road {
		forwards := start.FractionAlong < end.FractionAlong
		return &graphmodel.Route{
			Start: start, End: end,
			Steps: []graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: start.Road, Forwards: forwards}},
		}, nil
	}

	if start.Intersection == end.Intersection {
		startRoad := &r.Graph.Roads[start.Road]
		endRoad := &r.Graph.Roads[end.Road]
		return &graphmodel.Route{
			Start: start, End: end,
			Steps: []graphmodel.PathStep{
				{Kind: graphmodel.StepRoad, Road: start.Road, Forwards: towardIntersection(startRoad, start.Intersection)},
				{Kind: graphmodel.StepRoad, Road: end.Road, Forwards: awayFromIntersection(endRoad, end.Intersection)},
			},
		}, nil
	}

	_, roadSteps, err := r.Calculator().Query(start.Intersection, end.Intersection)
	if err != nil {
		return nil, err
	}
	if len(roadSteps) == 0 {
		return nil, engineerr.New(engineerr.NoPath, "route: empty CH path between distinct intersections")
	}

	steps := make([]graphmodel.PathStep, 0, len(roadSteps)+2)
	if roadSteps[0].Road != start.Road {
		startRoad := &r.Graph.Roads[start.Road]
		steps = append(steps, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: start.Road, Forwards: towardIntersection(startRoad, start.Intersection)})
	}
	for _, rs := range roadSteps {
		steps = append(steps, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: rs.Road, Forwards: rs.Forwards})
	}
	if roadSteps[len(roadSteps)-1].Road != end.Road {
		endRoad := &r.Graph.Roads[end.Road]
		steps = append(steps, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: end.Road, Forwards: awayFromIntersection(endRoad, end.Intersection)})
	}

	return &graphmodel.Route{Start: start, End: end, Steps: steps}, nil
}

// RouteWaypoints concatenates pairwise routes through an ordered list of
// intersections (spec §4.5 "Waypoints"); each adjacent pair must share an
// intersection at the boundary, which holds automatically here since
// every leg's CH query is anchored at the shared waypoint.
func (r *Router) RouteWaypoints(intersections []graphmodel.IntersectionID) (*graphmodel.Route, error) {
	if len(intersections) < 2 {
		return nil, engineerr.New(engineerr.NoPath, "RouteWaypoints: need at least two intersections")
	}

	var steps []graphmodel.PathStep
	for i := 0; i+1 < len(intersections); i++ {
		a, b := intersections[i], intersections[i+1]
		if a == b {
			continue
		}
		_, roadSteps, err := r.Calculator().Query(a, b)
		if err != nil {
			return nil, err
		}
		for _, rs := range roadSteps {
			steps = append(steps, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: rs.Road, Forwards: rs.Forwards})
		}
	}
	if len(steps) == 0 {
		return nil, engineerr.New(engineerr.NoPath, "RouteWaypoints: no edges between waypoints")
	}

	firstRoad := steps[0].Road
	lastRoad := steps[len(steps)-1].Road
	start := graphmodel.NewPosition(firstRoad, &r.Graph.Roads[firstRoad], boundaryFraction(&r.Graph.Roads[firstRoad], intersections[0]))
	end := graphmodel.NewPosition(lastRoad, &r.Graph.Roads[lastRoad], boundaryFraction(&r.Graph.Roads[lastRoad], intersections[len(intersections)-1]))

	return &graphmodel.Route{Start: start, End: end, Steps: steps}, nil
}

func boundaryFraction(road *graphmodel.Road, intersection graphmodel.IntersectionID) float64 {
	if road.SrcI == intersection {
		return 0
	}
	return 1
}
