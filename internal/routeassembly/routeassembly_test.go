package routeassembly

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/profile"
)

func twoRoadGraph() *graphmodel.Graph {
	fwd := []profile.Direction{profile.Both}
	roads := []graphmodel.Road{
		{SrcI: 0, DstI: 1, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{0, 0}, {10, 0}}},
		{SrcI: 1, DstI: 2, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{10, 0}, {20, 0}}},
	}
	intersections := []graphmodel.Intersection{
		{Point: orb.Point{0, 0}, Roads: []graphmodel.RoadID{0}},
		{Point: orb.Point{10, 0}, Roads: []graphmodel.RoadID{0, 1}},
		{Point: orb.Point{20, 0}, Roads: []graphmodel.RoadID{1}},
	}
	return &graphmodel.Graph{Roads: roads, Intersections: intersections, ProfileNames: []string{"foot"}}
}

func TestLinestringOnlyStepSlicesBetweenFractions(t *testing.T) {
	g := twoRoadGraph()
	route := &graphmodel.Route{
		Start: graphmodel.Position{Road: 0, FractionAlong: 0.25, Intersection: 0},
		End:   graphmodel.Position{Road: 0, FractionAlong: 0.75, Intersection: 1},
		Steps: []graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: 0, Forwards: true}},
	}

	ls := Linestring(g, route)
	require.Len(t, ls, 2)
	assert.InDelta(t, 2.5, ls[0][0], 1e-9)
	assert.InDelta(t, 7.5, ls[1][0], 1e-9)
}

func TestLinestringMultiStepConcatenatesAndSlicesEnds(t *testing.T) {
	g := twoRoadGraph()
	route := &graphmodel.Route{
		Start: graphmodel.Position{Road: 0, FractionAlong: 0.5, Intersection: 1},
		End:   graphmodel.Position{Road: 1, FractionAlong: 0.5, Intersection: 1},
		Steps: []graphmodel.PathStep{
			{Kind: graphmodel.StepRoad, Road: 0, Forwards: true},
			{Kind: graphmodel.StepRoad, Road: 1, Forwards: true},
		},
	}

	ls := Linestring(g, route)
	// First step covers (5,0)->(10,0), last covers (10,0)->(15,0); the
	// shared (10,0) vertex is deduplicated by Concat.
	require.Len(t, ls, 3)
	assert.InDelta(t, 5, ls[0][0], 1e-9)
	assert.InDelta(t, 10, ls[1][0], 1e-9)
	assert.InDelta(t, 15, ls[2][0], 1e-9)
}

func TestLinestringOnlyStepIgnoresForwardsFlag(t *testing.T) {
	g := twoRoadGraph()
	route := &graphmodel.Route{
		Start: graphmodel.Position{Road: 0, FractionAlong: 0.25, Intersection: 0},
		End:   graphmodel.Position{Road: 0, FractionAlong: 0.75, Intersection: 1},
		Steps: []graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: 0, Forwards: false}},
	}

	ls := Linestring(g, route)
	require.Len(t, ls, 2)
	// Only's order follows the start/end fractions directly regardless of
	// Forwards (spec §4.6), so this still reads ascending.
	assert.InDelta(t, 2.5, ls[0][0], 1e-9)
	assert.InDelta(t, 7.5, ls[1][0], 1e-9)
}

func TestSplitLinestringsGroupsRoadsAndSplitsTripsByID(t *testing.T) {
	g := &graphmodel.Graph{
		Roads: []graphmodel.Road{
			{SrcI: 0, DstI: 1, Linestring: orb.LineString{{0, 0}, {10, 0}}},
			{SrcI: 1, DstI: 2, Linestring: orb.LineString{{10, 0}, {20, 0}}},
		},
		Gtfs: &graphmodel.GTFSModel{
			Stops: []graphmodel.Stop{
				{Point: orb.Point{10, 0}},
				{Point: orb.Point{10, 10}},
				{Point: orb.Point{10, 20}},
			},
		},
	}
	route := &graphmodel.Route{
		Steps: []graphmodel.PathStep{
			{Kind: graphmodel.StepRoad, Road: 0, Forwards: true},
			{Kind: graphmodel.StepTransit, FromStop: 0, ToStop: 1, Trip: 5},
			{Kind: graphmodel.StepTransit, FromStop: 1, ToStop: 2, Trip: 5},
			{Kind: graphmodel.StepRoad, Road: 1, Forwards: true},
		},
	}

	segments := SplitLinestrings(g, route, DefaultGroupKey)
	require.Len(t, segments, 3)
	assert.Len(t, segments[0].Steps, 1)
	assert.Equal(t, graphmodel.StepRoad, segments[0].Steps[0].Kind)
	assert.Equal(t, 0, segments[0].FromIndex)
	assert.Equal(t, 1, segments[0].ToIndex)
	assert.Len(t, segments[1].Steps, 2)
	assert.Equal(t, graphmodel.StepTransit, segments[1].Steps[0].Kind)
	assert.Equal(t, 1, segments[1].FromIndex)
	assert.Equal(t, 3, segments[1].ToIndex)
	assert.Len(t, segments[2].Steps, 1)
	assert.Equal(t, graphmodel.StepRoad, segments[2].Steps[0].Kind)
}

func TestSplitLinestringsSplitsDifferentTrips(t *testing.T) {
	g := &graphmodel.Graph{
		Gtfs: &graphmodel.GTFSModel{
			Stops: []graphmodel.Stop{{}, {}, {}},
		},
	}
	route := &graphmodel.Route{
		Steps: []graphmodel.PathStep{
			{Kind: graphmodel.StepTransit, FromStop: 0, ToStop: 1, Trip: 1},
			{Kind: graphmodel.StepTransit, FromStop: 1, ToStop: 2, Trip: 2},
		},
	}

	segments := SplitLinestrings(g, route, DefaultGroupKey)
	require.Len(t, segments, 2)
}
