package router

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/profile"
)

// line builds a four-intersection chain graph: 0 -- 1 -- 2 -- 3, each road
// two-way for the car profile, plus a longer direct 0->3 road so the CH
// query has a real shortest-path choice to make.
func lineGraph() *graphmodel.Graph {
	fwd := []profile.Direction{profile.Both}
	roads := []graphmodel.Road{
		{SrcI: 0, DstI: 1, LengthMeters: 10, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{0, 0}, {10, 0}}},
		{SrcI: 1, DstI: 2, LengthMeters: 10, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{10, 0}, {20, 0}}},
		{SrcI: 2, DstI: 3, LengthMeters: 10, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{20, 0}, {30, 0}}},
		{SrcI: 0, DstI: 3, LengthMeters: 100, Access: fwd, Cost: []time.Duration{100 * time.Second}, Linestring: orb.LineString{{0, 0}, {0, 100}, {30, 100}, {30, 0}}},
	}
	intersections := []graphmodel.Intersection{
		{Point: orb.Point{0, 0}, Roads: []graphmodel.RoadID{0, 3}},
		{Point: orb.Point{10, 0}, Roads: []graphmodel.RoadID{0, 1}},
		{Point: orb.Point{20, 0}, Roads: []graphmodel.RoadID{1, 2}},
		{Point: orb.Point{30, 0}, Roads: []graphmodel.RoadID{2, 3}},
	}
	return &graphmodel.Graph{Roads: roads, Intersections: intersections, ProfileNames: []string{"car"}}
}

func TestRouterQueryPrefersShorterChain(t *testing.T) {
	g := lineGraph()
	r, err := Build(g, 0)
	require.NoError(t, err)

	dur, steps, err := r.Calculator().Query(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, dur)
	assert.Len(t, steps, 3)
	assert.Equal(t, graphmodel.RoadID(0), steps[0].Road)
	assert.True(t, steps[0].Forwards)
	assert.Equal(t, graphmodel.RoadID(2), steps[2].Road)
}

func TestRouteSameRoad(t *testing.T) {
	g := lineGraph()
	r, err := Build(g, 0)
	require.NoError(t, err)

	start := graphmodel.NewPosition(0, &g.Roads[0], 0.2)
	end := graphmodel.NewPosition(0, &g.Roads[0], 0.8)

	route, err := r.Route(start, end)
	require.NoError(t, err)
	require.Len(t, route.Steps, 1)
	assert.Equal(t, graphmodel.RoadID(0), route.Steps[0].Road)
	assert.True(t, route.Steps[0].Forwards)
}

func TestRouteSharedIntersection(t *testing.T) {
	g := lineGraph()
	r, err := Build(g, 0)
	require.NoError(t, err)

	start := graphmodel.NewPosition(0, &g.Roads[0], 0.9) // near intersection 1
	end := graphmodel.NewPosition(1, &g.Roads[1], 0.1)   // near intersection 1

	route, err := r.Route(start, end)
	require.NoError(t, err)
	require.Len(t, route.Steps, 2)
	assert.Equal(t, graphmodel.RoadID(0), route.Steps[0].Road)
	assert.True(t, route.Steps[0].Forwards) // travels 0->1, ends at DstI==1
	assert.Equal(t, graphmodel.RoadID(1), route.Steps[1].Road)
	assert.True(t, route.Steps[1].Forwards) // leaves 1->2, starts at SrcI==1
}

func TestRouteGeneralCaseTraversesChain(t *testing.T) {
	g := lineGraph()
	r, err := Build(g, 0)
	require.NoError(t, err)

	start := graphmodel.NewPosition(0, &g.Roads[0], 0.5) // mid of road 0, intersection 0
	end := graphmodel.NewPosition(2, &g.Roads[2], 0.5)    // mid of road 2, intersection 2

	route, err := r.Route(start, end)
	require.NoError(t, err)
	require.Len(t, route.Steps, 3)
	assert.Equal(t, graphmodel.RoadID(0), route.Steps[0].Road)
	assert.Equal(t, graphmodel.RoadID(1), route.Steps[1].Road)
	assert.Equal(t, graphmodel.RoadID(2), route.Steps[2].Road)
}

func TestRouteStartEqualsEndIsNoPath(t *testing.T) {
	g := lineGraph()
	r, err := Build(g, 0)
	require.NoError(t, err)

	p := graphmodel.NewPosition(0, &g.Roads[0], 0.5)
	_, err = r.Route(p, p)
	assert.Error(t, err)
}

func TestSnapToRoadFindsNearest(t *testing.T) {
	g := lineGraph()
	r, err := Build(g, 0)
	require.NoError(t, err)

	pos, ok := r.SnapToRoad(orb.Point{15, 1})
	require.True(t, ok)
	assert.Equal(t, graphmodel.RoadID(1), pos.Road)
}
