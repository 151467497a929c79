package snap

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/profile"
	"github.com/passbi/transitengine/internal/router"
)

func chainRouter(t *testing.T) (*graphmodel.Graph, *router.Router) {
	t.Helper()
	fwd := []profile.Direction{profile.Both}
	roads := []graphmodel.Road{
		{SrcI: 0, DstI: 1, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{0, 0}, {10, 0}}},
		{SrcI: 1, DstI: 2, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{10, 0}, {20, 0}}},
		{SrcI: 2, DstI: 3, Access: fwd, Cost: []time.Duration{10 * time.Second}, Linestring: orb.LineString{{20, 0}, {30, 0}}},
	}
	intersections := []graphmodel.Intersection{
		{Point: orb.Point{0, 0}, Roads: []graphmodel.RoadID{0}},
		{Point: orb.Point{10, 0}, Roads: []graphmodel.RoadID{0, 1}},
		{Point: orb.Point{20, 0}, Roads: []graphmodel.RoadID{1, 2}},
		{Point: orb.Point{30, 0}, Roads: []graphmodel.RoadID{2}},
	}
	g := &graphmodel.Graph{Roads: roads, Intersections: intersections, ProfileNames: []string{"foot"}}
	r, err := router.Build(g, 0)
	require.NoError(t, err)
	return g, r
}

func TestGreedyFollowsChain(t *testing.T) {
	g, r := chainRouter(t)
	input := orb.LineString{{-1, 0}, {9, 0.2}, {19, -0.2}, {31, 0}}

	route, err := Greedy(g, r, input, 0)
	require.NoError(t, err)
	require.Len(t, route.Steps, 3)
	assert.Equal(t, graphmodel.RoadID(0), route.Steps[0].Road)
	assert.Equal(t, graphmodel.RoadID(1), route.Steps[1].Road)
	assert.Equal(t, graphmodel.RoadID(2), route.Steps[2].Road)
	for _, s := range route.Steps {
		assert.True(t, s.Forwards)
	}
}

func TestByEndpointsMatchesRouterQuery(t *testing.T) {
	_, r := chainRouter(t)
	input := orb.LineString{{-1, 0}, {31, 0}}

	route, err := ByEndpoints(r, input)
	require.NoError(t, err)
	require.Len(t, route.Steps, 3)
}

func TestBestCandidateRejectsRetreat(t *testing.T) {
	g, _ := chainRouter(t)
	input := orb.LineString{{0, 0}, {10, 0}, {20, 0}, {30, 0}}

	// At intersection 1, road 0's far end (0,0) projects at fraction 0 and
	// road 1's far end (20,0) projects at fraction ~0.67; with
	// fractionAlong already at 0.9, both are behind it and must be
	// rejected (spec §4.10 "do not retreat").
	_, _, _, ok := bestCandidate(g, input, 1, 0.9, 0)
	assert.False(t, ok)
}

func TestSimilarityIdenticalLinesScoreZero(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}, {20, 0}}
	ratio, dist := Similarity(ls, ls)
	assert.InDelta(t, 1.0, ratio, 1e-9)
	assert.InDelta(t, 0.0, dist, 1e-9)
}

func TestSimilarityFlagsLongDetour(t *testing.T) {
	input := orb.LineString{{0, 0}, {10, 0}}
	output := orb.LineString{{0, 0}, {0, 200}, {10, 200}, {10, 0}}
	ratio, _ := Similarity(input, output)
	assert.Greater(t, ratio, 10.0)
}
