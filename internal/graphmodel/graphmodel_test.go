package graphmodel

import (
	"bytes"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transitengine/internal/osmlift"
	"github.com/passbi/transitengine/internal/profile"
)

func trivialLift() *osmlift.Result {
	return &osmlift.Result{
		Roads: []osmlift.RawRoad{
			{SrcI: 0, DstI: 1, Linestring: orb.LineString{{0, 0}, {100, 0}}, OSMTags: map[string]string{"highway": "residential"}},
		},
		Intersections: []osmlift.RawIntersection{
			{Point: orb.Point{0, 0}, Roads: []int{0}},
			{Point: orb.Point{100, 0}, Roads: []int{0}},
		},
	}
}

func TestBuildAssignsPerProfileAccessAndCost(t *testing.T) {
	g, err := Build(trivialLift(), profile.All())
	require.NoError(t, err)
	require.Len(t, g.Roads, 1)

	road := g.Roads[0]
	assert.InDelta(t, 100, road.LengthMeters, 1e-9)
	assert.Equal(t, len(g.ProfileNames), len(road.Access))
	assert.Equal(t, len(g.ProfileNames), len(road.Cost))

	carID, ok := g.ProfileID("car")
	require.True(t, ok)
	assert.True(t, road.Access[carID].AllowsForwards())
	assert.True(t, road.Access[carID].AllowsBackwards())
	assert.Greater(t, road.Cost[carID], time.Duration(0))
}

func TestPositionIntersectionPicksNearerEndpoint(t *testing.T) {
	road := &Road{SrcI: 5, DstI: 9}
	assert.Equal(t, IntersectionID(5), PositionIntersection(road, 0.0))
	assert.Equal(t, IntersectionID(5), PositionIntersection(road, 0.5))
	assert.Equal(t, IntersectionID(9), PositionIntersection(road, 0.51))
	assert.Equal(t, IntersectionID(9), PositionIntersection(road, 1.0))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g, err := Build(trivialLift(), profile.All())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	equal, err := g.Equal(loaded)
	require.NoError(t, err)
	assert.True(t, equal)
}

// multiTagLift returns a road carrying several OSM tags, the case where
// gob's unordered map encoding would otherwise make Save nondeterministic.
func multiTagLift() *osmlift.Result {
	return &osmlift.Result{
		Roads: []osmlift.RawRoad{
			{SrcI: 0, DstI: 1, Linestring: orb.LineString{{0, 0}, {100, 0}}, OSMTags: map[string]string{
				"highway": "residential", "maxspeed": "30", "oneway": "yes", "lanes": "2", "surface": "asphalt",
			}},
		},
		Intersections: []osmlift.RawIntersection{
			{Point: orb.Point{0, 0}, Roads: []int{0}},
			{Point: orb.Point{100, 0}, Roads: []int{0}},
		},
	}
}

func TestSaveIsByteDeterministicWithMultipleTags(t *testing.T) {
	g, err := Build(multiTagLift(), profile.All())
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, g.Save(&a))
	require.NoError(t, g.Save(&b))
	assert.Equal(t, a.Bytes(), b.Bytes(), "Save must be byte-identical across repeated encodes of an unchanged graph")

	loaded, err := Load(&a)
	require.NoError(t, err)
	equal, err := g.Equal(loaded)
	require.NoError(t, err)
	assert.True(t, equal)
	assert.Equal(t, g.Roads[0].OSMTags, loaded.Roads[0].OSMTags)
}

func TestSetupGTFSRejectsSecondCall(t *testing.T) {
	g := &Graph{}
	require.NoError(t, g.SetupGTFS(&GTFSModel{}))
	err := g.SetupGTFS(&GTFSModel{})
	require.Error(t, err)
}
