package geojsonio

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transitengine/internal/flood"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/logging"
	"github.com/passbi/transitengine/internal/mercator"
)

func testGraph() *graphmodel.Graph {
	bound := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}
	frame := mercator.NewFrame(bound)
	roads := []graphmodel.Road{
		{SrcI: 0, DstI: 1, Linestring: orb.LineString{{0, 0}, {100, 0}}},
		{SrcI: 1, DstI: 2, Linestring: orb.LineString{{100, 0}, {200, 0}}},
	}
	return &graphmodel.Graph{Roads: roads, Frame: frame}
}

func TestRouteFeaturesMergesConsecutiveRoadSteps(t *testing.T) {
	g := testGraph()
	route := &graphmodel.Route{
		Start: graphmodel.Position{Road: 0, FractionAlong: 0},
		End:   graphmodel.Position{Road: 1, FractionAlong: 1},
		Steps: []graphmodel.PathStep{
			{Kind: graphmodel.StepRoad, Road: 0, Forwards: true},
			{Kind: graphmodel.StepRoad, Road: 1, Forwards: true},
		},
	}

	fc := RouteFeatures(g, route, nil)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "road", fc.Features[0].Properties["kind"])
}

func TestRouteFeaturesSplitsTransitFromRoads(t *testing.T) {
	g := testGraph()
	g.Gtfs = &graphmodel.GTFSModel{
		Stops:  []graphmodel.Stop{{Point: orb.Point{100, 0}}, {Point: orb.Point{100, 0}}},
		Trips:  []graphmodel.Trip{{Route: 0}},
		Routes: []graphmodel.TransitRoute{{ShortName: "42"}},
	}
	route := &graphmodel.Route{
		Start: graphmodel.Position{Road: 0, FractionAlong: 0},
		End:   graphmodel.Position{Road: 1, FractionAlong: 1},
		Steps: []graphmodel.PathStep{
			{Kind: graphmodel.StepRoad, Road: 0, Forwards: true},
			{Kind: graphmodel.StepTransit, FromStop: 0, ToStop: 1, Trip: 0},
			{Kind: graphmodel.StepRoad, Road: 1, Forwards: true},
		},
	}
	times := []time.Duration{10 * time.Second, 5 * time.Minute, 6 * time.Minute}

	fc := RouteFeatures(g, route, times)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "road", fc.Features[0].Properties["kind"])
	assert.Equal(t, "transit", fc.Features[1].Properties["kind"])
	assert.Equal(t, "42", fc.Features[1].Properties["route"])
	assert.Equal(t, 1, fc.Features[1].Properties["num_stops"])
	assert.Equal(t, (10 * time.Second).String(), fc.Features[1].Properties["time1"])
	assert.Equal(t, (5 * time.Minute).String(), fc.Features[1].Properties["time2"])
}

func TestIsochroneRoadsOneFeaturePerRoad(t *testing.T) {
	g := testGraph()
	result := flood.Result{0: 30 * time.Second, 1: 90 * time.Second}

	fc := Isochrone(g, result, StyleRoads, logging.Noop())
	require.Len(t, fc.Features, 2)
}

func TestIsochroneContoursDegradesToGridWithoutPanicking(t *testing.T) {
	g := testGraph()
	result := flood.Result{0: 30 * time.Second}

	fc := Isochrone(g, result, StyleContours, logging.Noop())
	require.Len(t, fc.Features, 1)
	assert.True(t, fc.Features[0].Geometry.IsPolygon())
}

func TestSnapFeaturesAddsSimilarityProperties(t *testing.T) {
	g := testGraph()
	route := &graphmodel.Route{
		Start: graphmodel.Position{Road: 0, FractionAlong: 0},
		End:   graphmodel.Position{Road: 0, FractionAlong: 1},
		Steps: []graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: 0, Forwards: true}},
	}

	fc := SnapFeatures(g, route, 1.2, 4.5)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, 1.2, fc.Features[0].Properties["length_ratio"])
	assert.Equal(t, 4.5, fc.Features[0].Properties["sampled_distance_meters"])
}
