package transitsearch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/profile"
)

// disconnectedTransferGraph builds two isolated foot roads (0-1 and 2-3)
// joined only by one scheduled trip departing stop S1 (on road 0) at
// 07:05 and arriving stop S2 (on road 1) at 07:10 — spec §8 scenario 5.
func disconnectedTransferGraph(t *testing.T) *graphmodel.Graph {
	t.Helper()
	fwd := []profile.Direction{profile.Both}
	roads := []graphmodel.Road{
		{SrcI: 0, DstI: 1, Access: fwd, Cost: []time.Duration{60 * time.Second}, Stops: []graphmodel.StopID{0}},
		{SrcI: 2, DstI: 3, Access: fwd, Cost: []time.Duration{60 * time.Second}, Stops: []graphmodel.StopID{1}},
	}
	intersections := []graphmodel.Intersection{
		{Roads: []graphmodel.RoadID{0}},
		{Roads: []graphmodel.RoadID{0}},
		{Roads: []graphmodel.RoadID{1}},
		{Roads: []graphmodel.RoadID{1}},
	}
	gtfs := &graphmodel.GTFSModel{
		Stops: []graphmodel.Stop{
			{Name: "S1", Road: 0, Valid: true, NextSteps: []graphmodel.NextStep{
				{DepartTime: 7*time.Hour + 5*time.Minute, Trip: 0, ArriveStop: 1, ArriveTime: 7*time.Hour + 10*time.Minute},
			}},
			{Name: "S2", Road: 1, Valid: true},
		},
	}
	g := &graphmodel.Graph{Roads: roads, Intersections: intersections, ProfileNames: []string{"foot"}}
	require.NoError(t, g.SetupGTFS(gtfs))
	return g
}

func TestTransitTransfer(t *testing.T) {
	g := disconnectedTransferGraph(t)

	start := graphmodel.NewPosition(0, &g.Roads[0], 0.5)
	end := graphmodel.NewPosition(1, &g.Roads[1], 0.5)

	result, err := Run(g, Request{
		Start:       start,
		End:         end,
		FootProfile: 0,
		StartTime:   7 * time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Route)
	require.Len(t, result.Route.Steps, 3)

	assert.Equal(t, graphmodel.StepRoad, result.Route.Steps[0].Kind)
	assert.Equal(t, graphmodel.RoadID(0), result.Route.Steps[0].Road)

	transit := result.Route.Steps[1]
	assert.Equal(t, graphmodel.StepTransit, transit.Kind)
	assert.Equal(t, graphmodel.TripID(0), transit.Trip)
	assert.Equal(t, graphmodel.StopID(0), transit.FromStop)
	assert.Equal(t, graphmodel.StopID(1), transit.ToStop)

	assert.Equal(t, graphmodel.StepRoad, result.Route.Steps[2].Kind)
	assert.Equal(t, graphmodel.RoadID(1), result.Route.Steps[2].Road)

	require.Len(t, result.Times, 3)
	assert.Equal(t, 7*time.Hour+10*time.Minute, result.Times[1])
}

func TestTransitSearchSameRoad(t *testing.T) {
	g := disconnectedTransferGraph(t)
	start := graphmodel.NewPosition(0, &g.Roads[0], 0.2)
	end := graphmodel.NewPosition(0, &g.Roads[0], 0.8)

	result, err := Run(g, Request{Start: start, End: end, FootProfile: 0, StartTime: 0})
	require.NoError(t, err)
	require.Len(t, result.Route.Steps, 1)
	assert.True(t, result.Route.Steps[0].Forwards)
}

func TestTransitSearchNoPathWithoutTransit(t *testing.T) {
	g := disconnectedTransferGraph(t)
	g.Gtfs = nil // no scheduled link, and the two roads share no intersection

	start := graphmodel.NewPosition(0, &g.Roads[0], 0.5)
	end := graphmodel.NewPosition(1, &g.Roads[1], 0.5)

	_, err := Run(g, Request{Start: start, End: end, FootProfile: 0, StartTime: 0})
	assert.Error(t, err)
}
