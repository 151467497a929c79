package gtfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/logging"
	"github.com/passbi/transitengine/internal/mercator"
	"github.com/passbi/transitengine/internal/profile"
	"github.com/passbi/transitengine/internal/router"
)

const (
	tripsTxt = `trip_id,service_id,route_id
T1,S_MON,R1
T2,S_TUE,R1
`
	calendarTxt = `service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday
S_MON,1,0,0,0,0,0,0
S_TUE,0,1,0,0,0,0,0
`
	routesTxt = `route_id,route_short_name,route_long_name,route_desc
R1,42,Forty Second Street,
`
	stopsTxt = `stop_id,stop_name,stop_lat,stop_lon
ST1,Stop One,0.1,0.1
ST2,Stop Two,0.2,0.2
ST3,Faraway,10,10
`
	stopTimesTxt = `trip_id,stop_id,arrival_time,departure_time,stop_sequence
T1,ST1,08:00:00,08:00:00,1
T1,ST2,08:10:00,08:10:00,2
T2,ST1,09:00:00,09:00:00,1
T2,ST2,09:10:00,09:10:00,2
T1,ST3,08:20:00,08:20:00,3
T1,ST1,25:10:00,25:10:00,4
`
)

func writeFeed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"trips.txt":      tripsTxt,
		"calendar.txt":   calendarTxt,
		"routes.txt":     routesTxt,
		"stops.txt":      stopsTxt,
		"stop_times.txt": stopTimesTxt,
	}
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	}
	return dir
}

// testGraphAndRouter builds a one-road graph whose frame covers the
// feed's in-bounds stops (lon/lat around 0.1-0.2) but not ST3 (10, 10).
func testGraphAndRouter(t *testing.T) (*graphmodel.Graph, *router.Router) {
	t.Helper()
	frame := mercator.NewFrame(orb.Bound{Min: orb.Point{-2, -2}, Max: orb.Point{2, 2}})
	g := &graphmodel.Graph{
		Frame:        frame,
		ProfileNames: []string{"foot"},
		Roads: []graphmodel.Road{
			{
				SrcI:       0,
				DstI:       1,
				Linestring: orb.LineString{{0, 0}, {100, 0}},
				Access:     []profile.Direction{profile.Both},
				Cost:       []time.Duration{10 * time.Second},
			},
		},
		Intersections: []graphmodel.Intersection{
			{Roads: []graphmodel.RoadID{0}},
			{Roads: []graphmodel.RoadID{0}},
		},
	}
	r, err := router.Build(g, 0)
	require.NoError(t, err)
	return g, r
}

func TestLoadKeepsOnlyMondayServiceAndDropsOutOfBoundsStop(t *testing.T) {
	dir := writeFeed(t)
	g, r := testGraphAndRouter(t)

	model, err := Load(dir, g, r, logging.Noop())
	require.NoError(t, err)

	require.Len(t, model.Stops, 2, "ST3 is outside the frame's bound and must be dropped")
	require.Len(t, model.Trips, 1, "only T1 runs on Monday")
	assert.Len(t, model.Trips[0].Stops, 2, "the out-of-bounds and unparseable-time rows must be skipped")
}

func TestLoadAssignsDenseIDsInDiscoveryOrder(t *testing.T) {
	dir := writeFeed(t)
	g, r := testGraphAndRouter(t)

	model, err := Load(dir, g, r, logging.Noop())
	require.NoError(t, err)

	assert.Equal(t, "Stop One", model.Stops[0].Name)
	assert.Equal(t, "Stop Two", model.Stops[1].Name)
	require.Len(t, model.Routes, 1)
	assert.Equal(t, "42", model.Routes[0].ShortName)
	assert.Equal(t, graphmodel.RouteID(0), model.Trips[0].Route)
}

func TestLoadPrecomputesNextStepsSortedByDepartTime(t *testing.T) {
	dir := writeFeed(t)
	g, r := testGraphAndRouter(t)

	model, err := Load(dir, g, r, logging.Noop())
	require.NoError(t, err)

	require.Len(t, model.Stops[0].NextSteps, 1)
	step := model.Stops[0].NextSteps[0]
	assert.Equal(t, 8*time.Hour, step.DepartTime)
	assert.Equal(t, graphmodel.StopID(1), step.ArriveStop)
	assert.Equal(t, 8*time.Hour+10*time.Minute, step.ArriveTime)
	assert.Equal(t, graphmodel.TripID(0), step.Trip)
}

func TestLoadSnapsStopsToNearestRoad(t *testing.T) {
	dir := writeFeed(t)
	g, r := testGraphAndRouter(t)

	model, err := Load(dir, g, r, logging.Noop())
	require.NoError(t, err)

	for _, stop := range model.Stops {
		assert.True(t, stop.Valid)
		assert.Equal(t, graphmodel.RoadID(0), stop.Road)
	}
}

func TestLoadMissingRequiredFileFails(t *testing.T) {
	dir := t.TempDir()
	g, r := testGraphAndRouter(t)

	_, err := Load(dir, g, r, logging.Noop())
	assert.Error(t, err)
}

func TestParseGTFSTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "midnight", in: "00:00:00", want: 0},
		{name: "ordinary", in: "08:10:00", want: 8*time.Hour + 10*time.Minute},
		{name: "past midnight service", in: "25:10:00", wantErr: true},
		{name: "malformed", in: "08:10", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGTFSTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
