// Package gtfs implements the file-based GTFS ingest path (spec §4.3):
// read a directory of GTFS CSVs, assign dense numeric IDs to stops, trips,
// and routes, keep only stop_times active on Monday, and snap every stop
// onto the nearest walking-traversable road. The external spatial-indexed
// extract path lives in internal/gtfsindex.
package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/router"
)

// dayMonday is calendar.txt's "monday" column; only this day is modeled
// (spec §4.3 "the deliberate single-day model; other days are out of
// scope").
const dayMonday = "monday"

// Load reads trips.txt, calendar.txt, stops.txt, stop_times.txt, and
// routes.txt from dir and builds a GTFSModel: dense IDs, Monday-only
// stop_times, precomputed NextSteps, and stops snapped onto footRouter's
// road R-tree (spec §4.3). Rows with malformed fields are skipped and
// logged rather than failing the whole ingest; only a missing required
// file is fatal.
func Load(dir string, graph *graphmodel.Graph, footRouter *router.Router, log *zap.SugaredLogger) (*graphmodel.GTFSModel, error) {
	tripService, tripRoute, err := scrapeTrips(dir)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	serviceRunsMonday, err := scrapeCalendar(dir)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	routesByOrigID, err := scrapeRoutes(dir)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	stops, stopIndex, err := scrapeStops(dir, graph, log)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	trips, routeIDs, err := scrapeStopTimes(dir, stopIndex, tripService, tripRoute, serviceRunsMonday, log)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	routes := make([]graphmodel.TransitRoute, len(routeIDs.order))
	for origID, id := range routeIDs.ids {
		r, ok := routesByOrigID[origID]
		if !ok {
			r = graphmodel.TransitRoute{OrigID: origID}
		}
		routes[id] = r
	}

	model := &graphmodel.GTFSModel{Stops: stops, Trips: trips, Routes: routes}
	PrecomputeNextSteps(model)
	SnapStops(model, footRouter, log)
	return model, nil
}

// idTable assigns dense IDs to origin-system string IDs on first sight,
// preserving discovery order (ported from original_source's
// `IDMapping`/`insert_idempotent` in graph/src/gtfs/ids.rs).
type idTable struct {
	ids   map[string]int
	order []string
}

func newIDTable() *idTable {
	return &idTable{ids: make(map[string]int)}
}

func (t *idTable) idempotent(origID string) int {
	if id, ok := t.ids[origID]; ok {
		return id
	}
	id := len(t.order)
	t.ids[origID] = id
	t.order = append(t.order, origID)
	return id
}

func scrapeTrips(dir string) (tripService, tripRoute map[string]string, err error) {
	rows, err := readCSV(filepath.Join(dir, "trips.txt"))
	if err != nil {
		return nil, nil, err
	}
	tripService = make(map[string]string, len(rows))
	tripRoute = make(map[string]string, len(rows))
	for _, rec := range rows {
		tripID := field(rec, "trip_id")
		if tripID == "" {
			continue
		}
		tripService[tripID] = field(rec, "service_id")
		tripRoute[tripID] = field(rec, "route_id")
	}
	return tripService, tripRoute, nil
}

func scrapeCalendar(dir string) (map[string]bool, error) {
	rows, err := readCSV(filepath.Join(dir, "calendar.txt"))
	if err != nil {
		return nil, err
	}
	runsMonday := make(map[string]bool, len(rows))
	for _, rec := range rows {
		serviceID := field(rec, "service_id")
		if serviceID == "" {
			continue
		}
		runsMonday[serviceID] = field(rec, dayMonday) == "1"
	}
	return runsMonday, nil
}

func scrapeRoutes(dir string) (map[string]graphmodel.TransitRoute, error) {
	rows, err := readCSV(filepath.Join(dir, "routes.txt"))
	if err != nil {
		return nil, err
	}
	routes := make(map[string]graphmodel.TransitRoute, len(rows))
	for _, rec := range rows {
		routeID := field(rec, "route_id")
		if routeID == "" {
			continue
		}
		routes[routeID] = graphmodel.TransitRoute{
			OrigID:    routeID,
			ShortName: field(rec, "route_short_name"),
			LongName:  field(rec, "route_long_name"),
			Desc:      field(rec, "route_desc"),
		}
	}
	return routes, nil
}

// scrapeStops parses stops.txt, dropping any stop outside graph's Mercator
// frame (spec §4.3 "Stops outside the Mercator frame's WGS84 bounding box
// are dropped"). stopIndex maps the GTFS stop_id to the dense StopID
// assigned here.
func scrapeStops(dir string, graph *graphmodel.Graph, log *zap.SugaredLogger) ([]graphmodel.Stop, map[string]graphmodel.StopID, error) {
	rows, err := readCSV(filepath.Join(dir, "stops.txt"))
	if err != nil {
		return nil, nil, err
	}

	var stops []graphmodel.Stop
	index := make(map[string]graphmodel.StopID, len(rows))
	for _, rec := range rows {
		origID := field(rec, "stop_id")
		if origID == "" {
			continue
		}
		lat, errLat := strconv.ParseFloat(field(rec, "stop_lat"), 64)
		lon, errLon := strconv.ParseFloat(field(rec, "stop_lon"), 64)
		if errLat != nil || errLon != nil {
			if log != nil {
				log.Warnw("gtfs: skipping stop with unparseable coordinates", "stop_id", origID)
			}
			continue
		}

		point := orb.Point{lon, lat}
		if !graph.Frame.Bound.Contains(point) {
			continue
		}

		id := graphmodel.StopID(len(stops))
		index[origID] = id
		stops = append(stops, graphmodel.Stop{
			Point:  graph.Frame.ToMercator(point),
			Name:   field(rec, "stop_name"),
			OrigID: origID,
		})
	}
	return stops, index, nil
}

// scrapeStopTimes parses stop_times.txt, keeping only rows whose trip
// belongs to a Monday service and whose time parses as under 24 hours
// (spec §4.3: skip unparseable times rather than wrapping, per the time
// model's "do not silently wrap" guidance). Rows are appended to their
// trip's stop sequence in file order — stop_times.txt is expected to
// already be ordered by stop_sequence, which this ingest does not
// re-derive (same assumption the original ingest made).
func scrapeStopTimes(
	dir string,
	stopIndex map[string]graphmodel.StopID,
	tripService, tripRoute map[string]string,
	serviceRunsMonday map[string]bool,
	log *zap.SugaredLogger,
) ([]graphmodel.Trip, *idTable, error) {
	rows, err := readCSV(filepath.Join(dir, "stop_times.txt"))
	if err != nil {
		return nil, nil, err
	}

	routeIDs := newIDTable()
	tripIDs := newIDTable()
	var trips []graphmodel.Trip

	for _, rec := range rows {
		origTripID := field(rec, "trip_id")
		origStopID := field(rec, "stop_id")
		if origTripID == "" || origStopID == "" {
			continue
		}

		arrival, err := parseGTFSTime(field(rec, "arrival_time"))
		if err != nil {
			continue
		}

		stopID, ok := stopIndex[origStopID]
		if !ok {
			continue
		}

		serviceID, ok := tripService[origTripID]
		if !ok {
			if log != nil {
				log.Warnw("gtfs: trip has no known service", "trip_id", origTripID)
			}
			continue
		}
		if !serviceRunsMonday[serviceID] {
			continue
		}

		tripID := tripIDs.idempotent(origTripID)
		if tripID == len(trips) {
			routeID := routeIDs.idempotent(tripRoute[origTripID])
			trips = append(trips, graphmodel.Trip{Route: graphmodel.RouteID(routeID)})
		}
		trips[tripID].Stops = append(trips[tripID].Stops, graphmodel.TripStop{Stop: stopID, ArriveTime: arrival})
	}

	return trips, routeIDs, nil
}

// parseGTFSTime parses an HH:MM:SS GTFS time of day, which may exceed
// 24:00:00 for service past midnight. Hours of 24 or more are treated as
// unparseable (spec §4.3), mirroring a plain HH:MM:SS wall-clock parser's
// natural rejection of them rather than widening the domain to accept them.
func parseGTFSTime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("gtfs: invalid time %q", s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	sec, errS := strconv.Atoi(parts[2])
	if errH != nil || errM != nil || errS != nil {
		return 0, fmt.Errorf("gtfs: invalid time %q", s)
	}
	if h >= 24 || m >= 60 || sec >= 60 || h < 0 || m < 0 || sec < 0 {
		return 0, fmt.Errorf("gtfs: time %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// PrecomputeNextSteps builds each stop's NextSteps from every trip's
// adjacent stop pairs and sorts them by DepartTime (spec §4.3 "Precompute
// next_steps"), grounded on original_source's
// `GtfsModel::precompute_next_steps`. Shared by the file-based path above
// and internal/gtfsindex's external extract path, since both produce the
// same Trip/Stop shape and need the same precompute.
func PrecomputeNextSteps(model *graphmodel.GTFSModel) {
	for idx := range model.Trips {
		tripID := graphmodel.TripID(idx)
		trip := &model.Trips[idx]
		for i := 0; i+1 < len(trip.Stops); i++ {
			from, to := trip.Stops[i], trip.Stops[i+1]
			model.Stops[from.Stop].NextSteps = append(model.Stops[from.Stop].NextSteps, graphmodel.NextStep{
				DepartTime: from.ArriveTime,
				Trip:       tripID,
				ArriveStop: to.Stop,
				ArriveTime: to.ArriveTime,
			})
		}
	}
	for i := range model.Stops {
		steps := model.Stops[i].NextSteps
		sort.Slice(steps, func(a, b int) bool { return steps[a].DepartTime < steps[b].DepartTime })
	}
}

// SnapStops attaches each stop to the nearest road on footRouter's R-tree
// (spec §4.3 "Stop snapping"). A stop with no nearby road is logged and
// left Valid == false rather than dropped, keeping dense StopIDs stable.
// Shared by the file-based path above and internal/gtfsindex.
func SnapStops(model *graphmodel.GTFSModel, footRouter *router.Router, log *zap.SugaredLogger) {
	for i := range model.Stops {
		stop := &model.Stops[i]
		pos, ok := footRouter.SnapToRoad(stop.Point)
		if !ok {
			if log != nil {
				log.Warnw("gtfs: stop could not be snapped to any road", "stop_id", stop.OrigID)
			}
			continue
		}
		stop.Road = pos.Road
		stop.Valid = true
	}
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		row := make(map[string]string, len(colIndex))
		for col, idx := range colIndex {
			if idx < len(record) {
				row[col] = strings.TrimSpace(record[idx])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func field(row map[string]string, name string) string {
	return row[name]
}
