// Package gtfsindex implements the external-index GTFS path (spec §4.3):
// instead of scraping GTFS CSVs directly, load a prebuilt spatial-indexed
// extract from Postgres/PostGIS, filtered to the study area's bounding
// box. Grounded on the teacher's internal/db (pgxpool construction and
// PostGIS health check) and internal/graph/memory.go's LoadFromDB (query,
// scan-into-struct, progress logging shape), pointed at a GTFS-shaped
// schema instead of the teacher's node/edge tables.
package gtfsindex

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/gtfs"
	"github.com/passbi/transitengine/internal/router"
)

// Config mirrors the teacher's db.Config shape, trimmed to what a pooled
// connection needs; internal/config.GtfsConfig.ExternalIndexDSN supplies
// the DSN form instead of discrete host/port/user fields.
type Config struct {
	DSN      string
	MinConns int32
	MaxConns int32
}

// Connect opens a pooled connection to the extract's database and
// verifies PostGIS is installed, the same check the teacher's
// internal/db.HealthCheck runs, since the bounding-box queries below
// depend on it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("gtfsindex: parsing dsn: %w", err)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("gtfsindex: connecting: %w", err)
	}

	var postgisVersion string
	if err := pool.QueryRow(connCtx, "SELECT PostGIS_Version()").Scan(&postgisVersion); err != nil {
		pool.Close()
		return nil, fmt.Errorf("gtfsindex: PostGIS not available: %w", err)
	}

	return pool, nil
}

// Load reads the extract's stop/route/trip/trip_stop tables, keeping only
// stops within graph's study-area bound (spec §4.3 "filtered by the
// study-area bounding box. Stops out of bounds produce a per-trip 'kept'
// mask"). Because a trip's stop and arrival-time are always carried
// together as one graphmodel.TripStop, dropping an out-of-bounds stop
// from a trip's sequence necessarily drops its time too, keeping the two
// vectors' lengths consistent with no separate bookkeeping required.
func Load(ctx context.Context, pool *pgxpool.Pool, graph *graphmodel.Graph, footRouter *router.Router, log *zap.SugaredLogger) (*graphmodel.GTFSModel, error) {
	stops, keptStopID, err := loadStops(ctx, pool, graph)
	if err != nil {
		return nil, fmt.Errorf("gtfsindex: %w", err)
	}

	routes, routeIndex, err := loadRoutes(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("gtfsindex: %w", err)
	}

	trips, err := loadTrips(ctx, pool, routeIndex)
	if err != nil {
		return nil, fmt.Errorf("gtfsindex: %w", err)
	}

	if err := loadTripStops(ctx, pool, trips, keptStopID); err != nil {
		return nil, fmt.Errorf("gtfsindex: %w", err)
	}

	model := &graphmodel.GTFSModel{Stops: stops, Trips: trips, Routes: routes}
	gtfs.PrecomputeNextSteps(model)
	gtfs.SnapStops(model, footRouter, log)

	if log != nil {
		log.Infow("gtfsindex: loaded external extract",
			"stops", len(stops), "routes", len(routes), "trips", len(trips))
	}
	return model, nil
}

// loadStops queries every stop within graph's WGS84 bound and returns the
// dense Stops slice plus a map from the extract's own integer stop id to
// the dense StopID assigned here (stops outside the bound are absent from
// the map, which is what produces the "kept" mask downstream).
func loadStops(ctx context.Context, pool *pgxpool.Pool, graph *graphmodel.Graph) ([]graphmodel.Stop, map[int64]graphmodel.StopID, error) {
	bound := graph.Frame.Bound
	rows, err := pool.Query(ctx, `
		SELECT id, orig_id, name, lat, lon
		FROM stop
		WHERE ST_Contains(
			ST_MakeEnvelope($1, $2, $3, $4, 4326),
			ST_SetSRID(ST_MakePoint(lon, lat), 4326)
		)
		ORDER BY id
	`, bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
	if err != nil {
		return nil, nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	var stops []graphmodel.Stop
	kept := make(map[int64]graphmodel.StopID)
	for rows.Next() {
		var extractID int64
		var origID, name string
		var lat, lon float64
		if err := rows.Scan(&extractID, &origID, &name, &lat, &lon); err != nil {
			return nil, nil, fmt.Errorf("scanning stop: %w", err)
		}
		id := graphmodel.StopID(len(stops))
		kept[extractID] = id
		stops = append(stops, graphmodel.Stop{
			Point:  graph.Frame.ToMercator(orb.Point{lon, lat}),
			Name:   name,
			OrigID: origID,
		})
	}
	return stops, kept, rows.Err()
}

func loadRoutes(ctx context.Context, pool *pgxpool.Pool) ([]graphmodel.TransitRoute, map[int64]graphmodel.RouteID, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, orig_id, short_name, long_name, description
		FROM route
		ORDER BY id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	var routes []graphmodel.TransitRoute
	index := make(map[int64]graphmodel.RouteID)
	for rows.Next() {
		var extractID int64
		var r graphmodel.TransitRoute
		if err := rows.Scan(&extractID, &r.OrigID, &r.ShortName, &r.LongName, &r.Desc); err != nil {
			return nil, nil, fmt.Errorf("scanning route: %w", err)
		}
		index[extractID] = graphmodel.RouteID(len(routes))
		routes = append(routes, r)
	}
	return routes, index, rows.Err()
}

func loadTrips(ctx context.Context, pool *pgxpool.Pool, routeIndex map[int64]graphmodel.RouteID) ([]graphmodel.Trip, error) {
	rows, err := pool.Query(ctx, `SELECT id, route_id FROM trip ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying trips: %w", err)
	}
	defer rows.Close()

	var trips []graphmodel.Trip
	for rows.Next() {
		var extractID, extractRouteID int64
		if err := rows.Scan(&extractID, &extractRouteID); err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, graphmodel.Trip{Route: routeIndex[extractRouteID]})
	}
	return trips, rows.Err()
}

// loadTripStops fills each trip's ordered stop sequence, skipping any row
// whose stop was filtered out of bounds in loadStops.
func loadTripStops(ctx context.Context, pool *pgxpool.Pool, trips []graphmodel.Trip, keptStopID map[int64]graphmodel.StopID) error {
	rows, err := pool.Query(ctx, `
		SELECT trip_id, stop_id, arrival_time_seconds
		FROM trip_stop
		ORDER BY trip_id, sequence
	`)
	if err != nil {
		return fmt.Errorf("querying trip_stop: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tripID, stopID int64
		var arrivalSeconds int64
		if err := rows.Scan(&tripID, &stopID, &arrivalSeconds); err != nil {
			return fmt.Errorf("scanning trip_stop: %w", err)
		}
		if int(tripID) < 0 || int(tripID) >= len(trips) {
			continue
		}
		dense, ok := keptStopID[stopID]
		if !ok {
			continue
		}
		trips[tripID].Stops = append(trips[tripID].Stops, graphmodel.TripStop{
			Stop:       dense,
			ArriveTime: time.Duration(arrivalSeconds) * time.Second,
		})
	}
	return rows.Err()
}
