package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/flood"
	"github.com/passbi/transitengine/internal/geojsonio"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/logging"
	"github.com/passbi/transitengine/internal/router"
	"github.com/passbi/transitengine/internal/snap"
	"github.com/passbi/transitengine/internal/transitsearch"
)

// parseLatLon parses a "lat,lon" command-line flag value.
func parseLatLon(s string) (lat, lon float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"lat,lon\", got %q", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func parseStartTimeFlag(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, engineerr.Wrap(engineerr.TimeFormat, fmt.Sprintf("invalid start time %q", s), err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// loadGraphAndRouter is the setup every one-shot query subcommand shares:
// load the persisted Graph, resolve the requested profile, and rebuild
// just that profile's Router (spec §6's "callers rebuild routers after
// load" model from internal/graphmodel/serialize.go).
func loadGraphAndRouter(graphPath, profileName string) (*graphmodel.Graph, *router.Router, graphmodel.ProfileID, error) {
	graph, err := graphmodel.LoadFile(graphPath)
	if err != nil {
		return nil, nil, 0, err
	}
	profileID, ok := graph.ProfileID(profileName)
	if !ok {
		return nil, nil, 0, engineerr.New(engineerr.UnknownProfile, profileName)
	}
	r, err := router.Build(graph, profileID)
	if err != nil {
		return nil, nil, 0, err
	}
	return graph, r, profileID, nil
}

func printGeoJSON(fc *geojson.FeatureCollection) error {
	return json.NewEncoder(os.Stdout).Encode(fc)
}

// runRoute implements "engine route" (spec §6 RouteRequest).
func runRoute(args []string) error {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	graphPath := fs.String("graph", "", "path to a built graph blob (required)")
	profileName := fs.String("profile", "foot", "profile name")
	p1 := fs.String("p1", "", "\"lat,lon\" start point (required)")
	p2 := fs.String("p2", "", "\"lat,lon\" end point (required)")
	transit := fs.Bool("transit", false, "interleave scheduled transit trips")
	startTimeFlag := fs.String("start-time", "", "HH:MM time of day, used only with --transit")
	useHeuristic := fs.Bool("heuristic", true, "use the A* distance heuristic (--transit only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphPath == "" || *p1 == "" || *p2 == "" {
		return fmt.Errorf("--graph, --p1, and --p2 are required")
	}

	graph, r, profileID, err := loadGraphAndRouter(*graphPath, *profileName)
	if err != nil {
		return err
	}

	p1Lat, p1Lon, err := parseLatLon(*p1)
	if err != nil {
		return err
	}
	p2Lat, p2Lon, err := parseLatLon(*p2)
	if err != nil {
		return err
	}
	startTime, err := parseStartTimeFlag(*startTimeFlag)
	if err != nil {
		return err
	}

	p1Point := orb.Point{p1Lon, p1Lat}
	p2Point := orb.Point{p2Lon, p2Lat}
	if !graph.Frame.Contains(p1Point) {
		return engineerr.New(engineerr.OutOfBounds, "p1 is outside the graph's study area")
	}
	if !graph.Frame.Contains(p2Point) {
		return engineerr.New(engineerr.OutOfBounds, "p2 is outside the graph's study area")
	}

	start, ok := r.SnapToRoad(graph.Frame.ToMercator(p1Point))
	if !ok {
		return engineerr.New(engineerr.SnapStuck, "no road near p1")
	}
	end, ok := r.SnapToRoad(graph.Frame.ToMercator(p2Point))
	if !ok {
		return engineerr.New(engineerr.SnapStuck, "no road near p2")
	}

	if *transit {
		result, err := transitsearch.Run(graph, transitsearch.Request{
			Start: start, End: end,
			FootProfile:  profileID,
			StartTime:    startTime,
			UseHeuristic: *useHeuristic,
		})
		if err != nil {
			return err
		}
		return printGeoJSON(geojsonio.RouteFeatures(graph, result.Route, result.Times))
	}

	route, err := r.Route(start, end)
	if err != nil {
		return err
	}
	return printGeoJSON(geojsonio.RouteFeatures(graph, route, nil))
}

// runIsochrone implements "engine isochrone" (spec §6 IsochroneRequest).
func runIsochrone(args []string) error {
	fs := flag.NewFlagSet("isochrone", flag.ExitOnError)
	graphPath := fs.String("graph", "", "path to a built graph blob (required)")
	profileName := fs.String("profile", "foot", "profile name")
	origin := fs.String("origin", "", "\"lat,lon\" origin point (required)")
	maxSeconds := fs.Int("max-seconds", 900, "time horizon in seconds")
	style := fs.String("style", "roads", "rendering style: roads or grid")
	publicTransit := fs.Bool("transit", false, "interleave scheduled transit trips")
	startTimeFlag := fs.String("start-time", "", "HH:MM time of day")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphPath == "" || *origin == "" {
		return fmt.Errorf("--graph and --origin are required")
	}

	graph, r, profileID, err := loadGraphAndRouter(*graphPath, *profileName)
	if err != nil {
		return err
	}
	lat, lon, err := parseLatLon(*origin)
	if err != nil {
		return err
	}
	startTime, err := parseStartTimeFlag(*startTimeFlag)
	if err != nil {
		return err
	}

	originPoint := orb.Point{lon, lat}
	if !graph.Frame.Contains(originPoint) {
		return engineerr.New(engineerr.OutOfBounds, "origin is outside the graph's study area")
	}

	pos, ok := r.SnapToRoad(graph.Frame.ToMercator(originPoint))
	if !ok {
		return engineerr.New(engineerr.SnapStuck, "no road near origin")
	}

	result := flood.Run(graph, flood.Request{
		Starts:        []graphmodel.IntersectionID{pos.Intersection},
		Profile:       profileID,
		PublicTransit: *publicTransit,
		StartTime:     startTime,
		EndTime:       startTime + time.Duration(*maxSeconds)*time.Second,
	})
	return printGeoJSON(geojsonio.Isochrone(graph, result, geojsonio.IsochroneStyle(*style), logging.Noop()))
}

// runSnap implements "engine snap" (spec §6 SnapRequest).
func runSnap(args []string) error {
	fs := flag.NewFlagSet("snap", flag.ExitOnError)
	graphPath := fs.String("graph", "", "path to a built graph blob (required)")
	profileName := fs.String("profile", "foot", "profile name")
	inputPath := fs.String("input", "", "path to a GeoJSON file containing one LineString feature (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphPath == "" || *inputPath == "" {
		return fmt.Errorf("--graph and --input are required")
	}

	graph, r, profileID, err := loadGraphAndRouter(*graphPath, *profileName)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(*inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *inputPath, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return engineerr.Wrap(engineerr.InputParse, "parsing snap input", err)
	}
	if len(fc.Features) == 0 || !fc.Features[0].Geometry.IsLineString() {
		return engineerr.New(engineerr.InputParse, "snap input must contain at least one LineString feature")
	}

	wgs84 := fc.Features[0].Geometry.LineString
	input := make(orb.LineString, len(wgs84))
	for i, coord := range wgs84 {
		p := orb.Point{coord[0], coord[1]}
		if !graph.Frame.Contains(p) {
			return engineerr.New(engineerr.OutOfBounds, "snap input point is outside the graph's study area")
		}
		input[i] = graph.Frame.ToMercator(p)
	}

	route, err := snap.Greedy(graph, r, input, profileID)
	if engineerr.Is(err, engineerr.SnapStuck) {
		route, err = snap.ByEndpoints(r, input)
	}
	if err != nil {
		return err
	}

	mercatorOut := routeLineString(graph, route)
	lengthRatio, sampledDistance := snap.Similarity(input, mercatorOut)
	return printGeoJSON(geojsonio.SnapFeatures(graph, route, lengthRatio, sampledDistance))
}

// routeLineString concatenates a Route's road steps into one continuous
// Mercator linestring, the same helper internal/apiserver uses to score
// a snap result's similarity against its input trace.
func routeLineString(g *graphmodel.Graph, route *graphmodel.Route) orb.LineString {
	var out orb.LineString
	for _, step := range route.Steps {
		if step.Kind != graphmodel.StepRoad {
			continue
		}
		ls := g.Roads[step.Road].Linestring
		if !step.Forwards {
			reversed := make(orb.LineString, len(ls))
			for i, p := range ls {
				reversed[len(ls)-1-i] = p
			}
			ls = reversed
		}
		if len(out) > 0 && len(ls) > 0 {
			ls = ls[1:]
		}
		out = append(out, ls...)
	}
	return out
}
