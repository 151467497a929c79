package apiserver

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"

	"github.com/gofiber/fiber/v2"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/flood"
	"github.com/passbi/transitengine/internal/geojsonio"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/querycache"
	"github.com/passbi/transitengine/internal/snap"
	"github.com/passbi/transitengine/internal/transitsearch"
)

const defaultLockWait = 2 * time.Second

// cached runs compute and marshals its result to JSON, serving a cached
// response instead when one exists under key (spec §6's persisted-graph
// cache-aside shape, adapted from the teacher's computeRoute in
// internal/api/handlers.go). Concurrent identical requests coordinate via
// the cache's lock so only one of them actually calls compute.
func (s *Server) cached(c *fiber.Ctx, key string, compute func() (interface{}, error)) error {
	if s.cache == nil {
		result, err := compute()
		if err != nil {
			return err
		}
		return c.JSON(result)
	}

	ctx := c.Context()
	if data, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	}

	acquired, err := s.cache.AcquireLock(ctx, key, defaultLockWait)
	if err != nil {
		if s.log != nil {
			s.log.Warnw("querycache lock unavailable, computing uncached", "key", key, "error", err)
		}
		result, err := compute()
		if err != nil {
			return err
		}
		return c.JSON(result)
	}
	if !acquired {
		data, hit, err := s.cache.WaitForResult(ctx, key, defaultLockWait)
		if err == nil && hit {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(data)
		}
	}
	defer s.cache.ReleaseLock(ctx, key)

	result, err := compute()
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, data); err != nil && s.log != nil {
		s.log.Warnw("querycache set failed", "key", key, "error", err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// handleRoute answers GET /route (spec §6 RouteRequest / §4.5, §4.8).
func (s *Server) handleRoute(c *fiber.Ctx) error {
	var req RouteRequest
	if err := c.QueryParser(&req); err != nil {
		return engineerr.Wrap(engineerr.InputParse, "parsing route query", err)
	}
	if err := s.validate.Struct(req); err != nil {
		return engineerr.Wrap(engineerr.InputParse, "validating route request", err)
	}

	r, err := s.profileRouter(req.Profile)
	if err != nil {
		return err
	}
	startTime, err := parseStartTime(req.StartTime)
	if err != nil {
		return err
	}

	p1 := orb.Point{req.P1Lon, req.P1Lat}
	p2 := orb.Point{req.P2Lon, req.P2Lat}
	if !s.graph.Frame.Contains(p1) {
		return engineerr.New(engineerr.OutOfBounds, "p1 is outside the graph's study area")
	}
	if !s.graph.Frame.Contains(p2) {
		return engineerr.New(engineerr.OutOfBounds, "p2 is outside the graph's study area")
	}

	start, ok := r.SnapToRoad(s.graph.Frame.ToMercator(p1))
	if !ok {
		return engineerr.New(engineerr.SnapStuck, "no road near p1")
	}
	end, ok := r.SnapToRoad(s.graph.Frame.ToMercator(p2))
	if !ok {
		return engineerr.New(engineerr.SnapStuck, "no road near p2")
	}

	key := querycache.Key("route", req)
	return s.cached(c, key, func() (interface{}, error) {
		if req.Transit {
			profileID, ok := s.graph.ProfileID(req.Profile)
			if !ok {
				return nil, engineerr.New(engineerr.UnknownProfile, req.Profile)
			}
			result, err := transitsearch.Run(s.graph, transitsearch.Request{
				Start: start, End: end,
				FootProfile:  profileID,
				StartTime:    startTime,
				UseHeuristic: req.UseHeuristic,
				DebugSearch:  req.DebugSearch,
			})
			if err != nil {
				return nil, err
			}
			if result.Route == nil {
				return fiber.Map{"trace": result.Trace}, nil
			}
			return geojsonio.RouteFeatures(s.graph, result.Route, result.Times), nil
		}

		route, err := r.Route(start, end)
		if err != nil {
			return nil, err
		}
		return geojsonio.RouteFeatures(s.graph, route, nil), nil
	})
}

// handleIsochrone answers GET /isochrone (spec §6 IsochroneRequest / §4.7).
func (s *Server) handleIsochrone(c *fiber.Ctx) error {
	var req IsochroneRequest
	if err := c.QueryParser(&req); err != nil {
		return engineerr.Wrap(engineerr.InputParse, "parsing isochrone query", err)
	}
	if err := s.validate.Struct(req); err != nil {
		return engineerr.Wrap(engineerr.InputParse, "validating isochrone request", err)
	}

	r, err := s.profileRouter(req.Profile)
	if err != nil {
		return err
	}
	profileID, ok := s.graph.ProfileID(req.Profile)
	if !ok {
		return engineerr.New(engineerr.UnknownProfile, req.Profile)
	}
	startTime, err := parseStartTime(req.StartTime)
	if err != nil {
		return err
	}

	originPoint := orb.Point{req.Lon, req.Lat}
	if !s.graph.Frame.Contains(originPoint) {
		return engineerr.New(engineerr.OutOfBounds, "origin is outside the graph's study area")
	}

	origin, ok := r.SnapToRoad(s.graph.Frame.ToMercator(originPoint))
	if !ok {
		return engineerr.New(engineerr.SnapStuck, "no road near origin")
	}

	key := querycache.Key("isochrone", req)
	return s.cached(c, key, func() (interface{}, error) {
		result := flood.Run(s.graph, flood.Request{
			Starts:        []graphmodel.IntersectionID{origin.Intersection},
			Profile:       profileID,
			PublicTransit: req.PublicTransit,
			StartTime:     startTime,
			EndTime:       startTime + time.Duration(req.MaxSeconds)*time.Second,
		})
		return geojsonio.Isochrone(s.graph, result, geojsonio.IsochroneStyle(req.Style), s.log), nil
	})
}

// handleSnap answers POST /snap (spec §6 SnapRequest / §4.10). The greedy
// strategy is tried first (spec's default); a SnapStuck falls back to the
// endpoints-only strategy rather than failing outright.
func (s *Server) handleSnap(c *fiber.Ctx) error {
	var req SnapRequest
	if err := c.BodyParser(&req); err != nil {
		return engineerr.Wrap(engineerr.InputParse, "parsing snap body", err)
	}
	if req.Input == nil || len(req.Input.Features) == 0 {
		return engineerr.New(engineerr.InputParse, "snap input must contain at least one feature")
	}
	if req.Profile == "" {
		return engineerr.New(engineerr.InputParse, "profile is required")
	}

	r, err := s.profileRouter(req.Profile)
	if err != nil {
		return err
	}
	profileID, ok := s.graph.ProfileID(req.Profile)
	if !ok {
		return engineerr.New(engineerr.UnknownProfile, req.Profile)
	}

	wgs84, ok := req.Input.Features[0].Geometry.LineString, req.Input.Features[0].Geometry.IsLineString()
	if !ok {
		return engineerr.New(engineerr.InputParse, "snap input's first feature must be a LineString")
	}
	input := make(orb.LineString, len(wgs84))
	for i, coord := range wgs84 {
		p := orb.Point{coord[0], coord[1]}
		if !s.graph.Frame.Contains(p) {
			return engineerr.New(engineerr.OutOfBounds, "snap input point is outside the graph's study area")
		}
		input[i] = s.graph.Frame.ToMercator(p)
	}

	route, err := snap.Greedy(s.graph, r, input, profileID)
	if engineerr.Is(err, engineerr.SnapStuck) {
		route, err = snap.ByEndpoints(r, input)
	}
	if err != nil {
		return err
	}

	mercatorOut := routeLineString(s.graph, route)
	lengthRatio, sampledDistance := snap.Similarity(input, mercatorOut)

	return c.JSON(geojsonio.SnapFeatures(s.graph, route, lengthRatio, sampledDistance))
}

// routeLineString concatenates a Route's road steps into one continuous
// Mercator linestring, used only to score similarity against the input
// trace (spec §4.10 "Similarity score").
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
