// Package apiserver is the engine's optional HTTP veneer (spec §6): a thin
// Fiber adapter over one already-built graphmodel.Graph and its per-profile
// internal/router.Router instances, exposing the route/isochrone/snap query
// families as JSON/GeoJSON endpoints. It is explicitly non-core (spec §1,
// §2): the engine is a library first, and this package is one of several
// ways to drive it, grounded on the teacher's cmd/api/main.go (Fiber app
// construction, middleware stack, graceful shutdown) and
// internal/middleware/{analytics,auth}.go (handler-wrapping conventions),
// generalized from the teacher's partner/API-key/Postgres auth model to a
// single static-key check suited to a routing engine with no per-tenant
// billing concerns.
package apiserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/passbi/transitengine/internal/config"
	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/querycache"
	"github.com/passbi/transitengine/internal/router"
)

// Server wires one built Graph, its per-profile Routers, and an optional
// query cache into an HTTP surface.
type Server struct {
	graph    *graphmodel.Graph
	routers  map[string]*router.Router
	cache    *querycache.Cache
	cfg      config.ServerConfig
	log      *zap.SugaredLogger
	validate *validator.Validate
}

// NewServer builds a Server. cache may be nil, in which case every query
// is recomputed (spec §6 notes the cache is an optimization, not a
// correctness requirement).
func NewServer(graph *graphmodel.Graph, routers map[string]*router.Router, cache *querycache.Cache, cfg config.ServerConfig, log *zap.SugaredLogger) *Server {
	return &Server{
		graph:    graph,
		routers:  routers,
		cache:    cache,
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
	}
}

// App builds the Fiber app: middleware stack and route table (spec §6
// "External Interfaces"), in the shape of the teacher's cmd/api/main.go.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "transitengine",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: s.errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-Id",
	}))
	app.Use(s.requestID)
	if s.cfg.RequireKey {
		app.Use(s.apiKeyAuth)
	}

	app.Get("/health", s.handleHealth)
	app.Get("/route", s.handleRoute)
	app.Get("/isochrone", s.handleIsochrone)
	app.Post("/snap", s.handleSnap)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "endpoint not found"})
	})

	return app
}

// requestID assigns every request a UUID, reusing an inbound X-Request-Id
// if the caller already supplied one, and echoes it on the response so
// clients and logs can correlate.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("request_id", id)
	c.Set("X-Request-Id", id)
	return c.Next()
}

// apiKeyAuth rejects requests without one of the configured static keys.
// Unlike the teacher's AuthMiddleware, there is no per-partner database
// lookup: the engine has no billing or scope model, only an on/off gate.
func (s *Server) apiKeyAuth(c *fiber.Ctx) error {
	if c.Path() == "/health" {
		return c.Next()
	}
	authHeader := c.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "missing_api_key",
			"message": "Authorization: Bearer <key> is required",
		})
	}
	key := strings.TrimSpace(parts[1])
	for _, allowed := range s.cfg.APIKeys {
		if key == allowed {
			return c.Next()
		}
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "invalid_api_key",
		"message": "the provided API key is not recognized",
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"roads":    len(s.graph.Roads),
		"profiles": s.graph.ProfileNames,
		"transit":  s.graph.Gtfs != nil,
	})
}

// errorHandler maps engineerr.Kind to an HTTP status the way spec §7's
// closed error set suggests, falling back to 500 for anything else.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	status := fiber.StatusInternalServerError
	switch {
	case engineerr.Is(err, engineerr.InputParse), engineerr.Is(err, engineerr.TimeFormat):
		status = fiber.StatusBadRequest
	case engineerr.Is(err, engineerr.UnknownProfile):
		status = fiber.StatusBadRequest
	case engineerr.Is(err, engineerr.OutOfBounds):
		status = fiber.StatusUnprocessableEntity
	case engineerr.Is(err, engineerr.NoPath), engineerr.Is(err, engineerr.SnapStuck):
		status = fiber.StatusUnprocessableEntity
	}

	if s.log != nil {
		s.log.Errorw("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// profileRouter resolves a profile name to its Router, the way every
// handler needs to before it can snap or route anything.
func (s *Server) profileRouter(name string) (*router.Router, error) {
	r, ok := s.routers[name]
	if !ok {
		return nil, engineerr.New(engineerr.UnknownProfile, fmt.Sprintf("unknown profile %q", name))
	}
	return r, nil
}

// parseStartTime parses an "HH:MM" time of day into a Duration since
// midnight, defaulting to 0 (midnight) when s is empty.
func parseStartTime(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, engineerr.Wrap(engineerr.TimeFormat, fmt.Sprintf("invalid start_time %q", s), err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
