package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/passbi/transitengine/internal/apiserver"
	"github.com/passbi/transitengine/internal/config"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/logging"
	"github.com/passbi/transitengine/internal/querycache"
	"github.com/passbi/transitengine/internal/router"
)

// runServe implements "engine serve" (spec §6): load a built Graph,
// rebuild a Router per registered profile, and start internal/apiserver's
// Fiber app, with the same signal-driven graceful shutdown as the
// teacher's cmd/api/main.go.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	graphPath := fs.String("graph", "", "path to a built graph blob (required)")
	configPath := fs.String("config", "", "path to a config file (YAML/JSON/TOML)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphPath == "" {
		return fmt.Errorf("--graph is required")
	}

	cfg, err := loadConfigIfSet(*configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Infow("serve: loading graph", "path", *graphPath)
	graph, err := graphmodel.LoadFile(*graphPath)
	if err != nil {
		return err
	}

	routers := make(map[string]*router.Router, len(graph.ProfileNames))
	for _, name := range graph.ProfileNames {
		id, _ := graph.ProfileID(name)
		r, err := router.Build(graph, id)
		if err != nil {
			return fmt.Errorf("building router for profile %q: %w", name, err)
		}
		routers[name] = r
	}
	log.Infow("serve: routers built", "profiles", graph.ProfileNames)

	var cache *querycache.Cache
	if cfg.Server.RedisAddr != "" {
		cache, err = querycache.New(cfg.Server.RedisAddr, time.Duration(cfg.Server.CacheTTLS)*time.Second)
		if err != nil {
			log.Warnw("serve: query cache unavailable, continuing uncached", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	srv := apiserver.NewServer(graph, routers, cache, cfg.Server, log)
	app := srv.App()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Infow("serve: shutting down")
		if err := app.Shutdown(); err != nil {
			log.Errorw("serve: shutdown error", "error", err)
		}
	}()

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	log.Infow("serve: listening", "addr", addr)
	return app.Listen(addr)
}
