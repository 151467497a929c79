package main

import (
	"flag"
	"fmt"

	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/logging"
	"github.com/passbi/transitengine/internal/profile"
)

// runUpdateCosts re-evaluates every road's per-profile access/cost against
// the engine's current profile logic and rewrites the graph blob (spec
// §4.4 "Cost updates"). Per-profile Router/CH state isn't part of the
// persisted blob (internal/graphmodel/serialize.go), so there is nothing
// to reuse an existing node ordering against here; callers rebuild routers
// with internal/router.Build after loading the rewritten blob, the same
// as after a fresh "build".
func runUpdateCosts(args []string) error {
	fs := flag.NewFlagSet("update-costs", flag.ExitOnError)
	graphPath := fs.String("graph", "", "path to an existing graph blob (required)")
	out := fs.String("out", "", "path to write the updated graph blob to (defaults to --graph)")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphPath == "" {
		return fmt.Errorf("--graph is required")
	}
	if *out == "" {
		*out = *graphPath
	}

	log, err := logging.New(*logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	graph, err := graphmodel.LoadFile(*graphPath)
	if err != nil {
		return err
	}

	profs := profile.All()
	for i := range graph.Roads {
		road := &graph.Roads[i]
		for pi, p := range profs {
			d, c := p.Evaluate(road.OSMTags, road.Linestring)
			road.Access[pi] = d
			road.Cost[pi] = c
		}
	}
	log.Infow("update-costs: re-evaluated roads", "roads", len(graph.Roads), "profiles", len(profs))

	if err := graph.SaveFile(*out); err != nil {
		return err
	}
	log.Infow("update-costs: done", "path", *out)
	return nil
}
