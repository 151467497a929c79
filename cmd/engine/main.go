// Command engine is the single binary that drives every operation this
// routing engine exposes: building a Graph from OSM/GTFS inputs, rewriting
// its costs, running one-shot route/isochrone/snap queries against a saved
// Graph, and serving the HTTP veneer. It replaces the teacher's three
// separate binaries (cmd/importer, cmd/rebuild-graph, cmd/api) with one
// tool and a subcommand per operation, in the vein of how the teacher
// itself used flag.NewFlagSet-free top-level flags per binary — here
// collapsed into subcommands since the engine's operations share so much
// setup (loading a Graph, building its routers) that three binaries would
// otherwise triplicate.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "update-costs":
		err = runUpdateCosts(os.Args[2:])
	case "route":
		err = runRoute(os.Args[2:])
	case "isochrone":
		err = runIsochrone(os.Args[2:])
	case "snap":
		err = runSnap(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "engine: unknown subcommand %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "engine %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `engine builds and queries a routing graph.

Usage:
  engine build         --osm=<path> [--gtfs-dir=<dir> | --gtfs-dsn=<dsn>] --out=<graph.bin>
  engine update-costs  --graph=<graph.bin> [--out=<graph.bin>]
  engine route         --graph=<graph.bin> --profile=<name> --p1=<lat,lon> --p2=<lat,lon> [--transit]
  engine isochrone     --graph=<graph.bin> --profile=<name> --origin=<lat,lon> --max-seconds=<n> [--style=roads|grid]
  engine snap          --graph=<graph.bin> --profile=<name> --input=<trace.geojson>
  engine serve         --graph=<graph.bin> [--config=<config.yaml>]`)
}
