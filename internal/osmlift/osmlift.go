// Package osmlift parses OSM bytes into the raw material of a routable
// graph: unique Roads split at shared nodes, bearing-sorted Intersections,
// a Mercator frame derived from the content's bounds, and a boundary
// polygon (spec §4.1). It does not know about profiles beyond the
// way-acceptance predicate; per-road access/cost is internal/profile's job.
package osmlift

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/convexhull"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/mercator"
	"github.com/passbi/transitengine/internal/profile"
)

// Format is the OSM byte encoding.
type Format int

const (
	FormatPBF Format = iota
	FormatXML
)

// DetectFormat sniffs PBF vs XML from the leading bytes: OSM XML always
// starts (after whitespace) with '<'; PBF is a length-prefixed protobuf
// blob stream and never does.
func DetectFormat(data []byte) Format {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '<':
			return FormatXML
		default:
			return FormatPBF
		}
	}
	return FormatPBF
}

// RawRoad is a graph-ready edge before dense IDs are assigned.
type RawRoad struct {
	SrcI, DstI int
	Linestring orb.LineString // Mercator
	OSMTags    map[string]string
}

// RawIntersection is a graph-ready node before dense IDs are assigned.
// Roads is sorted clockwise by outbound bearing starting from north.
type RawIntersection struct {
	Point orb.Point // Mercator
	Roads []int     // indices into Result.Roads
}

// Result is the OSM Lift's output: everything a Graph needs to finish
// construction (profile evaluation still has to run over Roads).
type Result struct {
	Roads         []RawRoad
	Intersections []RawIntersection
	Frame         mercator.Frame
	Boundary      orb.Polygon
	Warnings      []string
}

// Hooks lets a caller harvest OSM content that doesn't become road graph:
// amenity nodes, non-routable ways, relations. Any hook may be nil.
type Hooks struct {
	OnNode     func(id osm.NodeID, point orb.Point, tags map[string]string)
	OnWay      func(id osm.WayID, tags map[string]string, accepted bool)
	OnRelation func(r *osm.Relation)
}

type rawWay struct {
	id      osm.WayID
	nodeIDs []osm.NodeID
	tags    map[string]string
}

// pendingRoad is a way segment after splitting, still keyed by raw OSM
// node IDs and WGS84 coordinates pending dense-ID assignment and
// projection into the Mercator frame.
type pendingRoad struct {
	srcNode, dstNode osm.NodeID
	coords           []orb.Point // WGS84
	tags             map[string]string
}

// Parse lifts OSM bytes into a Result. format is auto-detected via
// DetectFormat if unset is not possible to express in Go zero values, so
// callers pass an explicit Format (use DetectFormat(data) to choose one).
func Parse(ctx context.Context, data []byte, format Format, hooks Hooks, logger *zap.SugaredLogger) (*Result, error) {
	if logger == nil {
		logger = zapNoop()
	}

	ways, err := scanWays(ctx, data, format, hooks, logger)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.InputParse, "scanning OSM ways", err)
	}

	referenced := make(map[osm.NodeID]struct{})
	nodeUseCount := make(map[osm.NodeID]int)
	isEndpoint := make(map[osm.NodeID]bool)
	for _, w := range ways {
		for i, id := range w.nodeIDs {
			referenced[id] = struct{}{}
			nodeUseCount[id]++
			if i == 0 || i == len(w.nodeIDs)-1 {
				isEndpoint[id] = true
			}
		}
	}

	coords, err := scanNodes(ctx, data, format, referenced, hooks)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.InputParse, "scanning OSM nodes", err)
	}

	isCandidate := func(id osm.NodeID) bool {
		return nodeUseCount[id] >= 2 || isEndpoint[id]
	}

	var warnings []string
	var pending []pendingRoad

	for _, w := range ways {
		resolved := make([]osm.NodeID, 0, len(w.nodeIDs))
		for _, id := range w.nodeIDs {
			if _, ok := coords[id]; ok {
				resolved = append(resolved, id)
			} else {
				warnings = append(warnings, fmt.Sprintf("way %d references unknown node %d", w.id, id))
			}
		}
		if len(resolved) < 2 {
			warnings = append(warnings, fmt.Sprintf("way %d dropped: fewer than two resolved nodes", w.id))
			continue
		}

		segStart := 0
		for i := 1; i < len(resolved); i++ {
			last := i == len(resolved)-1
			if isCandidate(resolved[i]) || last {
				seg := resolved[segStart : i+1]
				if len(seg) >= 2 {
					segCoords := make([]orb.Point, len(seg))
					for j, nid := range seg {
						segCoords[j] = coords[nid]
					}
					pending = append(pending, pendingRoad{
						srcNode: seg[0],
						dstNode: seg[len(seg)-1],
						coords:  segCoords,
						tags:    w.tags,
					})
				}
				segStart = i
			}
		}
	}

	// Dense intersection IDs: only nodes actually used as a road endpoint
	// survive; isolated candidate nodes are dropped per §4.1.
	indexOf := make(map[osm.NodeID]int)
	nodeIndex := func(id osm.NodeID) int {
		if idx, ok := indexOf[id]; ok {
			return idx
		}
		idx := len(indexOf)
		indexOf[id] = idx
		return idx
	}

	frame := mercator.NewFrame(boundFromPending(pending))

	roads := make([]RawRoad, 0, len(pending))
	intersections := make([]RawIntersection, 0)
	for _, pr := range pending {
		srcIdx := nodeIndex(pr.srcNode)
		dstIdx := nodeIndex(pr.dstNode)

		wgs := orb.LineString(pr.coords)
		merc := frame.LineStringToMercator(wgs)

		roadIdx := len(roads)
		roads = append(roads, RawRoad{
			SrcI:       srcIdx,
			DstI:       dstIdx,
			Linestring: merc,
			OSMTags:    pr.tags,
		})

		for len(intersections) <= srcIdx {
			intersections = append(intersections, RawIntersection{})
		}
		for len(intersections) <= dstIdx {
			intersections = append(intersections, RawIntersection{})
		}
		intersections[srcIdx].Roads = append(intersections[srcIdx].Roads, roadIdx)
		if dstIdx != srcIdx {
			intersections[dstIdx].Roads = append(intersections[dstIdx].Roads, roadIdx)
		}
	}

	for id, idx := range indexOf {
		intersections[idx].Point = frame.ToMercator(coords[id])
	}

	for i := range intersections {
		sortIncidentByBearing(intersections[i], roads)
	}

	boundary := buildBoundary(intersections)

	return &Result{
		Roads:         roads,
		Intersections: intersections,
		Frame:         frame,
		Boundary:      boundary,
		Warnings:      warnings,
	}, nil
}

func boundFromPending(pending []pendingRoad) orb.Bound {
	i := 0
	j := 0
	return mercator.BoundFromPoints(func() (orb.Point, bool) {
		for i < len(pending) {
			if j < len(pending[i].coords) {
				p := pending[i].coords[j]
				j++
				return p, true
			}
			i++
			j = 0
		}
		return orb.Point{}, false
	})
}

// sortIncidentByBearing sorts an intersection's incident roads clockwise
// by outbound bearing from north, breaking ties on a rounded fixed-point
// of the bearing then on road index for determinism.
func sortIncidentByBearing(in RawIntersection, roads []RawRoad) {
	type entry struct {
		roadIdx int
		bearing float64
	}
	entries := make([]entry, len(in.Roads))
	for i, ri := range in.Roads {
		r := roads[ri]
		var to orb.Point
		if samePoint(r.Linestring[0], in.Point) {
			to = r.Linestring[1]
		} else {
			to = r.Linestring[len(r.Linestring)-2]
		}
		entries[i] = entry{roadIdx: ri, bearing: roundBearing(bearingDegrees(in.Point, to))}
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].bearing != entries[b].bearing {
			return entries[a].bearing < entries[b].bearing
		}
		return entries[a].roadIdx < entries[b].roadIdx
	})
	for i, e := range entries {
		in.Roads[i] = e.roadIdx
	}
}

func samePoint(a, b orb.Point) bool {
	const eps = 1e-9
	return math.Abs(a[0]-b[0]) < eps && math.Abs(a[1]-b[1]) < eps
}

func bearingDegrees(from, to orb.Point) float64 {
	dx := to[0] - from[0]
	dy := to[1] - from[1]
	deg := math.Atan2(dx, dy) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func roundBearing(deg float64) float64 {
	return math.Round(deg*1e6) / 1e6
}

// buildBoundary computes a convex hull polygon over every intersection's
// point, tolerating the degenerate (<3 distinct points) case.
func buildBoundary(intersections []RawIntersection) orb.Polygon {
	if len(intersections) == 0 {
		return orb.Polygon{}
	}
	pts := make(orb.MultiPoint, len(intersections))
	for i, in := range intersections {
		pts[i] = in.Point
	}

	hull := convexhull.New(pts)
	switch g := hull.(type) {
	case orb.Polygon:
		return g
	case orb.Ring:
		return orb.Polygon{g}
	case orb.LineString:
		ring := make(orb.Ring, len(g))
		copy(ring, g)
		if len(ring) > 0 && !samePoint(ring[0], ring[len(ring)-1]) {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}
	case orb.Point:
		return orb.Polygon{orb.Ring{g, g, g}}
	default:
		return orb.Polygon{}
	}
}

func tagsToMap(tags osm.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

func acceptWay(tags map[string]string) bool {
	highway := tags["highway"]
	if highway == "" || highway == "proposed" {
		return false
	}
	if tags["area"] == "yes" {
		return false
	}
	return profile.Accepted(tags, orb.LineString{{0, 0}, {1, 0}})
}

func scanWays(ctx context.Context, data []byte, format Format, hooks Hooks, logger *zap.SugaredLogger) ([]rawWay, error) {
	var ways []rawWay

	handle := func(o osm.Object) {
		switch v := o.(type) {
		case *osm.Way:
			tags := tagsToMap(v.Tags)
			accepted := len(v.Nodes) >= 2 && acceptWay(tags)
			if hooks.OnWay != nil {
				hooks.OnWay(v.ID, tags, accepted)
			}
			if !accepted {
				return
			}
			ids := make([]osm.NodeID, len(v.Nodes))
			for i, n := range v.Nodes {
				ids[i] = n.ID
			}
			ways = append(ways, rawWay{id: v.ID, nodeIDs: ids, tags: tags})
		case *osm.Relation:
			if hooks.OnRelation != nil {
				hooks.OnRelation(v)
			}
		}
	}

	var scanErr error
	switch format {
	case FormatPBF:
		scanner := osmpbf.New(ctx, bytes.NewReader(data), 1)
		scanner.SkipNodes = true
		scanner.SkipRelations = hooks.OnRelation == nil
		for scanner.Scan() {
			handle(scanner.Object())
		}
		scanErr = scanner.Err()
		scanner.Close()
	case FormatXML:
		scanner := osmxml.New(ctx, bytes.NewReader(data))
		for scanner.Scan() {
			if _, isNode := scanner.Object().(*osm.Node); isNode {
				continue
			}
			handle(scanner.Object())
		}
		scanErr = scanner.Err()
		scanner.Close()
	default:
		return nil, fmt.Errorf("unknown OSM format %d", format)
	}
	if scanErr != nil {
		return nil, scanErr
	}

	logger.Infow("osmlift: way scan complete", "accepted_ways", len(ways))
	return ways, nil
}

func scanNodes(ctx context.Context, data []byte, format Format, referenced map[osm.NodeID]struct{}, hooks Hooks) (map[osm.NodeID]orb.Point, error) {
	coords := make(map[osm.NodeID]orb.Point, len(referenced))

	handle := func(n *osm.Node) {
		p := orb.Point{n.Lon, n.Lat}
		if _, needed := referenced[n.ID]; needed {
			coords[n.ID] = p
		}
		if hooks.OnNode != nil {
			hooks.OnNode(n.ID, p, tagsToMap(n.Tags))
		}
	}

	var scanErr error
	switch format {
	case FormatPBF:
		scanner := osmpbf.New(ctx, bytes.NewReader(data), 1)
		scanner.SkipWays = true
		scanner.SkipRelations = true
		for scanner.Scan() {
			if n, ok := scanner.Object().(*osm.Node); ok {
				handle(n)
			}
		}
		scanErr = scanner.Err()
		scanner.Close()
	case FormatXML:
		scanner := osmxml.New(ctx, bytes.NewReader(data))
		for scanner.Scan() {
			if n, ok := scanner.Object().(*osm.Node); ok {
				handle(n)
			}
		}
		scanErr = scanner.Err()
		scanner.Close()
	default:
		return nil, fmt.Errorf("unknown OSM format %d", format)
	}
	return coords, scanErr
}

func zapNoop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
