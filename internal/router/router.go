package router

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/geomutil"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/profile"
)

// PathCalculator is the CH's per-query scratch (spec §4.4/§9): it holds
// nothing but a pointer back to the immutable hierarchy today, but gives
// callers a single type to hold per goroutine if a future optimization
// needs genuinely reusable visited/tentative arrays, without Router
// exposing the hierarchy's internals directly.
type PathCalculator struct {
	h *ch
}

// Query runs a single point-to-point CH shortest path between two
// intersections already known to belong to this profile's graph.
func (pc *PathCalculator) Query(src, dst graphmodel.IntersectionID) (time.Duration, []RoadStep, error) {
	return pc.h.shortestPath(int32(src), int32(dst))
}

// Router is a single profile's routing surface: a contraction hierarchy
// for point-to-point queries (§4.4/§4.5) and an R-tree of that profile's
// traversable road geometries for nearest-road snapping.
type Router struct {
	Graph     *graphmodel.Graph
	ProfileID graphmodel.ProfileID

	h     *ch
	roads *RoadTree

	calcOnce sync.Once
	calc     *PathCalculator
}

// Build constructs a Router for the given profile (spec §4.4): one
// directed input edge per allowed traversal direction per road, a CH over
// it, and an R-tree over every road this profile can use at all.
func Build(g *graphmodel.Graph, profileID graphmodel.ProfileID) (*Router, error) {
	if int(profileID) < 0 || int(profileID) >= len(g.ProfileNames) {
		return nil, engineerr.New(engineerr.UnknownProfile, "router.Build: profile id out of range")
	}

	edges := inputEdges(g, profileID)
	h := buildCH(len(g.Intersections), edges)
	tree := newRoadTree(g, profileID)

	return &Router{Graph: g, ProfileID: profileID, h: h, roads: tree}, nil
}

// inputEdges derives the profile's directed input graph from the Graph's
// per-road access/cost vectors: up to two directed edges per road, self
// loops excluded from the CH input (spec §4.4 step 1, §3 invariants).
func inputEdges(g *graphmodel.Graph, profileID graphmodel.ProfileID) []chEdge {
	var edges []chEdge
	for i := range g.Roads {
		road := &g.Roads[i]
		if road.SrcI == road.DstI {
			continue
		}
		if int(profileID) >= len(road.Access) {
			continue
		}
		rid := graphmodel.RoadID(i)
		cost := road.Cost[profileID].Milliseconds()
		if road.AllowsForwards(profileID) {
			edges = append(edges, chEdge{from: int32(road.SrcI), to: int32(road.DstI), weight: cost, road: rid, forwards: true})
		}
		if road.AllowsBackwards(profileID) {
			edges = append(edges, chEdge{from: int32(road.DstI), to: int32(road.SrcI), weight: cost, road: rid, forwards: false})
		}
	}
	return edges
}

// UpdateCosts rebuilds this Router's CH using the Graph's current
// per-road costs for this profile, reusing the existing node ordering
// (spec §4.4 "Cost updates"). Access must not have changed; only the
// per-road Cost entries may differ from when Build ran.
func (r *Router) UpdateCosts() error {
	edges := inputEdges(r.Graph, r.ProfileID)
	order := r.h.order()
	if len(order) != len(r.Graph.Intersections) {
		return engineerr.New(engineerr.InputParse, "UpdateCosts: node count changed since Build")
	}
	r.h = contractInOrder(len(r.Graph.Intersections), edges, order)
	r.calcOnce = sync.Once{}
	r.calc = nil
	r.roads = newRoadTree(r.Graph, r.ProfileID)
	return nil
}

// Calculator lazily builds this Router's PathCalculator, safe to call on
// first query after deserialization (spec §4.4 step 4, §5).
func (r *Router) Calculator() *PathCalculator {
	r.calcOnce.Do(func() {
		r.calc = &PathCalculator{h: r.h}
	})
	return r.calc
}

// SnapToRoad finds the nearest profile-traversable road to pt (Mercator)
// and returns the Position on it, used by §4.4 step 3 and §4.10's
// "by endpoints" snap strategy.
func (r *Router) SnapToRoad(pt orb.Point) (graphmodel.Position, bool) {
	roadID, ok := r.roads.Nearest(r.Graph, pt)
	if !ok {
		return graphmodel.Position{}, false
	}
	road := &r.Graph.Roads[roadID]
	fraction, _ := geomutil.LocatePoint(road.Linestring, pt)
	return graphmodel.NewPosition(roadID, road, fraction), true
}

// RoadTree indexes a profile's traversable roads by bounding box for
// nearest-road lookups (spec §4.4 step 3).
type RoadTree struct {
	tree rtree.RTreeG[graphmodel.RoadID]
}

const nearestCandidateLimit = 12

func newRoadTree(g *graphmodel.Graph, profileID graphmodel.ProfileID) *RoadTree {
	rt := &RoadTree{}
	for i := range g.Roads {
		road := &g.Roads[i]
		if int(profileID) >= len(road.Access) || road.Access[profileID] == profile.None {
			continue
		}
		b := road.Linestring.Bound()
		rt.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, graphmodel.RoadID(i))
	}
	return rt
}

// Nearest returns the closest road (by true point-to-linestring distance
// among the R-tree's bbox-nearest candidates) to pt.
func (rt *RoadTree) Nearest(g *graphmodel.Graph, pt orb.Point) (graphmodel.RoadID, bool) {
	target := [2]float64{pt[0], pt[1]}
	var candidates []graphmodel.RoadID
	rt.tree.Nearby(
		rtree.BoxDist[graphmodel.RoadID](target, target, nil),
		func(min, max [2]float64, data graphmodel.RoadID, dist float64) bool {
			candidates = append(candidates, data)
			return len(candidates) < nearestCandidateLimit
		},
	)
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	bestDist := -1.0
	for _, rid := range candidates {
		_, d := geomutil.LocatePoint(g.Roads[rid].Linestring, pt)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = rid
		}
	}
	return best, true
}
