// Package transitsearch answers a single time-dependent route query that
// interleaves walking with scheduled transit trips (spec §4.8). Unlike
// internal/router's contraction hierarchy, costs here vary with the time
// of day (a road's walking cost is static, but transit legs only exist at
// their scheduled departure), so the search runs a plain time-dependent
// A* directly over the graph rather than any precomputed index.
package transitsearch

import (
	"container/heap"
	"time"

	"github.com/paulmach/orb"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/geomutil"
	"github.com/passbi/transitengine/internal/graphmodel"
	"github.com/passbi/transitengine/internal/profile"
)

const transitMaxWait = 30 * time.Minute

// ExploredNode is one entry of a debug search trace: the intersection
// reached and the absolute time it was reached at (spec §4.8 debug_search).
type ExploredNode struct {
	Intersection graphmodel.IntersectionID
	Time         time.Duration
}

// Result is either a found Route, or — in debug mode — the trace of
// explored nodes instead (spec §4.8).
type Result struct {
	Route *graphmodel.Route
	// Times[i] is the absolute time Route.Steps[i] finished, parallel to
	// Route.Steps; used by internal/geojsonio to render each step-run's
	// time1/time2 properties. A prepended start partial-road step (spec
	// §4.5) carries req.StartTime and an appended end step repeats the
	// time of the step before it. Times is nil when Run returns without
	// searching (start and end on one road, or sharing an intersection).
	Times []time.Duration
	Trace []ExploredNode
}

// Request bundles the inputs to Run (spec §4.8).
type Request struct {
	Start, End   graphmodel.Position
	FootProfile  graphmodel.ProfileID
	StartTime    time.Duration
	UseHeuristic bool
	DebugSearch  bool
}

type backref struct {
	pred        graphmodel.IntersectionID
	step        graphmodel.PathStep
	time1, time2 time.Duration
}

type pqItem struct {
	intersection graphmodel.IntersectionID
	absTime      time.Duration // true absolute time, stored separately from priority
	priority     time.Duration
}

type searchPQ []pqItem

func (pq searchPQ) Len() int            { return len(pq) }
func (pq searchPQ) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq searchPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *searchPQ) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *searchPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// towardIntersection reports the Forwards orientation for a step that
// travels along road ending at intersection.
func towardIntersection(road *graphmodel.Road, intersection graphmodel.IntersectionID) bool {
	return road.DstI == intersection
}

// awayFromIntersection reports the Forwards orientation for a step that
// travels along road starting at intersection.
func awayFromIntersection(road *graphmodel.Road, intersection graphmodel.IntersectionID) bool {
	return road.SrcI == intersection
}

// Run performs the time-dependent A* of spec §4.8 between req.Start and
// req.End.
func Run(g *graphmodel.Graph, req Request) (*Result, error) {
	if req.Start == req.End {
		return nil, engineerr.New(engineerr.NoPath, "transitsearch: start == end")
	}

	if req.Start.Road == req.End.Road {
		forwards := req.Start.FractionAlong < req.End.FractionAlong
		route := &graphmodel.Route{
			Start: req.Start, End: req.End,
			Steps: []graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: req.Start.Road, Forwards: forwards}},
		}
		return &Result{Route: route}, nil
	}
	if req.Start.Intersection == req.End.Intersection {
		startRoad := &g.Roads[req.Start.Road]
		endRoad := &g.Roads[req.End.Road]
		route := &graphmodel.Route{
			Start: req.Start, End: req.End,
			Steps: []graphmodel.PathStep{
				{Kind: graphmodel.StepRoad, Road: req.Start.Road, Forwards: towardIntersection(startRoad, req.Start.Intersection)},
				{Kind: graphmodel.StepRoad, Road: req.End.Road, Forwards: awayFromIntersection(endRoad, req.End.Intersection)},
			},
		}
		return &Result{Route: route}, nil
	}

	endPoint := g.Intersections[req.End.Intersection].Point
	bestTime := map[graphmodel.IntersectionID]time.Duration{req.Start.Intersection: req.StartTime}
	backrefs := map[graphmodel.IntersectionID]backref{}
	closed := map[graphmodel.IntersectionID]bool{}
	var trace []ExploredNode

	pq := &searchPQ{}
	heap.Init(pq)
	heap.Push(pq, pqItem{
		intersection: req.Start.Intersection,
		absTime:      req.StartTime,
		priority:     req.StartTime + heuristicDuration(g, req.Start.Intersection, endPoint, req.UseHeuristic),
	})

	var found bool
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if closed[cur.intersection] {
			continue
		}
		if cur.absTime > bestTime[cur.intersection] {
			continue // stale entry
		}
		closed[cur.intersection] = true
		if req.DebugSearch {
			trace = append(trace, ExploredNode{Intersection: cur.intersection, Time: cur.absTime})
		}

		if cur.intersection == req.End.Intersection {
			found = true
			break
		}

		expand(g, req, cur.intersection, cur.absTime, bestTime, backrefs, closed, pq, endPoint)
	}

	if req.DebugSearch {
		return &Result{Trace: trace}, nil
	}
	if !found {
		return nil, engineerr.New(engineerr.NoPath, "transitsearch: no path found")
	}

	route, times, err := reconstruct(g, req, backrefs)
	if err != nil {
		return nil, err
	}
	return &Result{Route: route, Times: times}, nil
}

func heuristicDuration(g *graphmodel.Graph, from graphmodel.IntersectionID, endPoint orb.Point, useHeuristic bool) time.Duration {
	if !useHeuristic {
		return 0
	}
	d := geomutil.Distance(g.Intersections[from].Point, endPoint)
	seconds := d / profile.WalkMetersPerSecond
	return time.Duration(seconds * float64(time.Second))
}

// expand relaxes every walking and transit successor of cur (spec §4.8
// "Expansion").
func expand(
	g *graphmodel.Graph,
	req Request,
	cur graphmodel.IntersectionID,
	curTime time.Duration,
	bestTime map[graphmodel.IntersectionID]time.Duration,
	backrefs map[graphmodel.IntersectionID]backref,
	closed map[graphmodel.IntersectionID]bool,
	pq *searchPQ,
	endPoint orb.Point,
) {
	relax := func(to graphmodel.IntersectionID, arrival time.Duration, step graphmodel.PathStep) {
		if closed[to] {
			return
		}
		if old, ok := bestTime[to]; ok && old <= arrival {
			return
		}
		bestTime[to] = arrival
		backrefs[to] = backref{pred: cur, step: step, time1: curTime, time2: arrival}
		heap.Push(pq, pqItem{
			intersection: to,
			absTime:      arrival,
			priority:     arrival + heuristicDuration(g, to, endPoint, req.UseHeuristic),
		})
	}

	for _, rid := range g.Intersections[cur].Roads {
		road := &g.Roads[rid]
		forwards := road.SrcI == cur
		if forwards && !road.AllowsForwards(req.FootProfile) {
			continue
		}
		if !forwards && !road.AllowsBackwards(req.FootProfile) {
			continue
		}
		if int(req.FootProfile) >= len(road.Cost) {
			continue
		}

		far := road.OtherEnd(cur)
		arrival := curTime + road.Cost[req.FootProfile]
		relax(far, arrival, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: rid, Forwards: forwards})

		if g.Gtfs == nil {
			continue
		}
		for _, stopID := range road.Stops {
			stop := &g.Gtfs.Stops[stopID]
			for _, ns := range stop.TripsFrom(curTime, transitMaxWait) {
				arriveStop := &g.Gtfs.Stops[ns.ArriveStop]
				arriveRoad := &g.Roads[arriveStop.Road]
				step := graphmodel.PathStep{Kind: graphmodel.StepTransit, FromStop: stopID, Trip: ns.Trip, ToStop: ns.ArriveStop}
				relax(arriveRoad.SrcI, ns.ArriveTime, step)
				relax(arriveRoad.DstI, ns.ArriveTime, step)
			}
		}
	}
}

// reconstruct walks backrefs from req.End.Intersection to req.Start.Intersection,
// reverses, and prepends/appends the partial-road steps covering the
// fractional start/end Positions (mirroring internal/router.Route's
// boundary handling, spec §4.5/§4.8).
func reconstruct(g *graphmodel.Graph, req Request, backrefs map[graphmodel.IntersectionID]backref) (*graphmodel.Route, []time.Duration, error) {
	var steps []graphmodel.PathStep
	var times []time.Duration
	n := req.End.Intersection
	for n != req.Start.Intersection {
		br, ok := backrefs[n]
		if !ok {
			return nil, nil, engineerr.New(engineerr.NoPath, "transitsearch: broken backref chain")
		}
		steps = append(steps, br.step)
		times = append(times, br.time2)
		n = br.pred
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
		times[i], times[j] = times[j], times[i]
	}

	needsStartPrepend := len(steps) == 0 || steps[0].Kind != graphmodel.StepRoad || steps[0].Road != req.Start.Road
	if needsStartPrepend {
		startRoad := &g.Roads[req.Start.Road]
		steps = append([]graphmodel.PathStep{{Kind: graphmodel.StepRoad, Road: req.Start.Road, Forwards: towardIntersection(startRoad, req.Start.Intersection)}}, steps...)
		times = append([]time.Duration{req.StartTime}, times...)
	}
	last := steps[len(steps)-1]
	needsEndAppend := last.Kind != graphmodel.StepRoad || last.Road != req.End.Road
	if needsEndAppend {
		endRoad := &g.Roads[req.End.Road]
		steps = append(steps, graphmodel.PathStep{Kind: graphmodel.StepRoad, Road: req.End.Road, Forwards: awayFromIntersection(endRoad, req.End.Intersection)})
		times = append(times, times[len(times)-1])
	}

	return &graphmodel.Route{Start: req.Start, End: req.End, Steps: steps}, times, nil
}
