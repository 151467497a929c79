// Package flood answers multi-source, time-bounded reachability queries
// (isochrones, spec §4.7): a Dijkstra keyed by absolute clock time, seeded
// from several starting intersections at once, optionally interleaved
// with scheduled transit trips. It shares the heap-based search shape
// used throughout this engine (internal/router's CH query,
// internal/transitsearch's A*), all tracing back to the teacher's
// internal/routing/astar.go priority queue.
package flood

import (
	"container/heap"
	"time"

	"github.com/passbi/transitengine/internal/graphmodel"
)

// Request bundles the inputs to Run (spec §4.7).
type Request struct {
	Starts        []graphmodel.IntersectionID
	Profile       graphmodel.ProfileID
	PublicTransit bool
	StartTime     time.Duration
	EndTime       time.Duration
}

// Result maps each reached road to its earliest elapsed arrival time from
// Request.StartTime (first-reach wins, spec §4.7 step 3).
type Result map[graphmodel.RoadID]time.Duration

type heapItem struct {
	intersection graphmodel.IntersectionID
	absTime      time.Duration
}

type floodPQ []heapItem

func (pq floodPQ) Len() int            { return len(pq) }
func (pq floodPQ) Less(i, j int) bool  { return pq[i].absTime < pq[j].absTime }
func (pq floodPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *floodPQ) Push(x interface{}) { *pq = append(*pq, x.(heapItem)) }
func (pq *floodPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Run performs the flood-fill of spec §4.7 over g for req.
func Run(g *graphmodel.Graph, req Request) Result {
	result := make(Result)
	visited := make(map[graphmodel.IntersectionID]bool)

	pq := &floodPQ{}
	heap.Init(pq)
	for _, s := range req.Starts {
		heap.Push(pq, heapItem{intersection: s, absTime: req.StartTime})
	}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(heapItem)
		if visited[cur.intersection] {
			continue
		}
		if cur.absTime > req.EndTime {
			continue
		}
		visited[cur.intersection] = true

		inter := &g.Intersections[cur.intersection]
		for _, rid := range inter.Roads {
			road := &g.Roads[rid]
			forwards := road.SrcI == cur.intersection
			if forwards && !road.AllowsForwards(req.Profile) {
				continue
			}
			if !forwards && !road.AllowsBackwards(req.Profile) {
				continue
			}
			if int(req.Profile) >= len(road.Cost) {
				continue
			}

			// A road is recorded at the time its nearer endpoint is
			// discovered, not the far-end arrival: the far end may fall
			// outside the window even though the road itself is already
			// reachable (spec §4.7 concrete scenario 4).
			if _, ok := result[rid]; !ok {
				result[rid] = cur.absTime - req.StartTime
			}

			arrival := cur.absTime + road.Cost[req.Profile]
			far := road.OtherEnd(cur.intersection)
			if !visited[far] {
				heap.Push(pq, heapItem{intersection: far, absTime: arrival})
			}

			if req.PublicTransit {
				relayTransit(g, road, cur.absTime, req.EndTime, visited, pq)
			}
		}
	}

	return result
}

// relayTransit pushes both endpoints of every road arrived at via a
// boarded trip from a stop on road (spec §4.7 step 4).
func relayTransit(g *graphmodel.Graph, road *graphmodel.Road, currentTime, endTime time.Duration, visited map[graphmodel.IntersectionID]bool, pq *floodPQ) {
	if g.Gtfs == nil {
		return
	}
	maxWait := endTime - currentTime
	if maxWait <= 0 {
		return
	}
	for _, stopID := range road.Stops {
		stop := &g.Gtfs.Stops[stopID]
		for _, ns := range stop.TripsFrom(currentTime, maxWait) {
			arriveStop := &g.Gtfs.Stops[ns.ArriveStop]
			arriveRoad := &g.Roads[arriveStop.Road]
			for _, end := range [2]graphmodel.IntersectionID{arriveRoad.SrcI, arriveRoad.DstI} {
				if !visited[end] {
					heap.Push(pq, heapItem{intersection: end, absTime: ns.ArriveTime})
				}
			}
		}
	}
}
