package router

import (
	"container/heap"
	"time"

	"github.com/passbi/transitengine/internal/engineerr"
	"github.com/passbi/transitengine/internal/graphmodel"
)

// RoadStep is one original-graph edge traversal on the path a query found:
// travel road Road in the direction Forwards indicates (true = src->dst).
type RoadStep struct {
	Road     graphmodel.RoadID
	Forwards bool
}

// order reconstructs the contraction sequence from rank (rank[node] is
// this node's position in that sequence), for UpdateCosts to reuse.
func (c *ch) order() []int32 {
	order := make([]int32, len(c.rank))
	for n, r := range c.rank {
		order[r] = int32(n)
	}
	return order
}

type queryPQItem struct {
	node int32
	dist int64
}

type queryPQ []queryPQItem

func (pq queryPQ) Len() int            { return len(pq) }
func (pq queryPQ) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq queryPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *queryPQ) Push(x interface{}) { *pq = append(*pq, x.(queryPQItem)) }
func (pq *queryPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// dijkstraUp runs a single-source Dijkstra restricted to adj (either
// ch.up or ch.down), which only contains edges climbing in rank, so the
// search always terminates. Returns per-node distance and the edge index
// used to reach each node (-1 for the source).
func dijkstraUp(adj [][]int32, edges []chEdge, src int32) (dist map[int32]int64, pred map[int32]int32) {
	dist = map[int32]int64{src: 0}
	pred = map[int32]int32{src: -1}
	pq := &queryPQ{{node: src, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queryPQItem)
		if cur.dist > dist[cur.node] {
			continue
		}
		for _, ei := range adj[cur.node] {
			e := edges[ei]
			// adj is either ch.up (e.from==node, step to e.to) or ch.down
			// (e.to==node, step to e.from): pick whichever endpoint isn't
			// the node we're standing on.
			var next int32
			if e.from == cur.node {
				next = e.to
			} else {
				next = e.from
			}
			nd := cur.dist + e.weight
			if old, ok := dist[next]; !ok || nd < old {
				dist[next] = nd
				pred[next] = ei
				heap.Push(pq, queryPQItem{node: next, dist: nd})
			}
		}
	}
	return dist, pred
}

// shortestPath runs the bidirectional CH query between src and dst,
// returning the total weight and the sequence of original RoadSteps
// (shortcuts unpacked) that realize it.
func (c *ch) shortestPath(src, dst int32) (time.Duration, []RoadStep, error) {
	if src == dst {
		return 0, nil, engineerr.New(engineerr.NoPath, "shortestPath: src == dst")
	}

	distF, predF := dijkstraUp(c.up, c.edges, src)
	distB, predB := dijkstraUp(c.down, c.edges, dst)

	best := int64(-1)
	var meet int32 = -1
	for node, df := range distF {
		if db, ok := distB[node]; ok {
			total := df + db
			if best == -1 || total < best {
				best = total
				meet = node
			}
		}
	}
	if meet == -1 {
		return 0, nil, engineerr.New(engineerr.NoPath, "no CH path found")
	}

	// Unwind forward tree from meet back to src.
	var forwardEdges []int32
	for n := meet; n != src; {
		ei, ok := predF[n]
		if !ok || ei == -1 {
			break
		}
		forwardEdges = append(forwardEdges, ei)
		e := c.edges[ei]
		if e.from == n {
			n = e.to // shouldn't happen given predF orientation, defensive
		} else {
			n = e.from
		}
	}
	reverseInt32(forwardEdges)

	// Unwind backward tree from meet back to dst; these edges, reversed,
	// give the meet->dst suffix in original direction.
	var backwardEdges []int32
	for n := meet; n != dst; {
		ei, ok := predB[n]
		if !ok || ei == -1 {
			break
		}
		backwardEdges = append(backwardEdges, ei)
		e := c.edges[ei]
		if e.to == n {
			n = e.from
		} else {
			n = e.to
		}
	}

	var steps []RoadStep
	for _, ei := range forwardEdges {
		unpackEdge(c.edges, ei, false, &steps)
	}
	// backwardEdges was collected walking meet->dst, and each edge there
	// is already stored in that same original direction (e.from is the
	// node closer to meet, e.to its parent toward dst), so it appends in
	// order with no reversal.
	for _, ei := range backwardEdges {
		unpackEdge(c.edges, ei, false, &steps)
	}

	return time.Duration(best) * time.Millisecond, steps, nil
}

func reverseInt32(s []int32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// unpackEdge recursively expands a (possibly shortcut) edge into its
// original RoadSteps, appended to out in traversal order.
func unpackEdge(edges []chEdge, ei int32, reversed bool, out *[]RoadStep) {
	e := edges[ei]
	if !e.isShortcut {
		*out = append(*out, RoadStep{Road: e.road, Forwards: e.forwards})
		return
	}
	if !reversed {
		unpackEdge(edges, e.child1, false, out)
		unpackEdge(edges, e.child2, false, out)
	} else {
		unpackEdge(edges, e.child2, true, out)
		unpackEdge(edges, e.child1, true, out)
	}
}
