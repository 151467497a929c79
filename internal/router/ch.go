// Package router builds, per profile, the contraction hierarchy (CH) that
// answers point-to-point shortest path queries (spec §4.4/§4.5), plus the
// R-tree used for nearest-road snapping. No CH library appeared anywhere
// in the retrieval pack with node-ordering/shortcut-preprocessing hooks
// (the pack's one graph-search library is a plain single-source Dijkstra),
// so contraction and query are hand-rolled on container/heap, the same
// heap-based shape the teacher's internal/routing/astar.go uses for its
// own search.
package router

import (
	"container/heap"

	"github.com/passbi/transitengine/internal/graphmodel"
)

// chEdge is one directed edge of the contracted graph: either an original
// road traversal or a shortcut standing in for a two-edge detour through
// an already-contracted node.
type chEdge struct {
	from, to   int32
	weight     int64 // milliseconds
	road       graphmodel.RoadID
	forwards   bool
	isShortcut bool
	child1     int32 // index into ch.edges; valid iff isShortcut
	child2     int32
}

// ch is the contracted search structure for one profile: a node ordering
// (rank, lower = contracted earlier) plus up/down adjacency restricted to
// edges that climb in rank, per the classic CH query restriction.
type ch struct {
	numNodes int
	rank     []int32 // rank[node] = contraction order; nodes with no incident profile-accessible edge rank after all others
	edges    []chEdge
	up       [][]int32 // up[node] = indices into edges, edges[i].from==node && rank[to]>rank[node]
	down     [][]int32 // down[node] = indices into edges, edges[i].to==node && rank[from]>rank[node]
}

// buildGraph is the mutable adjacency used only during contraction.
type buildGraph struct {
	out [][]int32 // out[node] -> edge indices where edges[i].from==node
	in  [][]int32 // in[node]  -> edge indices where edges[i].to==node
}

// buildCH runs CH preprocessing over edges (the profile's directed input
// graph, spec §4.4 step 1). The contraction order is a simple, static
// degree heuristic: nodes with fewer incident input edges are
// contracted first, with a bounded witness search deciding whether a
// shortcut is required to preserve shortest-path distances once a node is
// removed. This is a deliberately simplified stand-in for the
// textbook edge-difference heuristic (documented in DESIGN.md) — it still
// produces a correct hierarchy, just not necessarily a minimal one.
func buildCH(numNodes int, initial []chEdge) *ch {
	order := degreeOrder(numNodes, initial)
	return contractInOrder(numNodes, initial, order)
}

// degreeOrder derives a contraction order via the least-degree-first
// heuristic: nodes with fewer incident edges in initial are contracted
// earlier. Degrees are counted once from initial and are not updated as
// neighbors are contracted, so the order is fixed by the input graph;
// nodes with no incident edge are appended last.
func degreeOrder(numNodes int, initial []chEdge) []int32 {
	outDeg := make([]int, numNodes)
	inDeg := make([]int, numNodes)
	for _, e := range initial {
		outDeg[e.from]++
		inDeg[e.to]++
	}
	degree := func(n int32) int { return outDeg[n] + inDeg[n] }

	pq := &nodePQ{}
	heap.Init(pq)
	for n := 0; n < numNodes; n++ {
		if degree(int32(n)) == 0 {
			continue
		}
		heap.Push(pq, &nodePQItem{node: int32(n), priority: degree(int32(n))})
	}

	// This pass does not model contraction: neighbors' degrees are left
	// as counted from initial and shortcuts are not counted. The real
	// contraction pass's own witness search decides which shortcuts land.
	contracted := make([]bool, numNodes)
	order := make([]int32, 0, numNodes)
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*nodePQItem)
		n := item.node
		if contracted[n] {
			continue
		}
		if cur := degree(n); cur != item.priority {
			item.priority = cur
			heap.Push(pq, item)
			continue
		}
		contracted[n] = true
		order = append(order, n)
		outDeg[n] = 0
		inDeg[n] = 0
	}
	for n := 0; n < numNodes; n++ {
		if !contracted[int32(n)] {
			order = append(order, int32(n))
		}
	}
	return order
}

// contractInOrder performs CH preprocessing given a fixed contraction
// order (either freshly derived by degreeOrder, or an existing CH's order
// reused by UpdateCosts per spec §4.4/§4.5 "reusing the existing node
// ordering for speed").
func contractInOrder(numNodes int, initial []chEdge, order []int32) *ch {
	bg := &buildGraph{
		out: make([][]int32, numNodes),
		in:  make([][]int32, numNodes),
	}
	edges := make([]chEdge, 0, len(initial)*2)
	addEdge := func(e chEdge) int32 {
		idx := int32(len(edges))
		edges = append(edges, e)
		bg.out[e.from] = append(bg.out[e.from], idx)
		bg.in[e.to] = append(bg.in[e.to], idx)
		return idx
	}
	for _, e := range initial {
		addEdge(e)
	}

	contracted := make([]bool, numNodes)
	rank := make([]int32, numNodes)
	for i := range rank {
		rank[i] = -1
	}

	for i, n := range order {
		if contracted[n] {
			continue
		}
		shortcuts := contractNode(bg, edges, n, contracted)
		for _, sc := range shortcuts {
			addEdge(sc)
		}
		contracted[n] = true
		rank[n] = int32(i)
	}

	return finalizeCH(numNodes, rank, edges)
}

// contractNode removes n from the working graph, adding shortcuts between
// its not-yet-contracted neighbors wherever the direct u->n->w path is not
// already dominated by some other surviving path (a bounded witness
// search, spec §4.4/§9 "interior-mutable scratch" territory — this
// function only runs at preprocessing time, never per query).
func contractNode(bg *buildGraph, edges []chEdge, n int32, contracted []bool) []chEdge {
	type indexed struct {
		idx int32
		e   chEdge
	}
	var preds, succs []indexed
	for _, ei := range bg.in[n] {
		e := edges[ei]
		if !contracted[e.from] && e.from != n {
			preds = append(preds, indexed{ei, e})
		}
	}
	for _, ei := range bg.out[n] {
		e := edges[ei]
		if !contracted[e.to] && e.to != n {
			succs = append(succs, indexed{ei, e})
		}
	}

	var shortcuts []chEdge
	for _, p := range preds {
		for _, s := range succs {
			if p.e.from == s.e.to {
				continue
			}
			viaWeight := p.e.weight + s.e.weight
			if witnessPathExists(bg, edges, p.e.from, s.e.to, n, viaWeight, contracted) {
				continue
			}
			shortcuts = append(shortcuts, chEdge{
				from: p.e.from, to: s.e.to, weight: viaWeight,
				isShortcut: true,
				child1:     p.idx,
				child2:     s.idx,
			})
		}
	}
	return shortcuts
}

const witnessSearchCap = 100

// witnessPathExists runs a small Dijkstra from src to dst over the current
// working graph, excluding avoid and already-contracted nodes, to see
// whether some path no longer than limit survives without going through
// avoid. If one does, the shortcut u->avoid->w is redundant.
func witnessPathExists(bg *buildGraph, edges []chEdge, src, dst, avoid int32, limit int64, contracted []bool) bool {
	dist := map[int32]int64{src: 0}
	pq := &witnessPQ{{node: src, dist: 0}}
	settled := 0
	for pq.Len() > 0 && settled < witnessSearchCap {
		cur := heap.Pop(pq).(witnessItem)
		if cur.dist > dist[cur.node] {
			continue
		}
		if cur.node == dst {
			return cur.dist <= limit
		}
		if cur.dist > limit {
			return false
		}
		settled++
		for _, ei := range bg.out[cur.node] {
			e := edges[ei]
			if e.to == avoid || contracted[e.to] {
				continue
			}
			nd := cur.dist + e.weight
			if old, ok := dist[e.to]; !ok || nd < old {
				dist[e.to] = nd
				heap.Push(pq, witnessItem{node: e.to, dist: nd})
			}
		}
	}
	return false
}

// finalizeCH assigns any never-contracted node (degree 0 throughout) the
// next available rank, then builds the up/down adjacency used at query
// time, deduping parallel edges down to their minimum weight.
func finalizeCH(numNodes int, rank []int32, edges []chEdge) *ch {
	next := int32(0)
	for _, r := range rank {
		if r >= next {
			next = r + 1
		}
	}
	for n := range rank {
		if rank[n] == -1 {
			rank[n] = next
			next++
		}
	}

	type key struct{ from, to int32 }
	best := make(map[key]int32)
	for i, e := range edges {
		k := key{e.from, e.to}
		if bi, ok := best[k]; !ok || edges[bi].weight > e.weight {
			best[k] = int32(i)
		}
	}

	up := make([][]int32, numNodes)
	down := make([][]int32, numNodes)
	for _, ei := range best {
		e := edges[ei]
		if rank[e.to] > rank[e.from] {
			up[e.from] = append(up[e.from], ei)
		}
		if rank[e.from] > rank[e.to] {
			down[e.to] = append(down[e.to], ei)
		}
	}

	return &ch{numNodes: numNodes, rank: rank, edges: edges, up: up, down: down}
}

// --- priority queues -------------------------------------------------

type nodePQItem struct {
	node     int32
	priority int
	index    int
}

type nodePQ []*nodePQItem

func (pq nodePQ) Len() int            { return len(pq) }
func (pq nodePQ) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq nodePQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *nodePQ) Push(x interface{}) { item := x.(*nodePQItem); item.index = len(*pq); *pq = append(*pq, item) }
func (pq *nodePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

type witnessItem struct {
	node int32
	dist int64
}

type witnessPQ []witnessItem

func (pq witnessPQ) Len() int            { return len(pq) }
func (pq witnessPQ) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq witnessPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *witnessPQ) Push(x interface{}) { *pq = append(*pq, x.(witnessItem)) }
func (pq *witnessPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
