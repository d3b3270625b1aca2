// Package router answers shortest-path queries over a graph.Graph.
package router

import (
	"container/heap"
	"context"
	"slices"

	"github.com/xkilldash9x/navitron/internal/graph"
)

// PathResult is an ordered walk from a source to a destination, as graph
// indices, with its cumulative weight.
type PathResult struct {
	Nodes []int
	Cost  float64
}

// IDs translates the path into system ids.
func (p PathResult) IDs(g *graph.Graph) []int64 {
	out := make([]int64, len(p.Nodes))
	for i, n := range p.Nodes {
		out[i] = g.Node(n).ID
	}
	return out
}

// Names translates the path into system names.
func (p PathResult) Names(g *graph.Graph) []string {
	out := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		out[i] = g.Node(n).Name
	}
	return out
}

// Jumps is the number of edges traversed.
func (p PathResult) Jumps() int {
	if len(p.Nodes) == 0 {
		return 0
	}
	return len(p.Nodes) - 1
}

// tree is a shortest-path tree rooted at one source.
type tree struct {
	source  int
	dist    []float64
	parent  []int
	reached []bool
}

func (t *tree) path(dest int) (PathResult, bool) {
	if dest < 0 || dest >= len(t.reached) || !t.reached[dest] {
		return PathResult{}, false
	}
	nodes := []int{dest}
	for n := dest; n != t.source; {
		n = t.parent[n]
		nodes = append(nodes, n)
	}
	slices.Reverse(nodes)
	return PathResult{Nodes: nodes, Cost: t.dist[dest]}, true
}

type item struct {
	node int
	dist float64
}

type minQueue []item

func (q minQueue) Len() int { return len(q) }
func (q minQueue) Less(i, j int) bool {
	if q[i].dist == q[j].dist {
		return q[i].node < q[j].node
	}
	return q[i].dist < q[j].dist
}
func (q minQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *minQueue) Push(x any) { *q = append(*q, x.(item)) }

func (q *minQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// shortestTree runs Dijkstra from source. Relaxations whose total exceeds
// cutoff are dropped, so nodes beyond it stay unreached. Infinite weights are
// legal: such nodes are reached at cost +Inf unless a cutoff excludes them.
func shortestTree(g *graph.Graph, source int, cutoff *float64) *tree {
	n := g.Len()
	t := &tree{
		source:  source,
		dist:    make([]float64, n),
		parent:  make([]int, n),
		reached: make([]bool, n),
	}
	settled := make([]bool, n)

	t.reached[source] = true
	t.parent[source] = source
	q := &minQueue{{node: source, dist: 0}}

	for q.Len() > 0 {
		cur := heap.Pop(q).(item)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true

		for _, e := range g.Edges(cur.node) {
			if settled[e.To] {
				continue
			}
			nd := cur.dist + e.Weight
			if cutoff != nil && nd > *cutoff {
				continue
			}
			if !t.reached[e.To] || nd < t.dist[e.To] {
				t.reached[e.To] = true
				t.dist[e.To] = nd
				t.parent[e.To] = cur.node
				heap.Push(q, item{node: e.To, dist: nd})
			}
		}
	}
	return t
}

// SingleSource returns the shortest path from source to every node reachable
// within cutoff. A nil cutoff is unbounded. The source maps to itself at cost 0.
func SingleSource(g *graph.Graph, source int, cutoff *float64) map[int]PathResult {
	t := shortestTree(g, source, cutoff)
	out := make(map[int]PathResult)
	for dest := range t.reached {
		if p, ok := t.path(dest); ok {
			out[dest] = p
		}
	}
	return out
}

// AllPairs materializes SingleSource for every node. It is quadratic in
// memory; prefer a Router for interactive queries. ctx is checked between
// sources and doubles as the time budget.
func AllPairs(ctx context.Context, g *graph.Graph, cutoff *float64) (map[int]map[int]PathResult, error) {
	out := make(map[int]map[int]PathResult, g.Len())
	for src := 0; src < g.Len(); src++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[src] = SingleSource(g, src, cutoff)
	}
	return out, nil
}
