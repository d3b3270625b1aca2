// Package graph holds the directed, risk-weighted stargate graph.
//
// Nodes live in a contiguous arena and are addressed by their arena index.
// An index is only meaningful for the Graph that assigned it; every Graph
// carries a generation number so stale indices can be detected.
package graph

import (
	"sync/atomic"

	"github.com/xkilldash9x/navitron/internal/topology"
)

var generations atomic.Uint64

// Edge is a directed connection to the node at index To.
type Edge struct {
	To     int
	Weight float64
}

// Graph is immutable once built.
type Graph struct {
	generation uint64
	nodes      []topology.NodeRecord
	out        [][]Edge
	byID       map[int64]int
	byName     map[string]int
	edges      int
}

// Generation identifies this Graph instance. No two Graphs share one.
func (g *Graph) Generation() uint64 { return g.generation }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Node returns the record stored at index i.
func (g *Graph) Node(i int) topology.NodeRecord { return g.nodes[i] }

// Edges returns the outgoing edges of node i. Callers must not modify the slice.
func (g *Graph) Edges(i int) []Edge { return g.out[i] }

// IndexOf returns the index of the node with the given system id.
func (g *Graph) IndexOf(id int64) (int, bool) {
	i, ok := g.byID[id]
	return i, ok
}

// Lookup returns the index of the node with the given name.
func (g *Graph) Lookup(name string) (int, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// HasEdge reports whether a directed edge from -> to exists and returns its weight.
func (g *Graph) HasEdge(from, to int) (float64, bool) {
	for _, e := range g.out[from] {
		if e.To == to {
			return e.Weight, true
		}
	}
	return 0, false
}

// Names maps every node name to its index. The returned map is a copy.
func (g *Graph) Names() map[string]int {
	out := make(map[string]int, len(g.byName))
	for k, v := range g.byName {
		out[k] = v
	}
	return out
}
