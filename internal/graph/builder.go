package graph

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/xkilldash9x/navitron/internal/topology"
)

// DefaultMaxNodeID is the first id of wormhole and abyssal space.
const DefaultMaxNodeID int64 = 31_000_000

// DefaultExcludedRegions are isolated pocket regions with no practical gate access.
var DefaultExcludedRegions = []string{"J7HZ-F", "A821-A", "UUA-F4"}

// ExclusionRules decide which nodes never enter the graph.
type ExclusionRules struct {
	// MaxNodeID excludes every id at or above it. Zero disables the check.
	MaxNodeID int64
	// ExcludedRegions are matched against NodeRecord.RegionName.
	ExcludedRegions []string
}

// DefaultExclusionRules returns the rules for known-space routing.
func DefaultExclusionRules() ExclusionRules {
	return ExclusionRules{
		MaxNodeID:       DefaultMaxNodeID,
		ExcludedRegions: append([]string(nil), DefaultExcludedRegions...),
	}
}

// RiskFunc returns the traversal cost of entering a node.
type RiskFunc func(topology.NodeRecord) float64

// DefaultRisk uses the record's Risk and treats a missing value as unknown (+Inf).
func DefaultRisk(n topology.NodeRecord) float64 {
	if n.Risk == nil {
		return math.Inf(1)
	}
	return *n.Risk
}

// ConstantRisk weights every node the same, turning routing into jump counting.
func ConstantRisk(w float64) RiskFunc {
	return func(topology.NodeRecord) float64 { return w }
}

// DuplicateNodeError is returned when two records share an id.
type DuplicateNodeError struct {
	ID int64
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node id %d", e.ID)
}

// Build filters the records, indexes the survivors in input order and adds a
// directed edge A->B weighted by risk(B) for every neighbor B of A that
// survived filtering. Negative and NaN weights are clamped to zero.
func Build(records []topology.NodeRecord, rules ExclusionRules, risk RiskFunc, logger *zap.Logger) (*Graph, error) {
	if risk == nil {
		risk = DefaultRisk
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("graph_builder")

	excludedRegions := make(map[string]struct{}, len(rules.ExcludedRegions))
	for _, r := range rules.ExcludedRegions {
		excludedRegions[r] = struct{}{}
	}

	g := &Graph{
		generation: generations.Add(1),
		byID:       make(map[int64]int, len(records)),
		byName:     make(map[string]int, len(records)),
	}

	var skippedRange, skippedRegion, skippedLeaf int
	for _, rec := range records {
		switch {
		case rules.MaxNodeID > 0 && rec.ID >= rules.MaxNodeID:
			skippedRange++
			continue
		case rec.RegionName != nil && inSet(excludedRegions, *rec.RegionName):
			skippedRegion++
			continue
		case len(rec.Neighbors) == 0:
			skippedLeaf++
			continue
		}
		if _, dup := g.byID[rec.ID]; dup {
			return nil, &DuplicateNodeError{ID: rec.ID}
		}
		rec.SecurityStatus = math.Max(0, rec.SecurityStatus)
		g.byID[rec.ID] = len(g.nodes)
		if _, taken := g.byName[rec.Name]; !taken {
			g.byName[rec.Name] = len(g.nodes)
		}
		g.nodes = append(g.nodes, rec)
	}

	weights := make([]float64, len(g.nodes))
	var clamped int
	for i, n := range g.nodes {
		w := risk(n)
		if math.IsNaN(w) || w < 0 {
			clamped++
			w = 0
		}
		weights[i] = w
	}
	if clamped > 0 {
		log.Warn("Clamped invalid risk values to zero", zap.Int("count", clamped))
	}

	g.out = make([][]Edge, len(g.nodes))
	var dangling int
	for i, n := range g.nodes {
		edges := make([]Edge, 0, len(n.Neighbors))
		for _, dest := range n.Neighbors {
			j, ok := g.byID[dest]
			if !ok {
				dangling++
				continue
			}
			edges = append(edges, Edge{To: j, Weight: weights[j]})
		}
		g.out[i] = edges
		g.edges += len(edges)
	}

	log.Info("Graph built",
		zap.Uint64("generation", g.generation),
		zap.Int("nodes", len(g.nodes)),
		zap.Int("edges", g.edges),
		zap.Int("excluded_by_id", skippedRange),
		zap.Int("excluded_by_region", skippedRegion),
		zap.Int("excluded_leaves", skippedLeaf),
		zap.Int("dangling_edges", dangling),
	)
	return g, nil
}

func inSet(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}
