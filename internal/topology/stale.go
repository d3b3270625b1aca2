package topology

import (
	"slices"
)

// Baseline tags whether the store held a prior table.
type Baseline int

const (
	// BaselineEmpty means there was nothing stored; callers rebuild in full.
	BaselineEmpty Baseline = iota
	// BaselinePopulated means IDs is a diff against stored rows.
	BaselinePopulated
)

func (b Baseline) String() string {
	switch b {
	case BaselineEmpty:
		return "empty"
	case BaselinePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// StaleResult is the outcome of comparing the stored table with a fresh fetch.
type StaleResult struct {
	Baseline Baseline
	// IDs are the keys present on only one side, sorted. Empty for BaselineEmpty.
	IDs []int64
}

// NeedsRebuild is true when there is no baseline or the key sets differ.
func (r StaleResult) NeedsRebuild() bool {
	return r.Baseline == BaselineEmpty || len(r.IDs) > 0
}

// DetectStale compares the key sets of the stored and freshly fetched rows.
func DetectStale(current, fresh []NodeRecord, key func(NodeRecord) int64) StaleResult {
	if len(current) == 0 {
		return StaleResult{Baseline: BaselineEmpty}
	}
	if key == nil {
		key = NodeID
	}

	stored := make(map[int64]struct{}, len(current))
	for _, n := range current {
		stored[key(n)] = struct{}{}
	}
	seen := make(map[int64]struct{}, len(fresh))
	diff := []int64{}
	for _, n := range fresh {
		k := key(n)
		seen[k] = struct{}{}
		if _, ok := stored[k]; !ok {
			diff = append(diff, k)
		}
	}
	for k := range stored {
		if _, ok := seen[k]; !ok {
			diff = append(diff, k)
		}
	}
	slices.Sort(diff)
	return StaleResult{Baseline: BaselinePopulated, IDs: slices.Compact(diff)}
}
