package topology

import (
	"slices"

	"go.uber.org/zap"
)

// JoinTopologyDetails left-joins constellations and regions onto systems.
// The output has exactly one row per input system, in input order.
func JoinTopologyDetails(systems []SystemRecord, constellations []ConstellationRecord, regions []RegionRecord) []JoinedSystem {
	constByID := make(map[int64]ConstellationRecord, len(constellations))
	for _, c := range constellations {
		constByID[c.ConstellationID] = c
	}
	regionByID := make(map[int64]RegionRecord, len(regions))
	for _, r := range regions {
		regionByID[r.RegionID] = r
	}

	out := make([]JoinedSystem, 0, len(systems))
	for _, s := range systems {
		row := JoinedSystem{System: s}
		if c, ok := constByID[s.ConstellationID]; ok {
			row.ConstellationName = ptr(c.Name)
			if r, ok := regionByID[c.RegionID]; ok {
				row.RegionID = ptr(r.RegionID)
				row.RegionName = ptr(r.Name)
			}
		}
		out = append(out, row)
	}
	return out
}

// FlattenPosition lifts each row's nested position into X, Y and Z.
func FlattenPosition(rows []JoinedSystem) []FlatSystem {
	out := make([]FlatSystem, 0, len(rows))
	for _, r := range rows {
		s := r.System
		flat := FlatSystem{
			ID:                s.SystemID,
			Name:              s.Name,
			SecurityStatus:    s.SecurityStatus,
			SecurityClass:     s.SecurityClass,
			ConstellationName: r.ConstellationName,
			RegionID:          r.RegionID,
			RegionName:        r.RegionName,
			X:                 s.Position.X,
			Y:                 s.Position.Y,
			Z:                 s.Position.Z,
			Stargates:         s.Stargates,
		}
		if s.ConstellationID != 0 {
			flat.ConstellationID = ptr(s.ConstellationID)
		}
		out = append(out, flat)
	}
	return out
}

// JoinEdgeDetails groups stargates by origin system and attaches the resulting
// adjacency to each row. Neighbor lists are deduplicated and sorted. Systems
// without gates, and systems whose gate list is missing, get an empty list.
func JoinEdgeDetails(rows []FlatSystem, edges []StargateRecord) []NodeRecord {
	adjacency := make(map[int64][]int64)
	for _, e := range edges {
		adjacency[e.SystemID] = append(adjacency[e.SystemID], e.Destination.SystemID)
	}

	out := make([]NodeRecord, 0, len(rows))
	for _, r := range rows {
		neighbors := []int64{}
		if r.Stargates != nil {
			if dests, ok := adjacency[r.ID]; ok {
				neighbors = slices.Clone(dests)
				slices.Sort(neighbors)
				neighbors = slices.Compact(neighbors)
			}
		}
		out = append(out, NodeRecord{
			ID:                r.ID,
			Name:              r.Name,
			SecurityStatus:    r.SecurityStatus,
			SecurityClass:     r.SecurityClass,
			RegionID:          r.RegionID,
			RegionName:        r.RegionName,
			ConstellationID:   r.ConstellationID,
			ConstellationName: r.ConstellationName,
			X:                 r.X,
			Y:                 r.Y,
			Z:                 r.Z,
			Neighbors:         neighbors,
		})
	}
	return out
}

// Report summarizes anomalies recovered during assembly.
type Report struct {
	Incomplete []*IncompleteRecordError
	Duplicates int
}

// Assemble composes the three transforms into the unified topology table.
// Duplicate system ids are collapsed, the last record wins.
func Assemble(systems []SystemRecord, constellations []ConstellationRecord, regions []RegionRecord, stargates []StargateRecord, logger *zap.Logger) ([]NodeRecord, Report) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var report Report

	unique, dups := dedupeSystems(systems)
	report.Duplicates = dups
	if dups > 0 {
		logger.Warn("Duplicate system records collapsed", zap.Int("duplicates", dups))
	}

	for _, s := range unique {
		if s.Stargates == nil {
			err := &IncompleteRecordError{ID: s.SystemID, Name: s.Name, Field: "stargates"}
			report.Incomplete = append(report.Incomplete, err)
			logger.Debug("Excluding system from edge generation", zap.Error(err))
		}
	}
	if len(report.Incomplete) > 0 {
		logger.Warn("Systems without a stargate list", zap.Int("count", len(report.Incomplete)))
	}

	rows := JoinEdgeDetails(FlattenPosition(JoinTopologyDetails(unique, constellations, regions)), stargates)
	return rows, report
}

// StargateIDs collects the gate ids listed by systems, sorted and unique.
func StargateIDs(systems []SystemRecord) []int64 {
	var ids []int64
	for _, s := range systems {
		if s.Stargates != nil {
			ids = append(ids, *s.Stargates...)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// ConstellationIDs collects the constellation ids referenced by systems, sorted and unique.
func ConstellationIDs(systems []SystemRecord) []int64 {
	ids := make([]int64, 0, len(systems))
	for _, s := range systems {
		ids = append(ids, s.ConstellationID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func dedupeSystems(systems []SystemRecord) ([]SystemRecord, int) {
	pos := make(map[int64]int, len(systems))
	out := make([]SystemRecord, 0, len(systems))
	dups := 0
	for _, s := range systems {
		if i, ok := pos[s.SystemID]; ok {
			out[i] = s
			dups++
			continue
		}
		pos[s.SystemID] = len(out)
		out = append(out, s)
	}
	return out, dups
}

func ptr[T any](v T) *T { return &v }
