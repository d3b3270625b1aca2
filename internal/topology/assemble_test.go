package topology

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func gates(ids ...int64) *[]int64 { return &ids }

// fixture: three systems, two constellations, one region. System 3 points at a
// constellation that does not exist; constellation 20 points at a missing region.
func fixture() ([]SystemRecord, []ConstellationRecord, []RegionRecord, []StargateRecord) {
	systems := []SystemRecord{
		{SystemID: 30000142, Name: "Jita", ConstellationID: 10, SecurityStatus: 0.945, SecurityClass: "B", Position: Position{X: 1, Y: 2, Z: 3}, Stargates: gates(50001, 50002)},
		{SystemID: 30000144, Name: "Perimeter", ConstellationID: 20, SecurityStatus: 0.95, Position: Position{X: 4, Y: 5, Z: 6}, Stargates: gates(50003)},
		{SystemID: 30002187, Name: "Amarr", ConstellationID: 99, SecurityStatus: 1.0, Position: Position{X: 7, Y: 8, Z: 9}, Stargates: gates()},
	}
	constellations := []ConstellationRecord{
		{ConstellationID: 10, Name: "Kimotoro", RegionID: 10000002},
		{ConstellationID: 20, Name: "Orphan", RegionID: 77},
	}
	regions := []RegionRecord{{RegionID: 10000002, Name: "The Forge"}}
	stargates := []StargateRecord{
		{StargateID: 50001, SystemID: 30000142, Destination: StargateDestination{StargateID: 50003, SystemID: 30000144}},
		{StargateID: 50002, SystemID: 30000142, Destination: StargateDestination{StargateID: 50009, SystemID: 30002187}},
		{StargateID: 50003, SystemID: 30000144, Destination: StargateDestination{StargateID: 50001, SystemID: 30000142}},
	}
	return systems, constellations, regions, stargates
}

func TestJoinTopologyDetails(t *testing.T) {
	systems, constellations, regions, _ := fixture()

	rows := JoinTopologyDetails(systems, constellations, regions)
	require.Len(t, rows, 3, "left join must preserve the system row count")

	t.Run("fully matched row", func(t *testing.T) {
		r := rows[0]
		require.NotNil(t, r.ConstellationName)
		require.NotNil(t, r.RegionID)
		require.NotNil(t, r.RegionName)
		assert.Equal(t, "Kimotoro", *r.ConstellationName)
		assert.Equal(t, int64(10000002), *r.RegionID)
		assert.Equal(t, "The Forge", *r.RegionName)
	})

	t.Run("missing region yields nil region fields", func(t *testing.T) {
		r := rows[1]
		require.NotNil(t, r.ConstellationName)
		assert.Equal(t, "Orphan", *r.ConstellationName)
		assert.Nil(t, r.RegionID)
		assert.Nil(t, r.RegionName)
	})

	t.Run("missing constellation yields nil fields", func(t *testing.T) {
		r := rows[2]
		assert.Equal(t, "Amarr", r.System.Name)
		assert.Nil(t, r.ConstellationName)
		assert.Nil(t, r.RegionID)
		assert.Nil(t, r.RegionName)
	})

	t.Run("idempotent", func(t *testing.T) {
		again := JoinTopologyDetails(systems, constellations, regions)
		if diff := cmp.Diff(rows, again); diff != "" {
			t.Errorf("JoinTopologyDetails mismatch (-first +second):\n%s", diff)
		}
	})
}

func TestFlattenPosition(t *testing.T) {
	systems, constellations, regions, _ := fixture()
	flat := FlattenPosition(JoinTopologyDetails(systems, constellations, regions))

	require.Len(t, flat, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{flat[0].X, flat[0].Y, flat[0].Z})
	assert.Equal(t, []float64{7, 8, 9}, []float64{flat[2].X, flat[2].Y, flat[2].Z})
	require.NotNil(t, flat[0].ConstellationID)
	assert.Equal(t, int64(10), *flat[0].ConstellationID)
}

func TestJoinEdgeDetails(t *testing.T) {
	rows := []FlatSystem{
		{ID: 1, Name: "A", Stargates: gates(11, 12, 13)},
		{ID: 2, Name: "B", Stargates: gates(21)},
		{ID: 3, Name: "C", Stargates: gates()},
		{ID: 4, Name: "D"},
	}
	edges := []StargateRecord{
		{StargateID: 13, SystemID: 1, Destination: StargateDestination{SystemID: 3}},
		{StargateID: 11, SystemID: 1, Destination: StargateDestination{SystemID: 2}},
		{StargateID: 12, SystemID: 1, Destination: StargateDestination{SystemID: 2}},
		{StargateID: 21, SystemID: 2, Destination: StargateDestination{SystemID: 1}},
		{StargateID: 41, SystemID: 4, Destination: StargateDestination{SystemID: 1}},
		{StargateID: 91, SystemID: 9, Destination: StargateDestination{SystemID: 1}},
	}

	nodes := JoinEdgeDetails(rows, edges)
	require.Len(t, nodes, 4)

	assert.Equal(t, []int64{2, 3}, nodes[0].Neighbors, "neighbors are deduplicated and sorted")
	assert.Equal(t, []int64{1}, nodes[1].Neighbors)
	assert.Empty(t, nodes[2].Neighbors)
	assert.NotNil(t, nodes[2].Neighbors)
	assert.Empty(t, nodes[3].Neighbors, "a system without a gate list contributes no edges")
}

func TestAssemble(t *testing.T) {
	systems, constellations, regions, stargates := fixture()
	systems = append(systems,
		SystemRecord{SystemID: 31000005, Name: "J055520", ConstellationID: 10},
		SystemRecord{SystemID: 30000142, Name: "Jita", ConstellationID: 10, SecurityStatus: 0.9, Stargates: gates(50001, 50002)},
	)

	core, logs := observer.New(zapcore.DebugLevel)
	nodes, report := Assemble(systems, constellations, regions, stargates, zap.New(core))

	require.Len(t, nodes, 4)
	assert.Equal(t, 1, report.Duplicates)
	require.Len(t, report.Incomplete, 1)
	assert.Equal(t, int64(31000005), report.Incomplete[0].ID)
	assert.Equal(t, "stargates", report.Incomplete[0].Field)

	ids := map[int64]int{}
	for _, n := range nodes {
		ids[n.ID]++
	}
	for id, count := range ids {
		assert.Equal(t, 1, count, "id %d must be unique", id)
	}

	jita := nodes[0]
	assert.Equal(t, 0.9, jita.SecurityStatus, "the last duplicate wins")
	assert.Equal(t, []int64{30000144, 30002187}, jita.Neighbors)

	assert.Equal(t, 1, logs.FilterMessage("Duplicate system records collapsed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Systems without a stargate list").Len())
	assert.Equal(t, 1, logs.FilterMessage("Excluding system from edge generation").Len())
}

func TestStargateAndConstellationIDs(t *testing.T) {
	systems, _, _, _ := fixture()
	systems = append(systems, SystemRecord{SystemID: 5, ConstellationID: 10, Stargates: gates(50002, 49999)})

	assert.Equal(t, []int64{49999, 50001, 50002, 50003}, StargateIDs(systems))
	assert.Equal(t, []int64{10, 20, 99}, ConstellationIDs(systems))
}
