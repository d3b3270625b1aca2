package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func nodes(ids ...int64) []NodeRecord {
	out := make([]NodeRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, NodeRecord{ID: id})
	}
	return out
}

func TestDetectStale(t *testing.T) {
	t.Run("empty store is a distinct baseline, not an empty diff", func(t *testing.T) {
		res := DetectStale(nil, nodes(1, 2), NodeID)
		assert.Equal(t, BaselineEmpty, res.Baseline)
		assert.Empty(t, res.IDs)
		assert.True(t, res.NeedsRebuild())
		assert.Equal(t, "empty", res.Baseline.String())
	})

	t.Run("identical key sets need nothing", func(t *testing.T) {
		res := DetectStale(nodes(3, 1, 2), nodes(1, 2, 3), NodeID)
		assert.Equal(t, BaselinePopulated, res.Baseline)
		assert.Empty(t, res.IDs)
		assert.False(t, res.NeedsRebuild())
	})

	t.Run("additions and removals are both reported", func(t *testing.T) {
		res := DetectStale(nodes(1, 2, 3), nodes(2, 3, 4, 5), nil)
		assert.Equal(t, []int64{1, 4, 5}, res.IDs)
		assert.True(t, res.NeedsRebuild())
	})

	t.Run("custom key", func(t *testing.T) {
		byConstellation := func(n NodeRecord) int64 {
			if n.ConstellationID == nil {
				return 0
			}
			return *n.ConstellationID
		}
		c := int64(7)
		current := []NodeRecord{{ID: 1, ConstellationID: &c}}
		fresh := []NodeRecord{{ID: 2, ConstellationID: &c}}
		res := DetectStale(current, fresh, byConstellation)
		assert.False(t, res.NeedsRebuild())
	})
}
