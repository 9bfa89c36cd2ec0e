package mrfcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func partitionedScenario(t *testing.T, r float64) *Trainer {
	t.Helper()
	x := scenarioInteractions(t)
	opt := DefaultOptions()
	opt.BlockSize = 3
	opt.ThresholdMem = 0
	opt.ThresholdComp = 0
	opt.MaxInColumn = 3
	opt.R = r

	tr := NewTrainer(x)
	require.NoError(t, tr.buildCovariance(opt))
	require.NoError(t, tr.selectSparsityPattern(opt))
	require.NoError(t, tr.partitionNeighborhoods(opt))
	return tr
}

func TestPartitionFullReductionSingleBlock(t *testing.T) {
	tr := partitionedScenario(t, 1.0)

	// r=1 with full support: the first anchor's block retires everything.
	require.Len(t, tr.Blocks, 1)
	blk := tr.Blocks[0]
	assert.Equal(t, 0, blk.Anchor)
	assert.Equal(t, 3, blk.DCount)
	// Anchor first (diagonal dominates), then the equal couplings in
	// index order.
	assert.Equal(t, []int{0, 1, 2}, blk.Members)
	assert.ElementsMatch(t, []int{0, 1, 2}, blk.Retired)
}

func TestPartitionRetiredSetsPartitionItems(t *testing.T) {
	for _, r := range []float64{0.34, 0.5, 1.0} {
		tr := partitionedScenario(t, r)

		seen := make(map[int]int)
		for _, blk := range tr.Blocks {
			assert.GreaterOrEqual(t, blk.DCount, 1)
			assert.LessOrEqual(t, blk.DCount, len(blk.Members))
			for _, item := range blk.Retired {
				seen[item]++
			}
		}
		for item := 0; item < tr.Mask.Dim(); item++ {
			assert.Equal(t, 1, seen[item], "r=%g item %d retired %d times", r, item, seen[item])
		}
	}
}

func TestPartitionBlocksMayOverlap(t *testing.T) {
	tr := partitionedScenario(t, 0.34)

	// Two blocks over three items with full neighbor sets: memberships
	// overlap even though retired sets do not.
	require.Len(t, tr.Blocks, 2)
	assert.Len(t, tr.Blocks[0].Members, 3)
	assert.Len(t, tr.Blocks[1].Members, 3)
	assert.ElementsMatch(t, []int{0, 1}, tr.Blocks[0].Retired)
	assert.ElementsMatch(t, []int{2}, tr.Blocks[1].Retired)
}
