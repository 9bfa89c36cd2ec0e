package mrfcf

import (
	"math"
	"sort"
)

// Block is one overlapping neighborhood: the full masked neighbor set of an
// anchor item, ordered by descending covariance magnitude against the
// anchor. The solver emits coefficients only for the first DCount members;
// Retired lists the members whose retirement flag this block cleared.
type Block struct {
	Anchor  int
	Members []int
	DCount  int
	Retired []int
}

// partitionNeighborhoods greedily covers all items with overlapping blocks.
// Items are processed in descending priority (mask column population plus
// diagonal normalized into [0, 0.5]); each still-flagged item anchors one
// block and the leading R-fraction of the block's members is retired at
// once, so one block can retire several items. Every item ends up retired
// by exactly one block even though memberships overlap.
func (t *Trainer) partitionNeighborhoods(opt Options) error {
	n := t.Mask.Dim()

	maxDiag := 0.0
	for _, d := range t.XtXDiag {
		if d > maxDiag {
			maxDiag = d
		}
	}
	priority := make([]float64, n)
	for j := 0; j < n; j++ {
		priority[j] = float64(t.Mask.ColNNZ(j))
		if maxDiag > 0 {
			priority[j] += t.XtXDiag[j] / (2 * maxDiag)
		}
	}

	order := make([]int, n)
	for j := 0; j < n; j++ {
		order[j] = j
	}
	sort.Slice(order, func(a, b int) bool {
		if priority[order[a]] != priority[order[b]] {
			return priority[order[a]] > priority[order[b]]
		}
		return order[a] < order[b]
	})

	todo := make([]bool, n)
	for j := 0; j < n; j++ {
		todo[j] = true
	}

	t.Blocks = t.Blocks[:0]
	for _, anchor := range order {
		if !todo[anchor] {
			continue
		}
		rows, _ := t.Mask.Col(anchor)
		members := make([]int, 0, len(rows)+1)
		members = append(members, rows...)
		if !t.Mask.Has(anchor, anchor) {
			members = append(members, anchor)
		}

		// Strongest coupling to the anchor first; the anchor itself
		// carries the diagonal value. Ties break toward the smaller
		// item index for reproducibility.
		coupling := make([]float64, len(members))
		for k, m := range members {
			if m == anchor {
				coupling[k] = math.Abs(t.XtXDiag[anchor])
			} else {
				coupling[k] = math.Abs(t.XtX.At(m, anchor))
			}
		}
		perm := make([]int, len(members))
		for k := range perm {
			perm[k] = k
		}
		sort.Slice(perm, func(a, b int) bool {
			if coupling[perm[a]] != coupling[perm[b]] {
				return coupling[perm[a]] > coupling[perm[b]]
			}
			return members[perm[a]] < members[perm[b]]
		})
		sorted := make([]int, len(members))
		for k, p := range perm {
			sorted[k] = members[p]
		}
		members = sorted

		dd := max(1, int(math.Ceil(opt.R*float64(len(members)))))
		retired := make([]int, 0, dd)
		for _, m := range members[:dd] {
			if todo[m] {
				todo[m] = false
				retired = append(retired, m)
			}
		}
		if todo[anchor] {
			// The anchor can fall outside its own prefix when stronger
			// couplings dominate; it must still be retired here or no
			// later block will.
			todo[anchor] = false
			retired = append(retired, anchor)
		}

		t.Blocks = append(t.Blocks, Block{
			Anchor:  anchor,
			Members: members,
			DCount:  dd,
			Retired: retired,
		})
	}
	return nil
}
