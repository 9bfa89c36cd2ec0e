package mrfcf

import (
	"math"
	"sort"

	"github.com/okanv/mrfcf/sparse"
)

// selectSparsityPattern caps every column of the compute-thresholded
// covariance to the MaxInColumn largest-magnitude entries, fixing the
// model's support. Columns already within budget are untouched; removed
// entries are dropped, not zeroed. Ties on magnitude break toward the
// smaller row index so the pattern is reproducible.
func (t *Trainer) selectSparsityPattern(opt Options) error {
	n := t.AtA.Dim()
	budget := opt.MaxInColumn

	kept := make([]sparse.Triple, 0, t.AtA.NNZ())
	order := make([]int, 0, budget)
	for j := 0; j < n; j++ {
		rows, vals := t.AtA.Col(j)
		if len(rows) <= budget {
			for k, r := range rows {
				kept = append(kept, sparse.Triple{Row: r, Col: j, Val: vals[k]})
			}
			continue
		}
		order = order[:0]
		for k := range rows {
			order = append(order, k)
		}
		sort.Slice(order, func(a, b int) bool {
			ma, mb := math.Abs(vals[order[a]]), math.Abs(vals[order[b]])
			if ma != mb {
				return ma > mb
			}
			return rows[order[a]] < rows[order[b]]
		})
		for _, k := range order[:budget] {
			kept = append(kept, sparse.Triple{Row: rows[k], Col: j, Val: vals[k]})
		}
	}

	var err error
	t.Mask, err = sparse.NewColMatrix(n, kept)
	return err
}
