package mrfcf

import "github.com/okanv/mrfcf/sparse"

// aggregate reconciles the per-block coefficient estimates into the final
// weight matrix: coordinates contributed by several blocks take the
// arithmetic mean, everything outside the sparsity pattern is dropped,
// pattern coordinates without a contribution resolve to 0, the diagonal is
// forced to 0, and the popularity normalization of the covariance pass is
// undone so the matrix operates directly on raw interaction counts.
func (t *Trainer) aggregate(triples []sparse.Triple) error {
	n := t.Mask.Dim()

	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[int64]*acc, len(triples))
	for _, tr := range triples {
		if tr.Row == tr.Col {
			continue
		}
		if !t.Mask.Has(tr.Row, tr.Col) {
			continue
		}
		k := int64(tr.Row)*int64(n) + int64(tr.Col)
		a := sums[k]
		if a == nil {
			a = &acc{}
			sums[k] = a
		}
		a.sum += tr.Val
		a.count++
	}

	// Assemble in mask column-major order; contributions were summed in
	// block order, so the result is deterministic.
	out := make([]sparse.Triple, 0, len(sums))
	for j := 0; j < n; j++ {
		rows, _ := t.Mask.Col(j)
		for _, r := range rows {
			if r == j {
				continue
			}
			a := sums[int64(r)*int64(n)+int64(j)]
			if a == nil {
				continue
			}
			v := (a.sum / float64(a.count)) * t.Scaling[r] * t.Rescaling[j]
			out = append(out, sparse.Triple{Row: r, Col: j, Val: v})
		}
	}

	var err error
	t.Weights, err = sparse.NewColMatrix(n, out)
	return err
}
