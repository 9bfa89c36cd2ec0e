package mrfcf

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/okanv/mrfcf/sparse"
)

// covView presents the covariance with its diagonal overridden by a
// separate vector. The base matrix is never mutated between phases; each
// phase builds the view it needs.
type covView struct {
	base *sparse.ColMatrix
	diag []float64
}

func (v covView) at(i, j int) float64 {
	if i == j {
		return v.diag[i]
	}
	return v.base.At(i, j)
}

// solveBlocks inverts every block's dense covariance submatrix on a worker
// pool. Blocks read only the shared immutable view, results land in slots
// indexed by block ordinal and are concatenated in order, so scheduling
// cannot change the output.
func (t *Trainer) solveBlocks(opt Options) ([]sparse.Triple, error) {
	diag := make([]float64, len(t.XtXDiag))
	for i, d := range t.XtXDiag {
		diag[i] = d + opt.L2Reg
	}
	view := covView{base: t.XtX, diag: diag}
	log := opt.logger()

	results := make([][]sparse.Triple, len(t.Blocks))
	var g errgroup.Group
	g.SetLimit(opt.workers())
	for bi, blk := range t.Blocks {
		bi, blk := bi, blk
		g.Go(func() error {
			tr, err := solveBlock(view, blk, opt.L2Reg, log)
			if err != nil {
				return fmt.Errorf("block anchored at item %d: %w", blk.Anchor, err)
			}
			results[bi] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]sparse.Triple, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// solveBlock inverts one m×m submatrix and converts the precision rows to
// regression coefficients: the coefficient of neighbor a predicting member
// j is −inv[a,j]/inv[a,a]. Only the columns of the block's retired prefix
// are emitted; the diagonal is excluded by construction, so a 1-item block
// emits nothing.
//
// A submatrix that gonum refuses to invert gets an escalating extra ridge
// added to its diagonal, doubling over three attempts, before the block —
// and with it the run — fails as singular.
func solveBlock(v covView, blk Block, l2 float64, log zerolog.Logger) ([]sparse.Triple, error) {
	m := len(blk.Members)
	a := mat.NewDense(m, m, nil)
	for r := 0; r < m; r++ {
		for c := 0; c < m; c++ {
			a.Set(r, c, v.at(blk.Members[r], blk.Members[c]))
		}
	}

	var inv mat.Dense
	err := inv.Inverse(a)
	if err != nil {
		extra := l2
		if extra <= 0 {
			extra = 1
		}
		for attempt := 0; attempt < 3; attempt++ {
			for r := 0; r < m; r++ {
				a.Set(r, r, a.At(r, r)+extra)
			}
			if err = inv.Inverse(a); err == nil {
				break
			}
			extra *= 2
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		log.Warn().Int("anchor", blk.Anchor).Int("size", m).Float64("extra_ridge", extra).
			Msg("block inverted only after extra regularization")
	}

	out := make([]sparse.Triple, 0, (m-1)*blk.DCount)
	for r := 0; r < m; r++ {
		d := inv.At(r, r)
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("%w: non-finite inverse diagonal for item %d", ErrSingular, blk.Members[r])
		}
		s := -1 / d
		for c := 0; c < blk.DCount; c++ {
			if c == r {
				continue
			}
			out = append(out, sparse.Triple{
				Row: blk.Members[r],
				Col: blk.Members[c],
				Val: inv.At(r, c) * s,
			})
		}
	}
	return out, nil
}
