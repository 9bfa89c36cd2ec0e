package mrfcf

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/okanv/mrfcf/sparse"
)

// buildCovariance computes the centered, popularity-rescaled item-item
// cross-product in BlockSize×BlockSize tiles. Tiles are independent and run
// in parallel; each discards sub-threshold entries immediately and the
// sparse structures are assembled exactly once from the per-tile coordinate
// lists, concatenated in tile order so the result is bit-identical across
// runs.
func (t *Trainer) buildCovariance(opt Options) error {
	n := t.X.Items
	users := float64(t.X.Users)

	mu := make([]float64, n)
	rawDiag := make([]float64, n)
	for j := 0; j < n; j++ {
		_, vals := t.X.Col(j)
		sum, sq := 0.0, 0.0
		for _, v := range vals {
			sum += v
			sq += v * v
		}
		mu[j] = sum / users
		rawDiag[j] = sq
	}

	t.Rescaling = make([]float64, n)
	t.Scaling = make([]float64, n)
	t.XtXDiag = make([]float64, n)
	for j := 0; j < n; j++ {
		varU := rawDiag[j] - users*mu[j]*mu[j]
		if varU <= 0 {
			// Constant or empty column: no popularity signal to remove.
			t.Rescaling[j] = 1
			t.Scaling[j] = 1
			t.XtXDiag[j] = 0
			continue
		}
		t.Rescaling[j] = math.Pow(varU, opt.Alpha/2)
		t.Scaling[j] = 1 / t.Rescaling[j]
		t.XtXDiag[j] = varU * t.Scaling[j] * t.Scaling[j]
	}

	bs := opt.BlockSize
	nb := (n + bs - 1) / bs
	xtxParts := make([][]sparse.Triple, nb*nb)
	ataParts := make([][]sparse.Triple, nb*nb)

	var g errgroup.Group
	g.SetLimit(opt.workers())
	for bi := 0; bi < nb; bi++ {
		for bj := 0; bj < nb; bj++ {
			ti := bi*nb + bj
			i0, i1 := bi*bs, min((bi+1)*bs, n)
			j0, j1 := bj*bs, min((bj+1)*bs, n)
			g.Go(func() error {
				xt, at := t.covarianceTile(opt, mu, i0, i1, j0, j1)
				xtxParts[ti] = xt
				ataParts[ti] = at
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var xtx, ata []sparse.Triple
	for ti := 0; ti < nb*nb; ti++ {
		xtx = append(xtx, xtxParts[ti]...)
		ata = append(ata, ataParts[ti]...)
	}
	var err error
	if t.XtX, err = sparse.NewColMatrix(n, xtx); err != nil {
		return err
	}
	t.AtA, err = sparse.NewColMatrix(n, ata)
	return err
}

// covarianceTile materializes one dense cross-product tile transiently,
// centers and rescales it, and returns the entries surviving the memory
// threshold plus the stricter compute-threshold subset.
func (t *Trainer) covarianceTile(opt Options, mu []float64, i0, i1, j0, j1 int) (xtx, ata []sparse.Triple) {
	users := float64(t.X.Users)
	w := j1 - j0
	buf := make([]float64, (i1-i0)*w)

	for a := i0; a < i1; a++ {
		rows, vals := t.X.Col(a)
		base := (a - i0) * w
		for k, u := range rows {
			va := vals[k]
			cols, cvals := t.X.RowRange(u, j0, j1)
			for p, c := range cols {
				buf[base+c-j0] += va * cvals[p]
			}
		}
	}

	for a := i0; a < i1; a++ {
		base := (a - i0) * w
		for b := j0; b < j1; b++ {
			v := (buf[base+b-j0] - users*mu[a]*mu[b]) * t.Scaling[a] * t.Scaling[b]
			if math.Abs(v) <= opt.ThresholdMem {
				continue
			}
			xtx = append(xtx, sparse.Triple{Row: a, Col: b, Val: v})
			if math.Abs(v) >= opt.ThresholdComp {
				ata = append(ata, sparse.Triple{Row: a, Col: b, Val: v})
			}
		}
	}
	return xtx, ata
}
