// Package sparse holds the compressed matrix structures used by the trainer:
// an immutable users×items interaction matrix indexed both by row and by
// column, and a column-compressed item×item matrix assembled once from
// coordinate triples.
package sparse

import (
	"errors"
	"fmt"
	"sort"
)

// ErrShape reports dimensions inconsistent with declared sizes or malformed
// coordinate indices.
var ErrShape = errors.New("sparse: shape mismatch")

// Triple is one (row, col, value) coordinate entry.
type Triple struct {
	Row int
	Col int
	Val float64
}

// Interactions is a read-only users×items matrix kept in both CSR and CSC
// form. Row access serves per-user scans, column access per-item scans;
// both index arrays are sorted.
type Interactions struct {
	Users int
	Items int

	rowPtr []int
	rowCol []int
	rowVal []float64

	colPtr []int
	colRow []int
	colVal []float64
}

// NewInteractions assembles the dual-indexed matrix from triples. Triples
// must not contain duplicate coordinates.
func NewInteractions(users, items int, triples []Triple) (*Interactions, error) {
	if users <= 0 || items <= 0 {
		return nil, fmt.Errorf("%w: %d users, %d items", ErrShape, users, items)
	}
	for _, t := range triples {
		if t.Row < 0 || t.Row >= users || t.Col < 0 || t.Col >= items {
			return nil, fmt.Errorf("%w: entry (%d,%d) outside %dx%d", ErrShape, t.Row, t.Col, users, items)
		}
	}
	m := &Interactions{
		Users:  users,
		Items:  items,
		rowPtr: make([]int, users+1),
		rowCol: make([]int, len(triples)),
		rowVal: make([]float64, len(triples)),
		colPtr: make([]int, items+1),
		colRow: make([]int, len(triples)),
		colVal: make([]float64, len(triples)),
	}

	for _, t := range triples {
		m.rowPtr[t.Row+1]++
		m.colPtr[t.Col+1]++
	}
	for u := 0; u < users; u++ {
		m.rowPtr[u+1] += m.rowPtr[u]
	}
	for j := 0; j < items; j++ {
		m.colPtr[j+1] += m.colPtr[j]
	}

	rowFill := make([]int, users)
	colFill := make([]int, items)
	for _, t := range triples {
		p := m.rowPtr[t.Row] + rowFill[t.Row]
		m.rowCol[p] = t.Col
		m.rowVal[p] = t.Val
		rowFill[t.Row]++

		p = m.colPtr[t.Col] + colFill[t.Col]
		m.colRow[p] = t.Row
		m.colVal[p] = t.Val
		colFill[t.Col]++
	}

	for u := 0; u < users; u++ {
		lo, hi := m.rowPtr[u], m.rowPtr[u+1]
		sortPaired(m.rowCol[lo:hi], m.rowVal[lo:hi])
	}
	for j := 0; j < items; j++ {
		lo, hi := m.colPtr[j], m.colPtr[j+1]
		sortPaired(m.colRow[lo:hi], m.colVal[lo:hi])
	}
	return m, nil
}

// NNZ returns the number of stored entries.
func (m *Interactions) NNZ() int { return len(m.rowVal) }

// Col returns the user indices and values of item column j. The returned
// slices alias internal storage and must not be mutated.
func (m *Interactions) Col(j int) (rows []int, vals []float64) {
	lo, hi := m.colPtr[j], m.colPtr[j+1]
	return m.colRow[lo:hi], m.colVal[lo:hi]
}

// RowRange returns the entries of user row u whose column index lies in
// [lo, hi). The returned slices alias internal storage.
func (m *Interactions) RowRange(u, lo, hi int) (cols []int, vals []float64) {
	s, e := m.rowPtr[u], m.rowPtr[u+1]
	row := m.rowCol[s:e]
	a := s + sort.SearchInts(row, lo)
	b := s + sort.SearchInts(row, hi)
	return m.rowCol[a:b], m.rowVal[a:b]
}

// ColMatrix is a column-compressed square matrix assembled once from
// coordinate triples; row indices within each column are sorted. It backs
// the covariance matrix, the sparsity mask and the weight matrix.
type ColMatrix struct {
	n      int
	colPtr []int
	rowInd []int
	val    []float64
}

// NewColMatrix builds an n×n column-compressed matrix. Triples must not
// contain duplicate coordinates.
func NewColMatrix(n int, triples []Triple) (*ColMatrix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrShape, n)
	}
	c := &ColMatrix{
		n:      n,
		colPtr: make([]int, n+1),
		rowInd: make([]int, len(triples)),
		val:    make([]float64, len(triples)),
	}
	for _, t := range triples {
		if t.Row < 0 || t.Row >= n || t.Col < 0 || t.Col >= n {
			return nil, fmt.Errorf("%w: entry (%d,%d) outside %dx%d", ErrShape, t.Row, t.Col, n, n)
		}
		c.colPtr[t.Col+1]++
	}
	for j := 0; j < n; j++ {
		c.colPtr[j+1] += c.colPtr[j]
	}
	fill := make([]int, n)
	for _, t := range triples {
		p := c.colPtr[t.Col] + fill[t.Col]
		c.rowInd[p] = t.Row
		c.val[p] = t.Val
		fill[t.Col]++
	}
	for j := 0; j < n; j++ {
		lo, hi := c.colPtr[j], c.colPtr[j+1]
		sortPaired(c.rowInd[lo:hi], c.val[lo:hi])
	}
	return c, nil
}

// Dim returns the matrix dimension.
func (c *ColMatrix) Dim() int { return c.n }

// NNZ returns the number of stored entries.
func (c *ColMatrix) NNZ() int { return len(c.val) }

// ColNNZ returns the number of stored entries in column j.
func (c *ColMatrix) ColNNZ(j int) int { return c.colPtr[j+1] - c.colPtr[j] }

// Col returns the row indices and values of column j, sorted by row. The
// returned slices alias internal storage and must not be mutated.
func (c *ColMatrix) Col(j int) (rows []int, vals []float64) {
	lo, hi := c.colPtr[j], c.colPtr[j+1]
	return c.rowInd[lo:hi], c.val[lo:hi]
}

// At returns the stored value at (i, j), or 0 if the coordinate is not part
// of the support.
func (c *ColMatrix) At(i, j int) float64 {
	lo, hi := c.colPtr[j], c.colPtr[j+1]
	col := c.rowInd[lo:hi]
	k := sort.SearchInts(col, i)
	if k < len(col) && col[k] == i {
		return c.val[lo+k]
	}
	return 0
}

// Has reports whether (i, j) is part of the stored support.
func (c *ColMatrix) Has(i, j int) bool {
	lo, hi := c.colPtr[j], c.colPtr[j+1]
	col := c.rowInd[lo:hi]
	k := sort.SearchInts(col, i)
	return k < len(col) && col[k] == i
}

// Diag returns the main diagonal as a dense vector; coordinates outside the
// support contribute 0.
func (c *ColMatrix) Diag() []float64 {
	d := make([]float64, c.n)
	for j := 0; j < c.n; j++ {
		d[j] = c.At(j, j)
	}
	return d
}

// Triples returns all stored entries in column-major order.
func (c *ColMatrix) Triples() []Triple {
	out := make([]Triple, 0, len(c.val))
	for j := 0; j < c.n; j++ {
		lo, hi := c.colPtr[j], c.colPtr[j+1]
		for p := lo; p < hi; p++ {
			out = append(out, Triple{Row: c.rowInd[p], Col: j, Val: c.val[p]})
		}
	}
	return out
}

// VecMul computes y = xᵀC, the row-vector product used for scoring: y[j] is
// the dot product of x with column j.
func (c *ColMatrix) VecMul(x []float64) ([]float64, error) {
	if len(x) != c.n {
		return nil, fmt.Errorf("%w: vector length %d against dimension %d", ErrShape, len(x), c.n)
	}
	y := make([]float64, c.n)
	for j := 0; j < c.n; j++ {
		lo, hi := c.colPtr[j], c.colPtr[j+1]
		sum := 0.0
		for p := lo; p < hi; p++ {
			sum += x[c.rowInd[p]] * c.val[p]
		}
		y[j] = sum
	}
	return y, nil
}

// sortPaired sorts idx ascending and keeps val aligned.
func sortPaired(idx []int, val []float64) {
	if sort.IntsAreSorted(idx) {
		return
	}
	sort.Sort(&pairSorter{idx: idx, val: val})
}

type pairSorter struct {
	idx []int
	val []float64
}

func (s *pairSorter) Len() int           { return len(s.idx) }
func (s *pairSorter) Less(i, j int) bool { return s.idx[i] < s.idx[j] }
func (s *pairSorter) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.val[i], s.val[j] = s.val[j], s.val[i]
}
