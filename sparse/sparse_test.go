package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionsDualIndex(t *testing.T) {
	// 3 users × 4 items, deliberately unsorted triples.
	m, err := NewInteractions(3, 4, []Triple{
		{Row: 2, Col: 3, Val: 1},
		{Row: 0, Col: 1, Val: 2},
		{Row: 0, Col: 0, Val: 1},
		{Row: 1, Col: 1, Val: 3},
		{Row: 2, Col: 0, Val: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, m.NNZ())

	rows, vals := m.Col(1)
	assert.Equal(t, []int{0, 1}, rows)
	assert.Equal(t, []float64{2, 3}, vals)

	rows, vals = m.Col(2)
	assert.Empty(t, rows)
	assert.Empty(t, vals)

	cols, vals := m.RowRange(0, 0, 4)
	assert.Equal(t, []int{0, 1}, cols)
	assert.Equal(t, []float64{1, 2}, vals)

	cols, vals = m.RowRange(0, 1, 4)
	assert.Equal(t, []int{1}, cols)
	assert.Equal(t, []float64{2}, vals)

	cols, _ = m.RowRange(2, 1, 3)
	assert.Empty(t, cols)
}

func TestInteractionsShapeErrors(t *testing.T) {
	_, err := NewInteractions(0, 3, nil)
	require.ErrorIs(t, err, ErrShape)

	_, err = NewInteractions(2, 2, []Triple{{Row: 2, Col: 0, Val: 1}})
	require.ErrorIs(t, err, ErrShape)

	_, err = NewInteractions(2, 2, []Triple{{Row: 0, Col: -1, Val: 1}})
	require.ErrorIs(t, err, ErrShape)
}

func TestColMatrixAccess(t *testing.T) {
	c, err := NewColMatrix(3, []Triple{
		{Row: 1, Col: 0, Val: -0.5},
		{Row: 0, Col: 0, Val: 2},
		{Row: 2, Col: 2, Val: 1.5},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Dim())
	assert.Equal(t, 3, c.NNZ())
	assert.Equal(t, 2, c.ColNNZ(0))
	assert.Equal(t, 0, c.ColNNZ(1))

	assert.Equal(t, 2.0, c.At(0, 0))
	assert.Equal(t, -0.5, c.At(1, 0))
	assert.Equal(t, 0.0, c.At(2, 0))
	assert.True(t, c.Has(1, 0))
	assert.False(t, c.Has(0, 1))

	assert.Equal(t, []float64{2, 0, 1.5}, c.Diag())

	rows, vals := c.Col(0)
	assert.Equal(t, []int{0, 1}, rows)
	assert.Equal(t, []float64{2, -0.5}, vals)
}

func TestColMatrixTriplesColumnMajor(t *testing.T) {
	in := []Triple{
		{Row: 2, Col: 1, Val: 3},
		{Row: 0, Col: 1, Val: 1},
		{Row: 1, Col: 0, Val: 2},
	}
	c, err := NewColMatrix(3, in)
	require.NoError(t, err)
	assert.Equal(t, []Triple{
		{Row: 1, Col: 0, Val: 2},
		{Row: 0, Col: 1, Val: 1},
		{Row: 2, Col: 1, Val: 3},
	}, c.Triples())
}

func TestColMatrixVecMul(t *testing.T) {
	// C = [[1, 0], [2, 3]] stored sparsely; xᵀC with x = (1, 2).
	c, err := NewColMatrix(2, []Triple{
		{Row: 0, Col: 0, Val: 1},
		{Row: 1, Col: 0, Val: 2},
		{Row: 1, Col: 1, Val: 3},
	})
	require.NoError(t, err)

	y, err := c.VecMul([]float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, y)

	_, err = c.VecMul([]float64{1})
	require.ErrorIs(t, err, ErrShape)
}

func TestColMatrixShapeErrors(t *testing.T) {
	_, err := NewColMatrix(0, nil)
	require.ErrorIs(t, err, ErrShape)

	_, err = NewColMatrix(2, []Triple{{Row: 0, Col: 5, Val: 1}})
	require.ErrorIs(t, err, ErrShape)
}
