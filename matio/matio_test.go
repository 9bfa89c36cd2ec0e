package matio

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okanv/mrfcf/sparse"
)

func TestTriplesCSVRoundTrip(t *testing.T) {
	in := []sparse.Triple{
		{Row: 0, Col: 1, Val: 0.1},
		{Row: 3, Col: 0, Val: -1.0 / 3.0},
		{Row: 2, Col: 2, Val: math.Pi},
		{Row: 1, Col: 4, Val: 1e-300},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTriplesCSV(&buf, in))

	out, err := ReadTriplesCSV(&buf)
	require.NoError(t, err)
	// Shortest round-trip formatting reproduces every value bit for bit.
	assert.Equal(t, in, out)
}

func TestReadTriplesCSVWithoutHeader(t *testing.T) {
	out, err := ReadTriplesCSV(strings.NewReader("0,1,2.5\n1,0,-3\n"))
	require.NoError(t, err)
	assert.Equal(t, []sparse.Triple{
		{Row: 0, Col: 1, Val: 2.5},
		{Row: 1, Col: 0, Val: -3},
	}, out)
}

func TestReadTriplesCSVBadInput(t *testing.T) {
	_, err := ReadTriplesCSV(strings.NewReader("0,1,2.5\nx,0,1\n"))
	require.Error(t, err)

	_, err = ReadTriplesCSV(strings.NewReader("0,1\n"))
	require.Error(t, err)
}

func TestMatrixJSONRoundTrip(t *testing.T) {
	// Dimension 4 with an empty trailing column must survive.
	m, err := sparse.NewColMatrix(4, []sparse.Triple{
		{Row: 1, Col: 0, Val: -0.25},
		{Row: 0, Col: 2, Val: 2.0 / 7.0},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMatrixJSON(&buf, m))

	back, err := ReadMatrixJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Dim(), back.Dim())
	assert.Equal(t, m.Triples(), back.Triples())
}

func TestReadInteractionsCSV(t *testing.T) {
	src := "user,item,count\n0,0,1\n2,1,3\n1,4,2\n"

	x, err := ReadInteractionsCSV(strings.NewReader(src), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, x.Users)
	assert.Equal(t, 5, x.Items)
	assert.Equal(t, 3, x.NNZ())

	x, err = ReadInteractionsCSV(strings.NewReader(src), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, x.Users)
	assert.Equal(t, 10, x.Items)

	_, err = ReadInteractionsCSV(strings.NewReader(src), 2, 2)
	require.ErrorIs(t, err, sparse.ErrShape)
}
