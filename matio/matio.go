// Package matio reads and writes sparse matrices as (row, col, value)
// coordinate triples. Values are formatted with shortest round-trip
// precision, so writing and reading back reproduces them bit for bit.
package matio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/okanv/mrfcf/sparse"
)

// WriteTriplesCSV writes triples as "row,col,value" lines with a header.
func WriteTriplesCSV(w io.Writer, ts []sparse.Triple) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"row", "col", "value"}); err != nil {
		return err
	}
	for _, t := range ts {
		rec := []string{
			strconv.Itoa(t.Row),
			strconv.Itoa(t.Col),
			strconv.FormatFloat(t.Val, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTriplesCSV reads "row,col,value" lines; a leading header row is
// skipped if present.
func ReadTriplesCSV(r io.Reader) ([]sparse.Triple, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	var out []sparse.Triple
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if _, err := strconv.Atoi(rec[0]); err != nil {
				continue // header row
			}
		}
		row, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("matio: bad row index %q: %w", rec[0], err)
		}
		col, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("matio: bad col index %q: %w", rec[1], err)
		}
		val, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("matio: bad value %q: %w", rec[2], err)
		}
		out = append(out, sparse.Triple{Row: row, Col: col, Val: val})
	}
}

// matrixJSON is the persisted form of a square matrix; Dim is carried so
// trailing empty columns survive the round trip.
type matrixJSON struct {
	Dim     int             `json:"dim"`
	Triples []sparse.Triple `json:"triples"`
}

// WriteMatrixJSON persists a column-compressed matrix as JSON.
func WriteMatrixJSON(w io.Writer, m *sparse.ColMatrix) error {
	return json.NewEncoder(w).Encode(matrixJSON{
		Dim:     m.Dim(),
		Triples: m.Triples(),
	})
}

// ReadMatrixJSON reads a matrix written by WriteMatrixJSON.
func ReadMatrixJSON(r io.Reader) (*sparse.ColMatrix, error) {
	var mj matrixJSON
	if err := json.NewDecoder(r).Decode(&mj); err != nil {
		return nil, err
	}
	return sparse.NewColMatrix(mj.Dim, mj.Triples)
}

// ReadInteractionsCSV reads "user,item,count" triples and assembles the
// interaction matrix. Dimensions are taken as users×items when positive,
// otherwise inferred from the largest indices seen.
func ReadInteractionsCSV(r io.Reader, users, items int) (*sparse.Interactions, error) {
	ts, err := ReadTriplesCSV(r)
	if err != nil {
		return nil, err
	}
	if users <= 0 || items <= 0 {
		for _, t := range ts {
			if t.Row >= users {
				users = t.Row + 1
			}
			if t.Col >= items {
				items = t.Col + 1
			}
		}
	}
	return sparse.NewInteractions(users, items, ts)
}
