package domain

import (
	"errors"
	"fmt"
)

// EmailIDColumn identifies the row. It is part of the header but never a feature.
const EmailIDColumn = "email_id"

// ErrSchemaMismatch means an encoded frame does not have the columns a
// classifier was trained on. Encoding against the stored schema rules this
// out, so seeing it points at a bug.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// Frame is a dense 0/1 matrix with named, sorted columns and one email id per row.
type Frame struct {
	Columns  []string
	EmailIDs []string
	Values   [][]float64
}

func (f *Frame) NumRows() int { return len(f.EmailIDs) }

// Header lists the feature columns followed by the email id column.
func (f *Frame) Header() []string {
	header := make([]string, 0, len(f.Columns)+1)
	header = append(header, f.Columns...)
	return append(header, EmailIDColumn)
}

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of one column.
func (f *Frame) Column(name string) ([]float64, error) {
	i := f.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: no column %q", ErrSchemaMismatch, name)
	}
	out := make([]float64, len(f.Values))
	for r, row := range f.Values {
		out[r] = row[i]
	}
	return out, nil
}

// Select returns a frame holding only columns, in the given order. Every
// column must exist.
func (f *Frame) Select(columns []string) (*Frame, error) {
	pos := make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		pos[c] = i
	}
	idx := make([]int, len(columns))
	for j, c := range columns {
		i, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("%w: no column %q", ErrSchemaMismatch, c)
		}
		idx[j] = i
	}

	values := make([][]float64, len(f.Values))
	for r, row := range f.Values {
		out := make([]float64, len(idx))
		for j, i := range idx {
			out[j] = row[i]
		}
		values[r] = out
	}
	return &Frame{
		Columns:  append([]string(nil), columns...),
		EmailIDs: append([]string(nil), f.EmailIDs...),
		Values:   values,
	}, nil
}

// Matrix checks that the frame carries exactly columns, in order, and
// returns its rows.
func (f *Frame) Matrix(columns []string) ([][]float64, error) {
	if len(columns) != len(f.Columns) {
		return nil, fmt.Errorf("%w: frame has %d columns, want %d", ErrSchemaMismatch, len(f.Columns), len(columns))
	}
	for i := range columns {
		if columns[i] != f.Columns[i] {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i, f.Columns[i], columns[i])
		}
	}
	return f.Values, nil
}
