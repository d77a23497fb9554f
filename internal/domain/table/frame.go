// Package table provides Frame, an ordered-column numeric table whose rows
// are keyed by a source identifier and a timestamp.
//
// Every pipeline stage takes a Frame and returns a new one; stages never
// mutate their input.
package table

import (
	"math"
	"slices"
	"sort"
	"strings"
	"time"
)

// Key column names. They are not numeric and live on Row instead of Values.
const (
	ColSourceKey = "SOURCE_KEY"
	ColDateTime  = "DATE_TIME"
)

// Row is one observation. Values is aligned with Frame.Columns; NaN marks a
// missing value.
type Row struct {
	Source string
	Time   time.Time
	Values []float64
}

// Frame is an ordered set of named float64 columns.
type Frame struct {
	columns   []string
	index     map[string]int
	hasSource bool
	hasTime   bool
	rows      []Row
}

// Option configures a new Frame.
type Option func(*Frame)

// WithoutSource builds a frame that does not carry SOURCE_KEY.
func WithoutSource() Option { return func(f *Frame) { f.hasSource = false } }

// WithoutTime builds a frame that does not carry DATE_TIME.
func WithoutTime() Option { return func(f *Frame) { f.hasTime = false } }

// New creates an empty frame with the given numeric columns. Both key columns
// are present unless disabled with an option.
func New(columns []string, opts ...Option) *Frame {
	f := &Frame{
		columns:   slices.Clone(columns),
		index:     make(map[string]int, len(columns)),
		hasSource: true,
		hasTime:   true,
	}
	for i, c := range f.columns {
		f.index[c] = i
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Append adds a row. Values shorter than the column list are padded with NaN;
// extra values are ignored.
func (f *Frame) Append(source string, ts time.Time, values []float64) {
	row := Row{Source: source, Time: ts, Values: make([]float64, len(f.columns))}
	for i := range row.Values {
		if i < len(values) {
			row.Values[i] = values[i]
		} else {
			row.Values[i] = math.NaN()
		}
	}
	f.rows = append(f.rows, row)
}

// Columns returns a copy of the numeric column names in order.
func (f *Frame) Columns() []string { return slices.Clone(f.columns) }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Row returns row i. The returned Values slice must not be modified.
func (f *Frame) Row(i int) Row { return f.rows[i] }

// HasSource reports whether SOURCE_KEY is part of the schema.
func (f *Frame) HasSource() bool { return f.hasSource }

// HasTime reports whether DATE_TIME is part of the schema.
func (f *Frame) HasTime() bool { return f.hasTime }

// HasColumn reports whether name is a numeric or key column of the frame.
func (f *Frame) HasColumn(name string) bool {
	switch name {
	case ColSourceKey:
		return f.hasSource
	case ColDateTime:
		return f.hasTime
	}
	_, ok := f.index[name]
	return ok
}

// Index returns the position of a numeric column.
func (f *Frame) Index(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Missing returns the sorted subset of required that the frame lacks.
func (f *Frame) Missing(required ...string) []string {
	var missing []string
	for _, name := range required {
		if !f.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Require fails with a MissingColumnError when any required column is absent.
func (f *Frame) Require(required ...string) error {
	if missing := f.Missing(required...); len(missing) > 0 {
		return &MissingColumnError{Columns: missing}
	}
	return nil
}

// Column returns a copy of a numeric column.
func (f *Frame) Column(name string) ([]float64, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &MissingColumnError{Columns: []string{name}}
	}
	out := make([]float64, len(f.rows))
	for r := range f.rows {
		out[r] = f.rows[r].Values[i]
	}
	return out, nil
}

// Value returns the value of column name at row i, NaN when the column is absent.
func (f *Frame) Value(i int, name string) float64 {
	c, ok := f.index[name]
	if !ok {
		return math.NaN()
	}
	return f.rows[i].Values[c]
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := f.emptyLike(f.columns)
	out.rows = make([]Row, len(f.rows))
	for i, r := range f.rows {
		out.rows[i] = Row{Source: r.Source, Time: r.Time, Values: slices.Clone(r.Values)}
	}
	return out
}

// Filter returns a new frame with the rows for which keep returns true.
func (f *Frame) Filter(keep func(r Row) bool) *Frame {
	out := f.emptyLike(f.columns)
	for _, r := range f.rows {
		if keep(r) {
			out.rows = append(out.rows, Row{Source: r.Source, Time: r.Time, Values: slices.Clone(r.Values)})
		}
	}
	return out
}

// Select returns a frame restricted to columns, in the given order.
func (f *Frame) Select(columns []string) (*Frame, error) {
	idx, err := f.indices(columns)
	if err != nil {
		return nil, err
	}
	out := f.emptyLike(columns)
	out.rows = make([]Row, len(f.rows))
	for r, row := range f.rows {
		vals := make([]float64, len(idx))
		for j, c := range idx {
			vals[j] = row.Values[c]
		}
		out.rows[r] = Row{Source: row.Source, Time: row.Time, Values: vals}
	}
	return out, nil
}

// Matrix returns the values of columns as a row-major matrix.
func (f *Frame) Matrix(columns []string) ([][]float64, error) {
	idx, err := f.indices(columns)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(f.rows))
	for r, row := range f.rows {
		vals := make([]float64, len(idx))
		for j, c := range idx {
			vals[j] = row.Values[c]
		}
		out[r] = vals
	}
	return out, nil
}

// WithColumn returns a copy of the frame with an extra (or replaced) column.
func (f *Frame) WithColumn(name string, values []float64) (*Frame, error) {
	if len(values) != len(f.rows) {
		return nil, &LengthMismatchError{Column: name, Expected: len(f.rows), Got: len(values)}
	}
	columns := f.columns
	pos, exists := f.index[name]
	if !exists {
		columns = append(slices.Clone(f.columns), name)
		pos = len(columns) - 1
	}
	out := f.emptyLike(columns)
	out.rows = make([]Row, len(f.rows))
	for r, row := range f.rows {
		vals := make([]float64, len(columns))
		copy(vals, row.Values)
		vals[pos] = values[r]
		out.rows[r] = Row{Source: row.Source, Time: row.Time, Values: vals}
	}
	return out, nil
}

// SortBySourceTime returns a copy sorted by (source, time). The sort is
// stable so rows sharing a key keep their input order.
func (f *Frame) SortBySourceTime() *Frame {
	out := f.Clone()
	sort.SliceStable(out.rows, func(i, j int) bool {
		a, b := out.rows[i], out.rows[j]
		if c := strings.Compare(a.Source, b.Source); c != 0 {
			return c < 0
		}
		return a.Time.Before(b.Time)
	})
	return out
}

// SortByTimeSource returns a copy sorted chronologically, ties broken by source.
func (f *Frame) SortByTimeSource() *Frame {
	out := f.Clone()
	sort.SliceStable(out.rows, func(i, j int) bool {
		a, b := out.rows[i], out.rows[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		return a.Source < b.Source
	})
	return out
}

// Slice returns rows [from, to) as a new frame.
func (f *Frame) Slice(from, to int) *Frame {
	from = max(0, min(from, len(f.rows)))
	to = max(from, min(to, len(f.rows)))
	out := f.emptyLike(f.columns)
	out.rows = make([]Row, 0, to-from)
	for _, r := range f.rows[from:to] {
		out.rows = append(out.rows, Row{Source: r.Source, Time: r.Time, Values: slices.Clone(r.Values)})
	}
	return out
}

// Groups returns contiguous [start, end) row ranges sharing a source. The
// frame is expected to be sorted by source already.
func (f *Frame) Groups() [][2]int {
	var groups [][2]int
	start := 0
	for i := 1; i <= len(f.rows); i++ {
		if i == len(f.rows) || f.rows[i].Source != f.rows[start].Source {
			if i > start {
				groups = append(groups, [2]int{start, i})
			}
			start = i
		}
	}
	return groups
}

// FillPerSource forward-fills then backward-fills missing values within each
// contiguous source group. The frame is expected to be sorted by source.
func (f *Frame) FillPerSource() *Frame {
	out := f.Clone()
	for _, g := range out.Groups() {
		rows := out.rows[g[0]:g[1]]
		for c := range out.columns {
			last := math.NaN()
			for i := range rows {
				if math.IsNaN(rows[i].Values[c]) {
					rows[i].Values[c] = last
					continue
				}
				last = rows[i].Values[c]
			}
			next := math.NaN()
			for i := len(rows) - 1; i >= 0; i-- {
				if math.IsNaN(rows[i].Values[c]) {
					rows[i].Values[c] = next
					continue
				}
				next = rows[i].Values[c]
			}
		}
	}
	return out
}

// DropIncomplete returns the rows holding no missing value.
func (f *Frame) DropIncomplete() *Frame {
	return f.Filter(func(r Row) bool { return r.Complete() })
}

// Complete reports whether every value in row r is present.
func (r Row) Complete() bool {
	for _, v := range r.Values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func (f *Frame) emptyLike(columns []string) *Frame {
	out := New(columns)
	out.hasSource = f.hasSource
	out.hasTime = f.hasTime
	return out
}

func (f *Frame) indices(columns []string) ([]int, error) {
	idx := make([]int, len(columns))
	var missing []string
	for j, name := range columns {
		c, ok := f.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[j] = c
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnError{Columns: missing}
	}
	return idx, nil
}
