// Package frame implements the columnar dataset the pipeline operators
// transform.
//
// A Frame is an ordered set of named, typed columns of equal length. Cell
// values use one Go representation per Type and nil for nulls:
//
//	String    string
//	Long      int64
//	Double    float64
//	Bool      bool
//	Date      time.Time (midnight UTC)
//	Timestamp time.Time
//	Array     []any
//	Struct    map[string]any
//
// Frames are immutable by convention: transforms return a new Frame and
// share value slices with their input, so callers must not mutate a slice
// after handing it to New.
package frame

import "fmt"

// Type is the physical representation of a column.
type Type int

const (
	String Type = iota
	Long
	Double
	Bool
	Date
	Timestamp
	Array
	Struct
)

var typeNames = [...]string{
	String:    "string",
	Long:      "long",
	Double:    "double",
	Bool:      "bool",
	Date:      "date",
	Timestamp: "timestamp",
	Array:     "array",
	Struct:    "struct",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

// Column is one named, typed value vector.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols   []Column
	byName map[string]int
}

// New builds a frame from cols, rejecting empty or duplicate names and
// ragged column lengths.
func New(cols ...Column) (*Frame, error) {
	f := &Frame{
		cols:   append([]Column(nil), cols...),
		byName: make(map[string]int, len(cols)),
	}
	rows := -1
	for i, c := range f.cols {
		if c.Name == "" {
			return nil, fmt.Errorf("frame: column %d has an empty name", i)
		}
		if _, dup := f.byName[c.Name]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", c.Name)
		}
		f.byName[c.Name] = i
		if rows == -1 {
			rows = len(c.Values)
		} else if len(c.Values) != rows {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", c.Name, len(c.Values), rows)
		}
	}
	return f, nil
}

// build skips validation for frames derived from an already-valid one.
func build(cols []Column) *Frame {
	f := &Frame{cols: cols, byName: make(map[string]int, len(cols))}
	for i, c := range cols {
		f.byName[c.Name] = i
	}
	return f
}

// NumRows returns the row count; a frame with no columns has zero rows.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.cols[0].Values)
}

func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in frame order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

func (f *Frame) Has(name string) bool {
	_, ok := f.byName[name]
	return ok
}

// Column returns the named column. The Values slice is shared, not copied.
func (f *Frame) Column(name string) (Column, bool) {
	i, ok := f.byName[name]
	if !ok {
		return Column{}, false
	}
	return f.cols[i], true
}

// ColumnAt returns the column at position i in frame order.
func (f *Frame) ColumnAt(i int) Column { return f.cols[i] }

// Type returns the physical type of the named column.
func (f *Frame) Type(name string) (Type, bool) {
	i, ok := f.byName[name]
	if !ok {
		return 0, false
	}
	return f.cols[i].Type, true
}

// Row returns the values of row i in column order.
func (f *Frame) Row(i int) []any {
	out := make([]any, len(f.cols))
	for ci, c := range f.cols {
		out[ci] = c.Values[i]
	}
	return out
}

// Select returns a frame holding exactly the named columns, in the given
// order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]Column, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		i, ok := f.byName[name]
		if !ok {
			return nil, fmt.Errorf("frame: no column %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("frame: column %q selected twice", name)
		}
		seen[name] = true
		cols = append(cols, f.cols[i])
	}
	return build(cols), nil
}

// Drop returns a frame without the named columns. Unknown names are
// ignored.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	cols := make([]Column, 0, len(f.cols))
	for _, c := range f.cols {
		if !drop[c.Name] {
			cols = append(cols, c)
		}
	}
	return build(cols)
}

// Head returns a frame with at most n leading rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n >= f.NumRows() {
		return f
	}
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = Column{Name: c.Name, Type: c.Type, Values: c.Values[:n:n]}
	}
	return build(cols)
}

// Filter returns a frame keeping only the rows for which keep reports
// true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	n := f.NumRows()
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	cols := make([]Column, len(f.cols))
	for ci, c := range f.cols {
		vals := make([]any, len(idx))
		for vi, ri := range idx {
			vals[vi] = c.Values[ri]
		}
		cols[ci] = Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return build(cols)
}

// WithColumn returns a frame with c replacing the same-named column in
// place, or appended when no column has that name. It panics when c's
// length does not match the frame, which is a programmer error.
func (f *Frame) WithColumn(c Column) *Frame {
	if len(f.cols) > 0 && len(c.Values) != f.NumRows() {
		panic(fmt.Sprintf("frame: WithColumn %q has %d rows, frame has %d", c.Name, len(c.Values), f.NumRows()))
	}
	cols := append([]Column(nil), f.cols...)
	if i, ok := f.byName[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return build(cols)
}

// WithColumnRenamed returns a frame with column old renamed to new. A
// missing old leaves the frame unchanged; renaming onto an existing other
// column panics.
func (f *Frame) WithColumnRenamed(old, new string) *Frame {
	i, ok := f.byName[old]
	if !ok {
		return f
	}
	if j, taken := f.byName[new]; taken && j != i {
		panic(fmt.Sprintf("frame: rename %q to %q collides with an existing column", old, new))
	}
	cols := append([]Column(nil), f.cols...)
	cols[i].Name = new
	return build(cols)
}

// DefaultTempPrefix is the prefix TempColName callers use for scratch
// columns.
const DefaultTempPrefix = "temp_col"

// TempColName returns a column name not used by the frame and not listed
// in illegal. It tries prefix itself first, then _prefix_0, _prefix_1 and
// so on, so the result is deterministic for a given frame.
func (f *Frame) TempColName(prefix string, illegal ...string) string {
	taken := make(map[string]bool, len(f.cols)+len(illegal))
	for _, c := range f.cols {
		taken[c.Name] = true
	}
	for _, n := range illegal {
		taken[n] = true
	}
	name := prefix
	for idx := 0; taken[name]; idx++ {
		name = fmt.Sprintf("_%s_%d", prefix, idx)
	}
	return name
}
