// Package schema carries the ordered column-to-logical-type assignment
// that type inference emits and the cast engine applies.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/mohave"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
)

// Pair is one column's logical type assignment.
type Pair struct {
	Name string
	Type mohave.DataType
}

// Schema is an ordered mapping from column name to logical type. The order
// is the cast engine's output column order, so it survives JSON
// round-trips.
type Schema struct {
	names []string
	types map[string]mohave.DataType
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{types: make(map[string]mohave.DataType)}
}

// FromPairs builds a schema from pairs, rejecting duplicate names.
func FromPairs(pairs ...Pair) (*Schema, error) {
	s := New()
	for _, p := range pairs {
		if _, dup := s.types[p.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate column %q", p.Name)
		}
		s.Set(p.Name, p.Type)
	}
	return s, nil
}

// Set assigns name's logical type, appending name on first use and
// keeping its position on reassignment.
func (s *Schema) Set(name string, t mohave.DataType) {
	if _, ok := s.types[name]; !ok {
		s.names = append(s.names, name)
	}
	s.types[name] = t
}

// Get returns the logical type assigned to name.
func (s *Schema) Get(name string) (mohave.DataType, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Len returns the number of columns covered.
func (s *Schema) Len() int { return len(s.names) }

// Names returns the column names in schema order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.names...)
}

// Pairs returns the assignments in schema order.
func (s *Schema) Pairs() []Pair {
	out := make([]Pair, len(s.names))
	for i, n := range s.names {
		out[i] = Pair{Name: n, Type: s.types[n]}
	}
	return out
}

// Validate checks that s covers f's columns exactly: same count, every
// schema column present in the frame.
func (s *Schema) Validate(f *frame.Frame) error {
	if s.Len() != f.NumCols() {
		return operr.Newf(operr.SchemaMismatch,
			"schema has %d columns but the dataset has %d columns", s.Len(), f.NumCols())
	}
	for _, name := range s.names {
		if !f.Has(name) {
			return operr.Newf(operr.SchemaMismatch,
				"schema column %q is not present in the dataset", name)
		}
	}
	return nil
}

// MarshalJSON writes the schema as a JSON object in schema order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(string(s.types[name]))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving its key order and
// validating every type tag.
func (s *Schema) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema: expected a JSON object, got %v", tok)
	}

	out := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		name := keyTok.(string)
		if _, dup := out.types[name]; dup {
			return fmt.Errorf("schema: duplicate column %q", name)
		}

		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		tag, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("schema: column %q has a non-string type", name)
		}
		dt, err := mohave.Parse(tag)
		if err != nil {
			return fmt.Errorf("schema: column %q: %w", name, err)
		}
		out.Set(name, dt)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	*s = *out
	return nil
}
