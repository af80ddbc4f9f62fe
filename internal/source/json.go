package source

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
)

// ReadJSON parses a whole JSON document: an array of objects loads one
// row per element, a single object loads as one row. Fields become
// columns in sorted name order; a column holding only integral numbers
// comes out long, any other numbers widen it to double.
func ReadJSON(r io.Reader) (*frame.Frame, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("json: decode document: %w", err)
	}
	switch v := root.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for i, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("json: array element %d is not an object", i)
			}
			rows = append(rows, obj)
		}
		return frameFromObjects(rows)
	case map[string]any:
		return frameFromObjects([]map[string]any{v})
	}
	return nil, fmt.Errorf("json: document root must be an object or an array of objects")
}

// ReadJSONL parses line-delimited JSON, one object per record.
func ReadJSONL(r io.Reader) (*frame.Frame, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []map[string]any
	for n := 0; ; n++ {
		var raw any
		err := dec.Decode(&raw)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("jsonl: decode record %d: %w", n, err)
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("jsonl: record %d is not an object", n)
		}
		rows = append(rows, obj)
	}
	return frameFromObjects(rows)
}

func frameFromObjects(rows []map[string]any) (*frame.Frame, error) {
	seen := map[string]bool{}
	var names []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)

	cols := make([]frame.Column, len(names))
	for i, name := range names {
		vals := make([]any, len(rows))
		for j, row := range rows {
			if v, ok := row[name]; ok {
				vals[j] = jsonValue(v)
			}
		}
		cols[i] = frame.Column{Name: name, Type: unifyCells(vals), Values: vals}
		normalizeColumn(&cols[i])
	}
	return frame.New(cols...)
}

// jsonValue converts a decoded JSON value into the cell the frame
// stores: numbers to int64 or float64, composites converted
// recursively.
func jsonValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(t.String(), 64)
		return f
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = jsonValue(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = jsonValue(el)
		}
		return out
	}
	return v
}

// unifyCells picks the column type for a set of cells: longs and
// doubles unify to double, any other mix falls back to string.
func unifyCells(vals []any) frame.Type {
	unified, have := frame.String, false
	for _, v := range vals {
		if v == nil {
			continue
		}
		t := cellType(v)
		switch {
		case !have:
			unified, have = t, true
		case t == unified:
		case (t == frame.Long && unified == frame.Double) || (t == frame.Double && unified == frame.Long):
			unified = frame.Double
		default:
			return frame.String
		}
	}
	return unified
}

func cellType(v any) frame.Type {
	switch v.(type) {
	case int64:
		return frame.Long
	case float64:
		return frame.Double
	case bool:
		return frame.Bool
	case []any:
		return frame.Array
	case map[string]any:
		return frame.Struct
	}
	return frame.String
}

// normalizeColumn rewrites cells whose natural type differs from the
// unified column type.
func normalizeColumn(c *frame.Column) {
	for i, v := range c.Values {
		if v == nil || cellType(v) == c.Type {
			continue
		}
		switch c.Type {
		case frame.Double:
			if n, ok := v.(int64); ok {
				c.Values[i] = float64(n)
			}
		case frame.String:
			c.Values[i] = renderValue(v)
		}
	}
}

// renderValue prints a cell the way it would appear in a JSON document,
// except bare strings which stay unquoted.
func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any, map[string]any:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
