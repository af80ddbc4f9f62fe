// Package cast coerces frame columns into the physical form their logical
// types demand.
//
// The per-value coercions mirror non-strict SQL CAST: values that do not
// convert become null rather than failing the run, and the single-column
// entry point then applies one of five policies to those nulls.
package cast

import (
	"fmt"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/mohave"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/schema"
)

// ErrorColumnSuffix names the companion column the *_with_new_col
// strategies add next to the source column.
const ErrorColumnSuffix = "_typecast_error"

// Column casts c to logical type target. pattern overrides the date or
// datetime format: empty means the default date pattern for dates and
// per-value format detection for datetimes. A column whose physical type
// already matches is returned untouched, except for datetimes, which
// always run through the parse so an explicit pattern is honored.
func Column(c frame.Column, target mohave.DataType, pattern string) (frame.Column, error) {
	switch target {
	case mohave.Object:
		return c, nil

	case mohave.Array, mohave.Struct:
		phys, _ := target.PhysicalType()
		if c.Type == phys {
			return c, nil
		}
		return frame.Column{}, operr.Newf(operr.UnsupportedColumnType,
			"cannot cast column %q from %s to %s", c.Name, c.Type, target)

	case mohave.Datetime:
		layout := ""
		if pattern != "" {
			l, err := PatternLayout(pattern)
			if err != nil {
				return frame.Column{}, err
			}
			layout = l
		}
		if c.Type == frame.Timestamp && layout == "" {
			return c, nil
		}
		out := make([]any, len(c.Values))
		for i, v := range c.Values {
			out[i] = toTimestamp(v, c.Type, layout)
		}
		return frame.Column{Name: c.Name, Type: frame.Timestamp, Values: out}, nil

	case mohave.Date:
		if pattern == "" {
			pattern = DefaultDatePattern
		}
		layout, err := PatternLayout(pattern)
		if err != nil {
			return frame.Column{}, err
		}
		if c.Type == frame.Date {
			return c, nil
		}
		out := make([]any, len(c.Values))
		for i, v := range c.Values {
			out[i] = toDate(v, c.Type, layout)
		}
		return frame.Column{Name: c.Name, Type: frame.Date, Values: out}, nil

	case mohave.Long, mohave.Float, mohave.Bool, mohave.String:
		phys, _ := target.PhysicalType()
		if c.Type == phys {
			return c, nil
		}
		var conv func(any) any
		switch target {
		case mohave.Long:
			conv = func(v any) any { return toLong(v, c.Type) }
		case mohave.Float:
			conv = func(v any) any { return toDouble(v, c.Type) }
		case mohave.Bool:
			conv = func(v any) any { return toBool(v, c.Type) }
		default:
			conv = func(v any) any { return toString(v, c.Type) }
		}
		out := make([]any, len(c.Values))
		for i, v := range c.Values {
			out[i] = conv(v)
		}
		return frame.Column{Name: c.Name, Type: phys, Values: out}, nil
	}

	return frame.Column{}, operr.Newf(operr.InvalidParameterValue,
		"unknown data type %q", string(target))
}

// Apply casts every column of f to its schema type in one pass, producing
// columns in schema order. Values that do not convert become null.
func Apply(f *frame.Frame, s *schema.Schema) (*frame.Frame, error) {
	cols := make([]frame.Column, 0, s.Len())
	for _, pr := range s.Pairs() {
		c, ok := f.Column(pr.Name)
		if !ok {
			return nil, fmt.Errorf("cast: no column %q", pr.Name)
		}
		nc, err := Column(c, pr.Type, "")
		if err != nil {
			return nil, err
		}
		cols = append(cols, nc)
	}
	return frame.New(cols...)
}

// Strategy names a policy for rows whose values do not survive a cast.
type Strategy string

const (
	ReplaceWithNull        Strategy = "replace_null"
	ReplaceWithNullNewCol  Strategy = "replace_null_with_new_col"
	ReplaceWithValue       Strategy = "replace_value"
	ReplaceWithValueNewCol Strategy = "replace_value_with_new_col"
	DropRows               Strategy = "drop"
)

// ParseStrategy validates the wire name of a non-castable value policy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case ReplaceWithNull, ReplaceWithNullNewCol, ReplaceWithValue, ReplaceWithValueNewCol, DropRows:
		return Strategy(s), nil
	}
	return "", operr.Newf(operr.InvalidParameterValue,
		"unknown non-castable data handling %q", s)
}

// SingleColumn casts the named column of f in place, applying strategy to
// rows whose values do not convert. Rows that were already null count as
// non-converting, so drop removes them and replace overwrites them. The
// *_with_new_col strategies add a companion <name>_typecast_error string
// column immediately to the right of the source, holding the original
// text of failed rows and "" elsewhere.
func SingleColumn(f *frame.Frame, name string, target mohave.DataType, strat Strategy, replaceValue, pattern string) (*frame.Frame, error) {
	src, ok := f.Column(name)
	if !ok {
		return nil, operr.Newf(operr.ColumnNotFound,
			"expected column in dataset for 'Input column' however received '%s'", name)
	}

	casted, err := Column(src, target, pattern)
	if err != nil {
		return nil, err
	}

	failed := make([]bool, len(casted.Values))
	for i, v := range casted.Values {
		failed[i] = v == nil
	}

	switch strat {
	case ReplaceWithNull:
		return f.WithColumn(casted), nil

	case DropRows:
		return f.WithColumn(casted).Filter(func(row int) bool { return !failed[row] }), nil

	case ReplaceWithValue:
		repl, err := replacement(replaceValue, target, pattern)
		if err != nil {
			return nil, err
		}
		vals := append([]any(nil), casted.Values...)
		for i := range vals {
			if failed[i] {
				vals[i] = repl
			}
		}
		return f.WithColumn(frame.Column{Name: name, Type: casted.Type, Values: vals}), nil

	case ReplaceWithNullNewCol:
		side := sideColumn(src, failed)
		return moveAfter(f.WithColumn(casted).WithColumn(side), side.Name, name)

	case ReplaceWithValueNewCol:
		repl, err := replacement(replaceValue, target, pattern)
		if err != nil {
			return nil, err
		}
		vals := append([]any(nil), casted.Values...)
		for i := range vals {
			if failed[i] {
				vals[i] = repl
			}
		}
		side := sideColumn(src, failed)
		out := f.WithColumn(frame.Column{Name: name, Type: casted.Type, Values: vals}).WithColumn(side)
		return moveAfter(out, side.Name, name)
	}

	return nil, operr.Newf(operr.InvalidParameterValue,
		"unknown non-castable data handling %q", string(strat))
}

// replacement coerces the configured replacement text to the target type.
// Unparseable numeric and boolean replacements are configuration errors;
// date and datetime replacements that fail to parse fall back to null the
// same way the cast itself would.
func replacement(raw string, target mohave.DataType, pattern string) (any, error) {
	switch target {
	case mohave.String:
		return raw, nil
	case mohave.Long:
		v := toLong(raw, frame.String)
		if v == nil {
			return nil, operr.Newf(operr.InvalidParameterValue,
				"invalid value provided for 'Replacement value': expected long but received: %s", raw)
		}
		return v, nil
	case mohave.Float:
		v := toDouble(raw, frame.String)
		if v == nil {
			return nil, operr.Newf(operr.InvalidParameterValue,
				"invalid value provided for 'Replacement value': expected float but received: %s", raw)
		}
		return v, nil
	case mohave.Bool:
		v := toBool(raw, frame.String)
		if v == nil {
			return nil, operr.Newf(operr.InvalidParameterValue,
				"invalid value provided for 'Replacement value': expected bool but received: %s", raw)
		}
		return v, nil
	case mohave.Date:
		if pattern == "" {
			pattern = DefaultDatePattern
		}
		layout, err := PatternLayout(pattern)
		if err != nil {
			return nil, err
		}
		return toDate(raw, frame.String, layout), nil
	case mohave.Datetime:
		layout := ""
		if pattern != "" {
			l, err := PatternLayout(pattern)
			if err != nil {
				return nil, err
			}
			layout = l
		}
		return toTimestamp(raw, frame.String, layout), nil
	}
	return nil, operr.Newf(operr.UnsupportedColumnType,
		"replacement values are not supported for type %s", target)
}

// sideColumn builds the companion error column: "" where the cast
// succeeded, the original rendered value where it failed, null where the
// source was already null.
func sideColumn(src frame.Column, failed []bool) frame.Column {
	vals := make([]any, len(src.Values))
	for i, v := range src.Values {
		switch {
		case !failed[i]:
			vals[i] = ""
		case v == nil:
			vals[i] = nil
		default:
			vals[i] = toString(v, src.Type)
		}
	}
	return frame.Column{Name: src.Name + ErrorColumnSuffix, Type: frame.String, Values: vals}
}

// moveAfter reorders f so column col sits immediately after column after.
func moveAfter(f *frame.Frame, col, after string) (*frame.Frame, error) {
	names := make([]string, 0, f.NumCols())
	for _, n := range f.Names() {
		if n == col {
			continue
		}
		names = append(names, n)
		if n == after {
			names = append(names, col)
		}
	}
	return f.Select(names...)
}
