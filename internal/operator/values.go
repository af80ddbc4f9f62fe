package operator

import (
	"math"
	"strconv"
	"strings"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
)

// Values is the raw parameter object of one flow node. Getters implement
// the shared validation contract: absent or null parameters either take
// their default or fail as MissingRequiredParameter, present values that
// do not convert fail as InvalidParameterValue, and NaN or infinite
// numbers are never valid.
type Values map[string]any

func (v Values) lookup(key string) (any, bool) {
	raw, ok := v[key]
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

func (v Values) clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func missing(display string) error {
	return operr.Newf(operr.MissingRequiredParameter, "missing required input: '%s'", display)
}

func invalidValue(display, want string, got any) error {
	return operr.Newf(operr.InvalidParameterValue,
		"invalid value provided for '%s': expected %s but received: %v", display, want, got)
}

// RequireString returns the string parameter under key. display names the
// parameter in error messages.
func (v Values) RequireString(key, display string) (string, error) {
	raw, ok := v.lookup(key)
	if !ok {
		return "", missing(display)
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidValue(display, "string", raw)
	}
	return s, nil
}

// String returns the string parameter under key, or def when absent.
func (v Values) String(key, display, def string) (string, error) {
	raw, ok := v.lookup(key)
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidValue(display, "string", raw)
	}
	return s, nil
}

// Bool returns the boolean parameter under key, or def when absent.
// String spellings accepted by strconv.ParseBool convert.
func (v Values) Bool(key, display string, def bool) (bool, error) {
	raw, ok := v.lookup(key)
	if !ok {
		return def, nil
	}
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, invalidValue(display, "bool", raw)
		}
		return b, nil
	}
	return false, invalidValue(display, "bool", raw)
}

// Int returns the integer parameter under key, or def when absent.
// Integral floats truncate; NaN, infinities, and fractional strings do
// not convert.
func (v Values) Int(key, display string, def int) (int, error) {
	raw, ok := v.lookup(key)
	if !ok {
		return def, nil
	}
	switch x := raw.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, invalidValue(display, "int", raw)
		}
		return int(x), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, invalidValue(display, "int", raw)
		}
		return int(i), nil
	}
	return 0, invalidValue(display, "int", raw)
}

// Float returns the float parameter under key, or def when absent. NaN
// and infinities are invalid.
func (v Values) Float(key, display string, def float64) (float64, error) {
	raw, ok := v.lookup(key)
	if !ok {
		return def, nil
	}
	var f float64
	switch x := raw.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, invalidValue(display, "float", raw)
		}
		f = parsed
	default:
		return 0, invalidValue(display, "float", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidValue(display, "float", raw)
	}
	return f, nil
}

// Enum returns the string parameter under key, or def when absent,
// requiring membership in allowed.
func (v Values) Enum(key, display string, allowed []string, def string) (string, error) {
	raw, ok := v.lookup(key)
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidValue(display, "string", raw)
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", operr.Newf(operr.InvalidParameterValue,
		"illegal parameter value: %s expected to be in %v, but given %s", display, allowed, s)
}

// StringList returns the parameter under key normalized to a list: a bare
// string becomes a one-element list. Absence is a missing parameter.
func (v Values) StringList(key, display string) ([]string, error) {
	raw, ok := v.lookup(key)
	if !ok {
		return nil, missing(display)
	}
	switch x := raw.(type) {
	case string:
		return []string{x}, nil
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, invalidValue(display, "list of strings", raw)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, invalidValue(display, "list of strings", raw)
}

// Sub returns the nested parameter object under key; absent or null
// yields an empty Values so callers can add to it freely.
func (v Values) Sub(key string) Values {
	switch x := v[key].(type) {
	case Values:
		return x.clone()
	case map[string]any:
		return Values(x).clone()
	}
	return make(Values)
}

// ExpectColumn validates that the parameter under key names a column of f
// and returns it.
func ExpectColumn(f *frame.Frame, v Values, key, display string) (string, error) {
	raw, _ := v.lookup(key)
	name, _ := raw.(string)
	if name == "" || !f.Has(name) {
		return "", operr.Newf(operr.ColumnNotFound,
			"expected column in dataset for '%s' however received '%v'", display, raw)
	}
	return name, nil
}

// ValidColumnName checks an output column parameter: absence is allowed
// when nullable, anything present must be non-blank.
func ValidColumnName(v Values, key, display string, nullable bool) (string, error) {
	raw, ok := v.lookup(key)
	if !ok {
		if nullable {
			return "", nil
		}
		return "", operr.Newf(operr.InvalidParameterValue,
			"column name cannot be null, empty, or whitespace for parameter '%s'", display)
	}
	s, _ := raw.(string)
	if strings.TrimSpace(s) == "" {
		return "", operr.Newf(operr.InvalidParameterValue,
			"column name cannot be null, empty, or whitespace for parameter '%s': %v", display, raw)
	}
	return s, nil
}
