package cast

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/infer"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// toLong coerces one cell of physical type from to int64. nil is the null
// result for values that do not convert, matching non-strict SQL CAST.
func toLong(v any, from frame.Type) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		if x >= float64(math.MaxInt64) || x < float64(math.MinInt64) {
			return nil
		}
		return int64(math.Trunc(x))
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toLong(f, frame.Double)
		}
		return nil
	case time.Time:
		// Timestamps cast to their epoch second; dates do not convert.
		if from == frame.Timestamp {
			return x.Unix()
		}
		return nil
	}
	return nil
}

func toDouble(v any, from frame.Type) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return x
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1.0
		}
		return 0.0
	case string:
		// NaN and Infinity parse deliberately; they are valid doubles.
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
		return nil
	case time.Time:
		if from == frame.Timestamp {
			return float64(x.UnixMicro()) / 1e6
		}
		return nil
	}
	return nil
}

func toBool(v any, from frame.Type) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "t", "true", "y", "yes", "1":
			return true
		case "f", "false", "n", "no", "0":
			return false
		}
		return nil
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return nil
}

func toString(v any, from frame.Type) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatDouble(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		if from == frame.Date {
			return x.Format(dateLayout)
		}
		return formatTimestamp(x)
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(b)
	}
	return nil
}

// toDate truncates to midnight UTC using the value's wall date.
func toDate(v any, from frame.Type, layout string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return truncateDate(x)
	case string:
		t, err := time.Parse(layout, strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		return truncateDate(t)
	}
	return nil
}

// toTimestamp converts to time.Time. An empty layout means per-value
// format detection; with an explicit layout even non-string values go
// through their rendered text, matching what a pattern parse does to an
// already-cast column.
func toTimestamp(v any, from frame.Type, layout string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if layout == "" {
			return x
		}
		return parseTimestamp(toString(x, from).(string), layout)
	case string:
		return parseTimestamp(x, layout)
	default:
		s := toString(v, from)
		if s == nil {
			return nil
		}
		return parseTimestamp(s.(string), layout)
	}
}

func parseTimestamp(s, layout string) any {
	s = strings.TrimSpace(s)
	if layout != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return nil
		}
		return t
	}
	t, ok := infer.ParseDatetime(s)
	if !ok {
		return nil
	}
	return t
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatValue renders a cell the way a cast to string would, with "" for
// nil. Sinks share this so file and database output agree.
func FormatValue(v any, from frame.Type) string {
	s := toString(v, from)
	if s == nil {
		return ""
	}
	return s.(string)
}

// formatDouble matches SQL-style rendering: whole values keep a ".0" so
// they read as doubles, specials use their SQL spellings.
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatTimestamp prints seconds precision and keeps a fractional part
// only when one is present.
func formatTimestamp(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format(timestampLayout)
	}
	return t.Format(timestampLayout + ".999999")
}
