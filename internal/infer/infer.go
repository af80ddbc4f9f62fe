// Package infer proposes logical column types from a sample of raw string
// values.
//
// Only string-typed columns are profiled; every other physical type maps
// directly to its logical counterpart. For string columns the classifiers
// count how many sampled values look numeric, boolean, date-like and so
// on, and Propose picks a winner once a class clears 80% of the relevant
// denominator: the whole sample for numbers and booleans, the non-null
// portion for dates and datetimes.
package infer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/mohave"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/schema"
)

const (
	// DefaultSampleSize bounds how many leading rows Infer profiles.
	DefaultSampleSize = 1000

	threshold = 0.8
)

// Profile counts how a string column's sampled values classify. A value
// can land in several counters at once: "2021-03-11" is both a date and a
// datetime.
type Profile struct {
	Total    int // all sampled cells, nulls included
	Numeric  int
	Integer  int
	Boolean  int
	Date     int
	Datetime int
	NullLike int // empty, whitespace-only, or a null word
	Null     int // strictly null cells
}

// Classify profiles vals, which must hold string or nil cells.
func Classify(vals []any) Profile {
	var p Profile
	p.Total = len(vals)
	for _, v := range vals {
		if v == nil {
			p.Null++
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if isNumeric(s) {
			p.Numeric++
		}
		if isInteger(s) {
			p.Integer++
		}
		if isBoolean(s) {
			p.Boolean++
		}
		if isDate(s) {
			p.Date++
		}
		if isDatetime(s) {
			p.Datetime++
		}
		if isNullLike(s) {
			p.NullLike++
		}
	}
	return p
}

// Propose picks the logical type for a string column profiled as p.
func Propose(p Profile) mohave.DataType {
	notNull := p.Total - (p.Null + p.NullLike)
	if notNull <= 0 {
		// An entirely null column stays a string.
		return mohave.String
	}

	total := float64(p.Total)
	switch {
	case float64(p.Numeric)/total > threshold:
		if float64(p.Integer)/float64(p.Numeric) > threshold {
			return mohave.Long
		}
		return mohave.Float
	case float64(p.Boolean)/total > threshold:
		return mohave.Bool
	case float64(p.Date)/float64(notNull) > threshold:
		// One value carrying time-of-day information upgrades a date
		// column to datetime.
		if p.Datetime-p.Date > 0 {
			return mohave.Datetime
		}
		return mohave.Date
	case float64(p.Datetime)/float64(notNull) > threshold:
		return mohave.Datetime
	}
	return mohave.String
}

// Infer samples the first sampleSize rows of f and returns a logical type
// for every column, in frame order. Non-string columns skip profiling and
// map directly from their physical type. sampleSize values below one fall
// back to DefaultSampleSize.
func Infer(f *frame.Frame, sampleSize int) *schema.Schema {
	if sampleSize < 1 {
		sampleSize = DefaultSampleSize
	}
	sample := f.Head(sampleSize)

	out := schema.New()
	for i := 0; i < sample.NumCols(); i++ {
		c := sample.ColumnAt(i)
		if c.Type != frame.String {
			out.Set(c.Name, mohave.FromPhysical(c.Type))
			continue
		}
		out.Set(c.Name, Propose(Classify(c.Values)))
	}
	return out
}

// isNumeric accepts anything that parses as a finite float, surrounding
// whitespace included.
func isNumeric(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// isInteger accepts finite numerics whose value survives truncation, so
// "12", "12.0" and "1e2" all count.
func isInteger(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == math.Trunc(f)
}

// isBoolean accepts exactly "true" and "false" in any letter case, with
// no whitespace allowance.
func isBoolean(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

// isDate accepts complete ISO dates only, e.g. 2021-03-11.
func isDate(s string) bool {
	if len(s) != 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func isDatetime(s string) bool {
	_, ok := ParseDatetime(s)
	return ok
}

// nullWords are the case-insensitive whole-value spellings treated as
// null-like.
var nullWords = map[string]bool{
	"null": true,
	"none": true,
	"nil":  true,
	"na":   true,
	"nan":  true,
}

// isNullLike reports whether s is empty, whitespace-only, or one of the
// null words. The whole value must match: " null " is not null-like.
func isNullLike(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	return nullWords[strings.ToLower(s)]
}

// datetimeLayouts are tried in order by ParseDatetime. The unpadded
// month and day tokens accept both padded and unpadded input, month-first
// forms come before day-first ones so ambiguous dates resolve month-first,
// and every complete date layout is present so a pure date always counts
// as a datetime too. Fractional seconds need no layout of their own:
// parsing accepts them after any seconds field.
var datetimeLayouts = []string{
	"2006-1-2T15:4:5Z07:00",
	"2006-1-2T15:4:5",
	"2006-1-2 15:4:5Z07:00",
	"2006-1-2 15:4:5",
	"2006-1-2 15:4",
	"2006-1-2",
	"2006/1/2 15:4:5",
	"2006/1/2",
	"20060102",
	"1/2/2006 15:4:5",
	"1/2/2006 15:4",
	"1/2/2006",
	"2/1/2006 15:4:5",
	"2/1/2006",
	"1-2-2006 15:4:5",
	"1-2-2006",
	"2-1-2006 15:4:5",
	"2-1-2006",
	"1.2.2006 15:4:5",
	"1.2.2006",
	"2.1.2006 15:4:5",
	"2.1.2006",
	"Jan 2, 2006 15:4:5",
	"Jan 2, 2006",
	"2 Jan 2006 15:4:5",
	"2 Jan 2006",
	"January 2, 2006",
	"2 January 2006",
}

// ParseDatetime parses s against the lenient layout list, ignoring
// surrounding whitespace. ok is false when no layout matches.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
