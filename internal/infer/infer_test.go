package infer

import (
	"testing"
	"time"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/mohave"
)

func TestClassifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		val      string
		numeric  bool
		integer  bool
		boolean  bool
		date     bool
		datetime bool
		nullLike bool
	}{
		{val: "12", numeric: true, integer: true, datetime: false},
		{val: "12.5", numeric: true},
		{val: "12.0", numeric: true, integer: true},
		{val: "-3.2e2", numeric: true, integer: true},
		{val: " 42 ", numeric: true, integer: true},
		{val: "1e-3", numeric: true},
		{val: "inf", numeric: false},
		{val: "NaN", numeric: false, nullLike: true},
		{val: "true", boolean: true},
		{val: "FALSE", boolean: true},
		{val: " true", boolean: false},
		{val: "1", numeric: true, integer: true, boolean: false},
		{val: "2021-03-11", date: true, datetime: true},
		{val: "2021-3-11", date: false, datetime: true},
		{val: "11-03-2021", date: false, datetime: true},
		{val: "2021-03-11 10:30:00", datetime: true},
		{val: "2021-03-11T10:30:00Z", datetime: true},
		{val: "2021-03-11 10:30:00.123", datetime: true},
		{val: "03/11/2021", datetime: true},
		{val: "25/12/2021", datetime: true},
		{val: "Jan 2, 2021", datetime: true},
		{val: "20210311", numeric: true, integer: true, datetime: true},
		{val: "not a date", datetime: false},
		{val: "", nullLike: true},
		{val: "   ", nullLike: true},
		{val: "null", nullLike: true},
		{val: "NONE", nullLike: true},
		{val: "Nil", nullLike: true},
		{val: "NA", nullLike: true},
		{val: " null ", nullLike: false},
		{val: "navy", nullLike: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.val, func(t *testing.T) {
			t.Parallel()
			if got := isNumeric(tt.val); got != tt.numeric {
				t.Fatalf("isNumeric(%q) = %v, want %v", tt.val, got, tt.numeric)
			}
			if got := isInteger(tt.val); got != tt.integer {
				t.Fatalf("isInteger(%q) = %v, want %v", tt.val, got, tt.integer)
			}
			if got := isBoolean(tt.val); got != tt.boolean {
				t.Fatalf("isBoolean(%q) = %v, want %v", tt.val, got, tt.boolean)
			}
			if got := isDate(tt.val); got != tt.date {
				t.Fatalf("isDate(%q) = %v, want %v", tt.val, got, tt.date)
			}
			if got := isDatetime(tt.val); got != tt.datetime {
				t.Fatalf("isDatetime(%q) = %v, want %v", tt.val, got, tt.datetime)
			}
			if got := isNullLike(tt.val); got != tt.nullLike {
				t.Fatalf("isNullLike(%q) = %v, want %v", tt.val, got, tt.nullLike)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	p := Classify([]any{"12", "13", "x", "", "null", nil})

	want := Profile{Total: 6, Numeric: 2, Integer: 2, NullLike: 2, Null: 1}
	if p != want {
		t.Fatalf("Classify() = %+v, want %+v", p, want)
	}
}

func TestPropose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vals []any
		want mohave.DataType
	}{
		{
			name: "mixed numbers and junk stay string",
			vals: []any{"12", "13", "x", "", "null"},
			want: mohave.String,
		},
		{
			name: "all null-like stays string",
			vals: []any{"", "null", nil, "  ", "NA"},
			want: mohave.String,
		},
		{
			name: "empty column stays string",
			vals: []any{},
			want: mohave.String,
		},
		{
			name: "integers become long",
			vals: []any{"1", "2", "3", "4", "5"},
			want: mohave.Long,
		},
		{
			name: "exactly eighty percent numeric is not enough",
			vals: []any{"1", "2", "3", "4", "x"},
			want: mohave.String,
		},
		{
			name: "exactly eighty percent integral falls to float",
			vals: []any{"1", "2", "3", "4", "5.5"},
			want: mohave.Float,
		},
		{
			name: "mostly fractional becomes float",
			vals: []any{"1.5", "2.5", "3.5", "4.5", "5"},
			want: mohave.Float,
		},
		{
			name: "booleans become bool",
			vals: []any{"true", "false", "TRUE", "False", "true"},
			want: mohave.Bool,
		},
		{
			name: "iso dates become date",
			vals: []any{"2021-01-01", "2021-01-02", "2021-01-03", "2021-01-04", "2021-01-05"},
			want: mohave.Date,
		},
		{
			name: "nulls do not dilute the date denominator",
			vals: []any{"2021-01-01", "2021-01-02", "2021-01-03", nil, "", "null"},
			want: mohave.Date,
		},
		{
			name: "one time-of-day value upgrades dates to datetime",
			vals: []any{
				"2021-01-01", "2021-01-02", "2021-01-03", "2021-01-04", "2021-01-05",
				"2021-01-06", "2021-01-07", "2021-01-08", "2021-01-09", "2021-01-10 08:30:00",
			},
			want: mohave.Datetime,
		},
		{
			name: "timestamps become datetime",
			vals: []any{"2021-01-01 10:00:00", "2021-01-02 11:00:00", "2021-01-03 12:00:00", "03/04/2021 13:00:00", "2021-01-05 14:00:00"},
			want: mohave.Datetime,
		},
		{
			name: "numeric wins over datetime on digit strings",
			vals: []any{"20210311", "20210312", "20210313", "20210314", "20210315"},
			want: mohave.Long,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Propose(Classify(tt.vals)); got != tt.want {
				t.Fatalf("Propose() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfer(t *testing.T) {
	t.Parallel()

	f, err := frame.New(
		frame.Column{Name: "count", Type: frame.String, Values: []any{"1", "2", "3", "4", "5"}},
		frame.Column{Name: "label", Type: frame.String, Values: []any{"a", "b", "c", "d", "e"}},
		frame.Column{Name: "already_long", Type: frame.Long, Values: []any{int64(1), int64(2), int64(3), int64(4), int64(5)}},
		frame.Column{Name: "already_double", Type: frame.Double, Values: []any{1.0, 2.0, 3.0, 4.0, 5.0}},
		frame.Column{Name: "already_ts", Type: frame.Timestamp, Values: []any{nil, nil, nil, nil, nil}},
		frame.Column{Name: "already_date", Type: frame.Date, Values: []any{nil, nil, nil, nil, nil}},
	)
	if err != nil {
		t.Fatalf("frame.New() error = %v", err)
	}

	s := Infer(f, 0)

	want := map[string]mohave.DataType{
		"count":          mohave.Long,
		"label":          mohave.String,
		"already_long":   mohave.Long,
		"already_double": mohave.Float,
		"already_ts":     mohave.Datetime,
		// Physical dates skip inference and land on object.
		"already_date": mohave.Object,
	}
	for name, wantType := range want {
		got, ok := s.Get(name)
		if !ok {
			t.Fatalf("Infer() missing column %q", name)
		}
		if got != wantType {
			t.Fatalf("Infer() %q = %q, want %q", name, got, wantType)
		}
	}
	if got := s.Len(); got != len(want) {
		t.Fatalf("Infer() covered %d columns, want %d", got, len(want))
	}
}

func TestInferSamplesHeadOnly(t *testing.T) {
	t.Parallel()

	// 5 clean integers up front, garbage past the sample boundary.
	vals := []any{"1", "2", "3", "4", "5", "x", "y", "z", "w", "v"}
	f, err := frame.New(frame.Column{Name: "v", Type: frame.String, Values: vals})
	if err != nil {
		t.Fatalf("frame.New() error = %v", err)
	}

	s := Infer(f, 5)
	if got, _ := s.Get("v"); got != mohave.Long {
		t.Fatalf("Infer(head=5) = %q, want long", got)
	}

	s = Infer(f, 10)
	if got, _ := s.Get("v"); got != mohave.String {
		t.Fatalf("Infer(head=10) = %q, want string", got)
	}
}

func TestParseDatetime(t *testing.T) {
	t.Parallel()

	got, ok := ParseDatetime("2021-03-11 10:30:00")
	if !ok {
		t.Fatalf("ParseDatetime() ok = false, want true")
	}
	want := time.Date(2021, 3, 11, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDatetime() = %v, want %v", got, want)
	}

	// Ambiguous slash dates resolve month-first.
	got, ok = ParseDatetime("03/04/2021")
	if !ok {
		t.Fatalf("ParseDatetime(03/04/2021) ok = false, want true")
	}
	if got.Month() != time.March || got.Day() != 4 {
		t.Fatalf("ParseDatetime(03/04/2021) = %v, want March 4", got)
	}

	// Day-first is the fallback when month-first cannot apply.
	got, ok = ParseDatetime("25/12/2021")
	if !ok {
		t.Fatalf("ParseDatetime(25/12/2021) ok = false, want true")
	}
	if got.Month() != time.December || got.Day() != 25 {
		t.Fatalf("ParseDatetime(25/12/2021) = %v, want December 25", got)
	}

	if _, ok := ParseDatetime("not a date"); ok {
		t.Fatalf("ParseDatetime(not a date) ok = true, want false")
	}
}
