package sqlite

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink"
)

func newFrame(t *testing.T, cols ...frame.Column) *frame.Frame {
	t.Helper()
	f, err := frame.New(cols...)
	if err != nil {
		t.Fatalf("frame.New() error = %v", err)
	}
	return f
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	got := buildInsertSQL("flights", []string{"a", "b"}, 2)
	want := `INSERT INTO "flights" ("a", "b") VALUES (?, ?), (?, ?)`
	if got != want {
		t.Fatalf("buildInsertSQL() = %q, want %q", got, want)
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "carrier", Type: frame.String},
		frame.Column{Name: "delay", Type: frame.Long},
		frame.Column{Name: "rate", Type: frame.Double},
		frame.Column{Name: "cancelled", Type: frame.Bool},
		frame.Column{Name: "fl_date", Type: frame.Date},
	)
	got, err := buildCreateSQL("flights", f)
	if err != nil {
		t.Fatalf("buildCreateSQL() error = %v", err)
	}
	want := `CREATE TABLE IF NOT EXISTS "flights" (
  "carrier" TEXT,
  "delay" INTEGER,
  "rate" REAL,
  "cancelled" INTEGER,
  "fl_date" TEXT
)`
	if got != want {
		t.Fatalf("buildCreateSQL() = %q, want %q", got, want)
	}
}

func TestRowsPerBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cols int
		want int
	}{
		{cols: 1, want: 500},
		{cols: 3, want: 166},
		{cols: 600, want: 1},
		{cols: 0, want: 1},
	}
	for _, tt := range tests {
		if got := rowsPerBatch(tt.cols); got != tt.want {
			t.Fatalf("rowsPerBatch(%d) = %d, want %d", tt.cols, got, tt.want)
		}
	}
}

func TestBindValue(t *testing.T) {
	t.Parallel()

	day := time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)
	at := time.Date(2015, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		v    any
		t    frame.Type
		want any
	}{
		{name: "nil", v: nil, t: frame.String, want: nil},
		{name: "string", v: "AA", t: frame.String, want: "AA"},
		{name: "bool true", v: true, t: frame.Bool, want: int64(1)},
		{name: "bool false", v: false, t: frame.Bool, want: int64(0)},
		{name: "nan", v: math.NaN(), t: frame.Double, want: nil},
		{name: "double", v: 0.5, t: frame.Double, want: 0.5},
		{name: "date", v: day, t: frame.Date, want: "2015-01-02"},
		{name: "timestamp", v: at, t: frame.Timestamp, want: "2015-01-02T03:04:05Z"},
		{name: "array", v: []any{"x"}, t: frame.Array, want: `["x"]`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := bindValue(tt.v, tt.t); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("bindValue(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "out.db")
	ctx := context.Background()

	l, err := New(ctx, sink.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	f := newFrame(t,
		frame.Column{Name: "carrier", Type: frame.String, Values: []any{"AA", nil}},
		frame.Column{Name: "delay", Type: frame.Long, Values: []any{int64(12), int64(3)}},
		frame.Column{Name: "rate", Type: frame.Double, Values: []any{0.5, math.NaN()}},
		frame.Column{Name: "cancelled", Type: frame.Bool, Values: []any{true, false}},
	)

	if err := l.EnsureTable(ctx, "flights", f); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	n, err := l.InsertRows(ctx, "flights", f)
	if err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("InsertRows() = %d, want 2", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT carrier, delay, rate, cancelled FROM flights ORDER BY delay DESC`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var got [][]any
	for rows.Next() {
		out := make([]any, 4)
		dests := make([]any, 4)
		for i := range out {
			dests[i] = &out[i]
		}
		if err := rows.Scan(dests...); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, out)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}

	want := [][]any{
		{"AA", int64(12), 0.5, int64(1)},
		{nil, int64(3), nil, int64(0)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %v, want %v", got, want)
	}
}

func TestInsertRowsBatches(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "batch.db")
	ctx := context.Background()

	l, err := sink.New(ctx, sink.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("sink.New() error = %v", err)
	}
	defer l.Close()

	const total = 1200
	vals := make([]any, total)
	for i := range vals {
		vals[i] = int64(i)
	}
	f := newFrame(t, frame.Column{Name: "n", Type: frame.Long, Values: vals})

	if err := l.EnsureTable(ctx, "nums", f); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	n, err := l.InsertRows(ctx, "nums", f)
	if err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if n != total {
		t.Fatalf("InsertRows() = %d, want %d", n, total)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nums`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != total {
		t.Fatalf("COUNT(*) = %d, want %d", count, total)
	}
}
