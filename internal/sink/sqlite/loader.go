// Package sqlite loads frames into SQLite databases.
//
// SQLite has no native date, timestamp, or boolean storage classes, so
// this backend stores dates as "2006-01-02" text, timestamps as
// RFC3339Nano text for reliable round-trips, and booleans as 0/1
// integers. NaN doubles store as NULL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink"
)

// Loader implements sink.Loader for SQLite.
type Loader struct {
	db *sql.DB
}

func init() {
	sink.Register("sqlite", New)
}

// New opens the database file named by the DSN and validates
// connectivity.
func New(ctx context.Context, cfg sink.Config) (sink.Loader, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Loader{db: db}, nil
}

func (l *Loader) Close() { _ = l.db.Close() }

// EnsureTable creates table from the frame's column layout when it does
// not exist.
func (l *Loader) EnsureTable(ctx context.Context, table string, f *frame.Frame) error {
	ddl, err := buildCreateSQL(table, f)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", table, err)
	}
	return nil
}

// InsertRows writes every frame row inside one transaction, batching
// rows to stay under the bound-parameter limit.
func (l *Loader) InsertRows(ctx context.Context, table string, f *frame.Frame) (int64, error) {
	if f.NumRows() == 0 {
		return 0, nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	var total int64
	batch := rowsPerBatch(f.NumCols())
	for start := 0; start < f.NumRows(); start += batch {
		end := start + batch
		if end > f.NumRows() {
			end = f.NumRows()
		}
		q := buildInsertSQL(table, f.Names(), end-start)
		res, err := tx.ExecContext(ctx, q, insertArgs(f, start, end)...)
		if err != nil {
			_ = tx.Rollback()
			return total, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return total, err
	}
	return total, nil
}

// maxBatchParams stays well under SQLite's bound-variable limit.
const maxBatchParams = 500

func rowsPerBatch(cols int) int {
	if cols <= 0 {
		return 1
	}
	n := maxBatchParams / cols
	if n < 1 {
		return 1
	}
	return n
}

// buildInsertSQL renders a multi-row INSERT with ? placeholders.
func buildInsertSQL(table string, columns []string, nrows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqliteIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqliteIdent(c))
	}
	b.WriteString(") VALUES ")
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
		}
		b.WriteString(")")
	}
	return b.String()
}

func insertArgs(f *frame.Frame, start, end int) []any {
	args := make([]any, 0, (end-start)*f.NumCols())
	for i := start; i < end; i++ {
		for j := 0; j < f.NumCols(); j++ {
			c := f.ColumnAt(j)
			args = append(args, bindValue(c.Values[i], c.Type))
		}
	}
	return args
}

// bindValue converts a frame cell into what the driver stores.
func bindValue(v any, t frame.Type) any {
	if v == nil {
		return nil
	}
	switch t {
	case frame.Bool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	case frame.Double:
		if x, ok := v.(float64); ok && math.IsNaN(x) {
			return nil
		}
	case frame.Date:
		if ts, ok := v.(time.Time); ok {
			return ts.Format("2006-01-02")
		}
	case frame.Timestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.Format(time.RFC3339Nano)
		}
	case frame.Array, frame.Struct:
		return cast.FormatValue(v, t)
	}
	return v
}

// buildCreateSQL renders CREATE TABLE IF NOT EXISTS DDL with one column
// per frame column.
func buildCreateSQL(table string, f *frame.Frame) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if f.NumCols() == 0 {
		return "", fmt.Errorf("sqlite: no columns to create for %s", table)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(sqliteIdent(table))
	b.WriteString(" (\n")
	for i := 0; i < f.NumCols(); i++ {
		c := f.ColumnAt(i)
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(sqliteIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(sqlType(c.Type))
	}
	b.WriteString("\n)")
	return b.String(), nil
}

func sqlType(t frame.Type) string {
	switch t {
	case frame.Long, frame.Bool:
		return "INTEGER"
	case frame.Double:
		return "REAL"
	}
	return "TEXT"
}

func sqliteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
