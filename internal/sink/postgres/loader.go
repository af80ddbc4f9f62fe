// Package postgres loads frames into PostgreSQL using pgx bulk copy.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink"
)

// Loader implements sink.Loader for PostgreSQL.
type Loader struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed Loader and validates connectivity.
func New(ctx context.Context, cfg sink.Config) (sink.Loader, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Loader{pool: pool}, nil
}

// Close closes the connection pool.
func (l *Loader) Close() {
	l.pool.Close()
}

// EnsureTable creates table from the frame's column layout when it does
// not exist. Idempotent, safe to run on every flow invocation.
func (l *Loader) EnsureTable(ctx context.Context, table string, f *frame.Frame) error {
	ddl, err := buildCreateSQL(table, f)
	if err != nil {
		return err
	}
	if _, err := l.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", table, err)
	}
	return nil
}

// InsertRows bulk-loads every frame row through the COPY protocol.
func (l *Loader) InsertRows(ctx context.Context, table string, f *frame.Frame) (int64, error) {
	if f.NumRows() == 0 {
		return 0, nil
	}
	n, err := l.pool.CopyFrom(ctx, tableIdentifier(table), f.Names(), pgx.CopyFromRows(copyRows(f)))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy into %s: %w", table, err)
	}
	return n, nil
}

// buildCreateSQL renders CREATE TABLE IF NOT EXISTS DDL with one column
// per frame column.
func buildCreateSQL(table string, f *frame.Frame) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("postgres: table name is empty")
	}
	if f.NumCols() == 0 {
		return "", fmt.Errorf("postgres: no columns to create for %s", table)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (\n")
	for i := 0; i < f.NumCols(); i++ {
		c := f.ColumnAt(i)
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(pgIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(sqlType(c.Type))
	}
	b.WriteString("\n)")
	return b.String(), nil
}

func sqlType(t frame.Type) string {
	switch t {
	case frame.Long:
		return "BIGINT"
	case frame.Double:
		return "DOUBLE PRECISION"
	case frame.Bool:
		return "BOOLEAN"
	case frame.Date:
		return "DATE"
	case frame.Timestamp:
		return "TIMESTAMP"
	}
	return "TEXT"
}

// copyRows materializes the frame row-wise for the COPY source.
// Composite cells travel as JSON text.
func copyRows(f *frame.Frame) [][]any {
	rows := make([][]any, f.NumRows())
	for i := range rows {
		row := make([]any, f.NumCols())
		for j := 0; j < f.NumCols(); j++ {
			c := f.ColumnAt(j)
			row[j] = copyValue(c.Values[i], c.Type)
		}
		rows[i] = row
	}
	return rows
}

func copyValue(v any, t frame.Type) any {
	if v == nil {
		return nil
	}
	switch t {
	case frame.Array, frame.Struct:
		return cast.FormatValue(v, t)
	}
	return v
}

// pgIdent returns a double-quoted identifier safe to splice into DDL.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableIdent quotes a possibly schema-qualified table name.
//
// Example:
//
//	"public.flights" -> "public"."flights"
func tableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

// tableIdentifier is the pgx spelling of the same split, used by
// CopyFrom.
func tableIdentifier(name string) pgx.Identifier {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
