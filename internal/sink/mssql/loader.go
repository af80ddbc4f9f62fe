// Package mssql loads frames into Microsoft SQL Server through the
// driver's bulk copy protocol.
//
// FLOAT columns cannot carry NaN or infinities over TDS, so those
// store as NULL.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink"
)

// Loader implements sink.Loader for SQL Server.
type Loader struct {
	db *sql.DB
}

func init() {
	sink.Register("mssql", New)
}

// New opens a connection pool and validates connectivity.
func New(ctx context.Context, cfg sink.Config) (sink.Loader, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for bursty bulk loads.
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(64)

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
		return fmt.Errorf("mssql: create table %s: %w", table, err)
	}
	return nil
}

// InsertRows streams every frame row through one bulk copy operation.
func (l *Loader) InsertRows(ctx context.Context, table string, f *frame.Frame) (int64, error) {
	if f.NumRows() == 0 {
		return 0, nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, mssqldb.CopyIn(table, mssqldb.BulkOptions{}, f.Names()...))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mssql: prepare bulk copy into %s: %w", table, err)
	}

	for i := 0; i < f.NumRows(); i++ {
		if _, err := stmt.ExecContext(ctx, bulkRow(f, i)...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("mssql: bulk copy row %d into %s: %w", i, table, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return 0, fmt.Errorf("mssql: flush bulk copy into %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

func bulkRow(f *frame.Frame, i int) []any {
	row := make([]any, f.NumCols())
	for j := 0; j < f.NumCols(); j++ {
		c := f.ColumnAt(j)
		row[j] = bulkValue(c.Values[i], c.Type)
	}
	return row
}

// bulkValue converts a frame cell into what the driver sends.
func bulkValue(v any, t frame.Type) any {
	if v == nil {
		return nil
	}
	switch t {
	case frame.Double:
		if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
			return nil
		}
	case frame.Array, frame.Struct:
		return cast.FormatValue(v, t)
	}
	return v
}

// buildCreateSQL renders create-if-missing DDL with one column per
// frame column.
func buildCreateSQL(table string, f *frame.Frame) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if f.NumCols() == 0 {
		return "", fmt.Errorf("mssql: no columns to create for %s", table)
	}

	defs := make([]string, f.NumCols())
	for i := 0; i < f.NumCols(); i++ {
		c := f.ColumnAt(i)
		defs[i] = mssqlIdent(c.Name) + " " + sqlType(c.Type)
	}
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		table,
		mssqlTableIdent(table),
		strings.Join(defs, ", "),
	), nil
}

func sqlType(t frame.Type) string {
	switch t {
	case frame.Long:
		return "BIGINT"
	case frame.Double:
		return "FLOAT"
	case frame.Bool:
		return "BIT"
	case frame.Date:
		return "DATE"
	case frame.Timestamp:
		return "DATETIME2"
	}
	return "NVARCHAR(MAX)"
}

func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for
// schema-qualified names.
//
// Example:
//
//	"dbo.flights" -> [dbo].[flights]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
