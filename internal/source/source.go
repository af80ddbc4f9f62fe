// Package source reads tabular datasets into frames.
//
// CSV and HTML readers produce string columns; values stay untyped
// until the inference and cast stages assign semantics. JSON readers
// keep the natural type of each field. Empty CSV cells and JSON nulls
// load as nil.
package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
)

// Format identifies a dataset encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatHTML  Format = "html"
)

// ParseFormat normalizes a content-type name. PARQUET and ORC are
// recognized names without a reader here and report as unsupported
// rather than unknown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "jsonl":
		return FormatJSONL, nil
	case "html":
		return FormatHTML, nil
	case "parquet", "orc":
		return "", fmt.Errorf("content type %s is not supported, use CSV, JSON, or JSONL", strings.ToUpper(s))
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// Options collects the per-format reader knobs. The zero value means
// comma-delimited headerless UTF-8 input reading the first table.
type Options struct {
	Format     Format
	Delimiter  rune
	Header     bool
	Charset    string
	TableIndex int
}

// Read parses one dataset from r. name is the file or object name the
// bytes came from; a .gz or .zst suffix switches on decompression.
func Read(r io.Reader, name string, opts Options) (*frame.Frame, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("source: open gzip %s: %w", name, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(strings.ToLower(name), ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("source: open zstd %s: %w", name, err)
		}
		defer zr.Close()
		r = zr
	}
	switch opts.Format {
	case FormatCSV, "":
		return ReadCSV(r, opts)
	case FormatJSON:
		return ReadJSON(r)
	case FormatJSONL:
		return ReadJSONL(r)
	case FormatHTML:
		return ReadHTMLTable(r, opts.TableIndex)
	}
	return nil, fmt.Errorf("source: no reader for format %q", opts.Format)
}

// ReadFile opens and parses a local dataset file.
func ReadFile(path string, opts Options) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Read(fh, path, opts)
}

// FilenameColumn is added to a frame when a source is configured to
// record which file each row came from.
const FilenameColumn = "_data_source_filename"

// AddFilename appends a column holding name on every row. When the
// dataset already uses the filename column the new one takes the first
// free _N suffix.
func AddFilename(f *frame.Frame, name string) *frame.Frame {
	col := FilenameColumn
	for i := 1; f.Has(col); i++ {
		col = fmt.Sprintf("%s_%d", FilenameColumn, i)
	}
	vals := make([]any, f.NumRows())
	for i := range vals {
		vals[i] = name
	}
	return f.WithColumn(frame.Column{Name: col, Type: frame.String, Values: vals})
}

// Concat stacks frames that share a column layout into one frame.
// Column types unify pairwise: longs and doubles widen to double, any
// other disagreement falls back to rendered strings.
func Concat(frames []*frame.Frame) (*frame.Frame, error) {
	if len(frames) == 0 {
		return frame.New()
	}
	base := frames[0]
	names := base.Names()
	for _, f := range frames[1:] {
		if !sameNames(names, f.Names()) {
			return nil, fmt.Errorf("source: files do not share a column layout: %v vs %v", names, f.Names())
		}
	}
	if len(frames) == 1 {
		return base, nil
	}

	cols := make([]frame.Column, len(names))
	for i, name := range names {
		t := base.ColumnAt(i).Type
		for _, f := range frames[1:] {
			t = unifyPair(t, f.ColumnAt(i).Type)
		}
		var vals []any
		for _, f := range frames {
			c := f.ColumnAt(i)
			for _, v := range c.Values {
				vals = append(vals, coerceCell(v, c.Type, t))
			}
		}
		cols[i] = frame.Column{Name: name, Type: t, Values: vals}
	}
	return frame.New(cols...)
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func unifyPair(a, b frame.Type) frame.Type {
	if a == b {
		return a
	}
	if (a == frame.Long && b == frame.Double) || (a == frame.Double && b == frame.Long) {
		return frame.Double
	}
	return frame.String
}

func coerceCell(v any, from, to frame.Type) any {
	if v == nil || from == to {
		return v
	}
	if to == frame.Double {
		if n, ok := v.(int64); ok {
			return float64(n)
		}
		return v
	}
	if to == frame.String {
		return renderValue(v)
	}
	return v
}
