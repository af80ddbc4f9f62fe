package sink

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
)

// CSVOptions control how a frame renders to delimiter-separated text.
// The zero value writes comma-delimited uncompressed output.
type CSVOptions struct {
	Delimiter rune
	Gzip      bool
}

// WriteCSV renders f to w with a header row. Null cells become empty
// fields, everything else prints the way a cast to string would.
// Returns the bytes written to w, after compression when Gzip is on.
func WriteCSV(w io.Writer, f *frame.Frame, opts CSVOptions) (int64, error) {
	cw := &countWriter{w: w}
	out := io.Writer(cw)
	var gz *gzip.Writer
	if opts.Gzip {
		gz = gzip.NewWriter(cw)
		out = gz
	}

	ww := csv.NewWriter(out)
	if opts.Delimiter != 0 {
		ww.Comma = opts.Delimiter
	}

	if err := ww.Write(f.Names()); err != nil {
		return cw.n, fmt.Errorf("csv: write header: %w", err)
	}
	rec := make([]string, f.NumCols())
	for i := 0; i < f.NumRows(); i++ {
		for j := 0; j < f.NumCols(); j++ {
			c := f.ColumnAt(j)
			rec[j] = cast.FormatValue(c.Values[i], c.Type)
		}
		if err := ww.Write(rec); err != nil {
			return cw.n, fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}
	ww.Flush()
	if err := ww.Error(); err != nil {
		return cw.n, fmt.Errorf("csv: flush: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return cw.n, fmt.Errorf("csv: close gzip: %w", err)
		}
	}
	return cw.n, nil
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
