package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
)

// ReadCSV parses delimiter-separated text into string columns. Parsing
// is permissive: short rows pad with nulls, long rows drop the extra
// cells, empty cells load as nil. Without a header row columns are
// named _c0, _c1, ...
func ReadCSV(r io.Reader, opts Options) (*frame.Frame, error) {
	dr, err := charsetReader(r, opts.Charset)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(dr)
	cr.Comma = opts.Delimiter
	if cr.Comma == 0 {
		cr.Comma = ','
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	first, err := cr.Read()
	if err == io.EOF {
		return frame.New()
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read first row: %w", err)
	}
	first[0] = strings.TrimPrefix(first[0], "﻿")

	names := make([]string, len(first))
	for i := range first {
		if opts.Header {
			names[i] = strings.TrimSpace(first[i])
		}
		if names[i] == "" {
			names[i] = fmt.Sprintf("_c%d", i)
		}
	}

	cells := make([][]any, len(names))
	if !opts.Header {
		appendRecord(cells, first)
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}
		appendRecord(cells, rec)
	}
	return stringColumns(names, cells)
}

// appendRecord widens or narrows rec to the column count, mapping empty
// cells to nil.
func appendRecord(cells [][]any, rec []string) {
	for i := range cells {
		if i < len(rec) && rec[i] != "" {
			cells[i] = append(cells[i], rec[i])
		} else {
			cells[i] = append(cells[i], nil)
		}
	}
}

func stringColumns(names []string, cells [][]any) (*frame.Frame, error) {
	cols := make([]frame.Column, len(names))
	for i, name := range names {
		cols[i] = frame.Column{Name: name, Type: frame.String, Values: cells[i]}
	}
	return frame.New(cols...)
}

// charsetReader wraps r so legacy single-byte encodings decode to
// UTF-8. Charset names match case-insensitively.
func charsetReader(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin-1", "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	}
	return nil, fmt.Errorf("csv: unsupported charset %q", name)
}
