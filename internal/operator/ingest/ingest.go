// Package ingest registers the dataset source operators. Sources ignore
// the incoming frame and produce a fresh one from S3 objects, local
// files, or HTML tables.
package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/source"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

func init() {
	operator.Register("s3_source", s3Source)
	operator.Register("file_source", fileSource)
	operator.Register("html_source", htmlSource)
}

type s3Reader interface {
	ReadURI(ctx context.Context, uri string, nested, filenameColumn bool, opts source.Options) (*frame.Frame, int64, error)
}

// newS3 is a seam for tests; the default builds a client from the
// ambient AWS configuration.
var newS3 = func(ctx context.Context) (s3Reader, error) {
	return source.NewS3(ctx)
}

const s3ReadFailure = "An error occurred while reading files from S3"

func s3Source(ctx context.Context, env *operator.Env, _ *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	sctx := params.Sub("dataset_definition").Sub("s3ExecutionContext")
	uri, err := sctx.RequireString("s3Uri", "s3Uri")
	if err != nil {
		return nil, err
	}
	format, err := contentFormat(sctx, "s3ContentType", true)
	if err != nil {
		return nil, err
	}
	delim, err := delimiterRune(sctx, "s3FieldDelimiter")
	if err != nil {
		return nil, err
	}
	header, err := sctx.Bool("s3HasHeader", "s3HasHeader", true)
	if err != nil {
		return nil, err
	}
	charset, err := sctx.String("s3CsvEncoding", "s3CsvEncoding", "")
	if err != nil {
		return nil, err
	}
	nested, err := sctx.Bool("s3DirIncludesNested", "s3DirIncludesNested", false)
	if err != nil {
		return nil, err
	}
	addFilename, err := sctx.Bool("s3AddsFilenameColumn", "s3AddsFilenameColumn", false)
	if err != nil {
		return nil, err
	}

	opts := source.Options{Format: format, Delimiter: delim, Header: header, Charset: charset}
	reader, err := newS3(ctx)
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, s3ReadFailure)
	}
	f, read, err := reader.ReadURI(ctx, uri, nested, addFilename, opts)
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, s3ReadFailure)
	}
	env.Observe(metrics.SourceBytes, float64(read), metrics.Labels{"format": string(format)})
	env.Count(metrics.RowsTotal, float64(f.NumRows()), metrics.Labels{"kind": "read"})
	env.Printf("loaded %d rows from %s", f.NumRows(), uri)
	return &operator.Result{Frame: f, Trained: tp}, nil
}

const fileReadFailure = "An error occurred while reading files from disk"

func fileSource(ctx context.Context, env *operator.Env, _ *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	path, err := params.RequireString("path", "path")
	if err != nil {
		return nil, err
	}
	format, err := contentFormat(params, "content_type", false)
	if err != nil {
		return nil, err
	}
	delim, err := delimiterRune(params, "field_delimiter")
	if err != nil {
		return nil, err
	}
	header, err := params.Bool("has_header", "has_header", true)
	if err != nil {
		return nil, err
	}
	charset, err := params.String("encoding", "encoding", "")
	if err != nil {
		return nil, err
	}
	addFilename, err := params.Bool("adds_filename_column", "adds_filename_column", false)
	if err != nil {
		return nil, err
	}

	f, err := source.ReadFile(path, source.Options{Format: format, Delimiter: delim, Header: header, Charset: charset})
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, fileReadFailure)
	}
	if addFilename {
		f = source.AddFilename(f, path)
	}
	if info, err := os.Stat(path); err == nil {
		env.Observe(metrics.SourceBytes, float64(info.Size()), metrics.Labels{"format": string(format)})
	}
	env.Count(metrics.RowsTotal, float64(f.NumRows()), metrics.Labels{"kind": "read"})
	env.Printf("loaded %d rows from %s", f.NumRows(), path)
	return &operator.Result{Frame: f, Trained: tp}, nil
}

func htmlSource(ctx context.Context, env *operator.Env, _ *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	path, err := params.RequireString("path", "path")
	if err != nil {
		return nil, err
	}
	index, err := params.Int("table_index", "table_index", 0)
	if err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, operr.Newf(operr.InvalidParameterValue, "invalid value provided for 'table_index': expected a non-negative integer but received: %d", index)
	}

	f, err := source.ReadFile(path, source.Options{Format: source.FormatHTML, TableIndex: index})
	if err != nil {
		if strings.Contains(err.Error(), "out of range") {
			return nil, operr.Wrap(operr.InvalidParameterValue, err, "invalid value provided for 'table_index'")
		}
		return nil, operr.Wrap(operr.KindUnknown, err, fileReadFailure)
	}
	if info, err := os.Stat(path); err == nil {
		env.Observe(metrics.SourceBytes, float64(info.Size()), metrics.Labels{"format": string(source.FormatHTML)})
	}
	env.Count(metrics.RowsTotal, float64(f.NumRows()), metrics.Labels{"kind": "read"})
	env.Printf("loaded %d rows from table %d of %s", f.NumRows(), index, path)
	return &operator.Result{Frame: f, Trained: tp}, nil
}

// contentFormat reads and validates a content-type parameter. Sources
// written by the console always carry one, so the S3 shape treats it as
// required; local files default to CSV.
func contentFormat(v operator.Values, key string, required bool) (source.Format, error) {
	var raw string
	var err error
	if required {
		raw, err = v.RequireString(key, key)
	} else {
		raw, err = v.String(key, key, "CSV")
	}
	if err != nil {
		return "", err
	}
	format, err := source.ParseFormat(raw)
	if err != nil {
		return "", operr.Wrap(operr.InvalidParameterValue, err, fmt.Sprintf("invalid value provided for '%s'", key))
	}
	return format, nil
}

// delimiterRune reads a single-character field delimiter, defaulting to
// a comma when the parameter is absent or empty.
func delimiterRune(v operator.Values, key string) (rune, error) {
	raw, err := v.String(key, key, ",")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return ',', nil
	}
	if utf8.RuneCountInString(raw) != 1 {
		return 0, operr.Newf(operr.InvalidParameterValue, "invalid value provided for '%s': expected a single character but received: %s", key, raw)
	}
	r, _ := utf8.DecodeRuneInString(raw)
	return r, nil
}
