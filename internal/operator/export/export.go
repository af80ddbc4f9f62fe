// Package export registers the dataset destination operators. Destinations
// serialize the frame as CSV for object and file stores, or bulk-load it
// into a relational table, and pass the frame through unchanged.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

func init() {
	operator.Register("s3_destination", s3Destination)
	operator.Register("file_destination", fileDestination)
}

type s3Putter interface {
	Put(ctx context.Context, uri, contentType string, body []byte) error
}

// newS3Writer is a seam for tests; the default builds a client from the
// ambient AWS configuration.
var newS3Writer = func(ctx context.Context) (s3Putter, error) {
	return sink.NewS3(ctx)
}

const s3WriteFailure = "An error occurred while writing files to S3"

// partName is appended when the output path names a directory rather
// than an object, mirroring the layout of a single-partition job.
const partName = "part-00000.csv"

type outputConfig struct {
	path      string
	delimiter rune
	gzip      bool
}

func (c outputConfig) contentType() string {
	if c.gzip {
		return "application/gzip"
	}
	return "text/csv"
}

func (c outputConfig) formatLabel() string {
	if c.gzip {
		return "csv.gz"
	}
	return "csv"
}

// resolveOutputConfig reads the output_config object shared by the CSV
// destinations. Only CSV output is produced; columnar content types are
// recognized so the error says so instead of "unknown".
func resolveOutputConfig(params operator.Values) (outputConfig, error) {
	oc := params.Sub("output_config")
	path, err := oc.RequireString("output_path", "output_path")
	if err != nil {
		return outputConfig{}, err
	}
	compression, err := oc.Enum("compression", "compression", []string{"none", "gzip"}, "none")
	if err != nil {
		return outputConfig{}, err
	}
	ctype, err := oc.String("output_content_type", "output_content_type", "CSV")
	if err != nil {
		return outputConfig{}, err
	}
	switch strings.ToUpper(ctype) {
	case "CSV":
	case "PARQUET", "ORC":
		return outputConfig{}, operr.Newf(operr.InvalidParameterValue,
			"output content type %s is not supported, use CSV", strings.ToUpper(ctype))
	default:
		return outputConfig{}, operr.Newf(operr.InvalidParameterValue,
			"unknown output content type %q", ctype)
	}
	delim, err := delimiterRune(oc, "delimiter")
	if err != nil {
		return outputConfig{}, err
	}
	return outputConfig{path: path, delimiter: delim, gzip: compression == "gzip"}, nil
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

func encodeCSV(f *frame.Frame, cfg outputConfig) ([]byte, int64, error) {
	var buf bytes.Buffer
	n, err := sink.WriteCSV(&buf, f, sink.CSVOptions{Delimiter: cfg.delimiter, Gzip: cfg.gzip})
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), n, nil
}

func s3Destination(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	if err := operator.RequireFrame(f); err != nil {
		return nil, err
	}
	cfg, err := resolveOutputConfig(params)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.path, "s3://") {
		return nil, operr.Newf(operr.InvalidParameterValue,
			"invalid value provided for 'output_path': expected an s3:// uri but received: %s", cfg.path)
	}
	if strings.HasSuffix(cfg.path, "/") {
		cfg.path += partName
		if cfg.gzip {
			cfg.path += ".gz"
		}
	}

	body, n, err := encodeCSV(f, cfg)
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, s3WriteFailure)
	}
	w, err := newS3Writer(ctx)
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, s3WriteFailure)
	}
	if err := w.Put(ctx, cfg.path, cfg.contentType(), body); err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, s3WriteFailure)
	}

	env.Observe(metrics.SinkBytes, float64(n), metrics.Labels{"format": cfg.formatLabel()})
	env.Count(metrics.RowsTotal, float64(f.NumRows()), metrics.Labels{"kind": "written"})
	env.Printf("wrote %d rows to %s", f.NumRows(), cfg.path)
	return &operator.Result{Frame: f, Trained: tp, Stdout: fmt.Sprintf("S3 output path: %s", cfg.path)}, nil
}

const fileWriteFailure = "An error occurred while writing files to disk"

func fileDestination(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	if err := operator.RequireFrame(f); err != nil {
		return nil, err
	}
	cfg, err := resolveOutputConfig(params)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(cfg.path, "/") || isDir(cfg.path) {
		cfg.path = filepath.Join(cfg.path, partName)
		if cfg.gzip {
			cfg.path += ".gz"
		}
	}

	body, n, err := encodeCSV(f, cfg)
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, fileWriteFailure)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.path), 0o755); err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, fileWriteFailure)
	}
	if err := os.WriteFile(cfg.path, body, 0o644); err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, fileWriteFailure)
	}

	env.Observe(metrics.SinkBytes, float64(n), metrics.Labels{"format": cfg.formatLabel()})
	env.Count(metrics.RowsTotal, float64(f.NumRows()), metrics.Labels{"kind": "written"})
	env.Printf("wrote %d rows to %s", f.NumRows(), cfg.path)
	return &operator.Result{Frame: f, Trained: tp, Stdout: fmt.Sprintf("output path: %s", cfg.path)}, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
