package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/source"
)

type recorderBackend struct {
	counts  map[string]float64
	samples map[string]float64
}

func newRecorder() *recorderBackend {
	return &recorderBackend{counts: make(map[string]float64), samples: make(map[string]float64)}
}

func metricKey(name string, labels metrics.Labels) string {
	key := name
	if v := labels["format"]; v != "" {
		key += "/" + v
	}
	if v := labels["kind"]; v != "" {
		key += "/" + v
	}
	return key
}

func (r *recorderBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	r.counts[metricKey(name, labels)] += delta
}

func (r *recorderBackend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	r.samples[metricKey(name, labels)] += value
}

func (r *recorderBackend) Flush() error { return nil }
func (r *recorderBackend) Close() error { return nil }

func column(t *testing.T, f *frame.Frame, name string) frame.Column {
	t.Helper()
	c, ok := f.Column(name)
	if !ok {
		t.Fatalf("column %q not in frame, have %v", name, f.Names())
	}
	return c
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() err = %v", err)
	}
	return path
}

// ---- s3_source ----

type fakeS3Reader struct {
	f    *frame.Frame
	read int64
	err  error

	uri      string
	nested   bool
	filename bool
	opts     source.Options
}

func (r *fakeS3Reader) ReadURI(_ context.Context, uri string, nested, filenameColumn bool, opts source.Options) (*frame.Frame, int64, error) {
	r.uri, r.nested, r.filename, r.opts = uri, nested, filenameColumn, opts
	if r.err != nil {
		return nil, 0, r.err
	}
	return r.f, r.read, nil
}

func swapS3(t *testing.T, r s3Reader, err error) {
	t.Helper()
	prev := newS3
	newS3 = func(context.Context) (s3Reader, error) { return r, err }
	t.Cleanup(func() { newS3 = prev })
}

func s3SourceParams(overrides map[string]any) operator.Values {
	sctx := map[string]any{
		"s3Uri":                "s3://bucket/flights/",
		"s3ContentType":        "csv",
		"s3HasHeader":          true,
		"s3FieldDelimiter":     ",",
		"s3DirIncludesNested":  false,
		"s3AddsFilenameColumn": true,
	}
	for k, v := range overrides {
		if v == nil {
			delete(sctx, k)
			continue
		}
		sctx[k] = v
	}
	return operator.Values{
		"dataset_definition": map[string]any{
			"datasetSourceType":  "S3",
			"name":               "flights.csv",
			"s3ExecutionContext": sctx,
		},
	}
}

func TestS3SourceNode(t *testing.T) {
	loaded, err := frame.New(frame.Column{Name: "carrier", Type: frame.String, Values: []any{"AA", "DL"}})
	if err != nil {
		t.Fatalf("frame.New() err = %v", err)
	}
	fake := &fakeS3Reader{f: loaded, read: 42}
	swapS3(t, fake, nil)

	h, ok := operator.Lookup("s3_source")
	if !ok {
		t.Fatalf("Lookup(s3_source) not registered")
	}
	rec := newRecorder()
	res, err := h(context.Background(), &operator.Env{Metrics: rec}, nil, s3SourceParams(nil), nil)
	if err != nil {
		t.Fatalf("s3_source err = %v", err)
	}

	if res.Frame != loaded {
		t.Fatalf("result frame = %p, want the loaded frame %p", res.Frame, loaded)
	}
	if fake.uri != "s3://bucket/flights/" {
		t.Fatalf("uri = %q, want %q", fake.uri, "s3://bucket/flights/")
	}
	if fake.nested || !fake.filename {
		t.Fatalf("nested = %v filename = %v, want false true", fake.nested, fake.filename)
	}
	want := source.Options{Format: source.FormatCSV, Delimiter: ',', Header: true}
	if !reflect.DeepEqual(fake.opts, want) {
		t.Fatalf("opts = %+v, want %+v", fake.opts, want)
	}
	if got := rec.samples["wrangle_source_bytes/csv"]; got != 42 {
		t.Fatalf("source bytes = %v, want 42", got)
	}
	if got := rec.counts["wrangle_rows_total/read"]; got != 2 {
		t.Fatalf("rows read = %v, want 2", got)
	}
}

func TestS3SourceRequiresURI(t *testing.T) {
	swapS3(t, &fakeS3Reader{}, nil)

	_, err := s3Source(context.Background(), nil, nil, s3SourceParams(map[string]any{"s3Uri": nil}), nil)
	if !operr.IsKind(err, operr.MissingRequiredParameter) {
		t.Fatalf("s3Source() err = %v, want kind %v", err, operr.MissingRequiredParameter)
	}
}

func TestS3SourceRejectsParquet(t *testing.T) {
	swapS3(t, &fakeS3Reader{}, nil)

	_, err := s3Source(context.Background(), nil, nil, s3SourceParams(map[string]any{"s3ContentType": "Parquet"}), nil)
	if !operr.IsKind(err, operr.InvalidParameterValue) {
		t.Fatalf("s3Source() err = %v, want kind %v", err, operr.InvalidParameterValue)
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("s3Source() err = %v, want a not-supported message", err)
	}
}

func TestS3SourceBadDelimiter(t *testing.T) {
	swapS3(t, &fakeS3Reader{}, nil)

	_, err := s3Source(context.Background(), nil, nil, s3SourceParams(map[string]any{"s3FieldDelimiter": "||"}), nil)
	if !operr.IsKind(err, operr.InvalidParameterValue) {
		t.Fatalf("s3Source() err = %v, want kind %v", err, operr.InvalidParameterValue)
	}
}

func TestS3SourceReadFailure(t *testing.T) {
	swapS3(t, &fakeS3Reader{err: errors.New("no objects")}, nil)

	_, err := s3Source(context.Background(), &operator.Env{}, nil, s3SourceParams(nil), nil)
	if !operr.IsKind(err, operr.KindUnknown) {
		t.Fatalf("s3Source() err = %v, want kind %v", err, operr.KindUnknown)
	}
	if !strings.HasPrefix(err.Error(), "An error occurred while reading files from S3") {
		t.Fatalf("s3Source() err = %v, want the S3 read failure prefix", err)
	}
}

// ---- file_source ----

func TestFileSourceCSV(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "flights.csv", "carrier,delay\nAA,12\nDL,\n")
	params := operator.Values{"path": path, "adds_filename_column": true}
	rec := newRecorder()
	res, err := fileSource(context.Background(), &operator.Env{Metrics: rec}, nil, params, nil)
	if err != nil {
		t.Fatalf("fileSource() err = %v", err)
	}

	if want := []string{"carrier", "delay", source.FilenameColumn}; !reflect.DeepEqual(res.Frame.Names(), want) {
		t.Fatalf("names = %v, want %v", res.Frame.Names(), want)
	}
	c := column(t, res.Frame, "delay")
	if want := []any{"12", nil}; !reflect.DeepEqual(c.Values, want) {
		t.Fatalf("delay values = %v, want %v", c.Values, want)
	}
	fc := column(t, res.Frame, source.FilenameColumn)
	if want := []any{path, path}; !reflect.DeepEqual(fc.Values, want) {
		t.Fatalf("filename values = %v, want %v", fc.Values, want)
	}
	if got := rec.counts["wrangle_rows_total/read"]; got != 2 {
		t.Fatalf("rows read = %v, want 2", got)
	}
	if rec.samples["wrangle_source_bytes/csv"] == 0 {
		t.Fatalf("source bytes not recorded")
	}
}

func TestFileSourceJSONL(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "flights.jsonl", "{\"delay\": 12}\n{\"delay\": 3}\n")
	params := operator.Values{"path": path, "content_type": "JSONL"}
	res, err := fileSource(context.Background(), nil, nil, params, nil)
	if err != nil {
		t.Fatalf("fileSource() err = %v", err)
	}

	c := column(t, res.Frame, "delay")
	if c.Type != frame.Long {
		t.Fatalf("delay type = %v, want %v", c.Type, frame.Long)
	}
	if want := []any{int64(12), int64(3)}; !reflect.DeepEqual(c.Values, want) {
		t.Fatalf("delay values = %v, want %v", c.Values, want)
	}
}

func TestFileSourceLatin1(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "cities.csv", "city\nZ\xfcrich\n")
	params := operator.Values{"path": path, "encoding": "latin-1"}
	res, err := fileSource(context.Background(), nil, nil, params, nil)
	if err != nil {
		t.Fatalf("fileSource() err = %v", err)
	}

	c := column(t, res.Frame, "city")
	if want := []any{"Zürich"}; !reflect.DeepEqual(c.Values, want) {
		t.Fatalf("city values = %v, want %v", c.Values, want)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	t.Parallel()

	params := operator.Values{"path": filepath.Join(t.TempDir(), "absent.csv")}
	_, err := fileSource(context.Background(), nil, nil, params, nil)
	if !operr.IsKind(err, operr.KindUnknown) {
		t.Fatalf("fileSource() err = %v, want kind %v", err, operr.KindUnknown)
	}
	if !strings.HasPrefix(err.Error(), "An error occurred while reading files from disk") {
		t.Fatalf("fileSource() err = %v, want the disk read failure prefix", err)
	}
}

func TestFileSourceRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := fileSource(context.Background(), nil, nil, operator.Values{}, nil)
	if !operr.IsKind(err, operr.MissingRequiredParameter) {
		t.Fatalf("fileSource() err = %v, want kind %v", err, operr.MissingRequiredParameter)
	}
}

// ---- html_source ----

const flightPage = `<html><body>
<table>
  <tr><th>carrier</th><th>delay</th></tr>
  <tr><td>AA</td><td>12</td></tr>
</table>
<table>
  <tr><th>day</th></tr>
  <tr><td>2</td></tr>
</table>
</body></html>`

func TestHTMLSourceNode(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "flights.html", flightPage)
	params := operator.Values{"path": path, "table_index": 1}
	res, err := htmlSource(context.Background(), nil, nil, params, nil)
	if err != nil {
		t.Fatalf("htmlSource() err = %v", err)
	}

	if want := []string{"day"}; !reflect.DeepEqual(res.Frame.Names(), want) {
		t.Fatalf("names = %v, want %v", res.Frame.Names(), want)
	}
	c := column(t, res.Frame, "day")
	if want := []any{"2"}; !reflect.DeepEqual(c.Values, want) {
		t.Fatalf("day values = %v, want %v", c.Values, want)
	}
}

func TestHTMLSourceIndexOutOfRange(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "flights.html", flightPage)
	params := operator.Values{"path": path, "table_index": 5}
	_, err := htmlSource(context.Background(), nil, nil, params, nil)
	if !operr.IsKind(err, operr.InvalidParameterValue) {
		t.Fatalf("htmlSource() err = %v, want kind %v", err, operr.InvalidParameterValue)
	}
}

func TestHTMLSourceNegativeIndex(t *testing.T) {
	t.Parallel()

	params := operator.Values{"path": "flights.html", "table_index": -1}
	_, err := htmlSource(context.Background(), nil, nil, params, nil)
	if !operr.IsKind(err, operr.InvalidParameterValue) {
		t.Fatalf("htmlSource() err = %v, want kind %v", err, operr.InvalidParameterValue)
	}
}
