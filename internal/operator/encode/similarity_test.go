package encode

import (
	"context"
	"reflect"
	"testing"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
)

func similarityVectors(t *testing.T, f *frame.Frame, name string) [][]float64 {
	t.Helper()
	c := column(t, f, name)
	if c.Type != frame.Array {
		t.Fatalf("%s type = %v, want %v", name, c.Type, frame.Array)
	}
	out := make([][]float64, len(c.Values))
	for i, v := range c.Values {
		cell, ok := v.([]any)
		if !ok {
			t.Fatalf("%s[%d] = %T, want vector", name, i, v)
		}
		vec := make([]float64, len(cell))
		for j, e := range cell {
			x, ok := e.(float64)
			if !ok {
				t.Fatalf("%s[%d][%d] = %T, want float64", name, i, j, e)
			}
			vec[j] = x
		}
		out[i] = vec
	}
	return out
}

func TestSimilarityEncodeVectorShape(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{"alpha", "beta", nil}},
		frame.Column{Name: "other", Type: frame.Long, Values: []any{int64(1), int64(2), int64(3)}},
	)
	params := operator.Values{"input_column": "v", "target_dimension": 4}
	res, err := similarityEncode(context.Background(), nil, f, params, nil)
	if err != nil {
		t.Fatalf("similarityEncode() err = %v", err)
	}

	if want := []string{"v", "other"}; !reflect.DeepEqual(res.Frame.Names(), want) {
		t.Fatalf("Names() = %v, want %v", res.Frame.Names(), want)
	}
	vecs := similarityVectors(t, res.Frame, "v")
	for i, vec := range vecs {
		if len(vec) != 4 {
			t.Fatalf("row %d vector length = %d, want 4", i, len(vec))
		}
		for j, x := range vec {
			if x < -1 || x > 1 {
				t.Fatalf("row %d slot %d = %v, want within [-1, 1]", i, j, x)
			}
		}
	}
}

func TestSimilarityEncodeColumnsKeepsInput(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{"alpha", "beta"}},
	)
	params := operator.Values{
		"input_column":     "v",
		"target_dimension": 2,
		"output_style":     "Columns",
	}
	res, err := similarityEncode(context.Background(), nil, f, params, nil)
	if err != nil {
		t.Fatalf("similarityEncode() err = %v", err)
	}

	if want := []string{"v", "v_0", "v_1"}; !reflect.DeepEqual(res.Frame.Names(), want) {
		t.Fatalf("Names() = %v, want %v", res.Frame.Names(), want)
	}
	if c := column(t, res.Frame, "v"); c.Type != frame.String {
		t.Fatalf("input column type changed to %v", c.Type)
	}
	for _, name := range []string{"v_0", "v_1"} {
		if c := column(t, res.Frame, name); c.Type != frame.Double {
			t.Fatalf("%s type = %v, want %v", name, c.Type, frame.Double)
		}
	}
}

func TestSimilarityEncodeDeterministicAcrossFits(t *testing.T) {
	t.Parallel()

	params := operator.Values{"input_column": "v", "target_dimension": 8}
	mk := func() *frame.Frame {
		return newFrame(t,
			frame.Column{Name: "v", Type: frame.String, Values: []any{"carrier delay"}},
		)
	}

	res1, err := similarityEncode(context.Background(), nil, mk(), params, nil)
	if err != nil {
		t.Fatalf("similarityEncode() err = %v", err)
	}
	res2, err := similarityEncode(context.Background(), nil, mk(), params, nil)
	if err != nil {
		t.Fatalf("similarityEncode() err = %v", err)
	}

	v1 := similarityVectors(t, res1.Frame, "v")
	v2 := similarityVectors(t, res2.Frame, "v")
	if !reflect.DeepEqual(v1, v2) {
		t.Fatalf("independent fits disagree: %v vs %v", v1, v2)
	}
}

func TestSimilarityEncodeIdenticalStringsShareSignature(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{"abcdef", "abcdef"}},
	)
	params := operator.Values{"input_column": "v", "target_dimension": 6}
	res, err := similarityEncode(context.Background(), nil, f, params, nil)
	if err != nil {
		t.Fatalf("similarityEncode() err = %v", err)
	}

	vecs := similarityVectors(t, res.Frame, "v")
	if !reflect.DeepEqual(vecs[0], vecs[1]) {
		t.Fatalf("equal inputs encoded differently: %v vs %v", vecs[0], vecs[1])
	}
}

func TestSimilarityEncodeNullLikeValuesShareSignature(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{nil, "", "   "}},
	)
	params := operator.Values{"input_column": "v", "target_dimension": 5}
	res, err := similarityEncode(context.Background(), nil, f, params, nil)
	if err != nil {
		t.Fatalf("similarityEncode() err = %v", err)
	}

	vecs := similarityVectors(t, res.Frame, "v")
	if !reflect.DeepEqual(vecs[0], vecs[1]) || !reflect.DeepEqual(vecs[1], vecs[2]) {
		t.Fatalf("null-like inputs encoded differently: %v", vecs)
	}
}

func TestSimilarityEncodeSimilarStringsCloser(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{"california", "califronia", "texas"}},
	)
	res, err := similarityEncode(context.Background(), nil, f, operator.Values{"input_column": "v"}, nil)
	if err != nil {
		t.Fatalf("similarityEncode() err = %v", err)
	}

	vecs := similarityVectors(t, res.Frame, "v")
	matches := func(a, b []float64) int {
		n := 0
		for i := range a {
			if a[i] == b[i] {
				n++
			}
		}
		return n
	}
	typo, unrelated := matches(vecs[0], vecs[1]), matches(vecs[0], vecs[2])
	if typo <= unrelated {
		t.Fatalf("shared slots: typo %d, unrelated %d, want typo greater", typo, unrelated)
	}
}

func TestSimilarityEncodeRejectsNonString(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "v", Type: frame.Long, Values: []any{int64(1)}},
	)
	_, err := similarityEncode(context.Background(), nil, f, operator.Values{"input_column": "v"}, nil)
	if !operr.IsKind(err, operr.UnsupportedColumnType) {
		t.Fatalf("similarityEncode() err = %v, want kind %v", err, operr.UnsupportedColumnType)
	}
}

func TestSimilarityEncodeRejectsBadDimension(t *testing.T) {
	t.Parallel()

	f := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{"a"}},
	)
	params := operator.Values{"input_column": "v", "target_dimension": 0}
	_, err := similarityEncode(context.Background(), nil, f, params, nil)
	if !operr.IsKind(err, operr.InvalidParameterValue) {
		t.Fatalf("similarityEncode() err = %v, want kind %v", err, operr.InvalidParameterValue)
	}
}

func TestSimilarityEncodeStoredModelReused(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	env := &operator.Env{Metrics: rec}
	params := operator.Values{"input_column": "v", "target_dimension": 3}

	fit := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{"alpha"}},
	)
	res1, err := similarityEncode(context.Background(), env, fit, params, nil)
	if err != nil {
		t.Fatalf("similarityEncode() fit err = %v", err)
	}

	replay := newFrame(t,
		frame.Column{Name: "v", Type: frame.String, Values: []any{"beta"}},
	)
	if _, err := similarityEncode(context.Background(), env, replay, params, res1.Trained); err != nil {
		t.Fatalf("similarityEncode() replay err = %v", err)
	}

	if got := rec.counts[metrics.ModelFitTotal+"/similarity_encode"]; got != 1 {
		t.Fatalf("fit count = %v, want 1", got)
	}
	if got := rec.counts[metrics.ModelCacheHitsTotal+"/similarity_encode"]; got != 1 {
		t.Fatalf("cache hit count = %v, want 1", got)
	}
}

func TestEncodeCategoricalSimilarityNode(t *testing.T) {
	t.Parallel()

	h, _ := operator.Lookup("encode_categorical")
	f := newFrame(t,
		frame.Column{Name: "ORIGIN", Type: frame.String, Values: []any{"SEA", "SFO"}},
	)
	params := operator.Values{
		"operator": "Similarity encode",
		"similarity_encode_parameters": map[string]any{
			"input_column":     []any{"ORIGIN"},
			"target_dimension": 8,
			"output_style":     "Columns",
		},
	}
	res, err := h(context.Background(), nil, f, params, nil)
	if err != nil {
		t.Fatalf("encode_categorical err = %v", err)
	}

	want := []string{"ORIGIN", "ORIGIN_0", "ORIGIN_1", "ORIGIN_2", "ORIGIN_3", "ORIGIN_4", "ORIGIN_5", "ORIGIN_6", "ORIGIN_7"}
	if !reflect.DeepEqual(res.Frame.Names(), want) {
		t.Fatalf("Names() = %v, want %v", res.Frame.Names(), want)
	}
	if sub := res.Trained.Sub("similarity_encode_parameters"); sub == nil {
		t.Fatal("trained parameters not merged under similarity_encode_parameters")
	}
}
