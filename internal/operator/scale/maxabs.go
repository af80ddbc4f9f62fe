package scale

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// maxAbsScalerModel divides by the largest absolute value the fit saw,
// so the scaled column lands in [-1, 1] without shifting sparse zeros.
type maxAbsScalerModel struct {
	MaxAbs float64 `json:"max_abs"`
}

func (m *maxAbsScalerModel) MarshalArtifacts() (map[string][]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{"max_abs_scaler.json": b}, nil
}

func (m *maxAbsScalerModel) UnmarshalArtifacts(a map[string][]byte) error {
	b, ok := a["max_abs_scaler.json"]
	if !ok {
		return fmt.Errorf("model archive has no max_abs_scaler.json")
	}
	return json.Unmarshal(b, m)
}

func fitMaxAbsScaler(xs []float64) *maxAbsScalerModel {
	m := &maxAbsScalerModel{}
	for _, x := range xs {
		if a := math.Abs(x); a > m.MaxAbs {
			m.MaxAbs = a
		}
	}
	return m
}

// apply divides by the fitted maximum, leaving an all-zero column
// untouched instead of dividing by zero.
func (m *maxAbsScalerModel) apply(x float64) float64 {
	denom := m.MaxAbs
	if denom == 0 {
		denom = 1
	}
	return x / denom
}

// maxAbsScaler scales the input column by its largest absolute value.
// The fitted maximum is stored with the node, replay runs reuse it
// instead of refitting on their own data.
func maxAbsScaler(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	output, err := scalerOutput(params, col)
	if err != nil {
		return nil, err
	}

	src, _ := f.Column(col)
	if err := expectNumeric(src); err != nil {
		return nil, err
	}

	tp = trained.Resolve(tp, map[string]any{"input_column": col})

	xs := columnFloats(src)
	model := &maxAbsScalerModel{}
	if trained.LoadModel(tp, scalerModelName, model, env.Printf) {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "max_absolute_scaler"})
	} else {
		vals := fitValues(xs)
		if len(vals) == 0 {
			return nil, errNothingToFit(col)
		}
		model = fitMaxAbsScaler(vals)
		if err := trained.SaveModel(tp, scalerModelName, model); err != nil {
			return nil, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "max_absolute_scaler"})
	}

	scaled := make([]float64, len(xs))
	for i, x := range xs {
		scaled[i] = model.apply(x)
	}
	return &operator.Result{Frame: writeScaled(f, output, scaled), Trained: tp}, nil
}
