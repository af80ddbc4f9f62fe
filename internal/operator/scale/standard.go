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

// standardScalerModel holds the fitted column statistics. Std is the
// sample deviation over n-1 degrees of freedom, zero when the fit saw
// fewer than two values.
type standardScalerModel struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func (m *standardScalerModel) MarshalArtifacts() (map[string][]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{"standard_scaler.json": b}, nil
}

func (m *standardScalerModel) UnmarshalArtifacts(a map[string][]byte) error {
	b, ok := a["standard_scaler.json"]
	if !ok {
		return fmt.Errorf("model archive has no standard_scaler.json")
	}
	return json.Unmarshal(b, m)
}

func fitStandardScaler(xs []float64) *standardScalerModel {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var m2 float64
	for _, x := range xs {
		d := x - mean
		m2 += d * d
	}
	std := 0.0
	if len(xs) > 1 {
		std = math.Sqrt(m2 / float64(len(xs)-1))
	}
	return &standardScalerModel{Mean: mean, Std: std}
}

// apply centers and scales one value. A zero deviation collapses every
// centered value to zero instead of dividing by it, and NaN propagates
// either way.
func (m *standardScalerModel) apply(x float64, center, scale bool) float64 {
	v := x
	if center {
		v -= m.Mean
	}
	if scale {
		factor := 0.0
		if m.Std != 0 {
			factor = 1 / m.Std
		}
		v *= factor
	}
	return v
}

// standardScaler divides the input column by its sample deviation and
// optionally centers it on its mean first. Without an output_column the
// scaled values replace the input in place.
func standardScaler(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	output, err := scalerOutput(params, col)
	if err != nil {
		return nil, err
	}
	center, err := params.Bool("center", "center", false)
	if err != nil {
		return nil, err
	}
	scale, err := params.Bool("scale", "scale", true)
	if err != nil {
		return nil, err
	}

	src, _ := f.Column(col)
	if err := expectNumeric(src); err != nil {
		return nil, err
	}

	tp = trained.Resolve(tp, map[string]any{"input_column": col, "center": center, "scale": scale})

	xs := columnFloats(src)
	model := &standardScalerModel{}
	if trained.LoadModel(tp, scalerModelName, model, env.Printf) {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "standard_scaler"})
	} else {
		vals := fitValues(xs)
		if len(vals) == 0 {
			return nil, errNothingToFit(col)
		}
		model = fitStandardScaler(vals)
		if err := trained.SaveModel(tp, scalerModelName, model); err != nil {
			return nil, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "standard_scaler"})
	}

	scaled := make([]float64, len(xs))
	for i, x := range xs {
		scaled[i] = model.apply(x, center, scale)
	}
	return &operator.Result{Frame: writeScaled(f, output, scaled), Trained: tp}, nil
}
