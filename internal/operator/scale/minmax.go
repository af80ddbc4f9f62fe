package scale

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// minMaxScalerModel remembers the observed value range of the fit data.
type minMaxScalerModel struct {
	DataMin float64 `json:"data_min"`
	DataMax float64 `json:"data_max"`
}

func (m *minMaxScalerModel) MarshalArtifacts() (map[string][]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{"min_max_scaler.json": b}, nil
}

func (m *minMaxScalerModel) UnmarshalArtifacts(a map[string][]byte) error {
	b, ok := a["min_max_scaler.json"]
	if !ok {
		return fmt.Errorf("model archive has no min_max_scaler.json")
	}
	return json.Unmarshal(b, m)
}

func fitMinMaxScaler(xs []float64) *minMaxScalerModel {
	m := &minMaxScalerModel{DataMin: xs[0], DataMax: xs[0]}
	for _, x := range xs[1:] {
		if x < m.DataMin {
			m.DataMin = x
		}
		if x > m.DataMax {
			m.DataMax = x
		}
	}
	return m
}

// apply projects x from the fitted range onto [outMin, outMax]. A
// constant fit range maps every value to the midpoint, except NaN which
// stays NaN.
func (m *minMaxScalerModel) apply(x, outMin, outMax float64) float64 {
	rng := m.DataMax - m.DataMin
	if rng == 0 {
		if math.IsNaN(x) {
			return x
		}
		return (outMin + outMax) / 2
	}
	return (x-m.DataMin)/rng*(outMax-outMin) + outMin
}

// minMaxScaler rescales the input column onto a fixed output range,
// [0, 1] unless min and max say otherwise.
func minMaxScaler(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	output, err := scalerOutput(params, col)
	if err != nil {
		return nil, err
	}
	outMin, err := params.Float("min", "min", 0)
	if err != nil {
		return nil, err
	}
	outMax, err := params.Float("max", "max", 1)
	if err != nil {
		return nil, err
	}
	if outMax <= outMin {
		return nil, operr.Newf(operr.InvalidParameterValue,
			"invalid value provided for 'max': the output maximum %v must be greater than the minimum %v", outMax, outMin)
	}

	src, _ := f.Column(col)
	if err := expectNumeric(src); err != nil {
		return nil, err
	}

	tp = trained.Resolve(tp, map[string]any{"input_column": col, "min": outMin, "max": outMax})

	xs := columnFloats(src)
	model := &minMaxScalerModel{}
	if trained.LoadModel(tp, scalerModelName, model, env.Printf) {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "min_max_scaler"})
	} else {
		vals := fitValues(xs)
		if len(vals) == 0 {
			return nil, errNothingToFit(col)
		}
		model = fitMinMaxScaler(vals)
		if err := trained.SaveModel(tp, scalerModelName, model); err != nil {
			return nil, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "min_max_scaler"})
	}

	scaled := make([]float64, len(xs))
	for i, x := range xs {
		scaled[i] = model.apply(x, outMin, outMax)
	}
	return &operator.Result{Frame: writeScaled(f, output, scaled), Trained: tp}, nil
}
