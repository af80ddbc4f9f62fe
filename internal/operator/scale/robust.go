package scale

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// robustScalerModel centers on the fitted median and scales by the
// fitted interquantile range, which outliers barely move.
type robustScalerModel struct {
	Median float64 `json:"median"`
	Range  float64 `json:"range"`
}

func (m *robustScalerModel) MarshalArtifacts() (map[string][]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{"robust_scaler.json": b}, nil
}

func (m *robustScalerModel) UnmarshalArtifacts(a map[string][]byte) error {
	b, ok := a["robust_scaler.json"]
	if !ok {
		return fmt.Errorf("model archive has no robust_scaler.json")
	}
	return json.Unmarshal(b, m)
}

// quantile returns the linearly interpolated q-quantile of an ascending
// sorted slice.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func fitRobustScaler(xs []float64, lower, upper float64) *robustScalerModel {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	return &robustScalerModel{
		Median: quantile(s, 0.5),
		Range:  quantile(s, upper) - quantile(s, lower),
	}
}

func (m *robustScalerModel) apply(x float64, center, scale bool) float64 {
	v := x
	if center {
		v -= m.Median
	}
	if scale {
		factor := 0.0
		if m.Range != 0 {
			factor = 1 / m.Range
		}
		v *= factor
	}
	return v
}

// robustScaler scales the input column by its interquantile range and
// optionally centers it on its median first.
func robustScaler(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	output, err := scalerOutput(params, col)
	if err != nil {
		return nil, err
	}
	lower, err := params.Float("lower_quantile", "lower_quantile", 0.25)
	if err != nil {
		return nil, err
	}
	upper, err := params.Float("upper_quantile", "upper_quantile", 0.75)
	if err != nil {
		return nil, err
	}
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, operr.Newf(operr.InvalidParameterValue,
			"invalid quantile range [%v, %v], quantiles must satisfy 0 <= lower < upper <= 1", lower, upper)
	}
	center, err := params.Bool("center", "with_centering", false)
	if err != nil {
		return nil, err
	}
	scale, err := params.Bool("scale", "with_scaling", true)
	if err != nil {
		return nil, err
	}

	src, _ := f.Column(col)
	if err := expectNumeric(src); err != nil {
		return nil, err
	}

	tp = trained.Resolve(tp, map[string]any{
		"input_column":   col,
		"center":         center,
		"scale":          scale,
		"lower_quantile": lower,
		"upper_quantile": upper,
	})

	xs := columnFloats(src)
	model := &robustScalerModel{}
	if trained.LoadModel(tp, scalerModelName, model, env.Printf) {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "robust_scaler"})
	} else {
		vals := fitValues(xs)
		if len(vals) == 0 {
			return nil, errNothingToFit(col)
		}
		model = fitRobustScaler(vals, lower, upper)
		if err := trained.SaveModel(tp, scalerModelName, model); err != nil {
			return nil, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "robust_scaler"})
	}

	scaled := make([]float64, len(xs))
	for i, x := range xs {
		scaled[i] = model.apply(x, center, scale)
	}
	return &operator.Result{Frame: writeScaled(f, output, scaled), Trained: tp}, nil
}
