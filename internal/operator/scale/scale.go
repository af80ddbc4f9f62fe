// Package scale implements the numeric scaling operators behind the
// process_numeric node: standard, robust, min-max, and max absolute
// scaling.
//
// Every scaler fits its statistics once on the valid values of the input
// column and stores them as a blob in the node's trained parameters, so
// replay runs reuse the fitted model. Null cells never take part in the
// fit and scale to NaN.
package scale

import (
	"context"
	"math"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

const scalerModelName = "scaler_model"

func init() {
	operator.Register("process_numeric", processNumeric)
}

var scalerBranches = map[string]operator.SubOp{
	"Standard scaler": {
		Fn:       operator.ForEachColumn("Standard scaler", standardScaler, true),
		ParamKey: "standard_scaler_parameters",
	},
	"Robust scaler": {
		Fn:       operator.ForEachColumn("Robust scaler", robustScaler, true),
		ParamKey: "robust_scaler_parameters",
	},
	"Min-max scaler": {
		Fn:       operator.ForEachColumn("Min-max scaler", minMaxScaler, true),
		ParamKey: "min_max_scaler_parameters",
	},
	"Max absolute scaler": {
		Fn:       operator.ForEachColumn("Max absolute scaler", maxAbsScaler, true),
		ParamKey: "max_absolute_scaler_parameters",
	},
}

func processNumeric(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	return operator.DispatchSub(ctx, env, f, params, tp, "operator", map[string]operator.SubOp{
		"Scale values": {Fn: scaleValues, ParamKey: "scale_values_parameters"},
	})
}

func scaleValues(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	return operator.DispatchSub(ctx, env, f, params, tp, "scaler", scalerBranches)
}

// expectNumeric rejects input columns the scalers cannot work on.
func expectNumeric(c frame.Column) error {
	if c.Type != frame.Long && c.Type != frame.Double {
		return operr.Newf(operr.UnsupportedColumnType,
			"numeric column required. Please cast column to a numeric type first. Column %q has type %s",
			c.Name, c.Type)
	}
	return nil
}

// columnFloats renders a numeric column as float64s, with NaN standing in
// for null cells.
func columnFloats(c frame.Column) []float64 {
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		switch x := v.(type) {
		case int64:
			out[i] = float64(x)
		case float64:
			out[i] = x
		default:
			out[i] = math.NaN()
		}
	}
	return out
}

// fitValues drops the NaNs so nulls never influence the fitted
// statistics.
func fitValues(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func errNothingToFit(col string) error {
	return operr.Newf(operr.ModelFitFailure,
		"encountered error fitting the scaler: column %q has no valid values to fit on", col)
}

// scalerOutput resolves the output column name, defaulting to scaling the
// input in place.
func scalerOutput(params operator.Values, col string) (string, error) {
	output, err := operator.ValidColumnName(params, "output_column", "Output column", true)
	if err != nil {
		return "", err
	}
	if output == "" {
		output = col
	}
	return output, nil
}

// writeScaled replaces or appends the output column with the scaled
// doubles.
func writeScaled(f *frame.Frame, output string, scaled []float64) *frame.Frame {
	values := make([]any, len(scaled))
	for i, x := range scaled {
		values[i] = x
	}
	return f.WithColumn(frame.Column{Name: output, Type: frame.Double, Values: values})
}
