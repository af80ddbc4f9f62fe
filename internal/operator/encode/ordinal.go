package encode

import (
	"context"
	"math"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// ordinalEncode maps the labels of one column to double indexes assigned
// by descending frequency. Without an output_column the encoded values
// replace the input column in place.
//
// Invalid cells are nulls and labels the fitted model has never seen.
// Skip drops their rows, Error fails the run, Keep assigns them the index
// one past the last label, and Replace with NaN encodes them as NaN.
func ordinalEncode(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	strategy, err := params.Enum("invalid_handling_strategy", "Invalid handling strategy",
		[]string{strategySkip, strategyError, strategyKeep, strategyReplaceWithNaN}, strategyError)
	if err != nil {
		return nil, err
	}
	output, err := params.String("output_column", "Output column", "")
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = col
	}

	tp = trained.Resolve(tp, map[string]any{"invalid_handling_strategy": strategy})

	src, _ := f.Column(col)
	model := &stringIndexerModel{}
	loaded := trained.LoadModel(tp, stringIndexerModelName, model, env.Printf)
	if loaded {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "ordinal_encode"})
	} else {
		model = fitStringIndexer(src)
		if err := trained.SaveModel(tp, stringIndexerModelName, model); err != nil {
			return nil, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "ordinal_encode"})
	}

	idxs := model.apply(src)
	keepIndex := float64(len(model.Labels))

	values := make([]any, len(idxs))
	for i, ix := range idxs {
		switch {
		case ix >= 0:
			values[i] = float64(ix)
		case strategy == strategyError:
			return nil, operator.WrapTransformErr(errInvalidIndex(src, i), loaded)
		case strategy == strategyKeep:
			values[i] = keepIndex
		case strategy == strategyReplaceWithNaN:
			values[i] = math.NaN()
		}
	}

	out := f.WithColumn(frame.Column{Name: output, Type: frame.Double, Values: values})
	if strategy == strategySkip {
		out = out.Filter(func(row int) bool { return idxs[row] >= 0 })
	}

	return &operator.Result{Frame: out, Trained: tp}, nil
}
