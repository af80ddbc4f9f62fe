package encode

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/mohave"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// oneHotEncoderModel records how many base categories the encoder was
// fitted over. The invalid bucket, when the strategy calls for one, sits
// one past the last category and is never part of this count.
type oneHotEncoderModel struct {
	Categories int `json:"categories"`
}

func (m *oneHotEncoderModel) MarshalArtifacts() (map[string][]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{"one_hot_encoder.json": b}, nil
}

func (m *oneHotEncoderModel) UnmarshalArtifacts(a map[string][]byte) error {
	b, ok := a["one_hot_encoder.json"]
	if !ok {
		return fmt.Errorf("model archive has no one_hot_encoder.json")
	}
	return json.Unmarshal(b, m)
}

// oneHotEncode expands one categorical column into indicator values, as
// an array column (Vector style) or one double column per category
// (Columns style, named <output>_<label>). An ordinal indexing stage runs
// first unless the input is already ordinal encoded. drop_last removes
// the final indicator slot, so with the Keep strategy invalid cells
// encode as all zeros.
func oneHotEncode(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	strategy, err := params.Enum("invalid_handling_strategy", "Invalid handling strategy",
		[]string{strategySkip, strategyError, strategyKeep}, strategyError)
	if err != nil {
		return nil, err
	}
	dropLast, err := params.Bool("drop_last", "Drop last", true)
	if err != nil {
		return nil, err
	}
	alreadyOrdinal, err := params.Bool("input_already_ordinal_encoded", "Input already ordinal encoded", false)
	if err != nil {
		return nil, err
	}
	style, err := params.Enum("output_style", "Output style", []string{styleVector, styleColumns}, styleVector)
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

	tp = trained.Resolve(tp, map[string]any{
		"invalid_handling_strategy": strategy,
		"drop_last":                 dropLast,
	})

	idxs, labels, indexerLoaded, err := oneHotIndexes(env, f, col, strategy, alreadyOrdinal, tp)
	if err != nil {
		return nil, err
	}

	// The Skip strategy filters invalid rows out, except over already
	// ordinal encoded input, where it degrades to Keep because there is
	// no indexing stage left to drop rows in.
	hasBucket := strategy == strategyKeep || (alreadyOrdinal && strategy == strategySkip)
	if strategy == strategySkip && !alreadyOrdinal {
		f = f.Filter(func(row int) bool { return idxs[row] >= 0 })
		kept := idxs[:0]
		for _, ix := range idxs {
			if ix >= 0 {
				kept = append(kept, ix)
			}
		}
		idxs = kept
	}

	model := &oneHotEncoderModel{}
	ohLoaded := trained.LoadModel(tp, oneHotModelName, model, env.Printf)
	if ohLoaded {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "one_hot_encode"})
	} else {
		model, err = fitOneHot(idxs, labels)
		if err != nil {
			return nil, err
		}
		if err := trained.SaveModel(tp, oneHotModelName, model); err != nil {
			return nil, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "one_hot_encode"})
	}

	slots := model.Categories
	if hasBucket {
		slots++
	}
	width := slots
	if dropLast {
		width--
	}
	if width < 0 {
		width = 0
	}

	// A cell's slot: its index when inside the fitted range, the bucket
	// one past it otherwise. Out-of-range cells without a bucket fail.
	src, _ := f.Column(col)
	slot := make([]int, len(idxs))
	for i, ix := range idxs {
		if ix >= 0 && ix < model.Categories {
			slot[i] = ix
			continue
		}
		if !hasBucket {
			return nil, operator.WrapTransformErr(errInvalidIndex(src, i), indexerLoaded || ohLoaded)
		}
		slot[i] = model.Categories
	}

	if style == styleColumns {
		base := f
		if output == col {
			base = base.Drop(col)
		}
		names := labels
		if names == nil {
			names = make([]string, model.Categories)
			for i := range names {
				names[i] = fmt.Sprint(i)
			}
		}
		count := width
		if count > model.Categories {
			count = model.Categories
		}
		for j := 0; j < count; j++ {
			vals := make([]any, len(slot))
			for i, s := range slot {
				if s == j {
					vals[i] = 1.0
				} else {
					vals[i] = 0.0
				}
			}
			base = base.WithColumn(frame.Column{
				Name:   fmt.Sprintf("%s_%s", output, names[j]),
				Type:   frame.Double,
				Values: vals,
			})
		}
		return &operator.Result{Frame: base, Trained: tp}, nil
	}

	vecs := make([]any, len(slot))
	for i, s := range slot {
		vec := make([]any, width)
		for k := range vec {
			vec[k] = 0.0
		}
		if s < width {
			vec[s] = 1.0
		}
		vecs[i] = vec
	}
	out := f.WithColumn(frame.Column{Name: output, Type: frame.Array, Values: vecs})
	return &operator.Result{Frame: out, Trained: tp}, nil
}

// oneHotIndexes produces the per-row category index for the encoder:
// either by casting already ordinal encoded input, or by fitting and
// applying a string indexer whose labels also name the output columns.
// Empty strings index like nulls.
func oneHotIndexes(env *operator.Env, f *frame.Frame, col, strategy string, alreadyOrdinal bool, tp trained.Params) ([]int, []string, bool, error) {
	src, _ := f.Column(col)

	if alreadyOrdinal {
		casted, err := cast.Column(src, mohave.Long, "")
		if err != nil {
			return nil, nil, false, err
		}
		idxs := make([]int, len(casted.Values))
		for i, v := range casted.Values {
			n, ok := v.(int64)
			if !ok || n < 0 {
				idxs[i] = -1
				if strategy == strategyError {
					return nil, nil, false, errInvalidIndex(src, i)
				}
				continue
			}
			idxs[i] = int(n)
		}
		return idxs, nil, false, nil
	}

	vals := make([]any, len(src.Values))
	for i, v := range src.Values {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		vals[i] = v
	}
	cleaned := frame.Column{Name: src.Name, Type: src.Type, Values: vals}

	model := &stringIndexerModel{}
	loaded := trained.LoadModel(tp, stringIndexerModelName, model, env.Printf)
	if loaded {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "one_hot_encode"})
	} else {
		model = fitStringIndexer(cleaned)
		if err := trained.SaveModel(tp, stringIndexerModelName, model); err != nil {
			return nil, nil, false, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "one_hot_encode"})
	}

	idxs := model.apply(cleaned)
	if strategy == strategyError {
		for i, ix := range idxs {
			if ix < 0 {
				return nil, nil, false, operator.WrapTransformErr(errInvalidIndex(cleaned, i), loaded)
			}
		}
	}
	return idxs, model.Labels, loaded, nil
}

// fitOneHot sizes the encoder from the indexing stage: the label count
// when one ran, otherwise one past the highest index in the data.
func fitOneHot(idxs []int, labels []string) (*oneHotEncoderModel, error) {
	if labels != nil {
		return &oneHotEncoderModel{Categories: len(labels)}, nil
	}
	max := -1
	for _, ix := range idxs {
		if ix > max {
			max = ix
		}
	}
	if max < 0 {
		return nil, operr.New(operr.ModelFitFailure,
			"encountered error calculating encoding categories: no valid values to fit on")
	}
	return &oneHotEncoderModel{Categories: max + 1}, nil
}
