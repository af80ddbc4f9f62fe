// Package typecast implements the schema inference and casting
// operators.
//
// infer_and_cast_type profiles a head sample of the dataset, proposes a
// logical type per column, casts the whole dataset, and remembers the
// schema in its trained parameters so replay runs cast with the stored
// schema instead of re-inferring. cast_single_data_type casts one column
// to a requested type under a configurable policy for values that do not
// survive the cast.
package typecast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/infer"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/mohave"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/schema"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

func init() {
	operator.Register("infer_and_cast_type", inferAndCastType)
	operator.Register("cast_single_data_type", operator.ForEachColumn("cast_single_data_type", castSingleDataType, true))
}

func inferAndCastType(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	if err := operator.RequireFrame(f); err != nil {
		return nil, err
	}
	def := infer.DefaultSampleSize
	if env != nil && env.SampleSize > 0 {
		def = env.SampleSize
	}
	sample, err := params.Int("inference_data_sample_size", "Inference data sample size", def)
	if err != nil {
		return nil, err
	}

	s, stored := storedSchema(env, tp)
	if !stored {
		s = infer.Infer(f, sample)
	} else if err := s.Validate(f); err != nil {
		return nil, err
	}

	out, err := cast.Apply(f, s)
	if err != nil {
		return nil, err
	}

	return &operator.Result{
		Frame:   out,
		Trained: trained.Params{"schema": s},
		Stdout:  schemaSummary(s),
	}, nil
}

// storedSchema recovers the schema a previous run left in the trained
// parameters. Values arrive either as *schema.Schema (same process) or
// raw JSON (reloaded sidecar); anything undecodable is discarded so the
// run falls back to fresh inference.
func storedSchema(env *operator.Env, tp trained.Params) (*schema.Schema, bool) {
	if tp == nil {
		return nil, false
	}
	switch v := tp["schema"].(type) {
	case *schema.Schema:
		if v.Len() > 0 {
			return v, true
		}
	case json.RawMessage:
		s := schema.New()
		if err := json.Unmarshal(v, s); err != nil {
			env.Printf("discarding stored schema: %v", err)
			return nil, false
		}
		if s.Len() > 0 {
			return s, true
		}
	}
	return nil, false
}

func schemaSummary(s *schema.Schema) string {
	var b strings.Builder
	for _, p := range s.Pairs() {
		fmt.Fprintf(&b, "%s: %s\n", p.Name, p.Type)
	}
	return b.String()
}

func castSingleDataType(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	typeName, err := params.RequireString("data_type", "Data type")
	if err != nil {
		return nil, err
	}
	target, err := mohave.Parse(typeName)
	if err != nil {
		return nil, err
	}
	stratName, err := params.String("non_castable_data_handling_method", "Non-castable data handling method", string(cast.ReplaceWithNull))
	if err != nil {
		return nil, err
	}
	strat, err := cast.ParseStrategy(stratName)
	if err != nil {
		return nil, err
	}
	replace, err := params.String("replace_value", "Replace value", "")
	if err != nil {
		return nil, err
	}

	var pattern string
	switch target {
	case mohave.Date:
		if pattern, err = params.String("date_formatting", "Date formatting", ""); err != nil {
			return nil, err
		}
	case mohave.Datetime:
		if pattern, err = params.String("datetime_formatting", "Datetime formatting", ""); err != nil {
			return nil, err
		}
	}

	out, err := cast.SingleColumn(f, col, target, strat, replace, pattern)
	if err != nil {
		return nil, err
	}

	if failed := failedCasts(f, col, target, pattern); failed > 0 {
		env.Count(metrics.CastErrorsTotal, float64(failed), metrics.Labels{"type": string(target)})
	}

	return &operator.Result{Frame: out, Trained: tp}, nil
}

// failedCasts counts source cells the cast nulled out, for metrics only.
func failedCasts(f *frame.Frame, name string, target mohave.DataType, pattern string) int {
	src, ok := f.Column(name)
	if !ok {
		return 0
	}
	casted, err := cast.Column(src, target, pattern)
	if err != nil {
		return 0
	}
	n := 0
	for i, v := range casted.Values {
		if v == nil && src.Values[i] != nil {
			n++
		}
	}
	return n
}
