package operator

import (
	"context"
	"fmt"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// SubOp is one branch of a dispatching operator: the handler to run and
// the parameter key holding its nested parameter object.
type SubOp struct {
	Fn       Handler
	ParamKey string
}

// DispatchSub routes to one of branches by the string under disc,
// slicing out the branch's nested parameters and trained state and
// merging the updated trained state back under the branch's key.
func DispatchSub(ctx context.Context, env *Env, f *frame.Frame, params Values, tp trained.Params, disc string, branches map[string]SubOp) (*Result, error) {
	raw, ok := params.lookup(disc)
	if !ok {
		return nil, operr.Newf(operr.MissingRequiredParameter, "missing required parameter %s", disc)
	}
	choice, _ := raw.(string)
	branch, ok := branches[choice]
	if !ok {
		return nil, operr.Newf(operr.InvalidParameterValue,
			"invalid choice selected for %s: %s is not supported", disc, choice)
	}

	sub := params.Sub(branch.ParamKey)
	var subTrained trained.Params
	if tp != nil {
		subTrained = tp.Sub(branch.ParamKey)
	}

	res, err := branch.Fn(ctx, env, f, sub, subTrained)
	if err != nil {
		return nil, err
	}
	if tp == nil {
		tp = make(trained.Params)
	}
	tp.SetSub(branch.ParamKey, res.Trained)
	return &Result{Frame: res.Frame, Trained: tp}, nil
}

// InputColumns reads the input_column parameter, accepting either a bare
// string or a list of column names.
func InputColumns(params Values) ([]string, error) {
	return params.StringList("input_column", "Input column")
}

var outputKeys = []string{"output_column", "output_prefix", "output_column_prefix"}

// ForEachColumn runs fn once per input column when input_column is a
// list, chaining each result frame into the next call. Single-column
// invocations pass through untouched. Operators that keep per-column
// trained state cannot run multi-column unless multi is set; when they
// do, trained state is discarded and any output name parameter becomes a
// per-column prefix.
func ForEachColumn(name string, fn Handler, multi bool) Handler {
	return func(ctx context.Context, env *Env, f *frame.Frame, params Values, tp trained.Params) (*Result, error) {
		if err := RequireFrame(f); err != nil {
			return nil, err
		}
		cols, err := InputColumns(params)
		if err != nil {
			return nil, err
		}
		if len(cols) <= 1 {
			if len(cols) == 1 {
				p := params.clone()
				p["input_column"] = cols[0]
				return fn(ctx, env, f, p, tp)
			}
			return fn(ctx, env, f, params, tp)
		}
		if !multi {
			return nil, operr.Newf(operr.InvalidParameterValue,
				"operator %s does not support multiple columns, please provide a single column", name)
		}

		for _, col := range cols {
			p := params.clone()
			p["input_column"] = col
			for _, key := range outputKeys {
				if prefix, ok := p[key].(string); ok && prefix != "" {
					p["output_column"] = fmt.Sprintf("%s_%s", prefix, col)
					break
				}
			}
			res, err := fn(ctx, env, f, p, nil)
			if err != nil {
				return nil, err
			}
			f = res.Frame
		}
		return &Result{Frame: f, Trained: nil}, nil
	}
}
