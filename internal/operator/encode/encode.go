// Package encode implements the categorical encoding operators behind
// the encode_categorical node: ordinal encoding, one-hot encoding, and
// character n-gram similarity encoding.
//
// All three are stateful: the fitted model is stored as a blob in the
// node's trained parameters, keyed by a hash of the node configuration,
// so replay runs transform with the stored model instead of refitting.
package encode

import (
	"context"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

const (
	strategySkip           = "Skip"
	strategyError          = "Error"
	strategyKeep           = "Keep"
	strategyReplaceWithNaN = "Replace with NaN"

	styleVector  = "Vector"
	styleColumns = "Columns"

	stringIndexerModelName = "string_indexer_model"
	oneHotModelName        = "one_hot_encoder_model"
	minHashModelName       = "minhash_model"
)

func init() {
	operator.Register("encode_categorical", encodeCategorical)
}

var encodeBranches = map[string]operator.SubOp{
	"Ordinal encode": {
		Fn:       operator.ForEachColumn("Ordinal encode", ordinalEncode, true),
		ParamKey: "ordinal_encode_parameters",
	},
	"One-hot encode": {
		Fn:       operator.ForEachColumn("One-hot encode", oneHotEncode, true),
		ParamKey: "one_hot_encode_parameters",
	},
	"Similarity encode": {
		Fn:       operator.ForEachColumn("Similarity encode", similarityEncode, true),
		ParamKey: "similarity_encode_parameters",
	},
}

func encodeCategorical(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	return operator.DispatchSub(ctx, env, f, params, tp, "operator", encodeBranches)
}
