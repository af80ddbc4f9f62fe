package encode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

const (
	ngramSize       = 3
	hashingFeatures = 1 << 18
	minHashPrime    = 2038074743
	similaritySeed  = 838257247
)

// minHashModel holds the sampled hash coefficients of a min-hash
// signature: one (a, b) pair per output dimension, with a in
// [1, prime) and b in [0, prime).
type minHashModel struct {
	Coefficients [][2]int64 `json:"coefficients"`
}

func (m *minHashModel) MarshalArtifacts() (map[string][]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{"minhash.json": b}, nil
}

func (m *minHashModel) UnmarshalArtifacts(a map[string][]byte) error {
	b, ok := a["minhash.json"]
	if !ok {
		return fmt.Errorf("model archive has no minhash.json")
	}
	return json.Unmarshal(b, m)
}

func fitMinHash(dim int) *minHashModel {
	r := rand.New(rand.NewSource(similaritySeed))
	coef := make([][2]int64, dim)
	for i := range coef {
		coef[i] = [2]int64{1 + r.Int63n(minHashPrime-1), r.Int63n(minHashPrime)}
	}
	return &minHashModel{Coefficients: coef}
}

// signature min-hashes a feature set and scales each slot into [-1, 1].
func (m *minHashModel) signature(set map[uint32]struct{}) []float64 {
	const half = float64(math.MaxInt32) / 2
	out := make([]float64, len(m.Coefficients))
	for k, ab := range m.Coefficients {
		min := int64(minHashPrime)
		for ix := range set {
			h := ((1+int64(ix))*ab[0] + ab[1]) % minHashPrime
			if h < min {
				min = h
			}
		}
		out[k] = (float64(min) - half) / half
	}
	return out
}

// similarityEncode embeds a high-cardinality string column so that
// similar category names land near each other: each value becomes a set
// of character 3-grams, the set is hashed into binary features, and a
// min-hash signature of target_dimension slots summarizes it. Unseen
// values encode without a refit, which is the point of the technique.
//
// Output goes to an array column (Vector style) or to one double column
// per dimension named <output>_<i> (Columns style, original column kept).
func similarityEncode(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	col, err := operator.ExpectColumn(f, params, "input_column", "Input column")
	if err != nil {
		return nil, err
	}
	dim, err := params.Int("target_dimension", "Target dimension", 30)
	if err != nil {
		return nil, err
	}
	if dim < 1 {
		return nil, operr.Newf(operr.InvalidParameterValue,
			"invalid value provided for 'Target dimension': expected a positive integer but received: %d", dim)
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

	src, _ := f.Column(col)
	if src.Type != frame.String {
		return nil, operr.Newf(operr.UnsupportedColumnType,
			"unsupported data type for input column %q: %s, only string columns can be similarity encoded, cast the column to string first", col, src.Type)
	}

	tp = trained.Resolve(tp, map[string]any{"target_dimension": dim})

	model := &minHashModel{}
	loaded := trained.LoadModel(tp, minHashModelName, model, env.Printf)
	if loaded {
		env.Count(metrics.ModelCacheHitsTotal, 1, metrics.Labels{"operator": "similarity_encode"})
	} else {
		model = fitMinHash(dim)
		if err := trained.SaveModel(tp, minHashModelName, model); err != nil {
			return nil, err
		}
		env.Count(metrics.ModelFitTotal, 1, metrics.Labels{"operator": "similarity_encode"})
	}

	sigs := make([][]float64, len(src.Values))
	for i, v := range src.Values {
		sigs[i] = model.signature(featureSet(charNGrams(preprocessCategory(v))))
	}

	if style == styleColumns {
		base := f
		for j := 0; j < dim; j++ {
			vals := make([]any, len(sigs))
			for i := range sigs {
				vals[i] = sigs[i][j]
			}
			base = base.WithColumn(frame.Column{
				Name:   fmt.Sprintf("%s_%d", output, j),
				Type:   frame.Double,
				Values: vals,
			})
		}
		return &operator.Result{Frame: base, Trained: tp}, nil
	}

	cells := make([]any, len(sigs))
	for i, sig := range sigs {
		vec := make([]any, len(sig))
		for k, x := range sig {
			vec[k] = x
		}
		cells[i] = vec
	}
	out := f.WithColumn(frame.Column{Name: output, Type: frame.Array, Values: cells})
	return &operator.Result{Frame: out, Trained: tp}, nil
}

var wsRun = regexp.MustCompile(`\s+`)

// preprocessCategory normalizes a cell for n-gram extraction: nulls and
// empties become a single space, letters lowercase, whitespace runs
// collapse, and the text is space-padded so even the shortest value
// yields at least one n-gram. Every null therefore shares one signature.
func preprocessCategory(v any) string {
	s, _ := v.(string)
	s = wsRun.ReplaceAllString(strings.ToLower(s), " ")
	if s == "" {
		s = " "
	}
	s = " " + s
	for utf8.RuneCountInString(s) < ngramSize {
		s += " "
	}
	return s
}

func charNGrams(s string) []string {
	runes := []rune(s)
	if len(runes) < ngramSize {
		return nil
	}
	out := make([]string, 0, len(runes)-ngramSize+1)
	for i := 0; i+ngramSize <= len(runes); i++ {
		out = append(out, string(runes[i:i+ngramSize]))
	}
	return out
}

// featureSet maps each n-gram to a binary feature index. Duplicate
// n-grams collapse, matching binary term hashing.
func featureSet(grams []string) map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(grams))
	for _, g := range grams {
		set[uint32(xxhash.Sum64String(g)%hashingFeatures)] = struct{}{}
	}
	return set
}
