package encode

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
)

// stringIndexerModel is the fitted label order shared by the ordinal and
// one-hot encoders: most frequent label first, ties alphabetical, so the
// assignment is deterministic for a given column.
type stringIndexerModel struct {
	Labels []string `json:"labels"`
}

func (m *stringIndexerModel) MarshalArtifacts() (map[string][]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{"string_indexer.json": b}, nil
}

func (m *stringIndexerModel) UnmarshalArtifacts(a map[string][]byte) error {
	b, ok := a["string_indexer.json"]
	if !ok {
		return fmt.Errorf("model archive has no string_indexer.json")
	}
	return json.Unmarshal(b, m)
}

// fitStringIndexer counts the rendered non-null values of c. Non-string
// columns index their string rendering, the same text a cast to string
// would produce.
func fitStringIndexer(c frame.Column) *stringIndexerModel {
	counts := make(map[string]int)
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		counts[cast.FormatValue(v, c.Type)]++
	}

	labels := make([]string, 0, len(counts))
	for s := range counts {
		labels = append(labels, s)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return &stringIndexerModel{Labels: labels}
}

// apply maps every cell of c to its label index, with -1 marking null
// cells and values the fit never saw.
func (m *stringIndexerModel) apply(c frame.Column) []int {
	idx := make(map[string]int, len(m.Labels))
	for i, l := range m.Labels {
		idx[l] = i
	}

	out := make([]int, len(c.Values))
	for i, v := range c.Values {
		if v == nil {
			out[i] = -1
			continue
		}
		j, ok := idx[cast.FormatValue(v, c.Type)]
		if !ok {
			j = -1
		}
		out[i] = j
	}
	return out
}

// errInvalidIndex is the strict-handling failure for a cell the indexer
// cannot place: a null, or a label outside the fitted vocabulary.
func errInvalidIndex(c frame.Column, row int) error {
	v := c.Values[row]
	if v == nil {
		return operr.Newf(operr.ModelFitFailure,
			"encountered error calculating string indexes, halting because error handling is set to 'Error': column %q contains null values", c.Name)
	}
	return operr.Newf(operr.ModelFitFailure,
		"encountered error calculating string indexes, halting because error handling is set to 'Error': unseen label %q in column %q",
		cast.FormatValue(v, c.Type), c.Name)
}
