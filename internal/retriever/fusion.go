package retriever

import (
	"fmt"
	"sort"

	"github.com/dshills/luarag/pkg/types"
)

// Default fusion weights: vector relevance dominates
const (
	DefaultTextWeight   = 0.3
	DefaultVectorWeight = 0.7
)

// Weights are the per-mode multipliers of hybrid fusion
type Weights struct {
	Text   float64 `json:"text_weight" yaml:"text_weight"`
	Vector float64 `json:"vector_weight" yaml:"vector_weight"`
}

// DefaultWeights returns the 0.3 / 0.7 fusion weights
func DefaultWeights() Weights {
	return Weights{Text: DefaultTextWeight, Vector: DefaultVectorWeight}
}

// IsZero reports whether no weight was set
func (w Weights) IsZero() bool {
	return w.Text == 0 && w.Vector == 0
}

// Validate checks each weight is within [0,1] and at least one is positive
func (w Weights) Validate() error {
	if w.Text < 0 || w.Text > 1 {
		return fmt.Errorf("text weight %.2f outside [0,1]", w.Text)
	}
	if w.Vector < 0 || w.Vector > 1 {
		return fmt.Errorf("vector weight %.2f outside [0,1]", w.Vector)
	}
	if w.IsZero() {
		return fmt.Errorf("text and vector weights are both zero")
	}
	return nil
}

// fused accumulates per-mode scores for one chunk
type fused struct {
	result      types.SearchResult
	textScore   float64
	vectorScore float64
}

// Fuse merges lexical and vector results by chunk id. Each chunk scores
// w.Text*text + w.Vector*vector, with 0 for a mode that did not find it.
// Ties on the combined score are broken by ascending chunk id.
func Fuse(text, vector []types.SearchResult, w Weights, limit int) []types.SearchResult {
	byID := make(map[int64]*fused, len(text)+len(vector))
	order := make([]int64, 0, len(text)+len(vector))

	for _, r := range text {
		if _, ok := byID[r.ID]; ok {
			continue
		}
		byID[r.ID] = &fused{result: r, textScore: r.Score}
		order = append(order, r.ID)
	}
	for _, r := range vector {
		if f, ok := byID[r.ID]; ok {
			if r.Score > f.vectorScore {
				f.vectorScore = r.Score
			}
			continue
		}
		byID[r.ID] = &fused{result: r, vectorScore: r.Score}
		order = append(order, r.ID)
	}

	results := make([]types.SearchResult, 0, len(order))
	for _, id := range order {
		f := byID[id]
		res := f.result
		ts, vs := f.textScore, f.vectorScore
		res.Score = w.Text*ts + w.Vector*vs
		res.TextScore = &ts
		res.VectorScore = &vs
		results = append(results, res)
	}

	sortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// sortResults orders by score descending, ties by ascending id
func sortResults(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
