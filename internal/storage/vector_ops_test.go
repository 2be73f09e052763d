package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/luarag/pkg/types"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "scaled", a: []float32{1, 1}, b: []float32{3, 3}, want: 1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSerializeVector(t *testing.T) {
	v := []float32{0, 1.5, -2.25, float32(math.Pi)}

	blob := serializeVector(v)
	assert.Len(t, blob, 16)
	assert.Equal(t, v, deserializeVector(blob))
}

func TestSortResults(t *testing.T) {
	results := []VectorResult{
		{Chunk: &types.Chunk{ID: 3}, Similarity: 0.5},
		{Chunk: &types.Chunk{ID: 2}, Similarity: 0.9},
		{Chunk: &types.Chunk{ID: 1}, Similarity: 0.5},
	}

	sortResults(results)

	ids := []int64{results[0].Chunk.ID, results[1].Chunk.ID, results[2].Chunk.ID}
	assert.Equal(t, []int64{2, 1, 3}, ids)
}
