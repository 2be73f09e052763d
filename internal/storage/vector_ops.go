package storage

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/dshills/luarag/pkg/types"
)

// searchVector ranks the chunks embedded under model by cosine similarity
func searchVector(ctx context.Context, q querier, queryVector []float32, model string, limit int) ([]VectorResult, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return []VectorResult{}, nil
	}
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, queryVector, model, limit)
	}
	return searchVectorFallback(ctx, q, queryVector, model, limit)
}

// searchVectorOptimized computes distances in SQL with sqlite-vec.
// vec_distance_cosine returns a distance; similarity is 1 - distance.
func searchVectorOptimized(ctx context.Context, q querier, queryVector []float32, model string, limit int) ([]VectorResult, error) {
	query := `SELECT ` + chunkColumns + `,
			1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM embeddings e
		INNER JOIN chunks c ON c.id = e.chunk_id
		INNER JOIN files f ON c.file_id = f.id
		WHERE e.model = ? AND e.dimensions = ?
		ORDER BY similarity DESC, c.id ASC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, serializeVector(queryVector), model, len(queryVector), limit)
	if err != nil {
		return nil, types.StoreError("vector search", "", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var similarity float64
		c, err := scanChunk(rows, &similarity)
		if err != nil {
			return nil, types.StoreError("vector search", "", err)
		}
		results = append(results, VectorResult{Chunk: c, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, types.StoreError("vector search", "", err)
	}
	return results, nil
}

// searchVectorFallback loads candidate vectors and ranks them in Go
func searchVectorFallback(ctx context.Context, q querier, queryVector []float32, model string, limit int) ([]VectorResult, error) {
	query := `SELECT ` + chunkColumns + `, e.vector
		FROM embeddings e
		INNER JOIN chunks c ON c.id = e.chunk_id
		INNER JOIN files f ON c.file_id = f.id
		WHERE e.model = ? AND e.dimensions = ?
	`
	rows, err := q.QueryContext(ctx, query, model, len(queryVector))
	if err != nil {
		return nil, types.StoreError("vector search", "", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]VectorResult, 0, 256)
	for rows.Next() {
		var blob []byte
		c, err := scanChunk(rows, &blob)
		if err != nil {
			return nil, types.StoreError("vector search", "", err)
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}
		candidates = append(candidates, VectorResult{Chunk: c, Similarity: cosineSimilarity(queryVector, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, types.StoreError("vector search", "", err)
	}

	sortResults(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// sortResults orders by similarity descending, ties by chunk id
func sortResults(results []VectorResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian).
// This is the layout sqlite-vec reads as a float32 vector.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
// A zero vector has similarity 0 with everything.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
