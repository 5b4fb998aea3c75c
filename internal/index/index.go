// Package index stores chunk vectors and serves similarity search over
// them. Two implementations are provided: an in-memory index for tests
// and small deployments, and a Postgres-backed one for persistence.
package index

import (
	"context"
	"errors"

	"github.com/mltutor/mltutor/internal/ingest"
)

// ErrInvalidQuery is returned for a zero or dimension-mismatched
// query vector.
var ErrInvalidQuery = errors.New("index: invalid query vector")

// Filter scopes a search. Zero values mean "any".
type Filter struct {
	MaterialID string
	ChapterID  string
}

// Hit is one search result with its cosine similarity score.
type Hit struct {
	Chunk ingest.Chunk
	Score float64
}

// Index is the chunk store. Add must be idempotent per chunk id, and
// Search and List must be deterministic for a fixed index state.
type Index interface {
	Add(ctx context.Context, chunks []ingest.Chunk) error
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error)
	List(ctx context.Context, filter Filter, limit int) ([]ingest.Chunk, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// cosine assumes both vectors are L2-normalized, so the dot product is
// the cosine similarity.
func cosine(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func matches(c ingest.Chunk, f Filter) bool {
	if f.MaterialID != "" && c.MaterialID != f.MaterialID {
		return false
	}
	if f.ChapterID != "" && c.ChapterID != f.ChapterID {
		return false
	}
	return true
}

func validQuery(vector []float32) bool {
	if len(vector) == 0 {
		return false
	}
	for _, x := range vector {
		if x != 0 {
			return true
		}
	}
	return false
}
