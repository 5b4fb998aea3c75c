package index

import (
	"context"
	"sort"
	"sync"

	"github.com/mltutor/mltutor/internal/ingest"
)

// MemoryIndex keeps chunks in process memory. Search ties are broken
// by insertion order so results are reproducible.
type MemoryIndex struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]ingest.Chunk
	seq   map[string]int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byID: make(map[string]ingest.Chunk),
		seq:  make(map[string]int),
	}
}

func (m *MemoryIndex) Add(_ context.Context, chunks []ingest.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if _, ok := m.byID[c.ID]; !ok {
			m.seq[c.ID] = len(m.order)
			m.order = append(m.order, c.ID)
		}
		m.byID[c.ID] = c
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	if k < 1 || !validQuery(vector) {
		return nil, ErrInvalidQuery
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.order))
	for _, id := range m.order {
		c := m.byID[id]
		if !matches(c, filter) {
			continue
		}
		if len(c.Vector) != len(vector) {
			return nil, ErrInvalidQuery
		}
		hits = append(hits, Hit{Chunk: c, Score: cosine(vector, c.Vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return m.seq[hits[i].Chunk.ID] < m.seq[hits[j].Chunk.ID]
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// List returns filter-matched chunks in insertion order.
func (m *MemoryIndex) List(_ context.Context, filter Filter, limit int) ([]ingest.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ingest.Chunk
	for _, id := range m.order {
		c := m.byID[id]
		if !matches(c, filter) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryIndex) Count(_ context.Context, filter Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int
	for _, c := range m.byID {
		if matches(c, filter) {
			n++
		}
	}
	return n, nil
}
