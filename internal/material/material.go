// Package material tracks the study documents known to the service,
// both the built-in corpus and user uploads.
package material

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("material: not found")

// Source records how a material entered the registry.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceUpload  Source = "upload"
)

// Material describes one ingestible document.
type Material struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Source      Source    `json:"source"`
	Indexed     bool      `json:"indexed"`
	Chunks      int       `json:"chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

// Registry is an in-memory catalogue of materials. All methods are
// safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Material
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Material)}
}

// Register adds or replaces a material entry.
func (r *Registry) Register(m Material) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.mu.Lock()
	r.items[m.ID] = m
	r.mu.Unlock()
}

// MarkIndexed records a successful ingestion and its chunk count.
func (r *Registry) MarkIndexed(id string, chunks int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	m.Indexed = true
	m.Chunks = chunks
	r.items[id] = m
	return nil
}

// Get returns the material with the given id.
func (r *Registry) Get(id string) (Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return Material{}, ErrNotFound
	}
	return m, nil
}

// List returns all materials ordered by creation time, oldest first.
// Entries created at the same instant are ordered by id.
func (r *Registry) List() []Material {
	r.mu.RLock()
	out := make([]Material, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AutoSelect picks the material a request without an explicit id should
// target: the most recently registered indexed material. Ties on
// creation time resolve to the lexicographically smallest id so the
// choice is stable across restarts.
func (r *Registry) AutoSelect() (Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best  Material
		found bool
	)
	for _, m := range r.items {
		if !m.Indexed {
			continue
		}
		if !found {
			best, found = m, true
			continue
		}
		if m.CreatedAt.After(best.CreatedAt) {
			best = m
			continue
		}
		if m.CreatedAt.Equal(best.CreatedAt) && m.ID < best.ID {
			best = m
		}
	}
	if !found {
		return Material{}, ErrNotFound
	}
	return best, nil
}
