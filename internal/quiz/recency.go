package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mltutor/mltutor/internal/platform/cache"
)

// recencyWindow caps how many recently used chunk ids are remembered
// per material.
const recencyWindow = 50

// RecencyTracker remembers which chunks recently fed question
// generation, so consecutive quizzes on the same material draw from
// different parts of the text.
type RecencyTracker interface {
	RecentlyUsed(ctx context.Context, materialID string) (map[string]bool, error)
	MarkUsed(ctx context.Context, materialID string, chunkIDs []string) error
}

// MemoryRecency keeps the rolling set in process memory.
type MemoryRecency struct {
	mu     sync.Mutex
	recent map[string][]string
}

func NewMemoryRecency() *MemoryRecency {
	return &MemoryRecency{recent: make(map[string][]string)}
}

func (m *MemoryRecency) RecentlyUsed(_ context.Context, materialID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.recent[materialID]))
	for _, id := range m.recent[materialID] {
		out[id] = true
	}
	return out, nil
}

func (m *MemoryRecency) MarkUsed(_ context.Context, materialID string, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append(m.recent[materialID], chunkIDs...)
	if len(ids) > recencyWindow {
		ids = ids[len(ids)-recencyWindow:]
	}
	m.recent[materialID] = ids
	return nil
}

// RedisRecency shares the rolling set across instances via a capped
// Redis list per material.
type RedisRecency struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewRedisRecency(c *cache.Cache) *RedisRecency {
	return &RedisRecency{cache: c, ttl: 24 * time.Hour}
}

func recencyKey(materialID string) string {
	return "quiz:recent:" + materialID
}

func (r *RedisRecency) RecentlyUsed(ctx context.Context, materialID string) (map[string]bool, error) {
	ids, err := r.cache.Client.LRange(ctx, recencyKey(materialID), 0, recencyWindow-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading recent chunk ids: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *RedisRecency) MarkUsed(ctx context.Context, materialID string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	key := recencyKey(materialID)
	vals := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		vals[i] = id
	}
	pipe := r.cache.Client.TxPipeline()
	pipe.LPush(ctx, key, vals...)
	pipe.LTrim(ctx, key, 0, recencyWindow-1)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording recent chunk ids: %w", err)
	}
	return nil
}
