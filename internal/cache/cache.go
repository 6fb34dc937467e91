package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/clock"
)

var ErrMiss = errors.New("result not cached")

// ResultCache keeps evaluation results by battle id so the results view can
// be reopened after the session is reset.
type ResultCache interface {
	Put(ctx context.Context, result battle.EvaluationResult) error
	Get(ctx context.Context, battleID string) (battle.EvaluationResult, error)
}

type memoryEntry struct {
	result    battle.EvaluationResult
	expiresAt time.Time
}

type MemoryCache struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCache(c clock.Clock, ttl time.Duration) *MemoryCache {
	if c == nil {
		c = clock.Real{}
	}
	return &MemoryCache{clock: c, ttl: ttl, entries: map[string]memoryEntry{}}
}

func (m *MemoryCache) Put(_ context.Context, result battle.EvaluationResult) error {
	if result.BattleID == "" {
		return errors.New("result has no battle id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.evictLocked(now)
	m.entries[result.BattleID] = memoryEntry{result: result, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *MemoryCache) Get(_ context.Context, battleID string) (battle.EvaluationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[battleID]
	if !ok {
		return battle.EvaluationResult{}, ErrMiss
	}
	if m.ttl > 0 && !m.clock.Now().Before(entry.expiresAt) {
		delete(m.entries, battleID)
		return battle.EvaluationResult{}, ErrMiss
	}
	return entry.result, nil
}

func (m *MemoryCache) evictLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, id)
		}
	}
}
