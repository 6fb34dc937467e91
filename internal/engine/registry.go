package engine

import (
	"context"
	"sync"
	"time"

	"roastbattle/backend/internal/battle"
	"roastbattle/backend/internal/clock"
	"roastbattle/backend/internal/observability"
)

// Registry hands out one Engine per client id and reaps idle ones.
type Registry struct {
	factory func() *Engine
	clock   clock.Clock
	idleTTL time.Duration
	metrics *observability.Metrics

	mu      sync.Mutex
	engines map[string]*registryEntry
}

type registryEntry struct {
	engine   *Engine
	lastSeen time.Time
}

func NewRegistry(factory func() *Engine, c clock.Clock, idleTTL time.Duration, metrics *observability.Metrics) *Registry {
	if c == nil {
		c = clock.Real{}
	}
	return &Registry{
		factory: factory,
		clock:   c,
		idleTTL: idleTTL,
		metrics: metrics,
		engines: map[string]*registryEntry{},
	}
}

// Get returns the client's engine, creating it on first use.
func (r *Registry) Get(clientID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.engines[clientID]
	if !ok {
		entry = &registryEntry{engine: r.factory()}
		r.engines[clientID] = entry
	}
	entry.lastSeen = r.clock.Now()
	return entry.engine
}

func (r *Registry) Lookup(clientID string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.engines[clientID]
	if !ok {
		return nil, false
	}
	entry.lastSeen = r.clock.Now()
	return entry.engine, true
}

// Sweep resets and forgets engines idle longer than the TTL, then refreshes
// the active battle gauge. It returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	now := r.clock.Now()
	var stale []*Engine
	for id, entry := range r.engines {
		if r.idleTTL > 0 && now.Sub(entry.lastSeen) > r.idleTTL {
			stale = append(stale, entry.engine)
			delete(r.engines, id)
		}
	}
	r.mu.Unlock()

	for _, engine := range stale {
		engine.Reset()
	}
	r.metrics.SetActiveBattles(r.ActiveBattles())
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// ActiveBattles counts engines whose battle has not been dismissed yet.
func (r *Registry) ActiveBattles() int {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, entry := range r.engines {
		engines = append(engines, entry.engine)
	}
	r.mu.Unlock()

	count := 0
	for _, engine := range engines {
		if session, ok := engine.Store().Snapshot(); ok && session.Status != battle.StatusComplete {
			count++
		}
	}
	return count
}

func (r *Registry) Close() {
	r.mu.Lock()
	engines := r.engines
	r.engines = map[string]*registryEntry{}
	r.mu.Unlock()

	for _, entry := range engines {
		entry.engine.Reset()
	}
}
