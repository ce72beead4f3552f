package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kasuganosora/combatcore/cache"
	"go.uber.org/zap"
)

const (
	// EntitiesKey is a hash of entity ID to JSON snapshot.
	EntitiesKey = "arena:entities"
	// StatusKey holds the arena tick, clock and target as JSON.
	StatusKey = "arena:status"
)

// Status is the arena-level part of a published snapshot.
type Status struct {
	Tick     uint64  `json:"tick"`
	Clock    float64 `json:"clock"`
	Entities int     `json:"entities"`
	TargetID string  `json:"target_id,omitempty"`
}

// Publisher mirrors arena snapshots into a cache.Store so other processes
// can read them.
type Publisher struct {
	arena  *Arena
	store  cache.Store
	logger *zap.Logger

	mu        sync.Mutex
	published map[string]struct{}
}

func NewPublisher(arena *Arena, store cache.Store, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{arena: arena, store: store, logger: logger, published: make(map[string]struct{})}
}

// Publish writes every live entity and deletes the ones gone since the last
// call.
func (p *Publisher) Publish(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snaps := p.arena.Snapshot()
	current := make(map[string]struct{}, len(snaps))
	fields := make(map[string]string, len(snaps))
	for _, s := range snaps {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode %s: %w", s.ID, err)
		}
		fields[s.ID] = string(data)
		current[s.ID] = struct{}{}
	}
	if err := p.store.HSetMany(ctx, EntitiesKey, fields); err != nil {
		return fmt.Errorf("publish snapshots: %w", err)
	}
	var stale []string
	for id := range p.published {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := p.store.HDel(ctx, EntitiesKey, stale...); err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
	}
	p.published = current

	st := Status{Tick: p.arena.Tick(), Clock: p.arena.Clock(), Entities: len(snaps)}
	if t, ok := p.arena.Target(); ok {
		st.TargetID = t.ID
	}
	data, _ := json.Marshal(st)
	return p.store.Set(ctx, StatusKey, string(data), 0)
}

// Run is a scheduler ticker body; errors are logged, not returned.
func (p *Publisher) Run(ctx context.Context) func() {
	return func() {
		if err := p.Publish(ctx); err != nil {
			p.logger.Warn("snapshot publish failed", zap.Error(err))
		}
	}
}
