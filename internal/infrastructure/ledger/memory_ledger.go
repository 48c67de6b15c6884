package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/google/uuid"
)

// MemoryLedger keeps snapshots in memory. Used in tests and local development.
type MemoryLedger struct {
	mu    sync.RWMutex
	snaps map[string][]*snapshot.Snapshot // entity key -> snapshots, append order
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		snaps: make(map[string][]*snapshot.Snapshot),
	}
}

func (l *MemoryLedger) Append(ctx context.Context, entityType, entityID string, kind snapshot.Kind, ptr snapshot.Pointer) (*snapshot.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &snapshot.Snapshot{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Kind:       kind,
		Pointer:    ptr,
		CreatedAt:  time.Now(),
	}
	key := snap.EntityKey()
	l.snaps[key] = append(l.snaps[key], snap)

	out := *snap
	return &out, nil
}

func (l *MemoryLedger) Unprocessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) ([]snapshot.Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []snapshot.Snapshot
	for _, s := range l.snaps[snapshot.EntityKey(entityType, entityID)] {
		if s.Kind == kind && !s.Processed() {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (l *MemoryLedger) LastProcessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) (*snapshot.Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var last *snapshot.Snapshot
	for _, s := range l.snaps[snapshot.EntityKey(entityType, entityID)] {
		if s.Kind != kind || !s.Processed() {
			continue
		}
		if last == nil || s.ProcessedAt.After(*last.ProcessedAt) ||
			(s.ProcessedAt.Equal(*last.ProcessedAt) && s.CreatedAt.After(last.CreatedAt)) {
			last = s
		}
	}
	if last == nil {
		return nil, nil
	}
	out := *last
	return &out, nil
}

func (l *MemoryLedger) MarkProcessed(ctx context.Context, snaps []snapshot.Snapshot, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		ids[s.ID] = true
	}
	for _, stored := range l.snaps {
		for _, s := range stored {
			if ids[s.ID] && !s.Processed() {
				t := at
				s.ProcessedAt = &t
			}
		}
	}
	return nil
}
