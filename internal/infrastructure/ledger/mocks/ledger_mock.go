package mocks

import (
	"context"
	"time"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/infrastructure/ledger"
)

// MockLedger wraps the in-memory ledger and records calls for assertions.
type MockLedger struct {
	*ledger.MemoryLedger

	// For tracking calls in tests
	AppendCalls        []AppendCall
	MarkProcessedCalls []MarkProcessedCall
	UnprocessedErr     error
	LastProcessedErr   error
	MarkProcessedErr   error
}

// AppendCall records parameters passed to Append
type AppendCall struct {
	EntityType string
	EntityID   string
	Kind       snapshot.Kind
	Pointer    snapshot.Pointer
}

// MarkProcessedCall records parameters passed to MarkProcessed
type MarkProcessedCall struct {
	Snapshots []snapshot.Snapshot
	At        time.Time
}

// NewMockLedger creates a new MockLedger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		MemoryLedger: ledger.NewMemoryLedger(),
	}
}

func (m *MockLedger) Append(ctx context.Context, entityType, entityID string, kind snapshot.Kind, ptr snapshot.Pointer) (*snapshot.Snapshot, error) {
	m.AppendCalls = append(m.AppendCalls, AppendCall{
		EntityType: entityType,
		EntityID:   entityID,
		Kind:       kind,
		Pointer:    ptr,
	})
	return m.MemoryLedger.Append(ctx, entityType, entityID, kind, ptr)
}

func (m *MockLedger) Unprocessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) ([]snapshot.Snapshot, error) {
	if m.UnprocessedErr != nil {
		return nil, m.UnprocessedErr
	}
	return m.MemoryLedger.Unprocessed(ctx, entityType, entityID, kind)
}

func (m *MockLedger) LastProcessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) (*snapshot.Snapshot, error) {
	if m.LastProcessedErr != nil {
		return nil, m.LastProcessedErr
	}
	return m.MemoryLedger.LastProcessed(ctx, entityType, entityID, kind)
}

func (m *MockLedger) MarkProcessed(ctx context.Context, snaps []snapshot.Snapshot, at time.Time) error {
	m.MarkProcessedCalls = append(m.MarkProcessedCalls, MarkProcessedCall{
		Snapshots: snaps,
		At:        at,
	})
	if m.MarkProcessedErr != nil {
		return m.MarkProcessedErr
	}
	return m.MemoryLedger.MarkProcessed(ctx, snaps, at)
}
