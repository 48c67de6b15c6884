package mocks

import (
	"context"
	"sync"

	"github.com/example/trade-compliance/internal/domain/snapshot"
)

// MockReaction is a test reaction recording every Compare invocation.
type MockReaction struct {
	ReactionName string
	AcceptFn     func(snap snapshot.Snapshot) bool
	CompareErr   error

	mu           sync.Mutex
	CompareCalls []snapshot.Invocation
}

// NewMockReaction creates a reaction accepting the given entity types.
func NewMockReaction(name string, entityTypes ...string) *MockReaction {
	types := make(map[string]bool, len(entityTypes))
	for _, t := range entityTypes {
		types[t] = true
	}
	return &MockReaction{
		ReactionName: name,
		AcceptFn: func(snap snapshot.Snapshot) bool {
			return len(types) == 0 || types[snap.EntityType]
		},
	}
}

func (m *MockReaction) Name() string {
	return m.ReactionName
}

func (m *MockReaction) Accept(snap snapshot.Snapshot) bool {
	return m.AcceptFn(snap)
}

func (m *MockReaction) Compare(ctx context.Context, inv snapshot.Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompareCalls = append(m.CompareCalls, inv)
	return m.CompareErr
}

// Calls returns a copy of the recorded invocations.
func (m *MockReaction) Calls() []snapshot.Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]snapshot.Invocation, len(m.CompareCalls))
	copy(out, m.CompareCalls)
	return out
}
