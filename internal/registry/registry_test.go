package registry

import (
	"context"
	"testing"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/reaction/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entitySnap(entityType string) snapshot.Snapshot {
	return snapshot.Snapshot{
		ID:         "snap-1",
		EntityType: entityType,
		EntityID:   "42",
		Kind:       snapshot.KindEntity,
	}
}

// ============================================
// Registration validation
// ============================================

type acceptOnly struct{}

func (acceptOnly) Accept(snap snapshot.Snapshot) bool { return true }

type compareOnly struct{}

func (compareOnly) Compare(ctx context.Context, inv snapshot.Invocation) error { return nil }

func TestRegister_RejectsCandidateMissingCompare(t *testing.T) {
	reg := New()

	err := reg.Register(acceptOnly{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Compare")
	assert.Empty(t, reg.Registered())
}

func TestRegister_RejectsCandidateMissingAccept(t *testing.T) {
	reg := New()

	err := reg.Register(compareOnly{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Accept")
	assert.Empty(t, reg.Registered())
}

func TestRegister_RejectsNil(t *testing.T) {
	reg := New()
	assert.Error(t, reg.Register(nil))
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	reg := New()

	require.NoError(t, reg.Register(mocks.NewMockReaction("edi-feed", snapshot.TypeOrder)))
	err := reg.Register(mocks.NewMockReaction("edi-feed", snapshot.TypeEntry))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestCheckValidity_AcceptsFullContract(t *testing.T) {
	assert.NoError(t, CheckValidity(mocks.NewMockReaction("ok")))
}

// ============================================
// Filtering
// ============================================

func TestRegisteredFor_FiltersByAccept(t *testing.T) {
	reg := New()

	orders := mocks.NewMockReaction("orders-only", snapshot.TypeOrder)
	shipments := mocks.NewMockReaction("shipments-only", snapshot.TypeShipment)
	require.NoError(t, reg.Register(orders))
	require.NoError(t, reg.Register(shipments))

	matched := reg.RegisteredFor(entitySnap(snapshot.TypeOrder))
	require.Len(t, matched, 1)
	assert.Equal(t, orders, matched[0])
}

func TestRegisteredFor_ForeignKindMatchesNothing(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(mocks.NewMockReaction("edi-feed", snapshot.TypeOrder)))

	ruleSnap := entitySnap(snapshot.TypeOrder)
	ruleSnap.Kind = snapshot.KindRule
	assert.Empty(t, reg.RegisteredFor(ruleSnap))
}

func TestRuleRegistry_SeparateNamespace(t *testing.T) {
	reg := New()
	ruleReg := NewRuleRegistry()

	// Same name in both registries is fine; the namespaces are disjoint.
	require.NoError(t, reg.Register(mocks.NewMockReaction("recheck", snapshot.TypeOrder)))
	require.NoError(t, ruleReg.Register(mocks.NewMockReaction("recheck", snapshot.TypeOrder)))

	ruleSnap := entitySnap(snapshot.TypeOrder)
	ruleSnap.Kind = snapshot.KindRule
	assert.Len(t, ruleReg.RegisteredFor(ruleSnap), 1)
	assert.Empty(t, reg.RegisteredFor(ruleSnap))
}

// ============================================
// Lifecycle
// ============================================

func TestLookupUnregisterClear(t *testing.T) {
	reg := New()

	rx := mocks.NewMockReaction("edi-feed", snapshot.TypeOrder)
	require.NoError(t, reg.Register(rx))

	found, ok := reg.Lookup("edi-feed")
	require.True(t, ok)
	assert.Equal(t, rx, found)

	reg.Unregister("edi-feed")
	_, ok = reg.Lookup("edi-feed")
	assert.False(t, ok)

	require.NoError(t, reg.Register(rx))
	reg.Clear()
	assert.Empty(t, reg.Registered())
}
