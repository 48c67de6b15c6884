package reaction

import (
	"context"
	"testing"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/stretchr/testify/assert"
)

func TestForTypes_MatchesAnyComposedType(t *testing.T) {
	accept := ForTypes(snapshot.TypeEntry, snapshot.TypeOrder, snapshot.TypeProduct, snapshot.TypeShipment)

	for _, typ := range []string{snapshot.TypeEntry, snapshot.TypeOrder, snapshot.TypeProduct, snapshot.TypeShipment} {
		assert.True(t, accept(snapshot.Snapshot{EntityType: typ}), typ)
	}
	assert.False(t, accept(snapshot.Snapshot{EntityType: "Invoice"}))
}

func TestPredicate_And(t *testing.T) {
	notCancelled := func(snap snapshot.Snapshot) bool { return snap.EntityID != "cancelled" }
	accept := ForTypes(snapshot.TypeOrder).And(notCancelled)

	assert.True(t, accept(snapshot.Snapshot{EntityType: snapshot.TypeOrder, EntityID: "42"}))
	assert.False(t, accept(snapshot.Snapshot{EntityType: snapshot.TypeOrder, EntityID: "cancelled"}))
	assert.False(t, accept(snapshot.Snapshot{EntityType: snapshot.TypeShipment, EntityID: "42"}))
}

type unnamed struct{}

func (unnamed) Accept(snap snapshot.Snapshot) bool { return true }

func (unnamed) Compare(ctx context.Context, inv snapshot.Invocation) error { return nil }

func TestName(t *testing.T) {
	assert.Equal(t, "reaction.unnamed", Name(unnamed{}))
	assert.Equal(t, "reaction.unnamed", Name(&unnamed{}))

	eng := RuleEngineFunc(func(ctx context.Context, entityType, entityID string, payload []byte) error { return nil })
	assert.Equal(t, "rule-reevaluation", Name(NewRuleReevaluation(nil, eng)))
}
