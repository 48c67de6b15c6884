package reaction

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/infrastructure/blob"
)

// RuleEngine re-evaluates the compliance rules for one entity payload.
// External collaborator; implementations live outside the pipeline.
type RuleEngine interface {
	Evaluate(ctx context.Context, entityType, entityID string, payload []byte) error
}

// RuleEngineFunc adapts a function to the RuleEngine interface.
type RuleEngineFunc func(ctx context.Context, entityType, entityID string, payload []byte) error

func (f RuleEngineFunc) Evaluate(ctx context.Context, entityType, entityID string, payload []byte) error {
	return f(ctx, entityType, entityID, payload)
}

// RuleReevaluation re-runs business rules whenever a tracked entity
// transitions. It fetches the new payload from the blob store and hands it
// to the rule engine; the old payload is fetched only to detect a pure no-op
// rewrite, which is skipped. Rule snapshots exist precisely to re-evaluate an
// unchanged payload, so the skip applies to entity transitions only.
type RuleReevaluation struct {
	blobs  blob.Store
	engine RuleEngine
	accept Predicate
}

func NewRuleReevaluation(blobs blob.Store, engine RuleEngine) *RuleReevaluation {
	return &RuleReevaluation{
		blobs:  blobs,
		engine: engine,
		accept: ForTypes(snapshot.TypeEntry, snapshot.TypeOrder, snapshot.TypeProduct, snapshot.TypeShipment),
	}
}

func (r *RuleReevaluation) Name() string {
	return "rule-reevaluation"
}

func (r *RuleReevaluation) Accept(snap snapshot.Snapshot) bool {
	return r.accept(snap)
}

func (r *RuleReevaluation) Compare(ctx context.Context, inv snapshot.Invocation) error {
	newPayload, err := r.blobs.Get(ctx, inv.New.Bucket, inv.New.Key, inv.New.Version)
	if err != nil {
		return fmt.Errorf("failed to fetch new payload for %s: %w", inv.EntityKey(), err)
	}

	if inv.Kind == snapshot.KindEntity && inv.Old != nil {
		oldPayload, err := r.blobs.Get(ctx, inv.Old.Bucket, inv.Old.Key, inv.Old.Version)
		if err != nil && !errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("failed to fetch old payload for %s: %w", inv.EntityKey(), err)
		}
		if err == nil && string(oldPayload) == string(newPayload) {
			log.Printf("[Rules] Payload unchanged for %s, skipping", inv.EntityKey())
			return nil
		}
	}

	return r.engine.Evaluate(ctx, inv.EntityType, inv.EntityID, newPayload)
}
