package capture

import (
	"context"
	"log"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/infrastructure/ledger"
	"github.com/example/trade-compliance/internal/reaction"
)

// Trigger starts a dispatch cycle for one entity. Satisfied by the
// orchestrator.
type Trigger interface {
	Run(ctx context.Context, entityType, entityID string) error
}

// Service is the capture-side entry point: it appends a snapshot to the
// ledger and, when asked, triggers the orchestrator. Appending and
// triggering are deliberately decoupled; a caller may batch captures and
// trigger once.
type Service struct {
	ledger  ledger.Ledger
	trigger Trigger
}

func NewService(l ledger.Ledger, trigger Trigger) *Service {
	return &Service{ledger: l, trigger: trigger}
}

// Capture appends a snapshot without triggering a cycle.
func (s *Service) Capture(ctx context.Context, entityType, entityID string, kind snapshot.Kind, ptr snapshot.Pointer) (*snapshot.Snapshot, error) {
	return s.ledger.Append(ctx, entityType, entityID, kind, ptr)
}

// CaptureAndTrigger appends a snapshot and immediately runs a dispatch cycle.
func (s *Service) CaptureAndTrigger(ctx context.Context, entityType, entityID string, kind snapshot.Kind, ptr snapshot.Pointer) (*snapshot.Snapshot, error) {
	snap, err := s.ledger.Append(ctx, entityType, entityID, kind, ptr)
	if err != nil {
		return nil, err
	}
	if err := s.trigger.Run(ctx, entityType, entityID); err != nil {
		return nil, err
	}
	return snap, nil
}

// RuleRevalidator re-validates a dependent entity by capturing a rule
// snapshot of its last processed entity state and triggering a cycle.
// Dependents with no processed baseline are skipped; they will be validated
// on first dispatch.
type RuleRevalidator struct {
	ledger  ledger.Ledger
	capture *Service
}

func NewRuleRevalidator(l ledger.Ledger, capture *Service) *RuleRevalidator {
	return &RuleRevalidator{ledger: l, capture: capture}
}

func (r *RuleRevalidator) Revalidate(ctx context.Context, ref reaction.EntityRef) error {
	last, err := r.ledger.LastProcessed(ctx, ref.Type, ref.ID, snapshot.KindEntity)
	if err != nil {
		return err
	}
	if last == nil {
		log.Printf("[Revalidator] No processed baseline for %s, skipping", ref.Key())
		return nil
	}
	_, err = r.capture.CaptureAndTrigger(ctx, ref.Type, ref.ID, snapshot.KindRule, last.Pointer)
	return err
}
