package ledger

import (
	"context"
	"time"

	"github.com/example/trade-compliance/internal/domain/snapshot"
)

// Ledger is the durable record of every snapshot taken of a tracked entity.
// It is the sole source of truth for "what changed and when"; the
// orchestrator is the sole writer of the processed marker.
type Ledger interface {
	// Append records a new unprocessed snapshot with the current time as
	// creation time.
	Append(ctx context.Context, entityType, entityID string, kind snapshot.Kind, ptr snapshot.Pointer) (*snapshot.Snapshot, error)

	// Unprocessed returns all snapshots of the given kind with a nil
	// processed marker for the entity, ascending by creation time. Reads are
	// kind-scoped so entity and rule backlogs never mix. Each call runs a
	// fresh query; no cursor state is retained.
	Unprocessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) ([]snapshot.Snapshot, error)

	// LastProcessed returns the most recently processed snapshot of the
	// given kind for the entity, or nil if none has been processed.
	LastProcessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) (*snapshot.Snapshot, error)

	// MarkProcessed sets the processed marker on every given snapshot.
	// Marking an already-processed snapshot is a no-op, not an error.
	MarkProcessed(ctx context.Context, snaps []snapshot.Snapshot, at time.Time) error
}
