package dispatch

import (
	"context"
	"log"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/reaction"
)

// Dispatcher submits reaction invocations as independently scheduled units of
// work. Submission is fire-and-forget: the orchestrator never waits for a
// reaction to finish, and one reaction failing must not prevent siblings
// from running.
type Dispatcher interface {
	Submit(ctx context.Context, r reaction.Reaction, inv snapshot.Invocation) error
}

// SyncDispatcher runs each invocation inline on the calling goroutine.
// Used in tests and the CLI.
type SyncDispatcher struct{}

func (SyncDispatcher) Submit(ctx context.Context, r reaction.Reaction, inv snapshot.Invocation) error {
	if err := r.Compare(ctx, inv); err != nil {
		log.Printf("[Dispatch] Reaction %s failed for %s: %v", reaction.Name(r), inv.EntityKey(), err)
	}
	return nil
}
