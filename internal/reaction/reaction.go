package reaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/trade-compliance/internal/domain/snapshot"
)

// Reaction is a stateless unit of business logic that conditionally responds
// to an entity's state transition. Implementations are registered once at
// startup and discovered through the registry.
//
// Accept must be a pure predicate with no side effects. Compare must be
// idempotent: the same pointer pair may be delivered more than once, and a
// reaction's own business failures must be handled inside Compare (the
// returned error is logged by the dispatcher, never propagated back into the
// orchestrator).
type Reaction interface {
	Accept(snap snapshot.Snapshot) bool
	Compare(ctx context.Context, inv snapshot.Invocation) error
}

// Named is optionally implemented by reactions that want a stable name on the
// wire and in logs. Unnamed reactions fall back to their Go type name.
type Named interface {
	Name() string
}

// Name returns the registration name for a reaction.
func Name(r Reaction) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return strings.TrimLeft(fmt.Sprintf("%T", r), "*")
}

// Predicate is a composable accept condition over snapshots.
type Predicate func(snap snapshot.Snapshot) bool

// ForTypes builds a predicate that is true when the snapshot's entity type
// matches any of the given types. It lets one reaction serve several entity
// types without duplicating registration.
func ForTypes(entityTypes ...string) Predicate {
	types := make(map[string]bool, len(entityTypes))
	for _, t := range entityTypes {
		types[t] = true
	}
	return func(snap snapshot.Snapshot) bool {
		return types[snap.EntityType]
	}
}

// And narrows a predicate with an additional condition.
func (p Predicate) And(q Predicate) Predicate {
	return func(snap snapshot.Snapshot) bool {
		return p(snap) && q(snap)
	}
}
