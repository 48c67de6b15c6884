package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/reaction"
)

// Registry holds the registered reactions for one snapshot kind and filters
// them per snapshot. Entity-mutation reactions and business-rule reactions
// live in separate registries so the two kinds never cross-dispatch.
//
// A registry is an explicit service instance injected into the orchestrator,
// not package state; tests reset it with Clear.
type Registry struct {
	mu        sync.RWMutex
	kind      snapshot.Kind
	reactions map[string]reaction.Reaction
}

// New creates a registry for entity-mutation snapshots.
func New() *Registry {
	return newRegistry(snapshot.KindEntity)
}

// NewRuleRegistry creates a registry scoped to business-rule-triggered
// snapshots.
func NewRuleRegistry() *Registry {
	return newRegistry(snapshot.KindRule)
}

func newRegistry(kind snapshot.Kind) *Registry {
	return &Registry{
		kind:      kind,
		reactions: make(map[string]reaction.Reaction),
	}
}

// Kind returns the snapshot kind this registry dispatches.
func (r *Registry) Kind() snapshot.Kind {
	return r.kind
}

// Register validates and adds a reaction. A candidate missing Accept or
// Compare is rejected here, at startup, never at dispatch time.
func (r *Registry) Register(candidate any) error {
	if err := CheckValidity(candidate); err != nil {
		return err
	}
	rx := candidate.(reaction.Reaction)

	r.mu.Lock()
	defer r.mu.Unlock()

	name := reaction.Name(rx)
	if _, exists := r.reactions[name]; exists {
		return fmt.Errorf("reaction %q already registered", name)
	}
	r.reactions[name] = rx
	return nil
}

// Unregister removes a reaction by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reactions, name)
}

// Clear removes all registered reactions. Test teardown hook.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = make(map[string]reaction.Reaction)
}

// Registered returns all registered reactions. Order is not significant.
func (r *Registry) Registered() []reaction.Reaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reaction.Reaction, 0, len(r.reactions))
	for _, rx := range r.reactions {
		out = append(out, rx)
	}
	return out
}

// Lookup returns the reaction registered under name.
func (r *Registry) Lookup(name string) (reaction.Reaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rx, ok := r.reactions[name]
	return rx, ok
}

// RegisteredFor returns the registered reactions whose Accept predicate
// matches the snapshot. Snapshots of a foreign kind match nothing.
func (r *Registry) RegisteredFor(snap snapshot.Snapshot) []reaction.Reaction {
	if snap.Kind != r.kind {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []reaction.Reaction
	for _, rx := range r.reactions {
		if rx.Accept(snap) {
			out = append(out, rx)
		}
	}
	return out
}

type accepter interface {
	Accept(snap snapshot.Snapshot) bool
}

type comparer interface {
	Compare(ctx context.Context, inv snapshot.Invocation) error
}

// CheckValidity verifies that a candidate satisfies the reaction contract.
// The error names the missing method so misregistration fails fast with a
// usable message.
func CheckValidity(candidate any) error {
	if candidate == nil {
		return fmt.Errorf("cannot register nil reaction")
	}
	_, hasAccept := candidate.(accepter)
	_, hasCompare := candidate.(comparer)
	switch {
	case !hasAccept && !hasCompare:
		return fmt.Errorf("%T does not implement Accept or Compare", candidate)
	case !hasAccept:
		return fmt.Errorf("%T does not implement Accept(snapshot.Snapshot) bool", candidate)
	case !hasCompare:
		return fmt.Errorf("%T does not implement Compare(ctx, snapshot.Invocation) error", candidate)
	}
	return nil
}
