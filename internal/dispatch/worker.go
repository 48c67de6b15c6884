package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/registry"
)

// Worker executes dispatched invocations on the consumer side of the queue.
// Reactions are resolved by name against the registry matching the
// invocation's snapshot kind; an envelope naming an unknown reaction is
// logged and dropped rather than retried forever.
type Worker struct {
	registries map[snapshot.Kind]*registry.Registry
}

func NewWorker(registries ...*registry.Registry) *Worker {
	byKind := make(map[snapshot.Kind]*registry.Registry, len(registries))
	for _, reg := range registries {
		byKind[reg.Kind()] = reg
	}
	return &Worker{registries: byKind}
}

// HandleMessage is the kafka.MessageHandler for the dispatch topic.
func (w *Worker) HandleMessage(ctx context.Context, key, value []byte) error {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	reg, ok := w.registries[env.Invocation.Kind]
	if !ok {
		log.Printf("[Worker] No registry for kind %q (reaction %s)", env.Invocation.Kind, env.Reaction)
		return nil
	}

	rx, ok := reg.Lookup(env.Reaction)
	if !ok {
		log.Printf("[Worker] Unknown reaction %q for %s", env.Reaction, env.Invocation.EntityKey())
		return nil
	}

	if err := rx.Compare(ctx, env.Invocation); err != nil {
		log.Printf("[Worker] Reaction %s failed for %s: %v", env.Reaction, env.Invocation.EntityKey(), err)
	}
	return nil
}
