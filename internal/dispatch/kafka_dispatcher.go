package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/infrastructure/kafka"
	"github.com/example/trade-compliance/internal/reaction"
)

// Envelope is the wire format for a dispatched invocation. The reaction is
// carried by registration name and resolved against the consumer's registry.
type Envelope struct {
	Reaction   string              `json:"reaction"`
	Invocation snapshot.Invocation `json:"invocation"`
}

// KafkaDispatcher publishes invocations to the dispatch topic, keyed by
// entity key. Workers on the consumer side execute them.
type KafkaDispatcher struct {
	producer *kafka.Producer
}

func NewKafkaDispatcher(producer *kafka.Producer) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer}
}

func (d *KafkaDispatcher) Submit(ctx context.Context, r reaction.Reaction, inv snapshot.Invocation) error {
	env := Envelope{
		Reaction:   reaction.Name(r),
		Invocation: inv,
	}
	if err := d.producer.Publish(ctx, inv.EntityKey(), env); err != nil {
		return fmt.Errorf("failed to publish invocation for %s: %w", inv.EntityKey(), err)
	}
	return nil
}

// EncodeEnvelope serializes an envelope. Exposed for tests and tooling.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
