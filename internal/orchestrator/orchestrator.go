package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/trade-compliance/internal/dispatch"
	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/entitylock"
	"github.com/example/trade-compliance/internal/infrastructure/ledger"
	"github.com/example/trade-compliance/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
)

var cycleCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "compliance",
	Subsystem: "orchestrator",
	Name:      "cycles",
}, []string{"entity_type", "result"})

var snapshotsCoalesced = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "compliance",
	Subsystem: "orchestrator",
	Name:      "snapshots_coalesced",
}, []string{"entity_type"})

var reactionsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "compliance",
	Subsystem: "orchestrator",
	Name:      "reactions_dispatched",
}, []string{"entity_type"})

var cycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "compliance",
	Subsystem: "orchestrator",
	Name:      "cycle_duration_ms",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
}, []string{"entity_type"})

// Metrics returns the collectors exposed by the orchestrator.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{cycleCount, snapshotsCoalesced, reactionsDispatched, cycleDuration}
}

// Orchestrator decides when a reaction cycle runs for an entity, computes the
// old/new pointer pair, fans out to applicable reactions, and advances the
// processed marker. All state lives in the ledger; an orchestrator instance
// is stateless across invocations.
type Orchestrator struct {
	ledger       ledger.Ledger
	locks        entitylock.Locker
	dispatcher   dispatch.Dispatcher
	registry     *registry.Registry
	ruleRegistry *registry.Registry
}

func New(l ledger.Ledger, locks entitylock.Locker, d dispatch.Dispatcher, reg, ruleReg *registry.Registry) *Orchestrator {
	return &Orchestrator{
		ledger:       l,
		locks:        locks,
		dispatcher:   d,
		registry:     reg,
		ruleRegistry: ruleReg,
	}
}

// Run executes one dispatch cycle for the entity. The per-entity lock is
// held across the whole read-dispatch-mark span, so cycles for one entity
// are totally ordered while different entities proceed in parallel.
//
// A burst of N appended snapshots is coalesced into a single cycle: every
// snapshot in the unprocessed set is marked processed in one batch, and
// reactions only ever see the last-processed -> newest transition, never the
// intermediate states. Duplicate triggers with nothing new accumulated are
// silent no-ops.
//
// Entity and rule snapshots keep separate backlogs and baselines. One trigger
// drains both, entity first, each with its own staleness guard; a rule cycle
// can never consume a pending entity mutation or vice versa.
func (o *Orchestrator) Run(ctx context.Context, entityType, entityID string) error {
	return o.locks.WithLock(snapshot.EntityKey(entityType, entityID), func() error {
		for _, kind := range []snapshot.Kind{snapshot.KindEntity, snapshot.KindRule} {
			if err := o.runLocked(ctx, entityType, entityID, kind); err != nil {
				return err
			}
		}
		return nil
	})
}

func (o *Orchestrator) runLocked(ctx context.Context, entityType, entityID string, kind snapshot.Kind) error {
	started := time.Now()

	unprocessed, err := o.ledger.Unprocessed(ctx, entityType, entityID, kind)
	if err != nil {
		return fmt.Errorf("failed to read unprocessed snapshots: %w", err)
	}
	if len(unprocessed) == 0 {
		cycleCount.WithLabelValues(entityType, "empty").Inc()
		return nil
	}
	newest := unprocessed[len(unprocessed)-1]

	last, err := o.ledger.LastProcessed(ctx, entityType, entityID, kind)
	if err != nil {
		return fmt.Errorf("failed to read last processed snapshot: %w", err)
	}

	// A concurrent cycle may already have processed an even newer snapshot
	// than the baseline we see; skip unless the newest unprocessed snapshot
	// is strictly after whatever was last marked processed.
	if last != nil && !newest.CreatedAt.After(last.CreatedAt) {
		cycleCount.WithLabelValues(entityType, "stale").Inc()
		return nil
	}

	inv := snapshot.Invocation{
		EntityType: entityType,
		EntityID:   entityID,
		Kind:       kind,
		New:        newest.Pointer,
	}
	if last != nil {
		old := last.Pointer
		inv.Old = &old
	}

	for _, rx := range o.registryFor(kind).RegisteredFor(newest) {
		if err := o.dispatcher.Submit(ctx, rx, inv); err != nil {
			// Submission failure is reaction-local: siblings still go out and
			// the batch is still marked, so the pair is redelivered on the
			// next capture rather than replayed immediately.
			log.Printf("[Orchestrator] Failed to submit reaction for %s: %v", inv.EntityKey(), err)
			continue
		}
		reactionsDispatched.WithLabelValues(entityType).Inc()
	}

	// Mark the whole batch, not just the newest. This is the coalescing
	// policy: five changes before this cycle means five snapshots consumed
	// in one pass.
	if err := o.ledger.MarkProcessed(ctx, unprocessed, time.Now()); err != nil {
		return fmt.Errorf("failed to mark snapshots processed: %w", err)
	}

	cycleCount.WithLabelValues(entityType, "run").Inc()
	snapshotsCoalesced.WithLabelValues(entityType).Add(float64(len(unprocessed)))
	cycleDuration.WithLabelValues(entityType).Observe(float64(time.Since(started).Milliseconds()))
	return nil
}

func (o *Orchestrator) registryFor(kind snapshot.Kind) *registry.Registry {
	if kind == snapshot.KindRule && o.ruleRegistry != nil {
		return o.ruleRegistry
	}
	return o.registry
}
