package dispatch

import (
	"context"
	"log"
	"sync"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/reaction"
	"github.com/prometheus/client_golang/prometheus"
)

var poolUnitsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "compliance",
	Subsystem: "dispatch",
	Name:      "pool_units_executed",
}, []string{"reaction", "result"})

var poolQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "compliance",
	Subsystem: "dispatch",
	Name:      "pool_queue_depth",
})

// PoolMetrics returns the collectors exposed by the worker pool.
func PoolMetrics() []prometheus.Collector {
	return []prometheus.Collector{poolUnitsExecuted, poolQueueDepth}
}

type unit struct {
	reaction   reaction.Reaction
	invocation snapshot.Invocation
}

// Pool executes invocations on a bounded set of worker goroutines. Reactions
// for different entities run in parallel; a hung reaction occupies one
// worker but never blocks the orchestrator, which has already released the
// per-entity lock by the time the unit runs.
type Pool struct {
	units chan unit
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewPool starts workers goroutines draining a queue of queueSize pending
// units.
func NewPool(workers, queueSize int) *Pool {
	p := &Pool{
		units: make(chan unit, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues an invocation. Blocks only when the queue is full.
func (p *Pool) Submit(ctx context.Context, r reaction.Reaction, inv snapshot.Invocation) error {
	select {
	case p.units <- unit{reaction: r, invocation: inv}:
		poolQueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting units and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.units)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for u := range p.units {
		poolQueueDepth.Dec()
		p.execute(u)
	}
}

func (p *Pool) execute(u unit) {
	name := reaction.Name(u.reaction)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Pool] Reaction %s panicked for %s: %v", name, u.invocation.EntityKey(), r)
			poolUnitsExecuted.WithLabelValues(name, "panic").Inc()
		}
	}()

	if err := u.reaction.Compare(context.Background(), u.invocation); err != nil {
		log.Printf("[Pool] Reaction %s failed for %s: %v", name, u.invocation.EntityKey(), err)
		poolUnitsExecuted.WithLabelValues(name, "error").Inc()
		return
	}
	poolUnitsExecuted.WithLabelValues(name, "ok").Inc()
}
