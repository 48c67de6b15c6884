package capture

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/trade-compliance/internal/dispatch"
	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/entitylock"
	"github.com/example/trade-compliance/internal/infrastructure/blob"
	"github.com/example/trade-compliance/internal/infrastructure/ledger/mocks"
	"github.com/example/trade-compliance/internal/orchestrator"
	"github.com/example/trade-compliance/internal/reaction"
	"github.com/example/trade-compliance/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrigger struct {
	runs []string
}

func (f *fakeTrigger) Run(ctx context.Context, entityType, entityID string) error {
	f.runs = append(f.runs, snapshot.EntityKey(entityType, entityID))
	return nil
}

func TestCapture_AppendsWithoutTriggering(t *testing.T) {
	led := mocks.NewMockLedger()
	trigger := &fakeTrigger{}
	svc := NewService(led, trigger)

	snap, err := svc.Capture(context.Background(), snapshot.TypeOrder, "42", snapshot.KindEntity,
		snapshot.Pointer{Bucket: "feeds", Key: "orders/42.json", Version: "v1"})
	require.NoError(t, err)
	assert.False(t, snap.Processed())
	assert.Empty(t, trigger.runs, "capture and trigger are decoupled")
}

func TestCaptureAndTrigger_RunsOneCycle(t *testing.T) {
	led := mocks.NewMockLedger()
	trigger := &fakeTrigger{}
	svc := NewService(led, trigger)

	_, err := svc.CaptureAndTrigger(context.Background(), snapshot.TypeOrder, "42", snapshot.KindEntity,
		snapshot.Pointer{Bucket: "feeds", Key: "orders/42.json", Version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Order-42"}, trigger.runs)
}

func TestRuleRevalidator_CapturesRuleSnapshotFromBaseline(t *testing.T) {
	led := mocks.NewMockLedger()
	trigger := &fakeTrigger{}
	svc := NewService(led, trigger)
	ctx := context.Background()

	baseline := snapshot.Pointer{Bucket: "feeds", Key: "orders/9.json", Version: "v3"}
	snap, err := led.Append(ctx, snapshot.TypeOrder, "9", snapshot.KindEntity, baseline)
	require.NoError(t, err)
	require.NoError(t, led.MarkProcessed(ctx, []snapshot.Snapshot{*snap}, snap.CreatedAt.Add(1)))

	reval := NewRuleRevalidator(led, svc)
	require.NoError(t, reval.Revalidate(ctx, reaction.EntityRef{Type: snapshot.TypeOrder, ID: "9"}))

	require.Len(t, led.AppendCalls, 2)
	ruleAppend := led.AppendCalls[1]
	assert.Equal(t, snapshot.KindRule, ruleAppend.Kind)
	assert.Equal(t, baseline, ruleAppend.Pointer)
	assert.Equal(t, []string{"Order-9"}, trigger.runs)
}

// Full pipeline wiring: an entity transition is processed, then revalidation
// must push the unchanged baseline payload back through the rule engine.
func TestRuleRevalidator_RevalidationReachesRuleEngine(t *testing.T) {
	led := mocks.NewMockLedger()
	blobs := blob.NewMemoryStore()
	blobs.Put("feeds", "orders/7.json", "v3", json.RawMessage(`{"status":"held"}`))

	var evaluated int
	engine := reaction.RuleEngineFunc(func(ctx context.Context, entityType, entityID string, payload []byte) error {
		evaluated++
		return nil
	})

	reg := registry.New()
	ruleReg := registry.NewRuleRegistry()
	require.NoError(t, reg.Register(reaction.NewRuleReevaluation(blobs, engine)))
	require.NoError(t, ruleReg.Register(reaction.NewRuleReevaluation(blobs, engine)))

	orch := orchestrator.New(led, entitylock.NewKeyedMutex(), dispatch.SyncDispatcher{}, reg, ruleReg)
	svc := NewService(led, orch)
	reval := NewRuleRevalidator(led, svc)
	ctx := context.Background()

	_, err := svc.CaptureAndTrigger(ctx, snapshot.TypeOrder, "7", snapshot.KindEntity,
		snapshot.Pointer{Bucket: "feeds", Key: "orders/7.json", Version: "v3"})
	require.NoError(t, err)
	require.Equal(t, 1, evaluated)

	require.NoError(t, reval.Revalidate(ctx, reaction.EntityRef{Type: snapshot.TypeOrder, ID: "7"}))
	assert.Equal(t, 2, evaluated, "revalidation must re-run rules")

	// The dependent's payload has not changed; a second revalidation still
	// re-runs the rules rather than short-circuiting on the identical blob.
	require.NoError(t, reval.Revalidate(ctx, reaction.EntityRef{Type: snapshot.TypeOrder, ID: "7"}))
	assert.Equal(t, 3, evaluated)
}

func TestRuleRevalidator_SkipsEntityWithoutBaseline(t *testing.T) {
	led := mocks.NewMockLedger()
	trigger := &fakeTrigger{}
	reval := NewRuleRevalidator(led, NewService(led, trigger))

	err := reval.Revalidate(context.Background(), reaction.EntityRef{Type: snapshot.TypeOrder, ID: "new"})
	require.NoError(t, err)
	assert.Empty(t, led.AppendCalls)
	assert.Empty(t, trigger.runs)
}
