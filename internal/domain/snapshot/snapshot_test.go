package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityKey(t *testing.T) {
	assert.Equal(t, "Order-42", EntityKey(TypeOrder, "42"))

	snap := Snapshot{EntityType: TypeEntry, EntityID: "e-7"}
	assert.Equal(t, "Entry-e-7", snap.EntityKey())
}

func TestSnapshot_Processed(t *testing.T) {
	snap := Snapshot{}
	assert.False(t, snap.Processed())

	now := time.Now()
	snap.ProcessedAt = &now
	assert.True(t, snap.Processed())
}

func TestInvocation_JSONRoundTrip(t *testing.T) {
	old := Pointer{Bucket: "feeds", Key: "orders/42.json", Version: "v1"}
	original := Invocation{
		EntityType: TypeOrder,
		EntityID:   "42",
		Kind:       KindEntity,
		Old:        &old,
		New:        Pointer{Bucket: "feeds", Key: "orders/42.json", Version: "v2"},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Invocation
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, original, restored)
}

func TestInvocation_NilOldOmitted(t *testing.T) {
	inv := Invocation{
		EntityType: TypeOrder,
		EntityID:   "42",
		Kind:       KindEntity,
		New:        Pointer{Bucket: "feeds", Key: "orders/42.json", Version: "v1"},
	}

	data, err := json.Marshal(inv)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"old"`)

	var restored Invocation
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Nil(t, restored.Old)
}
