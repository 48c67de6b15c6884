package blob

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetReturnsStoredPayload(t *testing.T) {
	store := NewMemoryStore()
	store.Put("feeds", "orders/42.json", "v1", json.RawMessage(`{"status":"hold"}`))

	payload, err := store.Get(context.Background(), "feeds", "orders/42.json", "v1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"hold"}`, string(payload))
}

func TestMemoryStore_VersionsAreDistinct(t *testing.T) {
	store := NewMemoryStore()
	store.Put("feeds", "orders/42.json", "v1", json.RawMessage(`{"status":"hold"}`))
	store.Put("feeds", "orders/42.json", "v2", json.RawMessage(`{"status":"cleared"}`))

	v1, err := store.Get(context.Background(), "feeds", "orders/42.json", "v1")
	require.NoError(t, err)
	v2, err := store.Get(context.Background(), "feeds", "orders/42.json", "v2")
	require.NoError(t, err)
	assert.NotEqual(t, string(v1), string(v2))
}

func TestMemoryStore_MissingObjectIsErrNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "feeds", "missing.json", "v1")
	assert.ErrorIs(t, err, ErrNotFound)
}
