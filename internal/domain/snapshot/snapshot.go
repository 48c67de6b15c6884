package snapshot

import (
	"fmt"
	"time"
)

// Kind discriminates entity-mutation snapshots from business-rule-triggered
// snapshots. The two kinds must never cross-dispatch; each has its own
// registry namespace.
type Kind string

const (
	KindEntity Kind = "entity"
	KindRule   Kind = "rule"
)

// Well-known entity type discriminators.
const (
	TypeEntry    = "Entry"
	TypeOrder    = "Order"
	TypeProduct  = "Product"
	TypeShipment = "Shipment"
)

// Pointer locates an immutable JSON payload in the blob store.
type Pointer struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Version string `json:"version"`
}

// Snapshot is an immutable, timestamped pointer to a serialized entity state.
// The payload itself is opaque to the pipeline; only reactions interpret it.
type Snapshot struct {
	ID          string     `json:"id"`
	EntityType  string     `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Kind        Kind       `json:"kind"`
	Pointer     Pointer    `json:"pointer"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"` // nil = unprocessed
}

// EntityKey returns the composite lock/partition key for the owning entity.
func (s Snapshot) EntityKey() string {
	return EntityKey(s.EntityType, s.EntityID)
}

func (s Snapshot) Processed() bool {
	return s.ProcessedAt != nil
}

// EntityKey builds the composite "entityType-entityID" key used for
// per-entity locking and queue partitioning.
func EntityKey(entityType, entityID string) string {
	return fmt.Sprintf("%s-%s", entityType, entityID)
}

// Invocation carries the old/new pointer pair handed to a reaction.
// Old is nil when the entity has no prior processed state; New always refers
// to the newest unprocessed snapshot at the moment dispatch was computed.
type Invocation struct {
	EntityType string   `json:"entity_type"`
	EntityID   string   `json:"entity_id"`
	Kind       Kind     `json:"kind"`
	Old        *Pointer `json:"old,omitempty"`
	New        Pointer  `json:"new"`
}

func (inv Invocation) EntityKey() string {
	return EntityKey(inv.EntityType, inv.EntityID)
}
