package blob

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("blob not found")

// Store is the versioned object storage holding snapshot payloads. The
// pipeline never fetches payloads itself; only reactions do, via the pointer
// triples handed to them.
type Store interface {
	Get(ctx context.Context, bucket, key, version string) (json.RawMessage, error)
}
