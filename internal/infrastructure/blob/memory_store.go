package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps payloads in memory. Used in tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]json.RawMessage),
	}
}

// Put stores a payload under (bucket, key, version). Test seeding helper.
func (s *MemoryStore) Put(bucket, key, version string, payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, key, version)] = payload
}

func (s *MemoryStore) Get(ctx context.Context, bucket, key, version string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.objects[objectKey(bucket, key, version)]
	if !ok {
		return nil, ErrNotFound
	}
	return payload, nil
}

func objectKey(bucket, key, version string) string {
	return fmt.Sprintf("%s/%s@%s", bucket, key, version)
}
