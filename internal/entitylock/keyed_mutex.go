package entitylock

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Locker serializes bodies of work sharing the same key. Different keys
// never contend.
type Locker interface {
	WithLock(key string, body func() error) error
}

// KeyedMutex is a named mutual-exclusion primitive keyed by the composite
// "entityType-entityID" string. Callers holding the same key block until the
// lock is released; the lock is released on every exit path, including when
// body panics.
type KeyedMutex struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: xsync.NewMapOf[string, *sync.Mutex](),
	}
}

func (k *KeyedMutex) WithLock(key string, body func() error) error {
	mu, _ := k.locks.LoadOrCompute(key, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	defer mu.Unlock()
	return body()
}
