package engine

import "sync"

// keyedMutex hands out one RWMutex per content UID so mutations on distinct
// content proceed fully in parallel while operations on the same content
// serialize. Locks are created on first use and kept for the engine's
// lifetime; the per-key footprint is one mutex.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.RWMutex)}
}

func (k *keyedMutex) get(contentUID string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	if lock, exists := k.locks[contentUID]; exists {
		return lock
	}

	lock := &sync.RWMutex{}
	k.locks[contentUID] = lock

	return lock
}
