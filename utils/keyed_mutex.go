package utils

import "sync"

// KeyedMutex hands out one mutex per key. Entries are dropped when the last
// holder unlocks, so the map only holds keys that are in use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until the lock for key is held and returns its unlock func.
func (k *KeyedMutex) Lock(key uint) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uint]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
