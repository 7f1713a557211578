package database

import "sync"

// KeyMutex serializes writes that target the same logical identity key.
// Concurrent upserts of the same entity from two fan-out branches would
// otherwise race the read-then-write resolution and create duplicates;
// SQLite's per-connection locking does not prevent that on its own.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: map[string]*keyLock{}}
}

// Lock acquires the mutex for key and returns the matching unlock func.
func (km *KeyMutex) Lock(key string) func() {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &keyLock{}
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
