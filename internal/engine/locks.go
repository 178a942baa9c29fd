package engine

import (
	"sync"

	"github.com/palinopr/leadrouter/internal/identity"
)

// keyedMutex serializes processing per thread key while leaving unrelated
// threads free to proceed in parallel. Entries are reference counted and
// removed when the last holder releases, so the map stays bounded by the
// number of concurrently active threads.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[identity.ThreadKey]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[identity.ThreadKey]*lockEntry)}
}

// Lock blocks until the key is held and returns the release func.
func (k *keyedMutex) Lock(key identity.ThreadKey) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
