/**
 * @description
 * Per-transaction-id mutual exclusion for the action handlers. Two actions on
 * the same transaction serialize around the load-transition-commit sequence;
 * actions on different transactions proceed concurrently. Entries are
 * reference-counted and removed once the last holder releases, so the table
 * stays proportional to in-flight work.
 */

package rpc

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the lock for the key is held and returns the release func.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
