// Package keylock provides mutual exclusion keyed by string, used for
// per-session turn ordering and per-account transfer serialization.
package keylock

import (
	"context"
	"sort"
	"sync"
)

type entry struct {
	held    bool
	waiters []chan struct{}
	refs    int
}

// Locker hands out one lock per key. Entries are dropped once nobody holds or
// waits for them, so the map does not grow with the number of keys seen.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. Waiters for the same key are
// granted the lock in the order they called Lock.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	if !e.held {
		e.held = true
		l.mu.Unlock()
		return l.unlockFunc(key, e), nil
	}
	ready := make(chan struct{})
	e.waiters = append(e.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return l.unlockFunc(key, e), nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	select {
	case <-ready:
		// Granted while cancelling: pass the lock on.
		l.mu.Unlock()
		l.unlock(key, e)
		return nil, ctx.Err()
	default:
	}
	for i, w := range e.waiters {
		if w == ready {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			break
		}
	}
	l.dropRef(key, e)
	l.mu.Unlock()
	return nil, ctx.Err()
}

func (l *Locker) unlockFunc(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(key, e) })
	}
}

// LockAll acquires every key in sorted order and returns a single unlock.
func (l *Locker) LockAll(ctx context.Context, keys ...string) (func(), error) {
	sorted := dedupe(keys)
	unlocks := make([]func(), 0, len(sorted))
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range sorted {
		unlock, err := l.Lock(ctx, k)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlockAll, nil
}

// unlock hands the key to the oldest waiter, or frees it.
func (l *Locker) unlock(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(next)
	} else {
		e.held = false
	}
	l.dropRef(key, e)
}

// dropRef must be called with l.mu held.
func (l *Locker) dropRef(key string, e *entry) {
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Locker) waiting(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return len(e.waiters)
	}
	return 0
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
