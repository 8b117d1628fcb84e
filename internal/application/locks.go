package application

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/autoecole-scheduler/internal/scheduler"
)

const sessionLockPrefix = "session:"

// resourceLocks serializes read-modify-write sequences per key. Keys are "session:<id>",
// "instructor:<id>" and "vehicle:<id>". Session keys are always acquired before resource
// keys and LockAll orders the rest, so holders never wait on each other in a cycle.
type resourceLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{entries: make(map[string]*lockEntry)}
}

func sessionLockKey(id string) string {
	return sessionLockPrefix + id
}

func resourceLockKeys(refs ...scheduler.ResourceRef) []string {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		keys = append(keys, ref.String())
	}
	return keys
}

// LockAll acquires every key and returns a function releasing them. Duplicates and empty
// keys are ignored. When ctx ends while waiting, the keys taken so far are released.
func (l *resourceLocks) LockAll(ctx context.Context, keys ...string) (func(), error) {
	ordered := orderKeys(keys)
	held := make([]string, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range ordered {
		entry := l.acquireEntry(key)
		select {
		case entry.sem <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.releaseEntry(key)
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *resourceLocks) acquireEntry(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *resourceLocks) releaseEntry(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *resourceLocks) unlock(key string) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-entry.sem
	l.releaseEntry(key)
}

// size reports how many keys are currently tracked.
func (l *resourceLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func orderKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		si := strings.HasPrefix(out[i], sessionLockPrefix)
		sj := strings.HasPrefix(out[j], sessionLockPrefix)
		if si != sj {
			return si
		}
		return out[i] < out[j]
	})
	return out
}
