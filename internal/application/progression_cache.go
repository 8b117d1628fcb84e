package application

import (
	"maps"
	"sync"
	"time"
)

// progressionCache keeps recently computed snapshots per candidate. Writes that affect a
// candidate bump its generation, and snapshots computed against an older generation are
// dropped instead of stored.
type progressionCache struct {
	mu          sync.RWMutex
	now         func() time.Time
	ttl         time.Duration
	maxEntries  int
	entries     map[string]progressionCacheEntry
	generations map[string]uint64
}

type progressionCacheEntry struct {
	snapshot  ProgressionSnapshot
	expiresAt time.Time
}

func newProgressionCache(ttl time.Duration, maxEntries int, now func() time.Time) *progressionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if now == nil {
		now = time.Now
	}
	return &progressionCache{
		now:         now,
		ttl:         ttl,
		maxEntries:  maxEntries,
		entries:     make(map[string]progressionCacheEntry),
		generations: make(map[string]uint64),
	}
}

func (c *progressionCache) Get(candidateID string) (ProgressionSnapshot, bool) {
	if c == nil {
		return ProgressionSnapshot{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[candidateID]
	c.mu.RUnlock()
	if !ok {
		return ProgressionSnapshot{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, candidateID)
		c.mu.Unlock()
		return ProgressionSnapshot{}, false
	}
	return cloneSnapshot(entry.snapshot), true
}

// Generation returns the write counter of the candidate, to be passed back to Store.
func (c *progressionCache) Generation(candidateID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[candidateID]
}

// Store keeps the snapshot unless the candidate was invalidated since generation was read.
func (c *progressionCache) Store(candidateID string, generation uint64, snapshot ProgressionSnapshot) bool {
	if c == nil {
		return false
	}
	cloned := cloneSnapshot(snapshot)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[candidateID] != generation {
		return false
	}
	c.cleanupLocked()
	if _, exists := c.entries[candidateID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[candidateID] = progressionCacheEntry{snapshot: cloned, expiresAt: expiry}
	return true
}

// Invalidate drops the snapshots of the given candidates.
func (c *progressionCache) Invalidate(candidateIDs ...string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	for _, id := range candidateIDs {
		if id == "" {
			continue
		}
		delete(c.entries, id)
		c.generations[id]++
	}
	c.mu.Unlock()
}

func (c *progressionCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *progressionCache) evictOneLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneSnapshot(snapshot ProgressionSnapshot) ProgressionSnapshot {
	out := snapshot
	if snapshot.Exams != nil {
		out.Exams = maps.Clone(snapshot.Exams)
	}
	return out
}
