// Package cache provides a small TTL snapshot cache for read-heavy
// dashboard endpoints (worklists, eligible bins). Entries are keyed by a
// prefix plus the query parameters, so a mutation can drop every snapshot
// of one resource with a single prefix invalidation.
package cache

import (
	"crypto/md5"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// SnapshotCache holds short-lived serialized responses
type SnapshotCache struct {
	entries    map[string]*entry
	mutex      sync.RWMutex
	maxEntries int
	ttl        time.Duration
	stats      Stats

	stop chan struct{}
	once sync.Once
}

type entry struct {
	prefix       string
	value        interface{}
	createdAt    time.Time
	lastAccessed time.Time
	hitCount     int
}

// Stats tracks cache performance
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	mutex     sync.RWMutex
}

// NewSnapshotCache creates a cache with the given entry TTL and starts the
// background cleanup loop
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	c := &SnapshotCache{
		entries:    make(map[string]*entry),
		maxEntries: 500,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}

	go c.cleanupExpired()

	return c
}

// Key builds a cache key from a resource prefix and the request parameters.
// The parameter string is hashed to keep keys short.
func Key(prefix string, params string) string {
	hash := md5.Sum([]byte(params))
	return fmt.Sprintf("%s:%x", prefix, hash[:8])
}

// Get returns the cached snapshot if present and fresh
func (c *SnapshotCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	e, found := c.entries[key]
	c.mutex.RUnlock()

	if !found {
		c.recordMiss()
		return nil, false
	}

	if time.Since(e.createdAt) > c.ttl {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		c.recordMiss()
		c.recordEviction()
		return nil, false
	}

	c.mutex.Lock()
	e.lastAccessed = time.Now()
	e.hitCount++
	c.mutex.Unlock()

	c.recordHit()
	return e.value, true
}

// Set stores a snapshot under the given key
func (c *SnapshotCache) Set(key string, value interface{}) {
	prefix := key
	if i := strings.IndexByte(key, ':'); i >= 0 {
		prefix = key[:i]
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[key] = &entry{
		prefix:       prefix,
		value:        value,
		createdAt:    time.Now(),
		lastAccessed: time.Now(),
	}
}

// Invalidate drops every snapshot whose key carries the given prefix. Called
// after mutations so the next read rebuilds from the database.
func (c *SnapshotCache) Invalidate(prefix string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := 0
	for key, e := range c.entries {
		if e.prefix == prefix {
			delete(c.entries, key)
			n++
		}
	}
	if n > 0 {
		log.Printf("🗑️  [CACHE] Invalidated %d snapshots for %s", n, prefix)
	}
	return n
}

// Close stops the background cleanup loop
func (c *SnapshotCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// evictOldest removes the least recently used entry. Caller holds the lock.
func (c *SnapshotCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.lastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastAccessed
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.recordEviction()
	}
}

// cleanupExpired periodically removes expired entries
func (c *SnapshotCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now()
			for key, e := range c.entries {
				if now.Sub(e.createdAt) > c.ttl {
					delete(c.entries, key)
					c.recordEviction()
				}
			}
			c.mutex.Unlock()
		}
	}
}

func (c *SnapshotCache) recordHit() {
	c.stats.mutex.Lock()
	defer c.stats.mutex.Unlock()
	c.stats.Hits++
}

func (c *SnapshotCache) recordMiss() {
	c.stats.mutex.Lock()
	defer c.stats.mutex.Unlock()
	c.stats.Misses++
}

func (c *SnapshotCache) recordEviction() {
	c.stats.mutex.Lock()
	defer c.stats.mutex.Unlock()
	c.stats.Evictions++
}

// GetStats returns cache statistics for the admin dashboard
func (c *SnapshotCache) GetStats() map[string]interface{} {
	c.stats.mutex.RLock()
	defer c.stats.mutex.RUnlock()

	c.mutex.RLock()
	size := len(c.entries)
	c.mutex.RUnlock()

	hitRate := 0.0
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		hitRate = float64(c.stats.Hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"cache_size":  size,
		"max_entries": c.maxEntries,
		"hits":        c.stats.Hits,
		"misses":      c.stats.Misses,
		"hit_rate":    fmt.Sprintf("%.2f%%", hitRate),
		"evictions":   c.stats.Evictions,
		"ttl_seconds": int(c.ttl.Seconds()),
	}
}
