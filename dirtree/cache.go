package dirtree

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pacepace/robocurse/internal/clock"
	"github.com/pacepace/robocurse/pathmap"
)

// CacheStats are the atomic counters spec.md §4.2 requires (Hits,
// Misses, Evictions).
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is the process-global directory-profile cache (spec.md §4.2).
// Keyed by normalized, case-insensitive path. Eviction is approximate
// LRU and optimistic, per spec.md §5 "Shared resources": minor
// over-capacity is tolerated rather than serializing every access.
type Cache struct {
	maxEntries int
	maxAge     time.Duration
	clock      clock.Clock
	lister     Lister

	mu      sync.RWMutex
	entries map[string]*cacheEntry

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type cacheEntry struct {
	profile DirectoryProfile
}

// NewCache creates a cache with the given capacity and freshness
// window. lister is used by GetProfile on a miss.
func NewCache(lister Lister, maxEntries int, maxAge time.Duration, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real{}
	}

	return &Cache{
		maxEntries: maxEntries,
		maxAge:     maxAge,
		clock:      clk,
		lister:     lister,
		entries:    make(map[string]*cacheEntry),
	}
}

func cacheKey(path string) string {
	return strings.ToUpper(pathmap.Normalize(path))
}

// Stats returns a snapshot of the cache's atomic counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// GetProfile returns a fresh DirectoryProfile for path, scanning via
// the Lister on a miss or when the cached entry has expired (spec.md
// §4.2: fresh iff Now-LastScanned <= MaxAgeHours).
func (c *Cache) GetProfile(ctx context.Context, path string) DirectoryProfile {
	key := cacheKey(path)

	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if found && c.clock.Now().Sub(e.profile.LastScanned) <= c.maxAge {
		c.hits.Add(1)
		return e.profile
	}

	c.misses.Add(1)

	if found {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	profile := c.scan(ctx, path)

	if profile.ProfileSuccess {
		c.put(key, profile)
	}

	return profile
}

func (c *Cache) scan(ctx context.Context, path string) DirectoryProfile {
	tree, err := Build(ctx, c.lister, path, 0, nil)
	if err != nil {
		return failedProfile(path, err)
	}

	return summarize(path, tree, c.clock.Now())
}

func (c *Cache) put(key string, profile DirectoryProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{profile: profile}

	c.maybeEvictLocked()
}

// maybeEvictLocked implements spec.md §4.2's approximate LRU: when the
// cache exceeds maxEntries*1.1, sample min(5*overflow, total) entries
// uniformly at random, sort the sample by LastScanned ascending, and
// remove the oldest overflow of them. Must be called with c.mu held.
func (c *Cache) maybeEvictLocked() {
	limit := float64(c.maxEntries) * 1.1
	total := len(c.entries)

	if float64(total) <= limit {
		return
	}

	overflow := total - c.maxEntries
	if overflow <= 0 {
		return
	}

	sampleSize := 5 * overflow
	if sampleSize > total {
		sampleSize = total
	}

	keys := make([]string, 0, total)
	for k := range c.entries {
		keys = append(keys, k)
	}

	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	sample := keys[:sampleSize]
	sort.Slice(sample, func(i, j int) bool {
		return c.entries[sample[i]].profile.LastScanned.Before(c.entries[sample[j]].profile.LastScanned)
	})

	toRemove := sample
	if len(toRemove) > overflow {
		toRemove = toRemove[:overflow]
	}

	for _, k := range toRemove {
		delete(c.entries, k)
		c.evictions.Add(1)
	}
}
