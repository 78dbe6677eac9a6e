// Package cache provides an in-memory cache of coverage run results.
//
// A run is a pure function of its request apart from the live snapshot, so
// results are keyed by a digest of the request. Entries expire after a TTL and
// the oldest entries are evicted once the cache is full. A background worker
// sweeps expired entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orbitscan/internal/metrics"
	"github.com/star/orbitscan/internal/orbit"
)

// Config holds cache configuration.
type Config struct {
	TTL        time.Duration // Entry lifetime (default: 10m)
	MaxEntries int           // Capacity before oldest-first eviction (default: 256)
}

type entry struct {
	result   *orbit.Result
	storedAt time.Time
}

// ResultCache is an in-memory cache of run results.
// Safe for concurrent use by multiple goroutines.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	config Config
	logger *slog.Logger
	now    func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewResultCache creates a result cache.
func NewResultCache(config Config, logger *slog.Logger) *ResultCache {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 256
	}
	logger.Info("result cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
	)
	return &ResultCache{
		entries: make(map[string]*entry),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Key digests every request field that influences the sample sequence.
// LiveOnly requests are not cacheable and should not be looked up.
func Key(req orbit.Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%t|%s|%d|%g|%g|%g|%g|%g",
		req.Elements.Line1, req.Elements.Line2,
		req.UseElementEpoch, req.StartDate,
		req.Rate, req.Interval, req.DurationHours,
		req.TargetLat, req.TargetLon, req.WidthKm,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key, or nil on a miss or expiry.
func (c *ResultCache) Get(key string) *orbit.Result {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.storedAt) < c.config.TTL {
		c.hits.Add(1)
		metrics.IncResultCache(true)
		return e.result
	}

	c.misses.Add(1)
	metrics.IncResultCache(false)
	return nil
}

// Put stores a result, evicting the oldest entries when the cache is full.
func (c *ResultCache) Put(key string, res *orbit.Result) {
	if res == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{result: res, storedAt: c.now()}
	for len(c.entries) > c.config.MaxEntries {
		c.evictOldestLocked()
	}
}

func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	delete(c.entries, oldestKey)
	c.evictions.Add(1)
}

// evictExpired removes entries older than the TTL.
func (c *ResultCache) evictExpired() int {
	cutoff := c.now().Add(-c.config.TTL)
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !e.storedAt.After(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

// Start sweeps expired entries until ctx is cancelled.
func (c *ResultCache) Start(ctx context.Context) {
	interval := c.config.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-ctx.Done():
			c.logger.Info("result cache worker stopped")
			return
		}
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries   int   `json:"entries"`
	Samples   int   `json:"samples"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns current cache statistics.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	var samples int
	for _, e := range c.entries {
		samples += len(e.result.Samples)
	}
	count := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Entries:   count,
		Samples:   samples,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
