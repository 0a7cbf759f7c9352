// Package cache memoises computed regions and assessments.
//
// Entries are keyed by request parameters plus the version of the track
// dataset they were computed from, so a reloaded dataset never serves stale
// results. The cache is bounded in size and every entry expires after a TTL.
package cache

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/swannekim/FURIOUS/internal/metrics"
	"github.com/swannekim/FURIOUS/internal/track"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Size int           // Maximum number of entries; 0 disables caching (default: 256)
	TTL  time.Duration // Entry lifetime (default: 600s)
}

// Key identifies one computation.
type Key struct {
	Kind    string // "domain", "vo", "v", "computation"
	Fleet   string
	ShipID  track.ShipID
	Targets string // canonical, comma separated
	At      time.Time
	Minutes int
	Version int64 // dataset modification time, unix nanoseconds
}

// NewKey builds a Key with targets in canonical form.
func NewKey(kind, fleet string, id track.ShipID, targets []track.ShipID, at time.Time, minutes int, version int64) Key {
	ts := make([]string, len(targets))
	for i, t := range targets {
		ts[i] = string(t)
	}
	return Key{
		Kind:    kind,
		Fleet:   fleet,
		ShipID:  id,
		Targets: strings.Join(ts, ","),
		At:      at.UTC(),
		Minutes: minutes,
		Version: version,
	}
}

// ResultCache is a bounded, expiring memo of computed results.
// Safe for concurrent use by multiple goroutines.
type ResultCache struct {
	lru    *expirable.LRU[Key, any]
	config Config
	logger *slog.Logger

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewResultCache creates a cache. A nil *ResultCache is valid and caches
// nothing; NewResultCache returns nil when cfg.Size is not positive.
func NewResultCache(cfg Config, logger *slog.Logger) *ResultCache {
	if cfg.Size <= 0 {
		logger.Info("result cache disabled")
		return nil
	}
	c := &ResultCache{config: cfg, logger: logger.With("component", "cache")}
	c.lru = expirable.NewLRU[Key, any](cfg.Size, c.onEvict, cfg.TTL)

	c.logger.Info("cache initialized",
		"size", cfg.Size,
		"ttl_seconds", cfg.TTL.Seconds(),
	)
	return c
}

// onEvict runs with the LRU lock held and must not call back into it.
func (c *ResultCache) onEvict(_ Key, _ any) {
	c.evictions.Add(1)
	metrics.AddCacheEvictions(1)
}

// Get returns the cached value for key.
func (c *ResultCache) Get(key Key) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return v, true
	}
	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil, false
}

// Put stores v under key.
func (c *ResultCache) Put(key Key, v any) {
	if c == nil {
		return
	}
	c.lru.Add(key, v)
	metrics.SetCacheEntries(c.lru.Len())
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
	metrics.SetCacheEntries(0)
	c.logger.Debug("cache purged")
}

// Do returns the cached value for key, computing and storing it on a miss.
// Errors are not cached. Concurrent misses on the same key may compute
// twice; the last result wins.
func Do[V any](c *ResultCache, key Key, compute func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(V); ok {
			return typed, true, nil
		}
	}
	v, err := compute()
	if err != nil {
		return v, false, err
	}
	c.Put(key, v)
	return v, false, nil
}

// Stats returns current cache statistics.
func (c *ResultCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{
		Enabled:    true,
		Entries:    c.lru.Len(),
		Capacity:   c.config.Size,
		TTLSeconds: c.config.TTL.Seconds(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Enabled    bool    `json:"enabled"`
	Entries    int     `json:"entries"`
	Capacity   int     `json:"capacity"`
	TTLSeconds float64 `json:"ttl_seconds"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
}
