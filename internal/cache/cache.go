package cache

import (
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

const (
	defaultTTL      = 10 * time.Second
	defaultCapacity = 256
)

// ResultCache is a short-TTL cache over search results with in-flight
// coalescing: bursts of identical queries share one computation and the
// upstream is hit once. Purely a load shedder; expired entries are never
// served.
type ResultCache struct {
	entries gcache.Cache
	group   singleflight.Group
}

// New creates a result cache. Non-positive arguments fall back to the
// defaults.
func New(ttl time.Duration, capacity int) *ResultCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &ResultCache{
		entries: gcache.New(capacity).
			LRU().
			Expiration(ttl).
			Build(),
	}
}

// GetOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers and caches its result. Errors are not cached.
func (c *ResultCache) GetOrCompute(key string, compute func() ([]models.Option, error)) ([]models.Option, error) {
	if v, err := c.entries.Get(key); err == nil {
		return v.([]models.Option), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a concurrent caller may have filled the entry while this one
		// waited on the flight group
		if v, err := c.entries.Get(key); err == nil {
			return v, nil
		}
		options, err := compute()
		if err != nil {
			return nil, err
		}
		_ = c.entries.Set(key, options)
		return options, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Option), nil
}
