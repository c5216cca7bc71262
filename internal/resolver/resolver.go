package resolver

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

// StationSearcher is the upstream station-search dependency
type StationSearcher interface {
	SearchStations(ctx context.Context, query string) ([]models.StationRecord, error)
}

const (
	defaultTTL      = 10 * time.Minute
	defaultCapacity = 500

	// minQueryLen short-circuits queries too short to resolve usefully
	minQueryLen = 2

	warmTimeout = 10 * time.Second
)

// entry is one cached resolution; age is recomputed on every read
type entry struct {
	records  []models.StationRecord
	storedAt time.Time
}

// Resolver resolves free-text queries to station records, backed by a
// TTL cache with prefix fallback and in-flight coalescing. Construct with
// New, call Start to run the expiry sweep, Stop on shutdown.
type Resolver struct {
	upstream StationSearcher
	ttl      time.Duration
	capacity int

	mu      sync.RWMutex
	entries map[string]*entry
	stopped bool

	group singleflight.Group

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures the Resolver
type Option func(*Resolver)

// WithTTL sets the cache entry lifetime
func WithTTL(d time.Duration) Option {
	return func(r *Resolver) {
		r.ttl = d
	}
}

// WithCapacity caps the number of cached queries
func WithCapacity(n int) Option {
	return func(r *Resolver) {
		r.capacity = n
	}
}

// New creates a new resolver
func New(upstream StationSearcher, opts ...Option) *Resolver {
	r := &Resolver{
		upstream: upstream,
		ttl:      defaultTTL,
		capacity: defaultCapacity,
		entries:  make(map[string]*entry),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the periodic expiry sweep
func (r *Resolver) Start() {
	r.wg.Add(1)
	go r.sweepLoop()
}

// Stop stops the sweep and waits for background warms to finish.
// New warms are refused from this point on.
func (r *Resolver) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.stopCh)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Resolve resolves a free-text query to station records. Queries shorter
// than two characters return an empty result without contacting upstream.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]models.StationRecord, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	runes := []rune(key)
	if len(runes) < minQueryLen {
		return []models.StationRecord{}, nil
	}

	if records, ok := r.cached(key); ok {
		return records, nil
	}

	// Prefix fallback: a cached shorter prefix is served immediately while
	// the full query resolves in the background to warm the cache.
	for n := len(runes) - 1; n >= minQueryLen; n-- {
		if records, ok := r.cached(string(runes[:n])); ok {
			r.warmInBackground(key)
			return records, nil
		}
	}

	return r.fetch(ctx, key)
}

// cached returns a copy of a live entry; expired entries are treated as
// absent and evicted. Callers may sort or mutate the result freely.
func (r *Resolver) cached(key string) ([]models.StationRecord, bool) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > r.ttl {
		r.mu.Lock()
		// recheck under the write lock; a concurrent store may have
		// refreshed the entry
		if cur, ok := r.entries[key]; ok && time.Since(cur.storedAt) > r.ttl {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		return nil, false
	}
	out := make([]models.StationRecord, len(e.records))
	copy(out, e.records)
	return out, true
}

// fetch runs the upstream call, collapsing concurrent identical queries
// into a single in-flight request. The pending marker is cleared by
// singleflight on settlement, success or failure.
func (r *Resolver) fetch(ctx context.Context, key string) ([]models.StationRecord, error) {
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		records, err := r.upstream.SearchStations(ctx, key)
		if err != nil {
			return nil, err
		}
		r.store(key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.StationRecord), nil
}

// warmInBackground resolves the full query off the request path; errors
// are swallowed, the caller already has a prefix result. The goroutine is
// registered under the lock so a warm cannot race past a shutdown's Wait.
func (r *Resolver) warmInBackground(key string) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
		defer cancel()
		if _, err := r.fetch(ctx, key); err != nil {
			log.Printf("station cache warm failed for %q: %v", key, err)
		}
	}()
}

func (r *Resolver) store(key string, records []models.StationRecord) {
	// keep a private copy: the fetching caller holds the original slice
	cp := make([]models.StationRecord, len(records))
	copy(cp, records)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = &entry{records: cp, storedAt: time.Now()}

	if len(r.entries) <= r.capacity {
		return
	}

	// Over capacity: evict oldest entries by last write until back under.
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(r.entries))
	for k, e := range r.entries {
		all = append(all, aged{k, e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })
	for _, a := range all {
		if len(r.entries) <= r.capacity {
			break
		}
		delete(r.entries, a.key)
	}
}

// sweepLoop removes expired entries to bound memory independent of
// access patterns.
func (r *Resolver) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Resolver) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.entries {
		if time.Since(e.storedAt) > r.ttl {
			delete(r.entries, k)
		}
	}
}

// Len reports the number of cached queries
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
