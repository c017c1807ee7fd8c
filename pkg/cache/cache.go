package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// Outcome tells a GetOrFetch caller where its value came from
type Outcome int

const (
	// Hit means a fresh entry was served from the cache
	Hit Outcome = iota
	// Fetched means this caller ran the fetch
	Fetched
	// Shared means this caller waited on a fetch started by another caller
	Shared
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Fetched:
		return "fetched"
	case Shared:
		return "shared"
	default:
		return "unknown"
	}
}

// entry is a cached value with the time it was fetched
type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache is a bounded TTL cache. An entry is fresh while now - fetchedAt < ttl;
// stale entries are dropped when read and by a periodic sweep. When full, the
// least recently used entry is evicted.
type Cache[V any] struct {
	entries *lru.Cache
	mutex   sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group

	fetchTimeout time.Duration
	sweepEvery   time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type settings struct {
	now          func() time.Time
	sweepEvery   time.Duration
	fetchTimeout time.Duration
}

// Option customizes a Cache
type Option func(*settings)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithSweepInterval sets how often expired entries are purged. Zero or negative disables the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(s *settings) { s.sweepEvery = d }
}

// WithFetchTimeout bounds a shared fetch. A fetch outlives the caller that
// started it, so without a bound it runs until fetch itself returns.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *settings) { s.fetchTimeout = d }
}

// New creates a cache holding at most maxEntries values for ttl each
func New[V any](ttl time.Duration, maxEntries int, opts ...Option) (*Cache[V], error) {
	s := settings{now: time.Now, sweepEvery: ttl}
	for _, opt := range opts {
		opt(&s)
	}

	entries, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	c := &Cache[V]{
		entries:      entries,
		ttl:          ttl,
		now:          s.now,
		fetchTimeout: s.fetchTimeout,
		sweepEvery:   s.sweepEvery,
		stopCh:       make(chan struct{}),
	}

	if c.sweepEvery > 0 {
		go c.cleanup()
	}

	return c, nil
}

// Get returns the value for key if it is still fresh
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var zero V
	raw, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}

	e := raw.(entry[V])
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		c.entries.Remove(key)
		return zero, false
	}

	return e.value, true
}

// Put stores value under key, overwriting any previous entry
func (c *Cache[V]) Put(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries.Add(key, entry[V]{value: value, fetchedAt: c.now()})
}

// GetOrFetch serves key from the cache or runs fetch to fill it. Concurrent
// misses on the same key share a single fetch. The fetch does not inherit the
// cancellation of the caller that started it, so one caller giving up never
// fails the others; each caller stops waiting when its own ctx ends. Errors are
// returned to every waiting caller and are not cached.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, Outcome, error) {
	if v, ok := c.Get(key); ok {
		return v, Hit, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A flight that just finished may have filled the entry.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		fetchCtx, cancel := c.flightContext(ctx)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, Fetched, res.Err
		}
		outcome := Fetched
		if res.Shared {
			outcome = Shared
		}
		return res.Val.(V), outcome, nil
	case <-ctx.Done():
		return zero, Fetched, ctx.Err()
	}
}

func (c *Cache[V]) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.fetchTimeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, c.fetchTimeout)
}

// Size returns the number of entries in the cache, fresh or not
func (c *Cache[V]) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.entries.Len()
}

// cleanup runs periodically to remove expired entries
func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RemoveExpired()
		case <-c.stopCh:
			return
		}
	}
}

// RemoveExpired drops every stale entry and returns how many were removed
func (c *Cache[V]) RemoveExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.entries.Keys() {
		raw, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(raw.(entry[V]).fetchedAt) >= c.ttl {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Stop stops the cleanup goroutine
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Key builds the cache key of an event scan. Addresses are expected to be normalized.
func Key(token, receiver, amount string, fromBlock, toBlock uint64) string {
	return strings.Join([]string{
		token,
		receiver,
		amount,
		strconv.FormatUint(fromBlock, 10),
		strconv.FormatUint(toBlock, 10),
	}, "|")
}
