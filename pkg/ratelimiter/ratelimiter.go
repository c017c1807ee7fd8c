package ratelimiter

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// UnknownClient is the key shared by requests that carry no client address headers
const UnknownClient = "unknown"

// RequestCounter tracks request count and reset time for a client
type RequestCounter struct {
	Count     int
	ResetTime time.Time
}

// RateLimiter implements a fixed-window limit per client key with in-memory tracking
type RateLimiter struct {
	requests map[string]*RequestCounter
	mutex    sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new RateLimiter with specified limit and window
func New(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string]*RequestCounter),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// WithClock replaces time.Now, for tests
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Limit returns the number of requests admitted per window
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Allow counts a request for key and reports whether it is admitted, together
// with the counter state after the request. A window is replaced only once now
// is strictly after its reset time. A request that opens a new window always
// passes; otherwise the count grows and the request passes while
// count <= limit. Rejected requests still count.
func (rl *RateLimiter) Allow(key string) (allowed bool, count int, resetTime time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()

	counter, exists := rl.requests[key]
	if !exists || now.After(counter.ResetTime) {
		counter = &RequestCounter{Count: 1, ResetTime: now.Add(rl.window)}
		rl.requests[key] = counter
		return true, counter.Count, counter.ResetTime
	}

	counter.Count++
	return counter.Count <= rl.limit, counter.Count, counter.ResetTime
}

// Cleanup removes expired entries and returns how many were dropped
func (rl *RateLimiter) Cleanup() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	removed := 0
	for key, counter := range rl.requests {
		if now.After(counter.ResetTime) {
			delete(rl.requests, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked clients
func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	return len(rl.requests)
}

// StartCleanup sweeps expired entries every interval until Stop is called
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// ClientKey identifies the caller: the first X-Forwarded-For entry, else
// X-Real-IP, else UnknownClient. The headers are taken as given.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return UnknownClient
}
