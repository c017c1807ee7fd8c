package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestLimiter(limit int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(limit, time.Minute).WithClock(clock.Now), clock
}

func TestEleventhRequestRejected(t *testing.T) {
	rl, _ := newTestLimiter(10)

	for i := 1; i <= 10; i++ {
		allowed, count, _ := rl.Allow("1.2.3.4")
		assert.True(t, allowed, "request %d should pass", i)
		assert.Equal(t, i, count)
	}

	allowed, count, _ := rl.Allow("1.2.3.4")
	assert.False(t, allowed)
	assert.Equal(t, 11, count)
}

func TestWindowReset(t *testing.T) {
	rl, clock := newTestLimiter(10)

	for i := 0; i < 11; i++ {
		rl.Allow("k")
	}
	allowed, _, resetTime := rl.Allow("k")
	assert.False(t, allowed)

	clock.Advance(59 * time.Second)
	allowed, _, _ = rl.Allow("k")
	assert.False(t, allowed)

	// The reset instant still belongs to the old window.
	clock.Advance(time.Second)
	require.Equal(t, resetTime, clock.Now())
	allowed, count, _ := rl.Allow("k")
	assert.False(t, allowed)
	assert.Equal(t, 14, count)

	clock.Advance(time.Nanosecond)
	allowed, count, resetTime = rl.Allow("k")
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
	assert.Equal(t, clock.Now().Add(time.Minute), resetTime)
}

func TestKeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(1)

	allowed, _, _ := rl.Allow("a")
	assert.True(t, allowed)
	allowed, _, _ = rl.Allow("a")
	assert.False(t, allowed)
	allowed, _, _ = rl.Allow("b")
	assert.True(t, allowed)
}

func TestCleanup(t *testing.T) {
	rl, clock := newTestLimiter(10)

	rl.Allow("old")
	clock.Advance(30 * time.Second)
	rl.Allow("new")
	clock.Advance(30 * time.Second)

	// "old" resets exactly now and is kept until the instant has passed.
	assert.Equal(t, 0, rl.Cleanup())
	assert.Equal(t, 2, rl.Size())

	clock.Advance(time.Nanosecond)
	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.Size())
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "X-Real-IP": "10.0.0.2"}, "203.0.113.7"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 203.0.113.9 "}, "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"empty forwarded entry falls through", map[string]string{"X-Forwarded-For": " , 10.0.0.1", "X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"nothing", nil, UnknownClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientKey(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, _ := newTestLimiter(2)

	var rejected []string
	router := gin.New()
	router.Use(rl.Middleware(func(c *gin.Context, key string) {
		rejected = append(rejected, key)
	}))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := do()
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	w = do()
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Rate limit exceeded"`)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, []string{"203.0.113.7"}, rejected)
}
