package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPerformanceOptimizations covers event caching and in-flight coalescing
func TestPerformanceOptimizations(t *testing.T) {
	t.Run("CachingPerformance", testCachingPerformance)
	t.Run("ConcurrentIdenticalPolls", testConcurrentIdenticalPolls)
	t.Run("ConcurrentDistinctPolls", testConcurrentDistinctPolls)
	t.Run("MetricsCollection", testMetricsCollection)
}

func testCachingPerformance(t *testing.T) {
	server, node := newNodeServer(t, 1000, nil)
	node.AddTransfer(998, "0xfeed", "0xabc", oneToken, "0")
	node.SetEventsDelay(50 * time.Millisecond)

	// First request goes to the node
	start1 := time.Now()
	w1 := postVerify(server.Handler(), paymentRequest(oneToken), nil)
	duration1 := time.Since(start1)
	require.Equal(t, http.StatusOK, w1.Code)
	assert.False(t, decodeResult(t, w1).Cached)

	// Second request within the TTL is served from the cache
	start2 := time.Now()
	w2 := postVerify(server.Handler(), paymentRequest(oneToken), nil)
	duration2 := time.Since(start2)
	require.Equal(t, http.StatusOK, w2.Code)

	second := decodeResult(t, w2)
	assert.True(t, second.Cached)
	assert.Equal(t, models.StatusSuccess, second.Status)
	assert.Equal(t, int64(1), node.EventsCalls())

	t.Logf("First request: %v, cached request: %v", duration1, duration2)
	assert.Less(t, duration2, duration1)
}

func testConcurrentIdenticalPolls(t *testing.T) {
	server, node := newNodeServer(t, 1000, nil)
	node.AddTransfer(990, "0xfeed", "0xabc", oneToken, "0")
	node.SetEventsDelay(100 * time.Millisecond)

	const numRequests = 20

	var wg sync.WaitGroup
	results := make(chan *httptest.ResponseRecorder, numRequests)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- postVerify(server.Handler(), paymentRequest(oneToken), nil)
		}()
	}

	wg.Wait()
	close(results)

	for w := range results {
		assert.Equal(t, http.StatusOK, w.Code)

		var result models.VerificationResult
		if assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result)) {
			assert.Equal(t, models.StatusConfirmed, result.Status)
		}
	}

	assert.Equal(t, int64(1), node.EventsCalls(), "identical polls should share one event query")
}

func testConcurrentDistinctPolls(t *testing.T) {
	server, node := newNodeServer(t, 1000, nil)

	amounts := []string{"1", "2", "3", "4", "5"}

	var wg sync.WaitGroup
	for _, amount := range amounts {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(amount string) {
				defer wg.Done()
				w := postVerify(server.Handler(), paymentRequest(amount), nil)
				assert.Equal(t, http.StatusOK, w.Code)
			}(amount)
		}
	}
	wg.Wait()

	// One query per distinct intent, however the requests interleave
	assert.LessOrEqual(t, node.EventsCalls(), int64(len(amounts)))
	assert.GreaterOrEqual(t, node.EventsCalls(), int64(1))
}

func testMetricsCollection(t *testing.T) {
	server, node := newNodeServer(t, 1000, nil)
	node.AddTransfer(999, "0xfeed", "0xabc", "1", "0")

	for i := 0; i < 3; i++ {
		w := postVerify(server.Handler(), paymentRequest("1"), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Service     string `json:"service"`
		Performance struct {
			Metrics struct {
				TotalRequests int64 `json:"total_requests"`
				CacheHits     int64 `json:"cache_hits"`
				CacheMisses   int64 `json:"cache_misses"`
				Succeeded     int64 `json:"succeeded"`
			} `json:"metrics"`
			Cache map[string]interface{} `json:"cache"`
		} `json:"performance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, serviceName, body.Service)
	// The /metrics request counts itself
	assert.Equal(t, int64(4), body.Performance.Metrics.TotalRequests)
	assert.Equal(t, int64(2), body.Performance.Metrics.CacheHits)
	assert.Equal(t, int64(1), body.Performance.Metrics.CacheMisses)
	assert.Equal(t, int64(3), body.Performance.Metrics.Succeeded)
	assert.Equal(t, float64(1), body.Performance.Cache["cache_size"])
}
