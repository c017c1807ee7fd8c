package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds performance metrics for the application
type Metrics struct {
	// Request metrics
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	RateLimited        int64 `json:"rate_limited"`

	// Response time metrics
	AverageResponseTime time.Duration `json:"average_response_time"`
	MinResponseTime     time.Duration `json:"min_response_time"`
	MaxResponseTime     time.Duration `json:"max_response_time"`

	// Event cache metrics
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	SharedFetches int64 `json:"shared_fetches"`

	// Chain RPC metrics
	RPCCalls       int64         `json:"rpc_calls"`
	RPCFailures    int64         `json:"rpc_failures"`
	AverageRPCTime time.Duration `json:"average_rpc_time"`

	// Verification outcomes
	Confirmed int64 `json:"confirmed"`
	Succeeded int64 `json:"succeeded"`
	Pending   int64 `json:"pending"`
	Invalid   int64 `json:"invalid"`

	ActiveRequests int64 `json:"active_requests"`

	// Internal fields for calculations
	totalResponseTime time.Duration
	totalRPCTime      time.Duration
	mutex             sync.RWMutex
}

// MetricsCollector provides thread-safe metrics collection
type MetricsCollector struct {
	metrics   *Metrics
	startTime time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: &Metrics{
			MinResponseTime: time.Duration(^uint64(0) >> 1), // Max duration
		},
		startTime: time.Now(),
	}
}

// RecordRequest records a new request
func (mc *MetricsCollector) RecordRequest() {
	atomic.AddInt64(&mc.metrics.TotalRequests, 1)
	atomic.AddInt64(&mc.metrics.ActiveRequests, 1)
}

// RecordRequestComplete records request completion
func (mc *MetricsCollector) RecordRequestComplete(duration time.Duration, success bool) {
	atomic.AddInt64(&mc.metrics.ActiveRequests, -1)

	if success {
		atomic.AddInt64(&mc.metrics.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&mc.metrics.FailedRequests, 1)
	}

	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	mc.metrics.totalResponseTime += duration

	if duration < mc.metrics.MinResponseTime {
		mc.metrics.MinResponseTime = duration
	}
	if duration > mc.metrics.MaxResponseTime {
		mc.metrics.MaxResponseTime = duration
	}

	completed := atomic.LoadInt64(&mc.metrics.SuccessfulRequests) + atomic.LoadInt64(&mc.metrics.FailedRequests)
	if completed > 0 {
		mc.metrics.AverageResponseTime = mc.metrics.totalResponseTime / time.Duration(completed)
	}
}

// RecordRateLimited records a request rejected by the rate limiter
func (mc *MetricsCollector) RecordRateLimited() {
	atomic.AddInt64(&mc.metrics.RateLimited, 1)
	rateLimitRejections.Inc()
}

// RecordCacheHit records an event cache hit
func (mc *MetricsCollector) RecordCacheHit() {
	atomic.AddInt64(&mc.metrics.CacheHits, 1)
	cacheResults.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records an event cache miss
func (mc *MetricsCollector) RecordCacheMiss() {
	atomic.AddInt64(&mc.metrics.CacheMisses, 1)
	cacheResults.WithLabelValues("miss").Inc()
}

// RecordSharedFetch records a caller that joined an in-flight fetch instead of issuing its own
func (mc *MetricsCollector) RecordSharedFetch() {
	atomic.AddInt64(&mc.metrics.SharedFetches, 1)
	cacheResults.WithLabelValues("shared").Inc()
}

// RecordRPCCall records a chain RPC round trip as seen by the verifier
func (mc *MetricsCollector) RecordRPCCall(duration time.Duration, success bool) {
	atomic.AddInt64(&mc.metrics.RPCCalls, 1)

	if !success {
		atomic.AddInt64(&mc.metrics.RPCFailures, 1)
	}

	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	mc.metrics.totalRPCTime += duration

	totalRPCCalls := atomic.LoadInt64(&mc.metrics.RPCCalls)
	if totalRPCCalls > 0 {
		mc.metrics.AverageRPCTime = mc.metrics.totalRPCTime / time.Duration(totalRPCCalls)
	}
}

// RecordVerification records the status a verification ended in
func (mc *MetricsCollector) RecordVerification(status string) {
	switch status {
	case "confirmed":
		atomic.AddInt64(&mc.metrics.Confirmed, 1)
	case "success":
		atomic.AddInt64(&mc.metrics.Succeeded, 1)
	case "pending":
		atomic.AddInt64(&mc.metrics.Pending, 1)
	default:
		atomic.AddInt64(&mc.metrics.Invalid, 1)
	}
	verificationResults.WithLabelValues(status).Inc()
}

// GetMetrics returns a copy of current metrics
func (mc *MetricsCollector) GetMetrics() *Metrics {
	mc.metrics.mutex.RLock()
	defer mc.metrics.mutex.RUnlock()

	return &Metrics{
		TotalRequests:       atomic.LoadInt64(&mc.metrics.TotalRequests),
		SuccessfulRequests:  atomic.LoadInt64(&mc.metrics.SuccessfulRequests),
		FailedRequests:      atomic.LoadInt64(&mc.metrics.FailedRequests),
		RateLimited:         atomic.LoadInt64(&mc.metrics.RateLimited),
		AverageResponseTime: mc.metrics.AverageResponseTime,
		MinResponseTime:     mc.metrics.MinResponseTime,
		MaxResponseTime:     mc.metrics.MaxResponseTime,
		CacheHits:           atomic.LoadInt64(&mc.metrics.CacheHits),
		CacheMisses:         atomic.LoadInt64(&mc.metrics.CacheMisses),
		SharedFetches:       atomic.LoadInt64(&mc.metrics.SharedFetches),
		RPCCalls:            atomic.LoadInt64(&mc.metrics.RPCCalls),
		RPCFailures:         atomic.LoadInt64(&mc.metrics.RPCFailures),
		AverageRPCTime:      mc.metrics.AverageRPCTime,
		Confirmed:           atomic.LoadInt64(&mc.metrics.Confirmed),
		Succeeded:           atomic.LoadInt64(&mc.metrics.Succeeded),
		Pending:             atomic.LoadInt64(&mc.metrics.Pending),
		Invalid:             atomic.LoadInt64(&mc.metrics.Invalid),
		ActiveRequests:      atomic.LoadInt64(&mc.metrics.ActiveRequests),
	}
}

// GetUptime returns the uptime since metrics collection started
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	for _, counter := range []*int64{
		&mc.metrics.TotalRequests,
		&mc.metrics.SuccessfulRequests,
		&mc.metrics.FailedRequests,
		&mc.metrics.RateLimited,
		&mc.metrics.CacheHits,
		&mc.metrics.CacheMisses,
		&mc.metrics.SharedFetches,
		&mc.metrics.RPCCalls,
		&mc.metrics.RPCFailures,
		&mc.metrics.Confirmed,
		&mc.metrics.Succeeded,
		&mc.metrics.Pending,
		&mc.metrics.Invalid,
		&mc.metrics.ActiveRequests,
	} {
		atomic.StoreInt64(counter, 0)
	}

	mc.metrics.AverageResponseTime = 0
	mc.metrics.MinResponseTime = time.Duration(^uint64(0) >> 1)
	mc.metrics.MaxResponseTime = 0
	mc.metrics.AverageRPCTime = 0
	mc.metrics.totalResponseTime = 0
	mc.metrics.totalRPCTime = 0

	mc.startTime = time.Now()
}

// GetCacheHitRatio returns the cache hit ratio as a percentage
func (mc *MetricsCollector) GetCacheHitRatio() float64 {
	hits := atomic.LoadInt64(&mc.metrics.CacheHits)
	misses := atomic.LoadInt64(&mc.metrics.CacheMisses)
	total := hits + misses

	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total) * 100.0
}

// GetSuccessRate returns the share of completed requests that succeeded, as a percentage
func (mc *MetricsCollector) GetSuccessRate() float64 {
	successful := atomic.LoadInt64(&mc.metrics.SuccessfulRequests)
	total := successful + atomic.LoadInt64(&mc.metrics.FailedRequests)

	if total == 0 {
		return 0.0
	}

	return float64(successful) / float64(total) * 100.0
}
