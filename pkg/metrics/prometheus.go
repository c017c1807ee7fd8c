package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	verificationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifier_results_total",
			Help: "Verification results by status",
		}, []string{"status"}) // status: confirmed, success, pending, invalid

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifier_event_cache_total",
			Help: "Event cache lookups by result",
		}, []string{"result"}) // result: hit, miss, shared

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_verifier_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		})

	chainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verifier_chain_call_duration_seconds",
			Help:    "Duration of chain RPC calls by operation, endpoint and outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op", "endpoint", "outcome"})
)

// ObserveChainCall records one chain RPC attempt against a single endpoint
func ObserveChainCall(op, endpoint string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	chainCallDuration.WithLabelValues(op, endpoint, outcome).Observe(d.Seconds())
}

// Handler exposes the Prometheus registry
func Handler() http.Handler {
	return promhttp.Handler()
}
