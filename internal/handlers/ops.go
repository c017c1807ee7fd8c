package handlers

import (
	"net/http"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
	"github.com/GoSTEAN/velo-sub001/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// StatsProvider exposes cache statistics of the verification service
type StatsProvider interface {
	GetCacheStats() map[string]interface{}
}

// ClientCounter reports how many clients the rate limiter is tracking
type ClientCounter interface {
	Size() int
}

// OpsHandler serves the metrics and status endpoints
type OpsHandler struct {
	service   string
	version   string
	collector *metrics.MetricsCollector
	stats     StatsProvider
	chain     chain.Client
	clients   ClientCounter
	startTime time.Time
}

// NewOpsHandler creates an OpsHandler
func NewOpsHandler(service, version string, collector *metrics.MetricsCollector, stats StatsProvider, client chain.Client) *OpsHandler {
	return &OpsHandler{
		service:   service,
		version:   version,
		collector: collector,
		stats:     stats,
		chain:     client,
		startTime: time.Now(),
	}
}

// WithClients adds the rate limiter's tracked client count to /status
func (h *OpsHandler) WithClients(clients ClientCounter) *OpsHandler {
	h.clients = clients
	return h
}

// Metrics returns the in-process counters as JSON
func (h *OpsHandler) Metrics(c *gin.Context) {
	performance := gin.H{
		"metrics":        h.collector.GetMetrics(),
		"cache_hit_rate": h.collector.GetCacheHitRatio(),
		"success_rate":   h.collector.GetSuccessRate(),
		"uptime":         h.collector.GetUptime().String(),
	}
	if h.stats != nil {
		performance["cache"] = h.stats.GetCacheStats()
	}

	c.JSON(http.StatusOK, gin.H{
		"service":     h.service,
		"version":     h.version,
		"performance": performance,
	})
}

// Prometheus exposes the Prometheus registry
func (h *OpsHandler) Prometheus() gin.HandlerFunc {
	return gin.WrapH(metrics.Handler())
}

// Status reports whether the service is running and the chain is reachable
func (h *OpsHandler) Status(c *gin.Context) {
	chainHealthy := h.chain.Healthy(c.Request.Context()) == nil

	status := gin.H{
		"service":       h.service,
		"status":        "running",
		"chain_healthy": chainHealthy,
		"uptime":        time.Since(h.startTime).String(),
		"version":       h.version,
	}
	if h.clients != nil {
		status["rate_limited_clients"] = h.clients.Size()
	}

	c.JSON(http.StatusOK, status)
}
