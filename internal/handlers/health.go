package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
	"github.com/GoSTEAN/velo-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// DatabaseChecker reports the health of the receipt store
type DatabaseChecker interface {
	Check(ctx context.Context) *services.HealthCheck
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	chain   chain.Client
	db      DatabaseChecker
	version string
}

// NewHealthHandler creates a new health handler. db may be nil when the
// receipt store is disabled.
func NewHealthHandler(client chain.Client, db DatabaseChecker, version string) *HealthHandler {
	return &HealthHandler{
		chain:   client,
		db:      db,
		version: version,
	}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    services.HealthStatus            `json:"status"`
	Timestamp time.Time                        `json:"timestamp"`
	Services  map[string]*services.HealthCheck `json:"services"`
	Version   string                           `json:"version,omitempty"`
}

func (h *HealthHandler) checks(ctx context.Context) map[string]*services.HealthCheck {
	checks := map[string]*services.HealthCheck{
		"chain": services.CheckChain(ctx, h.chain),
	}
	if h.db != nil {
		checks["mongodb"] = h.db.Check(ctx)
	}
	return checks
}

// GetHealth returns the overall health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	serviceChecks := h.checks(c.Request.Context())

	overallStatus := services.HealthStatusHealthy
	for _, check := range serviceChecks {
		if check.Status == services.HealthStatusUnhealthy {
			overallStatus = services.HealthStatusUnhealthy
			break
		} else if check.Status == services.HealthStatusDegraded {
			overallStatus = services.HealthStatusDegraded
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  serviceChecks,
		Version:   h.version,
	}

	// Degraded still answers 200
	statusCode := http.StatusOK
	if overallStatus == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// GetLiveness returns a simple liveness check
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// GetReadiness reports ready once the chain answers and, when configured, MongoDB does too
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	ctx := c.Request.Context()

	if check := services.CheckChain(ctx, h.chain); check.Status == services.HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"message":   "chain endpoint not available",
			"timestamp": time.Now(),
		})
		return
	}

	if h.db != nil {
		if check := h.db.Check(ctx); check.Status == services.HealthStatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not_ready",
				"message":   "database not available",
				"timestamp": time.Now(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// GetDatabaseHealth returns detailed database health information
func (h *HealthHandler) GetDatabaseHealth(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"service":   "mongodb",
			"status":    "disabled",
			"timestamp": time.Now(),
		})
		return
	}

	healthCheck := h.db.Check(c.Request.Context())

	statusCode := http.StatusOK
	if healthCheck.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthCheck)
}
