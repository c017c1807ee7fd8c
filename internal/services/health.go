package services

import (
	"context"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
)

// HealthStatus represents the health status of a service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a health check result
type HealthCheck struct {
	Service      string        `json:"service"`
	Status       HealthStatus  `json:"status"`
	Message      string        `json:"message,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

func newHealthCheck(service string, start time.Time, status HealthStatus, message string) *HealthCheck {
	return &HealthCheck{
		Service:      service,
		Status:       status,
		Message:      message,
		ResponseTime: time.Since(start),
		Timestamp:    start,
	}
}

// CheckChain reports whether the chain client can read the chain head
func CheckChain(ctx context.Context, client chain.Client) *HealthCheck {
	start := time.Now()

	if err := client.Healthy(ctx); err != nil {
		return newHealthCheck("chain_rpc", start, HealthStatusUnhealthy, err.Error())
	}
	return newHealthCheck("chain_rpc", start, HealthStatusHealthy, "chain head reachable")
}
