package handlers

import (
	"github.com/GoSTEAN/velo-sub001/internal/middleware"
	"github.com/GoSTEAN/velo-sub001/internal/services"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"
	"github.com/GoSTEAN/velo-sub001/pkg/metrics"
	"github.com/GoSTEAN/velo-sub001/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router handles HTTP routing setup
type Router struct {
	verificationHandler *VerificationHandler
	receiptHandler      *ReceiptHandler
	healthHandler       *HealthHandler
	opsHandler          *OpsHandler
	auth                services.Authenticator
	rateLimiter         *ratelimiter.RateLimiter
	metrics             *metrics.MetricsCollector
}

// RouterDeps are the collaborators the routes are built from. Receipts may be nil.
type RouterDeps struct {
	Verifier    services.Verifier
	Receipts    services.ReceiptRecorder
	Auth        services.Authenticator
	RateLimiter *ratelimiter.RateLimiter
	Metrics     *metrics.MetricsCollector
	Health      *HealthHandler
	Ops         *OpsHandler
}

// NewRouter creates a new Router instance with all handlers
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		verificationHandler: NewVerificationHandler(deps.Verifier),
		receiptHandler:      NewReceiptHandler(deps.Receipts),
		healthHandler:       deps.Health,
		opsHandler:          deps.Ops,
		auth:                deps.Auth,
		rateLimiter:         deps.RateLimiter,
		metrics:             deps.Metrics,
	}
}

// SetupRoutes configures the API routes. Requests are authenticated first and
// rate limited second, so unauthenticated traffic does not consume a client's quota.
func (r *Router) SetupRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	api.Use(middleware.AuthMiddleware(r.auth))
	api.Use(r.rateLimiter.Middleware(r.onRateLimited))
	{
		api.POST("/verify-payment", r.verificationHandler.VerifyPayment)
		api.GET("/verify-payment", r.verificationHandler.VerifyPaymentQuery)
		api.GET("/receipts/:txHash", r.receiptHandler.GetReceipts)
	}
}

// SetupHealthRoutes configures health check routes
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)            // Overall health
		health.GET("/live", r.healthHandler.GetLiveness)     // Liveness
		health.GET("/ready", r.healthHandler.GetReadiness)   // Readiness
		health.GET("/db", r.healthHandler.GetDatabaseHealth) // Database health
	}
}

// SetupOpsRoutes configures the monitoring endpoints
func (r *Router) SetupOpsRoutes(engine *gin.Engine) {
	engine.GET("/metrics", r.opsHandler.Metrics)
	engine.GET("/metrics/prometheus", r.opsHandler.Prometheus())
	engine.GET("/status", r.opsHandler.Status)
}

func (r *Router) onRateLimited(c *gin.Context, key string) {
	if r.metrics != nil {
		r.metrics.RecordRateLimited()
	}
	ctx := logger.ContextWithClientKey(c.Request.Context(), key)
	logger.GetLogger().WithContext(ctx).Warn("Rate limit exceeded",
		zap.String("path", c.Request.URL.Path),
	)
}
