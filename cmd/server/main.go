package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
	"github.com/GoSTEAN/velo-sub001/internal/config"
	"github.com/GoSTEAN/velo-sub001/internal/handlers"
	"github.com/GoSTEAN/velo-sub001/internal/middleware"
	"github.com/GoSTEAN/velo-sub001/internal/services"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"
	"github.com/GoSTEAN/velo-sub001/pkg/metrics"
	"github.com/GoSTEAN/velo-sub001/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName    = "payment-verifier"
	serviceVersion = "1.0.0"
)

// Server represents the main application server
type Server struct {
	httpServer   *http.Server
	engine       *gin.Engine
	config       *config.Config
	chain        chain.Client
	verification *services.VerificationService
	receipts     *services.ReceiptStore
	rateLimiter  *ratelimiter.RateLimiter
	metrics      *metrics.MetricsCollector
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
		Service:     serviceName,
		Version:     serviceVersion,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	log.Info("Starting payment verification server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("rpc_host", chain.EndpointHost(cfg.Chain.Endpoint)),
		zap.Bool("rpc_fallback", cfg.Chain.FallbackEndpoint != ""),
		zap.Bool("receipts_enabled", cfg.MongoDB.Enabled()),
		zap.Uint64("required_confirmations", cfg.Verification.RequiredConfirmations),
		zap.Uint64("scan_block_range", cfg.Verification.ScanBlockRange),
		zap.Duration("cache_ttl", cfg.Verification.CacheTTL),
		zap.Int("rate_limit_rpm", cfg.RateLimit.RequestsPerMinute),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("environment", cfg.Logging.Environment),
	)

	if cfg.Auth.Secret == "" {
		msg := "AUTH_SECRET is empty: the verification API accepts unauthenticated requests"
		if cfg.IsProduction() {
			log.Error(msg)
		} else {
			log.Warn(msg)
		}
	}

	rpcClient, err := chain.NewRPCClient(&cfg.Chain)
	if err != nil {
		log.Fatal("Failed to create chain client", zap.Error(err))
	}

	server, err := NewServer(context.Background(), cfg, rpcClient)
	if err != nil {
		rpcClient.Close()
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

// NewServer wires the server components around client. MongoDB is connected
// only when configured.
func NewServer(ctx context.Context, cfg *config.Config, client chain.Client) (*Server, error) {
	log := logger.GetLogger()

	log.Info("Initializing server components")

	if err := client.Healthy(ctx); err != nil {
		log.Warn("Chain RPC health check failed", zap.Error(err))
	} else {
		log.Info("Chain RPC connection healthy")
	}

	collector := metrics.NewMetricsCollector()
	opts := []services.ServiceOption{services.WithMetrics(collector)}

	var (
		receipts *services.ReceiptStore
		dbCheck  handlers.DatabaseChecker
	)
	if cfg.MongoDB.Enabled() {
		log.Debug("Connecting receipt store")
		mongoClient, err := services.ConnectMongo(ctx, &cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect receipt store: %w", err)
		}
		receipts = services.NewReceiptStore(mongoClient, &cfg.MongoDB)

		indexCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.ConnectTimeout)
		err = receipts.EnsureIndexes(indexCtx)
		cancel()
		if err != nil {
			_ = receipts.Close()
			return nil, fmt.Errorf("failed to create receipt indexes: %w", err)
		}

		dbCheck = receipts
		opts = append(opts, services.WithReceipts(receipts))
	} else {
		log.Info("MONGODB_URI not set, receipts are not recorded")
	}

	verification, err := services.NewVerificationService(client, cfg, opts...)
	if err != nil {
		if receipts != nil {
			_ = receipts.Close()
		}
		return nil, fmt.Errorf("failed to initialize verification service: %w", err)
	}

	rateLimiter := ratelimiter.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowSize)

	deps := handlers.RouterDeps{
		Verifier:    verification,
		Auth:        services.NewSecretAuthenticator(cfg.Auth.Secret),
		RateLimiter: rateLimiter,
		Metrics:     collector,
		Health:      handlers.NewHealthHandler(client, dbCheck, serviceVersion),
		Ops:         handlers.NewOpsHandler(serviceName, serviceVersion, collector, verification, client).WithClients(rateLimiter),
	}
	// Left nil when disabled so the receipts endpoint answers 503
	if receipts != nil {
		deps.Receipts = receipts
	}

	s := &Server{
		config:       cfg,
		chain:        client,
		verification: verification,
		receipts:     receipts,
		rateLimiter:  rateLimiter,
		metrics:      collector,
	}
	s.engine = s.buildEngine(handlers.NewRouter(deps))

	log.Info("Server components initialized successfully")
	return s, nil
}

// Handler returns the HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) buildEngine(router *handlers.Router) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Recovery first so that every later middleware is covered
	engine.Use(logger.RecoveryMiddleware())
	engine.Use(logger.LoggingMiddleware())
	engine.Use(middleware.MetricsMiddleware(s.metrics))
	engine.Use(middleware.ConcurrencyMiddleware(s.metrics))
	engine.Use(middleware.BodyLimitMiddleware(s.config.Server.MaxBodyBytes))
	engine.Use(middleware.TimeoutMiddleware(s.config.Server.RequestTimeout))
	engine.Use(corsMiddleware())

	router.SetupHealthRoutes(engine)
	router.SetupOpsRoutes(engine)
	router.SetupRoutes(engine)

	return engine
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	log := logger.GetLogger()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:           s.engine,
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
		zap.Duration("idle_timeout", s.config.Server.IdleTimeout),
		zap.Duration("request_timeout", s.config.Server.RequestTimeout),
	)

	s.rateLimiter.StartCleanup(s.config.RateLimit.CleanupInterval)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			s.cleanup()
			return fmt.Errorf("listen: %w", err)
		}
		s.cleanup()
		return nil
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	return s.Shutdown()
}

// Shutdown stops accepting requests, waits for in-flight ones and releases resources
func (s *Server) Shutdown() error {
	log := logger.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if s.httpServer != nil {
		log.Info("Shutting down HTTP server", zap.Duration("timeout", s.config.Server.ShutdownTimeout))
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
			shutdownErr = err
		}
	}

	s.cleanup()

	log.Info("Server stopped")
	return shutdownErr
}

func (s *Server) cleanup() {
	log := logger.GetLogger()

	log.Info("Cleaning up services...")

	s.rateLimiter.Stop()
	s.verification.Close()

	if closer, ok := s.chain.(interface{ Close() }); ok {
		closer.Close()
	}

	if s.receipts != nil {
		if err := s.receipts.Close(); err != nil {
			log.Error("Error closing receipt store", zap.Error(err))
		}
	}

	if err := log.Sync(); err != nil {
		// stdout cannot be synced on some platforms
		fmt.Fprintf(os.Stderr, "Error syncing logger: %v\n", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
