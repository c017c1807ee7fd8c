package config

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Chain        ChainConfig
	Verification VerificationConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	MongoDB      MongoDBConfig
	Logging      LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `env:"SERVER_PORT" envDefault:"8080"`
	Host         string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	// Upper bound on a single verification, chain calls included.
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"25s"`
	MaxBodyBytes    int64         `env:"SERVER_MAX_BODY_BYTES" envDefault:"65536"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// ChainConfig holds the chain RPC endpoints. The fallback is only used when the
// primary cannot be reached.
type ChainConfig struct {
	Endpoint         string        `env:"CHAIN_RPC_URL" envDefault:"http://localhost:5050/rpc"`
	FallbackEndpoint string        `env:"CHAIN_RPC_FALLBACK_URL"`
	APIKey           string        `env:"CHAIN_RPC_API_KEY"`
	APIKeyHeader     string        `env:"CHAIN_RPC_API_KEY_HEADER" envDefault:"x-api-key"`
	Timeout          time.Duration `env:"CHAIN_RPC_TIMEOUT" envDefault:"15s"`
	// Selector of the ERC20 Transfer event.
	TransferEventKey string `env:"CHAIN_TRANSFER_EVENT_KEY" envDefault:"0x99cd8bde557814842a3121e8ddfd433a539b8c9f14bf31ebf108d12e6196e9"`
}

// VerificationConfig holds the tunables of the payment matcher and scanner
type VerificationConfig struct {
	RequiredConfirmations uint64        `env:"VERIFY_CONFIRMATIONS" envDefault:"5"`
	ScanBlockRange        uint64        `env:"VERIFY_SCAN_BLOCK_RANGE" envDefault:"2000"`
	CacheTTL              time.Duration `env:"VERIFY_CACHE_TTL" envDefault:"60s"`
	CacheMaxEntries       int           `env:"VERIFY_CACHE_MAX_ENTRIES" envDefault:"10000"`
	CacheCleanupInterval  time.Duration `env:"VERIFY_CACHE_CLEANUP_INTERVAL" envDefault:"2m"`
	EventPageSize         int           `env:"VERIFY_EVENT_PAGE_SIZE" envDefault:"1000"`
	// Decimal fraction, e.g. 0.01 for 1%.
	AmountTolerance string `env:"VERIFY_AMOUNT_TOLERANCE" envDefault:"0.01"`
}

// AuthConfig holds the shared bearer secret. An empty secret disables auth.
type AuthConfig struct {
	Secret string `env:"AUTH_SECRET"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"10"`
	WindowSize        time.Duration `env:"RATE_LIMIT_WINDOW_SIZE" envDefault:"1m"`
	CleanupInterval   time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"5m"`
}

// MongoDBConfig holds the receipt store connection. An empty URI disables it.
type MongoDBConfig struct {
	URI               string        `env:"MONGODB_URI"`
	Database          string        `env:"MONGODB_DATABASE" envDefault:"payments"`
	ReceiptCollection string        `env:"MONGODB_RECEIPT_COLLECTION" envDefault:"payment_receipts"`
	ConnectTimeout    time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize       uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"50"`
}

// Enabled reports whether the receipt store should be used
func (m MongoDBConfig) Enabled() bool {
	return m.URI != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `env:"LOG_LEVEL" envDefault:"info"`
	Environment string   `env:"LOG_ENVIRONMENT" envDefault:"development"`
	OutputPaths []string `env:"LOG_OUTPUT_PATHS" envDefault:"stdout" envSeparator:","`
}

// IsProduction reports whether the service runs in a production environment
func (c *Config) IsProduction() bool {
	return c.Logging.Environment == "production"
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	return load(env.Options{})
}

// LoadConfigFrom loads configuration from the given variables instead of the process environment
func LoadConfigFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateEndpoint reports a malformed endpoint without echoing it, since the
// URL may embed an API key
func validateEndpoint(raw string) error {
	if _, err := url.ParseRequestURI(raw); err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("invalid endpoint URL: %w", urlErr.Err)
		}
		return errors.New("invalid endpoint URL")
	}
	return nil
}

// Validate checks cross-field constraints the env parser cannot express
func (c *Config) Validate() error {
	var errs []error

	if err := validateEndpoint(c.Chain.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("CHAIN_RPC_URL: %w", err))
	}
	if c.Chain.FallbackEndpoint != "" {
		if err := validateEndpoint(c.Chain.FallbackEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("CHAIN_RPC_FALLBACK_URL: %w", err))
		}
	}
	if c.Chain.TransferEventKey == "" {
		errs = append(errs, errors.New("CHAIN_TRANSFER_EVENT_KEY must not be empty"))
	}
	if c.Verification.ScanBlockRange == 0 {
		errs = append(errs, errors.New("VERIFY_SCAN_BLOCK_RANGE must be positive"))
	}
	if c.Verification.EventPageSize <= 0 {
		errs = append(errs, errors.New("VERIFY_EVENT_PAGE_SIZE must be positive"))
	}
	if c.Verification.CacheMaxEntries <= 0 {
		errs = append(errs, errors.New("VERIFY_CACHE_MAX_ENTRIES must be positive"))
	}
	if _, err := c.Verification.Tolerance(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive"))
	}
	if c.RateLimit.WindowSize <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

// Tolerance parses the amount tolerance as an exact rational so that 0.01 is 1/100
func (v VerificationConfig) Tolerance() (*big.Rat, error) {
	s := strings.TrimSpace(v.AmountTolerance)
	if s == "" {
		s = "0"
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("VERIFY_AMOUNT_TOLERANCE: cannot parse %q", v.AmountTolerance)
	}
	if r.Sign() < 0 || r.Cmp(big.NewRat(1, 1)) >= 0 {
		return nil, fmt.Errorf("VERIFY_AMOUNT_TOLERANCE: %q must be in [0, 1)", s)
	}
	return r, nil
}
