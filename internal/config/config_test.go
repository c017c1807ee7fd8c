package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, uint64(5), cfg.Verification.RequiredConfirmations)
	assert.Equal(t, uint64(2000), cfg.Verification.ScanBlockRange)
	assert.Equal(t, 60*time.Second, cfg.Verification.CacheTTL)
	assert.Equal(t, 1000, cfg.Verification.EventPageSize)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, time.Minute, cfg.RateLimit.WindowSize)
	assert.Equal(t, []string{"stdout"}, cfg.Logging.OutputPaths)
	assert.False(t, cfg.MongoDB.Enabled())
	assert.Empty(t, cfg.Auth.Secret)

	tol, err := cfg.Verification.Tolerance()
	require.NoError(t, err)
	assert.Equal(t, 0, tol.Cmp(big.NewRat(1, 100)))
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfigFrom(map[string]string{
		"CHAIN_RPC_URL":           "https://rpc.example.com/v0_7",
		"CHAIN_RPC_FALLBACK_URL":  "https://backup.example.com/v0_7",
		"VERIFY_CONFIRMATIONS":    "12",
		"VERIFY_AMOUNT_TOLERANCE": "0.005",
		"AUTH_SECRET":             "s3cret",
		"MONGODB_URI":             "mongodb://localhost:27017",
		"LOG_OUTPUT_PATHS":        "stdout,/tmp/verifier.log",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://backup.example.com/v0_7", cfg.Chain.FallbackEndpoint)
	assert.Equal(t, uint64(12), cfg.Verification.RequiredConfirmations)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.True(t, cfg.MongoDB.Enabled())
	assert.Equal(t, []string{"stdout", "/tmp/verifier.log"}, cfg.Logging.OutputPaths)

	tol, err := cfg.Verification.Tolerance()
	require.NoError(t, err)
	assert.Equal(t, 0, tol.Cmp(big.NewRat(1, 200)))
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bad tolerance", map[string]string{"VERIFY_AMOUNT_TOLERANCE": "abc"}},
		{"tolerance out of range", map[string]string{"VERIFY_AMOUNT_TOLERANCE": "1.5"}},
		{"zero scan range", map[string]string{"VERIFY_SCAN_BLOCK_RANGE": "0"}},
		{"bad rpc url", map[string]string{"CHAIN_RPC_URL": "not a url"}},
		{"non numeric confirmations", map[string]string{"VERIFY_CONFIRMATIONS": "five"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestInvalidEndpointIsNotEchoed(t *testing.T) {
	_, err := LoadConfigFrom(map[string]string{"CHAIN_RPC_URL": "rpc.example.io/v3/SUPERSECRETKEY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAIN_RPC_URL")
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
}
