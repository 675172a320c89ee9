package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv() map[string]string {
	return map[string]string{
		"STREAM_ENDPOINT": "wss://stream.example.com",
		"RPC_ENDPOINT":    "https://rpc.example.com",
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(validEnv())
	require.NoError(t, err)

	assert.True(t, cfg.MarketCapThresholdUSD.Equal(decimal.NewFromInt(8000)))
	assert.Equal(t, uint64(500), cfg.MaxSlippageBps)
	assert.Equal(t, uint64(50_000_000), cfg.BuyAmountLamports)
	assert.Equal(t, uint64(5_000_000), cfg.PriorityFeeLamports)
	assert.Equal(t, uint32(200_000), cfg.ComputeUnitLimit)
	assert.False(t, cfg.TestMode)
	assert.Equal(t, 30*time.Second, cfg.Price.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.Price.Timeout)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Encoding)
	assert.Equal(t, 30*time.Second, cfg.StatsInterval)
	assert.Equal(t, 30*time.Second, cfg.CurveMaxAge)
	assert.InDelta(t, 0.05, cfg.BuyAmountSOL(), 1e-12)
	assert.InDelta(t, 0.005, cfg.PriorityFeeSOL(), 1e-12)

	require.NoError(t, cfg.Validate())
}

func TestParse_Overrides(t *testing.T) {
	vars := validEnv()
	vars["MARKET_CAP_THRESHOLD_USD"] = "12500.5"
	vars["MAX_SLIPPAGE_BPS"] = "1000"
	vars["BUY_AMOUNT_LAMPORTS"] = "1000000000"
	vars["TEST_MODE"] = "true"
	vars["PRICE_CACHE_TTL"] = "1m"
	vars["POSTGRES_DSN"] = "postgres://localhost/sniper"

	cfg, err := Parse(vars)
	require.NoError(t, err)

	assert.Equal(t, "12500.5", cfg.MarketCapThresholdUSD.String())
	assert.Equal(t, uint64(1000), cfg.MaxSlippageBps)
	assert.Equal(t, uint64(1_000_000_000), cfg.BuyAmountLamports)
	assert.True(t, cfg.TestMode)
	assert.Equal(t, time.Minute, cfg.Price.CacheTTL)
	assert.Equal(t, "postgres://localhost/sniper", cfg.Storage.PostgresDSN)
}

func TestParse_LegacyNames(t *testing.T) {
	vars := map[string]string{
		"GRPC_ENDPOINT":    "wss://legacy.example.com",
		"RPC_ENDPOINT":     "https://rpc.example.com",
		"BUY_AMOUNT_SOL":   "70000000",
		"PRIORITY_FEE_SOL": "1000",
	}
	cfg, err := Parse(vars)
	require.NoError(t, err)
	assert.Equal(t, "wss://legacy.example.com", cfg.StreamEndpoint)
	assert.Equal(t, uint64(70_000_000), cfg.BuyAmountLamports)
	assert.Equal(t, uint64(1000), cfg.PriorityFeeLamports)

	vars["STREAM_ENDPOINT"] = "wss://current.example.com"
	cfg, err = Parse(vars)
	require.NoError(t, err)
	assert.Equal(t, "wss://current.example.com", cfg.StreamEndpoint)
}

func TestParse_Invalid(t *testing.T) {
	vars := validEnv()
	vars["MAX_SLIPPAGE_BPS"] = "lots"

	_, err := Parse(vars)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"missing stream", "STREAM_ENDPOINT", "", "STREAM_ENDPOINT"},
		{"missing rpc", "RPC_ENDPOINT", " ", "RPC_ENDPOINT"},
		{"zero threshold", "MARKET_CAP_THRESHOLD_USD", "0", "MARKET_CAP_THRESHOLD_USD"},
		{"negative threshold", "MARKET_CAP_THRESHOLD_USD", "-5", "MARKET_CAP_THRESHOLD_USD"},
		{"slippage over 100%", "MAX_SLIPPAGE_BPS", "10001", "MAX_SLIPPAGE_BPS"},
		{"zero buy", "BUY_AMOUNT_LAMPORTS", "0", "BUY_AMOUNT_LAMPORTS"},
		{"zero fee", "PRIORITY_FEE_LAMPORTS", "0", "PRIORITY_FEE_LAMPORTS"},
		{"zero cu limit", "COMPUTE_UNIT_LIMIT", "0", "COMPUTE_UNIT_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := validEnv()
			vars[tt.key] = tt.value

			cfg, err := Parse(vars)
			require.NoError(t, err)

			err = cfg.Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidate_SlippageBoundary(t *testing.T) {
	vars := validEnv()
	vars["MAX_SLIPPAGE_BPS"] = "10000"
	cfg, err := Parse(vars)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestWallet(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	cfg := &Config{WalletPrivateKey: key.String()}
	got, err := cfg.Wallet()
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), got.PublicKey())

	_, err = (&Config{}).Wallet()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))

	_, err = (&Config{WalletPrivateKey: "0OIl"}).Wallet()
	require.True(t, errors.As(err, &cfgErr))
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "STREAM_ENDPOINT=wss://file.example.com\nRPC_ENDPOINT=https://file.example.com\nMAX_SLIPPAGE_BPS=250\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("STREAM_ENDPOINT", "")
	os.Unsetenv("STREAM_ENDPOINT")
	t.Setenv("RPC_ENDPOINT", "")
	os.Unsetenv("RPC_ENDPOINT")
	t.Setenv("MAX_SLIPPAGE_BPS", "")
	os.Unsetenv("MAX_SLIPPAGE_BPS")
	t.Cleanup(func() {
		os.Unsetenv("STREAM_ENDPOINT")
		os.Unsetenv("RPC_ENDPOINT")
		os.Unsetenv("MAX_SLIPPAGE_BPS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://file.example.com", cfg.StreamEndpoint)
	assert.Equal(t, uint64(250), cfg.MaxSlippageBps)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
