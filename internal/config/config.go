// Package config loads the sniper configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the full process configuration.
type Config struct {
	StreamEndpoint string `env:"STREAM_ENDPOINT"`
	RPCEndpoint    string `env:"RPC_ENDPOINT"`

	MarketCapThresholdUSD decimal.Decimal `env:"MARKET_CAP_THRESHOLD_USD" envDefault:"8000"`
	MaxSlippageBps        uint64          `env:"MAX_SLIPPAGE_BPS" envDefault:"500"`
	BuyAmountLamports     uint64          `env:"BUY_AMOUNT_LAMPORTS" envDefault:"50000000"`
	PriorityFeeLamports   uint64          `env:"PRIORITY_FEE_LAMPORTS" envDefault:"5000000"`
	ComputeUnitLimit      uint32          `env:"COMPUTE_UNIT_LIMIT" envDefault:"200000"`

	WalletPrivateKey string `env:"WALLET_PRIVATE_KEY"`
	TestMode         bool   `env:"TEST_MODE" envDefault:"false"`

	Price   PriceConfig
	Storage StorageConfig
	Log     LogConfig

	MetricsAddr   string        `env:"METRICS_ADDR" envDefault:":9090"`
	StatsInterval time.Duration `env:"STATS_INTERVAL" envDefault:"30s"`
	CurveMaxAge   time.Duration `env:"CURVE_CACHE_MAX_AGE" envDefault:"30s"`
}

// PriceConfig configures the SOL/USD price source.
type PriceConfig struct {
	APIURL       string        `env:"PRICE_API_URL" envDefault:"https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"`
	CacheTTL     time.Duration `env:"PRICE_CACHE_TTL" envDefault:"30s"`
	Timeout      time.Duration `env:"PRICE_TIMEOUT" envDefault:"3s"`
	WarmSchedule string        `env:"PRICE_WARM_SCHEDULE" envDefault:"*/20 * * * * *"`
}

// StorageConfig selects journal backends. Empty DSNs mean in-memory.
type StorageConfig struct {
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Encoding    string `env:"LOG_ENCODING" envDefault:"json"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// ConfigError reports an invalid or missing setting.
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Msg, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Legacy variable names accepted when the current name is unset.
var aliases = map[string]string{
	"STREAM_ENDPOINT":       "GRPC_ENDPOINT",
	"BUY_AMOUNT_LAMPORTS":   "BUY_AMOUNT_SOL",
	"PRIORITY_FEE_LAMPORTS": "PRIORITY_FEE_SOL",
}

// Load reads envFile (if it exists) into the process environment and parses it.
// An empty envFile defaults to ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Field: "env-file", Msg: envFile, Err: err}
	}
	return Parse(environ())
}

// Parse builds a Config from an explicit environment.
func Parse(vars map[string]string) (*Config, error) {
	resolved := make(map[string]string, len(vars))
	for k, v := range vars {
		resolved[k] = v
	}
	for current, legacy := range aliases {
		if _, ok := resolved[current]; ok {
			continue
		}
		if v, ok := resolved[legacy]; ok {
			resolved[current] = v
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: resolved}); err != nil {
		return nil, &ConfigError{Field: "env", Msg: "parse", Err: err}
	}
	return &cfg, nil
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}
	return vars
}

// Validate checks every setting the sniper depends on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.StreamEndpoint) == "":
		return &ConfigError{Field: "STREAM_ENDPOINT", Msg: "required"}
	case strings.TrimSpace(c.RPCEndpoint) == "":
		return &ConfigError{Field: "RPC_ENDPOINT", Msg: "required"}
	case !c.MarketCapThresholdUSD.IsPositive():
		return &ConfigError{Field: "MARKET_CAP_THRESHOLD_USD", Msg: "must be positive"}
	case c.MaxSlippageBps > 10_000:
		return &ConfigError{Field: "MAX_SLIPPAGE_BPS", Msg: "cannot exceed 10000"}
	case c.BuyAmountLamports == 0:
		return &ConfigError{Field: "BUY_AMOUNT_LAMPORTS", Msg: "cannot be zero"}
	case c.PriorityFeeLamports == 0:
		return &ConfigError{Field: "PRIORITY_FEE_LAMPORTS", Msg: "cannot be zero"}
	case c.ComputeUnitLimit == 0:
		return &ConfigError{Field: "COMPUTE_UNIT_LIMIT", Msg: "cannot be zero"}
	case c.Price.Timeout <= 0:
		return &ConfigError{Field: "PRICE_TIMEOUT", Msg: "must be positive"}
	}
	return nil
}

// Wallet decodes WALLET_PRIVATE_KEY.
func (c *Config) Wallet() (solana.PrivateKey, error) {
	if c.WalletPrivateKey == "" {
		return nil, &ConfigError{Field: "WALLET_PRIVATE_KEY", Msg: "required"}
	}
	key, err := solana.PrivateKeyFromBase58(c.WalletPrivateKey)
	if err != nil {
		return nil, &ConfigError{Field: "WALLET_PRIVATE_KEY", Msg: "invalid base58 key", Err: err}
	}
	if len(key) != 64 {
		return nil, &ConfigError{Field: "WALLET_PRIVATE_KEY", Msg: fmt.Sprintf("expected 64 bytes, got %d", len(key))}
	}
	return key, nil
}

// BuyAmountSOL is the buy amount in SOL, for display.
func (c *Config) BuyAmountSOL() float64 {
	return float64(c.BuyAmountLamports) / float64(solana.LAMPORTS_PER_SOL)
}

// PriorityFeeSOL is the priority fee in SOL, for display.
func (c *Config) PriorityFeeSOL() float64 {
	return float64(c.PriorityFeeLamports) / float64(solana.LAMPORTS_PER_SOL)
}
