// Package config defines the top-level configuration for the pair sniper
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pairsniper/internal/position"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SNIPER_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Trading  TradingConfig  `toml:"trading"`
	Advisory AdvisoryConfig `toml:"advisory"`
	Store    StoreConfig    `toml:"store"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
	LogFile  string         `toml:"log_file"`
}

// ChainConfig holds the RPC endpoint, contract addresses and gas settings.
type ChainConfig struct {
	RPCURL              string   `toml:"rpc_url"`
	ChainID             int64    `toml:"chain_id"`
	RouterAddress       string   `toml:"router_address"`
	BaseTokenAddress    string   `toml:"base_token_address"`
	BridgeTokenAddress  string   `toml:"bridge_token_address"`
	GasPriceGwei        float64  `toml:"gas_price_gwei"`
	SwapGasLimit        uint64   `toml:"swap_gas_limit"`
	ApproveGasLimit     uint64   `toml:"approve_gas_limit"`
	Deadline            duration `toml:"deadline"`
	ReceiptTimeout      duration `toml:"receipt_timeout"`
	ReceiptPollInterval duration `toml:"receipt_poll_interval"`
	MaxBlockRange       uint64   `toml:"max_block_range"`
	FeeOnTransfer       bool     `toml:"fee_on_transfer"`
}

// WalletConfig holds the trading wallet and its key source.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	Address          string `toml:"address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// TradingConfig holds position sizing, thresholds and loop cadence.
type TradingConfig struct {
	BuyAmount          float64  `toml:"buy_amount"`
	ProfitMarginPct    float64  `toml:"profit_margin_pct"`
	StopLossPct        float64  `toml:"stop_loss_pct"`
	MonitorInterval    duration `toml:"monitor_interval"`
	DiscoveryInterval  duration `toml:"discovery_interval"`
	ErrorBackoff       duration `toml:"error_backoff"`
	SeenTTL            duration `toml:"seen_ttl"`
	EntryQuoteAttempts int      `toml:"entry_quote_attempts"`
	EntryQuoteDelay    duration `toml:"entry_quote_delay"`
	// Averaging is "midpoint" or "weighted".
	Averaging string `toml:"averaging"`
}

// AdvisoryConfig holds the language-model advisor settings.
type AdvisoryConfig struct {
	Enabled     bool     `toml:"enabled"`
	APIKey      string   `toml:"api_key"`
	Model       string   `toml:"model"`
	BaseURL     string   `toml:"base_url"`
	Temperature float64  `toml:"temperature"`
	Timeout     duration `toml:"timeout"`
}

// StoreConfig selects where live positions are persisted.
type StoreConfig struct {
	Backend    string `toml:"backend"`
	SQLitePath string `toml:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When Addr is set the wallet
// lock and the event bus are enabled regardless of the store backend.
type RedisConfig struct {
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	TLSEnabled    bool     `toml:"tls_enabled"`
	LockTTL       duration `toml:"lock_ttl"`
	EventsChannel string   `toml:"events_channel"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:             56,
			GasPriceGwei:        5,
			SwapGasLimit:        300_000,
			ApproveGasLimit:     100_000,
			Deadline:            duration{10 * time.Minute},
			ReceiptTimeout:      duration{10 * time.Minute},
			ReceiptPollInterval: duration{2 * time.Second},
			MaxBlockRange:       500,
		},
		Trading: TradingConfig{
			BuyAmount:          0.001,
			ProfitMarginPct:    200,
			StopLossPct:        50,
			MonitorInterval:    duration{60 * time.Second},
			DiscoveryInterval:  duration{2 * time.Second},
			ErrorBackoff:       duration{10 * time.Second},
			SeenTTL:            duration{time.Hour},
			EntryQuoteAttempts: 3,
			EntryQuoteDelay:    duration{2 * time.Second},
			Averaging:          "midpoint",
		},
		Advisory: AdvisoryConfig{
			Model:       "gpt-4",
			Temperature: 0.7,
			Timeout:     duration{30 * time.Second},
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "pairsniper.db",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:      10,
			LockTTL:       duration{30 * time.Second},
			EventsChannel: "sniper:events",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "pairsniper",
			Prefix:         "positions",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     false,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_sold", "position_abandoned", "sell_failed"},
		},
		LogLevel: "info",
	}
}

// validBackends enumerates the accepted values for StoreConfig.Backend.
var validBackends = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"redis":    true,
	"s3":       true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. It does not check that the
// wallet address matches the key; that needs the key itself and happens when
// the signer is built.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	errs = checkAddress(errs, "chain: router_address", c.Chain.RouterAddress, true)
	errs = checkAddress(errs, "chain: base_token_address", c.Chain.BaseTokenAddress, true)
	errs = checkAddress(errs, "chain: bridge_token_address", c.Chain.BridgeTokenAddress, false)
	if c.Chain.GasPriceGwei <= 0 {
		errs = append(errs, "chain: gas_price_gwei must be > 0")
	}
	if c.Chain.SwapGasLimit == 0 || c.Chain.ApproveGasLimit == 0 {
		errs = append(errs, "chain: swap_gas_limit and approve_gas_limit must be > 0")
	}
	if c.Chain.Deadline.Duration <= 0 {
		errs = append(errs, "chain: deadline must be > 0")
	}
	if c.Chain.ReceiptTimeout.Duration <= 0 {
		errs = append(errs, "chain: receipt_timeout must be > 0")
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	errs = checkAddress(errs, "wallet: address", c.Wallet.Address, true)

	// Trading
	if c.Trading.BuyAmount <= 0 {
		errs = append(errs, "trading: buy_amount must be > 0")
	}
	if c.Trading.ProfitMarginPct <= 0 {
		errs = append(errs, "trading: profit_margin_pct must be > 0")
	}
	if c.Trading.StopLossPct <= 0 || c.Trading.StopLossPct > 100 {
		errs = append(errs, "trading: stop_loss_pct must be in (0, 100]")
	}
	if c.Trading.MonitorInterval.Duration <= 0 || c.Trading.DiscoveryInterval.Duration <= 0 {
		errs = append(errs, "trading: monitor_interval and discovery_interval must be > 0")
	}
	if c.Trading.ErrorBackoff.Duration < 0 {
		errs = append(errs, "trading: error_backoff must be >= 0")
	}
	if c.Trading.EntryQuoteAttempts < 1 {
		errs = append(errs, "trading: entry_quote_attempts must be >= 1")
	}
	if _, err := position.ParseAveraging(c.Trading.Averaging); err != nil {
		errs = append(errs, fmt.Sprintf("trading: unknown averaging %q (valid: midpoint, weighted)", c.Trading.Averaging))
	}

	// Advisory
	if c.Advisory.Enabled {
		if c.Advisory.APIKey == "" {
			errs = append(errs, "advisory: api_key is required when enabled")
		}
		if c.Advisory.Model == "" {
			errs = append(errs, "advisory: model must not be empty")
		}
	}

	// Store
	backend := strings.ToLower(c.Store.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: memory, sqlite, postgres, redis, s3)", c.Store.Backend))
	}
	switch backend {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store: sqlite_path must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr is required for the redis store backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Redis
	if c.Redis.Addr != "" {
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration < time.Second {
			errs = append(errs, "redis: lock_ttl must be at least 1s")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkAddress(errs []string, field, value string, required bool) []string {
	switch {
	case value == "":
		if required {
			errs = append(errs, field+" must not be empty")
		}
	case !common.IsHexAddress(value):
		errs = append(errs, fmt.Sprintf("%s %q is not a hex address", field, value))
	}
	return errs
}
