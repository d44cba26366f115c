package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SNIPER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SNIPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "SNIPER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "SNIPER_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.RouterAddress, "SNIPER_CHAIN_ROUTER_ADDRESS")
	setStr(&cfg.Chain.BaseTokenAddress, "SNIPER_CHAIN_BASE_TOKEN_ADDRESS")
	setStr(&cfg.Chain.BridgeTokenAddress, "SNIPER_CHAIN_BRIDGE_TOKEN_ADDRESS")
	setFloat64(&cfg.Chain.GasPriceGwei, "SNIPER_CHAIN_GAS_PRICE_GWEI")
	setUint64(&cfg.Chain.SwapGasLimit, "SNIPER_CHAIN_SWAP_GAS_LIMIT")
	setUint64(&cfg.Chain.ApproveGasLimit, "SNIPER_CHAIN_APPROVE_GAS_LIMIT")
	setDuration(&cfg.Chain.Deadline, "SNIPER_CHAIN_DEADLINE")
	setDuration(&cfg.Chain.ReceiptTimeout, "SNIPER_CHAIN_RECEIPT_TIMEOUT")
	setDuration(&cfg.Chain.ReceiptPollInterval, "SNIPER_CHAIN_RECEIPT_POLL_INTERVAL")
	setBool(&cfg.Chain.FeeOnTransfer, "SNIPER_CHAIN_FEE_ON_TRANSFER")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SNIPER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.Address, "SNIPER_WALLET_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SNIPER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SNIPER_WALLET_KEY_PASSWORD")

	// ── Trading ──
	setFloat64(&cfg.Trading.BuyAmount, "SNIPER_TRADING_BUY_AMOUNT")
	setFloat64(&cfg.Trading.ProfitMarginPct, "SNIPER_TRADING_PROFIT_MARGIN_PCT")
	setFloat64(&cfg.Trading.StopLossPct, "SNIPER_TRADING_STOP_LOSS_PCT")
	setDuration(&cfg.Trading.MonitorInterval, "SNIPER_TRADING_MONITOR_INTERVAL")
	setDuration(&cfg.Trading.DiscoveryInterval, "SNIPER_TRADING_DISCOVERY_INTERVAL")
	setDuration(&cfg.Trading.ErrorBackoff, "SNIPER_TRADING_ERROR_BACKOFF")
	setInt(&cfg.Trading.EntryQuoteAttempts, "SNIPER_TRADING_ENTRY_QUOTE_ATTEMPTS")
	setStr(&cfg.Trading.Averaging, "SNIPER_TRADING_AVERAGING")

	// ── Advisory ──
	setBool(&cfg.Advisory.Enabled, "SNIPER_ADVISORY_ENABLED")
	setStr(&cfg.Advisory.APIKey, "SNIPER_ADVISORY_API_KEY")
	setStr(&cfg.Advisory.APIKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.Advisory.Model, "SNIPER_ADVISORY_MODEL")
	setStr(&cfg.Advisory.BaseURL, "SNIPER_ADVISORY_BASE_URL")
	setFloat64(&cfg.Advisory.Temperature, "SNIPER_ADVISORY_TEMPERATURE")

	// ── Store ──
	setStr(&cfg.Store.Backend, "SNIPER_STORE_BACKEND")
	setStr(&cfg.Store.SQLitePath, "SNIPER_STORE_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SNIPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SNIPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SNIPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SNIPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SNIPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SNIPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SNIPER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SNIPER_POSTGRES_POOL_MAX_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SNIPER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SNIPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SNIPER_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SNIPER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "SNIPER_REDIS_LOCK_TTL")
	setStr(&cfg.Redis.EventsChannel, "SNIPER_REDIS_EVENTS_CHANNEL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SNIPER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SNIPER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SNIPER_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "SNIPER_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "SNIPER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SNIPER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SNIPER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SNIPER_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SNIPER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SNIPER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SNIPER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SNIPER_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SNIPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SNIPER_LOG_LEVEL")
	setStr(&cfg.LogFile, "SNIPER_LOG_FILE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
