package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) over the
// defaults, loads a .env file if present, and applies AUCTION_* environment
// overrides. The result is not validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from AUCTION_* variables that
// are set and non-empty, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── Auction ──
	setStr(&cfg.Auction.ProgramID, "AUCTION_PROGRAM_ID")
	setStr(&cfg.Auction.Asset, "AUCTION_ASSET")
	setStr(&cfg.Auction.Treasury, "AUCTION_TREASURY")
	setStr(&cfg.Auction.MinimumBid, "AUCTION_MINIMUM_BID")
	setUint64(&cfg.Auction.BidDeposit, "AUCTION_BID_DEPOSIT")
	setInt(&cfg.Auction.SlotCacheSize, "AUCTION_SLOT_CACHE_SIZE")

	// ── Store ──
	setStr(&cfg.Store.Backend, "AUCTION_STORE_BACKEND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AUCTION_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AUCTION_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AUCTION_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AUCTION_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AUCTION_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AUCTION_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AUCTION_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AUCTION_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AUCTION_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AUCTION_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "AUCTION_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AUCTION_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTION_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTION_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTION_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTION_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTION_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "AUCTION_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AUCTION_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUCTION_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUCTION_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AUCTION_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUCTION_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUCTION_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUCTION_S3_FORCE_PATH_STYLE")

	// ── Snapshot ──
	setBool(&cfg.Snapshot.Enabled, "AUCTION_SNAPSHOT_ENABLED")
	setDuration(&cfg.Snapshot.Interval, "AUCTION_SNAPSHOT_INTERVAL")
	setInt64(&cfg.Snapshot.MultipartThreshold, "AUCTION_SNAPSHOT_MULTIPART_THRESHOLD")
	setInt64(&cfg.Snapshot.PartSize, "AUCTION_SNAPSHOT_PART_SIZE")

	// ── Server ──
	setInt(&cfg.Server.Port, "AUCTION_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTION_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AUCTION_SERVER_API_KEY")
	setDuration(&cfg.Server.SignatureMaxSkew, "AUCTION_SERVER_SIGNATURE_MAX_SKEW")
	setInt(&cfg.Server.RateLimit, "AUCTION_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "AUCTION_SERVER_RATE_LIMIT_WINDOW")
	setInt(&cfg.Server.ReplayCacheSize, "AUCTION_SERVER_REPLAY_CACHE_SIZE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUCTION_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTION_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUCTION_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUCTION_NOTIFY_EVENTS")
	setStr(&cfg.Notify.Symbol, "AUCTION_NOTIFY_SYMBOL")
	setInt(&cfg.Notify.QueueSize, "AUCTION_NOTIFY_QUEUE_SIZE")

	// ── Dev ──
	setBool(&cfg.Dev.Seed, "AUCTION_DEV_SEED")
	setStr(&cfg.Dev.InitializeAgent, "AUCTION_DEV_INITIALIZE_AGENT")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTION_MODE")
	setStr(&cfg.LogLevel, "AUCTION_LOG_LEVEL")
	setStr(&cfg.LogFormat, "AUCTION_LOG_FORMAT")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present, non-empty and parses.

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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
