// Package config defines the auction daemon configuration and its
// validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by AUCTION_* environment variables.
type Config struct {
	Auction   AuctionConfig  `toml:"auction"`
	Store     StoreConfig    `toml:"store"`
	Postgres  PostgresConfig `toml:"postgres"`
	Redis     RedisConfig    `toml:"redis"`
	S3        S3Config       `toml:"s3"`
	Snapshot  SnapshotConfig `toml:"snapshot"`
	Server    ServerConfig   `toml:"server"`
	Notify    NotifyConfig   `toml:"notify"`
	Dev       DevConfig      `toml:"dev"`
	Mode      string         `toml:"mode"`
	LogLevel  string         `toml:"log_level"`
	LogFormat string         `toml:"log_format"`
}

// AuctionConfig identifies the deployed auction.
type AuctionConfig struct {
	// ProgramID seeds every derived slot address.
	ProgramID string `toml:"program_id"`
	// Asset, Treasury and MinimumBid are only read by dev initialization;
	// in production the agent initializes through the API.
	Asset      string `toml:"asset"`
	Treasury   string `toml:"treasury"`
	MinimumBid string `toml:"minimum_bid"`
	// BidDeposit is the storage deposit recorded on each new bid.
	BidDeposit    uint64 `toml:"bid_deposit"`
	SlotCacheSize int    `toml:"slot_cache_size"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // memory | postgres
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
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled the event
// bus, locks and replay guard run in-process.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SnapshotConfig controls the periodic export to S3 (mode full only).
type SnapshotConfig struct {
	Enabled            bool     `toml:"enabled"`
	Interval           duration `toml:"interval"`
	MultipartThreshold int64    `toml:"multipart_threshold"`
	PartSize           int64    `toml:"part_size"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port             int      `toml:"port"`
	CORSOrigins      []string `toml:"cors_origins"`
	APIKey           string   `toml:"api_key"`
	SignatureMaxSkew duration `toml:"signature_max_skew"`
	RateLimit        int      `toml:"rate_limit"`
	RateLimitWindow  duration `toml:"rate_limit_window"`
	ReplayCacheSize  int      `toml:"replay_cache_size"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Symbol            string   `toml:"symbol"`
	QueueSize         int      `toml:"queue_size"`
}

// DevConfig seeds the memory backend so the daemon is usable without an
// external ledger.
type DevConfig struct {
	Seed     bool         `toml:"seed"`
	Symbol   string       `toml:"symbol"`
	Decimals int          `toml:"decimals"`
	Accounts []DevAccount `toml:"accounts"`
	// InitializeAgent, when set, initializes the auction at startup with
	// this address as agent.
	InitializeAgent string `toml:"initialize_agent"`
}

// DevAccount is a seeded token account of the auction asset.
type DevAccount struct {
	Address string `toml:"address"`
	Owner   string `toml:"owner"`
	Balance string `toml:"balance"`
}

// duration wraps time.Duration for TOML string decoding ("5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values in
// config.example.toml.
func Defaults() Config {
	return Config{
		Auction: AuctionConfig{
			ProgramID:     "0x00000000000000000000000000000000000a11ce",
			MinimumBid:    "1",
			BidDeposit:    2_039_280,
			SlotCacheSize: 4096,
		},
		Store: StoreConfig{Backend: "memory"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auction",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auction-snapshots",
			ForcePathStyle: true,
		},
		Snapshot: SnapshotConfig{
			Interval:           duration{5 * time.Minute},
			MultipartThreshold: 8 << 20,
			PartSize:           5 << 20,
		},
		Server: ServerConfig{
			Port:             8000,
			CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
			SignatureMaxSkew: duration{30 * time.Second},
			RateLimit:        20,
			RateLimitWindow:  duration{time.Second},
			ReplayCacheSize:  100_000,
		},
		Notify: NotifyConfig{
			Events:    []string{string(domain.EventBidSettled)},
			Symbol:    "USDC",
			QueueSize: 256,
		},
		Dev: DevConfig{
			Symbol:   "USDC",
			Decimals: int(domain.AssetDecimals),
		},
		Mode:      "server",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

var validModes = map[string]bool{
	"server": true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validEventKinds = map[string]bool{
	string(domain.EventBidPlaced):    true,
	string(domain.EventBidUpdated):   true,
	string(domain.EventBidWithdrawn): true,
	string(domain.EventBidSettled):   true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	addr := func(field, v string, required bool) {
		if v == "" && !required {
			return
		}
		if !common.IsHexAddress(v) {
			errs = append(errs, fmt.Sprintf("%s: %q is not a hex address", field, v))
		}
	}

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: json, text)", c.LogFormat))
	}

	// Auction
	addr("auction: program_id", c.Auction.ProgramID, true)
	addr("auction: asset", c.Auction.Asset, false)
	addr("auction: treasury", c.Auction.Treasury, false)
	if _, err := domain.ParseAmount(c.Auction.MinimumBid); err != nil {
		errs = append(errs, "auction: minimum_bid: "+err.Error())
	}
	if c.Auction.SlotCacheSize < 1 {
		errs = append(errs, "auction: slot_cache_size must be >= 1")
	}

	// Store
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: memory, postgres)", c.Store.Backend))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Snapshot
	if c.Snapshot.Enabled {
		if strings.ToLower(c.Mode) != "full" {
			errs = append(errs, "snapshot: requires mode full")
		}
		if c.Snapshot.Interval.Duration <= 0 {
			errs = append(errs, "snapshot: interval must be > 0")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when snapshots are enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when snapshots are enabled")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.SignatureMaxSkew.Duration <= 0 {
		errs = append(errs, "server: signature_max_skew must be > 0")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
		errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
	}
	if !c.Redis.Enabled && c.Server.ReplayCacheSize < 1 {
		errs = append(errs, "server: replay_cache_size must be >= 1 without redis")
	}

	// Notify
	for _, e := range c.Notify.Events {
		if !validEventKinds[e] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", e))
		}
	}

	// Dev
	if c.Dev.Seed {
		if c.Store.Backend != "memory" {
			errs = append(errs, "dev: seed requires the memory backend")
		}
		addr("auction: asset", c.Auction.Asset, true)
		if c.Dev.Decimals < 0 || c.Dev.Decimals > 255 {
			errs = append(errs, "dev: decimals must be 0-255")
		}
		for i, a := range c.Dev.Accounts {
			addr(fmt.Sprintf("dev: accounts[%d].address", i), a.Address, true)
			addr(fmt.Sprintf("dev: accounts[%d].owner", i), a.Owner, true)
			if _, err := domain.ParseAmount(a.Balance); err != nil {
				errs = append(errs, fmt.Sprintf("dev: accounts[%d].balance: %v", i, err))
			}
		}
	}
	if c.Dev.InitializeAgent != "" {
		addr("dev: initialize_agent", c.Dev.InitializeAgent, true)
		addr("auction: asset", c.Auction.Asset, true)
		addr("auction: treasury", c.Auction.Treasury, true)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
