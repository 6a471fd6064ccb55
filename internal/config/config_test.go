package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Dev.Seed)
	require.Len(t, cfg.Dev.Accounts, 2)
	assert.Equal(t, "1000", cfg.Dev.Accounts[1].Balance)
	assert.Equal(t, 30*time.Second, cfg.Server.SignatureMaxSkew.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Snapshot.Interval.Duration)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "full"
[server]
port = 9100
[snapshot]
enabled = true
interval = "90s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Snapshot.Interval.Duration)
	assert.Equal(t, "memory", cfg.Store.Backend, "unset keys keep defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "[server]\nprot = 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.prot")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUCTION_MODE", "full")
	t.Setenv("AUCTION_SERVER_PORT", "7000")
	t.Setenv("AUCTION_BID_DEPOSIT", "42")
	t.Setenv("AUCTION_REDIS_ENABLED", "true")
	t.Setenv("AUCTION_SERVER_SIGNATURE_MAX_SKEW", "1m")
	t.Setenv("AUCTION_NOTIFY_EVENTS", "bid_placed, bid_settled,")
	t.Setenv("AUCTION_SERVER_RATE_LIMIT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, uint64(42), cfg.Auction.BidDeposit)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Server.SignatureMaxSkew.Duration)
	assert.Equal(t, []string{"bid_placed", "bid_settled"}, cfg.Notify.Events)
	assert.Equal(t, 20, cfg.Server.RateLimit, "unparsable values are ignored")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogFormat = "xml"
	cfg.Auction.ProgramID = "zz"
	cfg.Auction.MinimumBid = "1.0000001"
	cfg.Store.Backend = "postgres"
	cfg.Postgres.Host = ""
	cfg.Snapshot.Enabled = true
	cfg.Notify.Events = []string{"order_filled"}
	cfg.Dev.Seed = true

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_format "xml"`,
		"auction: program_id",
		"auction: minimum_bid",
		"postgres: host",
		"snapshot: requires mode full",
		`notify: unknown event "order_filled"`,
		"dev: seed requires the memory backend",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateDevAccounts(t *testing.T) {
	cfg := Defaults()
	cfg.Auction.Asset = "0x000000000000000000000000000000000000a5d0"
	cfg.Dev.Seed = true
	cfg.Dev.Accounts = []DevAccount{{Address: "0x01", Owner: "bad", Balance: "-1"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "accounts[0].owner"))
	assert.True(t, strings.Contains(err.Error(), "accounts[0].balance"))
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.Server.APIKey = "key"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.Postgres.DSN, "empty secrets stay empty")
	assert.Equal(t, "pw", cfg.Postgres.Password, "original untouched")

	out.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}
