package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sealedpool/internal/auction"
	s3blob "github.com/alanyoungcy/sealedpool/internal/blob/s3"
	"github.com/alanyoungcy/sealedpool/internal/cache/local"
	"github.com/alanyoungcy/sealedpool/internal/cache/redis"
	"github.com/alanyoungcy/sealedpool/internal/config"
	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/events"
	"github.com/alanyoungcy/sealedpool/internal/notify"
	"github.com/alanyoungcy/sealedpool/internal/server/handler"
	"github.com/alanyoungcy/sealedpool/internal/store/memory"
	"github.com/alanyoungcy/sealedpool/internal/store/postgres"
)

// localStreamCapacity bounds the in-process event stream.
const localStreamCapacity = 10000

// Dependencies bundles every concrete dependency the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	AuctionStore domain.AuctionStore
	LedgerAdmin  domain.LedgerAdmin
	AuditStore   domain.AuditStore // nil with the memory backend

	// Coordination
	EventBus    domain.EventBus
	LockManager domain.LockManager
	ReplayGuard domain.ReplayGuard
	RateLimiter domain.RateLimiter // nil without redis

	// Blob storage, set only when snapshots are enabled.
	BlobWriter domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier

	// Health checks keyed by dependency name.
	Checks map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Checks: make(map[string]handler.Pinger)}

	// --- Store ---
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		store := postgres.NewAuctionStore(pgClient.Pool())
		deps.AuctionStore = store
		deps.LedgerAdmin = store
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
		deps.Checks["postgres"] = pgClient.Ping
	default:
		store := memory.New()
		deps.AuctionStore = store
		deps.LedgerAdmin = store
	}

	// --- Coordination: redis when enabled, in-process otherwise ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		locks := redis.NewLockManager(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
		deps.LockManager = locks
		deps.ReplayGuard = locks
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		guard, err := local.NewReplayGuard(cfg.Server.ReplayCacheSize)
		if err != nil {
			return fail("replay guard", err)
		}
		deps.EventBus = events.NewLocalBus(localStreamCapacity)
		deps.LockManager = local.NewLockManager()
		deps.ReplayGuard = guard
	}

	// --- S3 blob storage (snapshots only) ---
	if cfg.Snapshot.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.Checks["s3"] = s3Client.Health
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Symbol, logger)

	return deps, cleanup, nil
}

// seedDev creates the configured asset and token accounts and, when an
// initialize agent is configured, initializes the auction as that agent.
// Anything already seeded is left untouched, so restarting against a
// persistent store does not mint twice.
func seedDev(ctx context.Context, cfg *config.Config, admin domain.LedgerAdmin, svc *auction.Service, logger *slog.Logger) error {
	if cfg.Dev.Seed {
		asset := domain.Asset{
			Address:  common.HexToAddress(cfg.Auction.Asset),
			Symbol:   cfg.Dev.Symbol,
			Decimals: uint8(cfg.Dev.Decimals),
		}
		if err := admin.CreateAsset(ctx, asset); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("seed asset: %w", err)
		}
		for _, a := range cfg.Dev.Accounts {
			acct := domain.TokenAccount{
				Address: common.HexToAddress(a.Address),
				Owner:   common.HexToAddress(a.Owner),
				Asset:   asset.Address,
			}
			err := admin.CreateAccount(ctx, acct)
			if errors.Is(err, domain.ErrAlreadyExists) {
				logger.DebugContext(ctx, "dev account already seeded", slog.String("account", acct.Address.Hex()))
				continue
			}
			if err != nil {
				return fmt.Errorf("seed account %s: %w", a.Address, err)
			}
			amount, err := domain.ParseAmount(a.Balance)
			if err != nil {
				return fmt.Errorf("seed account %s: %w", a.Address, err)
			}
			if amount > 0 {
				if err := admin.Mint(ctx, acct.Address, amount); err != nil {
					return fmt.Errorf("seed mint %s: %w", a.Address, err)
				}
			}
			logger.InfoContext(ctx, "dev account seeded",
				slog.String("account", acct.Address.Hex()),
				slog.String("owner", acct.Owner.Hex()),
				slog.String("balance", domain.FormatAmount(amount)),
			)
		}
	}

	if cfg.Dev.InitializeAgent == "" {
		return nil
	}
	minimum, err := domain.ParseAmount(cfg.Auction.MinimumBid)
	if err != nil {
		return fmt.Errorf("seed minimum bid: %w", err)
	}
	agent := common.HexToAddress(cfg.Dev.InitializeAgent)
	state, err := svc.Initialize(ctx, agent, auction.InitParams{
		Asset:      common.HexToAddress(cfg.Auction.Asset),
		Treasury:   common.HexToAddress(cfg.Auction.Treasury),
		MinimumBid: minimum,
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyInitialized):
		logger.InfoContext(ctx, "auction already initialized")
		return nil
	case err != nil:
		return fmt.Errorf("seed initialize: %w", err)
	}
	logger.InfoContext(ctx, "auction initialized",
		slog.String("agent", state.Agent.Hex()),
		slog.String("minimum_bid", domain.FormatAmount(state.MinimumBid)),
	)
	return nil
}
