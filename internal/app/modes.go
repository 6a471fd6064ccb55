package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sealedpool/internal/auction"
	s3blob "github.com/alanyoungcy/sealedpool/internal/blob/s3"
	"github.com/alanyoungcy/sealedpool/internal/events"
	"github.com/alanyoungcy/sealedpool/internal/metrics"
	"github.com/alanyoungcy/sealedpool/internal/server"
	"github.com/alanyoungcy/sealedpool/internal/server/handler"
	"github.com/alanyoungcy/sealedpool/internal/server/ws"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// runtime holds the objects built on top of Dependencies that every mode
// shares.
type runtime struct {
	svc     *auction.Service
	metrics *metrics.Metrics
	// notifier is non-nil when a notification sender is configured; it has
	// to be driven by a goroutine.
	notifier *events.Async
}

// newRuntime assembles the event sink fanout and the auction service.
// Committed events go to the log, the event bus, the audit trail when
// Postgres is wired, and the notifier queue when a sender is configured.
func (a *App) newRuntime(deps *Dependencies) *runtime {
	rt := &runtime{metrics: metrics.New()}

	sinks := events.Fanout{
		events.NewLogSink(a.logger),
		events.NewBusSink(deps.EventBus, a.logger),
	}
	if deps.AuditStore != nil {
		sinks = append(sinks, events.NewAuditSink(deps.AuditStore, a.logger))
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		rt.notifier = events.NewAsync(deps.Notifier, a.cfg.Notify.QueueSize, a.logger)
		sinks = append(sinks, rt.notifier)
	}

	rt.svc = auction.NewService(deps.AuctionStore, sinks, auction.Config{
		Program:       common.HexToAddress(a.cfg.Auction.ProgramID),
		BidDeposit:    a.cfg.Auction.BidDeposit,
		SlotCacheSize: a.cfg.Auction.SlotCacheSize,
	}, a.logger, auction.WithRecorder(rt.metrics))
	return rt
}

// ServerMode serves the HTTP API and, when configured, delivers operator
// notifications.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, rt *runtime) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startNotifier(ctx, g, rt)
	a.startHTTPServer(ctx, g, deps, rt, nil)
	return g.Wait()
}

// FullMode adds the websocket event stream and the periodic S3 snapshot
// exporter to ServerMode.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, rt *runtime) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startNotifier(ctx, g, rt)

	hub := ws.NewHub(deps.EventBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		Program:   common.HexToAddress(a.cfg.Auction.ProgramID),
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	if deps.BlobWriter != nil {
		snap := s3blob.NewSnapshotter(rt.svc, deps.BlobWriter, deps.LockManager, deps.AuditStore,
			s3blob.SnapshotConfig{
				Interval:           a.cfg.Snapshot.Interval.Duration,
				MultipartThreshold: a.cfg.Snapshot.MultipartThreshold,
				PartSize:           a.cfg.Snapshot.PartSize,
			}, a.logger)
		g.Go(func() error {
			return snap.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "snapshots disabled")
	}

	a.startHTTPServer(ctx, g, deps, rt, hub)
	return g.Wait()
}

func (a *App) startNotifier(ctx context.Context, g *errgroup.Group, rt *runtime) {
	if rt.notifier == nil {
		return
	}
	g.Go(func() error {
		return rt.notifier.Run(ctx)
	})
}

// routes builds the full HTTP handler tree. hub may be nil.
func (a *App) routes(deps *Dependencies, rt *runtime, hub *ws.Hub) http.Handler {
	return server.Routes(a.serverConfig(), a.handlers(deps, rt), a.serverDeps(deps, rt), hub, a.logger)
}

func (a *App) serverConfig() server.Config {
	return server.Config{
		Port:             a.cfg.Server.Port,
		CORSOrigins:      a.cfg.Server.CORSOrigins,
		APIKey:           a.cfg.Server.APIKey,
		SignatureMaxSkew: a.cfg.Server.SignatureMaxSkew.Duration,
		RateLimit:        a.cfg.Server.RateLimit,
		RateLimitWindow:  a.cfg.Server.RateLimitWindow.Duration,
	}
}

func (a *App) handlers(deps *Dependencies, rt *runtime) server.Handlers {
	h := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode, deps.Checks, a.logger),
		Auction: handler.NewAuctionHandler(rt.svc, a.logger),
		Bids:    handler.NewBidHandler(rt.svc, a.logger),
		Events:  handler.NewEventsHandler(deps.EventBus, a.logger),
		Metrics: rt.metrics.Handler(),
	}
	if deps.AuditStore != nil {
		h.Audit = handler.NewAuditHandler(deps.AuditStore, rt.svc.Slots().AuctionState(), a.logger)
	}
	return h
}

func (a *App) serverDeps(deps *Dependencies, rt *runtime) server.Deps {
	return server.Deps{
		Replay:  deps.ReplayGuard,
		Limiter: deps.RateLimiter,
		Observe: rt.metrics.Request,
	}
}

// startHTTPServer adds the HTTP server to g and shuts it down gracefully
// once ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt *runtime, hub *ws.Hub) {
	cfg := a.serverConfig()
	srv := server.NewServer(cfg, a.handlers(deps, rt), a.serverDeps(deps, rt), hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", cfg.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
