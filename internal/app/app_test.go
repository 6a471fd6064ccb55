package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/config"
	"github.com/alanyoungcy/sealedpool/internal/crypto"
	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/events"
)

// Second hardhat development key; owns the seeded 0x...a001 account.
const bidderKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadExample(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("../../config.example.toml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func wireDev(t *testing.T, cfg *config.Config) (*App, *Dependencies, *runtime) {
	t.Helper()
	ctx := context.Background()
	a := New(cfg, testLogger())

	deps, cleanup, err := Wire(ctx, cfg, a.logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	rt := a.newRuntime(deps)
	require.NoError(t, seedDev(ctx, cfg, deps.LedgerAdmin, rt.svc, a.logger))
	return a, deps, rt
}

func TestWireMemoryDefaults(t *testing.T) {
	cfg := loadExample(t)
	_, deps, rt := wireDev(t, cfg)

	assert.Nil(t, deps.AuditStore)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.BlobWriter)
	assert.IsType(t, &events.LocalBus{}, deps.EventBus)
	assert.Empty(t, deps.Checks)
	assert.Nil(t, rt.notifier, "no senders configured")

	state, err := rt.svc.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(cfg.Dev.InitializeAgent), state.Agent)
	assert.EqualValues(t, 1_000_000, state.MinimumBid)

	acct, err := deps.LedgerAdmin.(interface {
		GetAccount(context.Context, domain.Address) (domain.TokenAccount, error)
	}).GetAccount(context.Background(), common.HexToAddress("0xa001"))
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, acct.Balance)
}

func TestSeedDevToleratesInitializedAuction(t *testing.T) {
	cfg := loadExample(t)
	a, deps, rt := wireDev(t, cfg)

	again := *cfg
	again.Dev.Seed = false
	require.NoError(t, seedDev(context.Background(), &again, deps.LedgerAdmin, rt.svc, a.logger))
}

func TestSeedDevTwiceDoesNotMintAgain(t *testing.T) {
	cfg := loadExample(t)
	require.True(t, cfg.Dev.Seed)
	a, deps, rt := wireDev(t, cfg)

	require.NoError(t, seedDev(context.Background(), cfg, deps.LedgerAdmin, rt.svc, a.logger))

	acct, err := deps.LedgerAdmin.(interface {
		GetAccount(context.Context, domain.Address) (domain.TokenAccount, error)
	}).GetAccount(context.Background(), common.HexToAddress("0xa001"))
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, acct.Balance)
}

func TestRoutesServeSignedBid(t *testing.T) {
	cfg := loadExample(t)
	a, deps, rt := wireDev(t, cfg)
	h := a.routes(deps, rt, nil)

	bidder, err := crypto.NewSigner(bidderKey)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{"account": common.HexToAddress("0xa001").Hex(), "amount": "25"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/bids", bytes.NewReader(body))
	hdr, err := bidder.Headers(http.MethodPost, "/api/bids", time.Now().Unix(), body)
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	escrow, err := rt.svc.EscrowBalance(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 25_000_000, escrow)

	msgs, err := deps.EventBus.StreamRead(context.Background(), events.Stream, "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	evt, err := events.Decode(msgs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, domain.EventBidPlaced, evt.Kind)
	assert.Equal(t, bidder.Address(), evt.Bidder)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auction_operations_total{op="open_bid",outcome="ok"} 1`)
}

type recordingAudit struct{ opts domain.ListOpts }

func (r *recordingAudit) Log(context.Context, string, map[string]any) error { return nil }

func (r *recordingAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	r.opts = opts
	return nil, nil
}

func TestAuditRouteNeedsAuditStore(t *testing.T) {
	cfg := loadExample(t)
	cfg.Server.APIKey = ""
	a, deps, rt := wireDev(t, cfg)
	assert.Nil(t, a.handlers(deps, rt).Audit)

	audit := &recordingAudit{}
	deps.AuditStore = audit
	rec := httptest.NewRecorder()
	a.routes(deps, rt, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, rt.svc.Slots().AuctionState(), audit.opts.Auction)
	assert.Equal(t, 5, audit.opts.Limit)
}

func TestNotifierQueuedWhenSenderConfigured(t *testing.T) {
	cfg := loadExample(t)
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/webhook"
	_, _, rt := wireDev(t, cfg)
	assert.NotNil(t, rt.notifier)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := loadExample(t)
	cfg.Mode = "backtest"
	a := New(cfg, testLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
