package auction

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/store/memory"
)

var (
	program = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	usdc    = common.HexToAddress("0x000000000000000000000000000000000000a5d0")
	agent   = common.HexToAddress("0x000000000000000000000000000000000000a9e7")
	alice   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol   = common.HexToAddress("0x3333333333333333333333333333333333333333")

	treasury = common.HexToAddress("0x000000000000000000000000000000000000fee0")
	aliceAcc = common.HexToAddress("0x000000000000000000000000000000000000a001")
	bobAcc   = common.HexToAddress("0x000000000000000000000000000000000000b001")
	carolAcc = common.HexToAddress("0x000000000000000000000000000000000000c001")
)

const startingBalance = 1_000

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *captureSink) Emit(_ context.Context, evt domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *captureSink) kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

func (s *captureSink) last() domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *Service
	clock *fixedClock
	sink  *captureSink
}

// newLedger seeds a 6-decimal asset, the agent's treasury and funded
// accounts for alice, bob and carol.
func newLedger(t *testing.T, decimals uint8) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.CreateAsset(ctx, domain.Asset{Address: usdc, Symbol: "USDC", Decimals: decimals}))
	for owner, acct := range map[domain.Address]domain.Address{
		agent: treasury,
		alice: aliceAcc,
		bob:   bobAcc,
		carol: carolAcc,
	} {
		require.NoError(t, st.CreateAccount(ctx, domain.TokenAccount{Address: acct, Owner: owner, Asset: usdc}))
	}
	for _, acct := range []domain.Address{aliceAcc, bobAcc, carolAcc} {
		require.NoError(t, st.Mint(ctx, acct, startingBalance))
	}
	return st
}

func newService(st *memory.Store) (*Service, *fixedClock, *captureSink) {
	clock := &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	sink := &captureSink{}
	svc := NewService(st, sink, Config{Program: program, BidDeposit: 2_039_280, SlotCacheSize: 64}, discardLogger(), WithClock(clock))
	return svc, clock, sink
}

// newHarness returns an initialized auction with the given floor.
func newHarness(t *testing.T, minimumBid uint64) *harness {
	t.Helper()
	st := newLedger(t, domain.AssetDecimals)
	svc, clock, sink := newService(st)
	h := &harness{t: t, ctx: context.Background(), store: st, svc: svc, clock: clock, sink: sink}
	_, err := svc.Initialize(h.ctx, agent, InitParams{Asset: usdc, Treasury: treasury, MinimumBid: minimumBid})
	require.NoError(t, err)
	return h
}

func (h *harness) balance(acct domain.Address) uint64 {
	h.t.Helper()
	a, err := h.store.GetAccount(h.ctx, acct)
	require.NoError(h.t, err)
	return a.Balance
}

func (h *harness) escrow() uint64 {
	h.t.Helper()
	b, err := h.svc.EscrowBalance(h.ctx)
	require.NoError(h.t, err)
	return b
}

func (h *harness) state() domain.AuctionState {
	h.t.Helper()
	st, err := h.svc.State(h.ctx)
	require.NoError(h.t, err)
	return st
}

func (h *harness) bid(bidder domain.Address) domain.Bid {
	h.t.Helper()
	b, err := h.svc.Bid(h.ctx, bidder)
	require.NoError(h.t, err)
	return b
}

func (h *harness) open(bidder, acct domain.Address, amount uint64) domain.Bid {
	h.t.Helper()
	b, err := h.svc.OpenBid(h.ctx, bidder, acct, amount)
	require.NoError(h.t, err)
	return b
}

func (h *harness) requireInvariants() InvariantReport {
	h.t.Helper()
	rep, err := h.svc.CheckInvariants(h.ctx)
	require.NoError(h.t, err)
	require.True(h.t, rep.OK, "violations: %v", rep.Violations)
	return rep
}
