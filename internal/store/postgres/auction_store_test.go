package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// openTestClient connects to the database named by AUCTION_TEST_POSTGRES_DSN
// and applies migrations. Tests using it are skipped when it is unset.
func openTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("AUCTION_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AUCTION_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))

	_, err = c.Pool().Exec(ctx, `TRUNCATE bids, auction_state, token_accounts, assets, audit_log`)
	require.NoError(t, err)
	return c
}

func TestAuctionStoreLedger(t *testing.T) {
	c := openTestClient(t)
	s := NewAuctionStore(c.Pool())
	ctx := context.Background()

	asset := common.HexToAddress("0xa5d0")
	owner := common.HexToAddress("0x1111")
	src := common.HexToAddress("0xa001")
	dst := common.HexToAddress("0xb001")

	require.NoError(t, s.CreateAsset(ctx, domain.Asset{Address: asset, Symbol: "USDC", Decimals: 6}))
	require.ErrorIs(t, s.CreateAsset(ctx, domain.Asset{Address: asset, Symbol: "USDC", Decimals: 6}), domain.ErrAlreadyExists)
	require.NoError(t, s.CreateAccount(ctx, domain.TokenAccount{Address: src, Owner: owner, Asset: asset}))
	require.NoError(t, s.CreateAccount(ctx, domain.TokenAccount{Address: dst, Owner: dst, Asset: asset}))
	require.NoError(t, s.Mint(ctx, src, 1_000))

	tr := domain.Transfer{From: src, To: dst, Asset: asset, Amount: 400, Decimals: 6, Authority: owner}
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Transfer(ctx, tr)
	}))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Ledger().Transfer(ctx, tr); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := s.GetAccount(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), a.Balance)
	b, err := s.GetAccount(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), b.Balance)
	assert.Equal(t, owner, a.Owner)
}

func TestAuctionStoreRecords(t *testing.T) {
	c := openTestClient(t)
	s := NewAuctionStore(c.Pool())
	ctx := context.Background()

	asset := common.HexToAddress("0xa5d0")
	slot := common.HexToAddress("0x5107")
	escrow := common.HexToAddress("0xe5c0")
	bidSlot := common.HexToAddress("0xb1d0")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.CreateAsset(ctx, domain.Asset{Address: asset, Symbol: "USDC", Decimals: 6}))
	require.NoError(t, s.CreateAccount(ctx, domain.TokenAccount{Address: escrow, Owner: slot, Asset: asset}))

	st := domain.AuctionState{Slot: slot, Agent: slot, Asset: asset, Treasury: escrow, Escrow: escrow, MinimumBid: 100, CreatedAt: now}
	bid := domain.Bid{Slot: bidSlot, Auction: slot, Bidder: common.HexToAddress("0x2222"), Amount: 250, Deposit: 7, CreatedAt: now, UpdatedAt: now, Active: true}

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.CreateAuctionState(ctx, st); err != nil {
			return err
		}
		return tx.CreateBid(ctx, bid)
	}))

	gotState, err := s.GetAuctionState(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, st, gotState)
	gotBid, err := s.GetBid(ctx, bidSlot)
	require.NoError(t, err)
	assert.Equal(t, bid, gotBid)

	active, err := s.ListBids(ctx, domain.ListOpts{Auction: slot, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.DeleteBid(ctx, bidSlot)
	}))
	_, err = s.GetBid(ctx, bidSlot)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditStoreFiltersByAuction(t *testing.T) {
	c := openTestClient(t)
	s := NewAuditStore(c.Pool())
	ctx := context.Background()
	a := common.HexToAddress("0xaaaa")
	b := common.HexToAddress("0xbbbb")

	require.NoError(t, s.Log(ctx, "bid_placed", map[string]any{"auction": a.Hex(), "amount": "1"}))
	require.NoError(t, s.Log(ctx, "bid_placed", map[string]any{"auction": b.Hex(), "amount": "2"}))

	entries, err := s.List(ctx, domain.ListOpts{Auction: a})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bid_placed", entries[0].Event)
	assert.Equal(t, "1", entries[0].Detail["amount"])
}
