package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

var (
	asset = common.HexToAddress("0xa5d0")
	owner = common.HexToAddress("0x1111")
	src   = common.HexToAddress("0xa001")
	dst   = common.HexToAddress("0xb001")
	slot  = common.HexToAddress("0x5107")
)

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateAsset(ctx, domain.Asset{Address: asset, Symbol: "USDC", Decimals: 6}))
	require.NoError(t, s.CreateAccount(ctx, domain.TokenAccount{Address: src, Owner: owner, Asset: asset}))
	require.NoError(t, s.CreateAccount(ctx, domain.TokenAccount{Address: dst, Owner: slot, Asset: asset}))
	require.NoError(t, s.Mint(ctx, src, 500))
	return s
}

func transfer(amount uint64) domain.Transfer {
	return domain.Transfer{From: src, To: dst, Asset: asset, Amount: amount, Decimals: 6, Authority: owner}
}

func TestAtomicCommits(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.CreateAuctionState(ctx, domain.AuctionState{Slot: slot, MinimumBid: 1}); err != nil {
			return err
		}
		return tx.Ledger().Transfer(ctx, transfer(200))
	})
	require.NoError(t, err)

	st, err := s.GetAuctionState(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.MinimumBid)
	a, err := s.GetAccount(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), a.Balance)
}

func TestAtomicRollsBack(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		require.NoError(t, tx.CreateBid(ctx, domain.Bid{Slot: slot, Amount: 1}))
		require.NoError(t, tx.Ledger().Transfer(ctx, transfer(100)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetBid(ctx, slot)
	require.ErrorIs(t, err, domain.ErrNotFound)
	a, err := s.GetAccount(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), a.Balance)
}

func TestTransferHook(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	var seen []domain.Transfer
	s.SetTransferHook(func(tr domain.Transfer) error {
		seen = append(seen, tr)
		if tr.Amount > 100 {
			return domain.ErrInsufficientFunds
		}
		return nil
	})

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Transfer(ctx, transfer(50))
	})
	require.NoError(t, err)
	err = s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Transfer(ctx, transfer(150))
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Len(t, seen, 2)

	a, err := s.GetAccount(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), a.Balance)
}

func TestTransferUnknownAccount(t *testing.T) {
	s := seeded(t)
	tr := transfer(1)
	tr.To = common.HexToAddress("0xdead")
	err := s.Atomic(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Transfer(ctx, tr)
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordConflicts(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.ErrorIs(t, s.CreateAsset(ctx, domain.Asset{Address: asset}), domain.ErrAlreadyExists)
	require.ErrorIs(t, s.CreateAccount(ctx, domain.TokenAccount{Address: src, Asset: asset}), domain.ErrAlreadyExists)
	require.ErrorIs(t, s.CreateAccount(ctx, domain.TokenAccount{Address: common.HexToAddress("0xc001"), Asset: common.HexToAddress("0xbad")}), domain.ErrNotFound)
	require.ErrorIs(t, s.Mint(ctx, common.HexToAddress("0xdead"), 1), domain.ErrNotFound)

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.PutBid(ctx, domain.Bid{Slot: slot})
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	err = s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.DeleteBid(ctx, slot)
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListBidsFilters(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	auction := common.HexToAddress("0xa0c7")
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		for i := 0; i < 4; i++ {
			b := domain.Bid{
				Slot:      common.BigToAddress(big.NewInt(int64(i + 1))),
				Auction:   auction,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
				Active:    i%2 == 0,
			}
			if err := tx.CreateBid(ctx, b); err != nil {
				return err
			}
		}
		return tx.CreateBid(ctx, domain.Bid{Slot: slot, Auction: common.HexToAddress("0x0001"), Active: true})
	})
	require.NoError(t, err)

	all, err := s.ListBids(ctx, domain.ListOpts{Auction: auction})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].CreatedAt.Before(all[i].CreatedAt))
	}

	active, err := s.ListBids(ctx, domain.ListOpts{Auction: auction, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	since := base.Add(90 * time.Minute)
	until := base.Add(150 * time.Minute)
	window, err := s.ListBids(ctx, domain.ListOpts{Auction: auction, Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, base.Add(2*time.Hour), window[0].CreatedAt)

	page, err := s.ListBids(ctx, domain.ListOpts{Auction: auction, Offset: 3, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := s.ListBids(ctx, domain.ListOpts{Auction: auction, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
