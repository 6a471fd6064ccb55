package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// InitParams configures a new auction.
type InitParams struct {
	Asset      domain.Address
	Treasury   domain.Address
	MinimumBid uint64
}

// Initialize creates the auction state with caller as agent and opens the
// escrow token account under the auction's custodial authority. The asset
// must have AssetDecimals decimals and the treasury must be a token account
// of that asset owned by the caller.
func (s *Service) Initialize(ctx context.Context, caller domain.Address, p InitParams) (domain.AuctionState, error) {
	var state domain.AuctionState
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.AuctionState(ctx, s.slots.AuctionState()); err == nil {
			return domain.ErrAlreadyInitialized
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("auction: load state: %w", err)
		}

		l := tx.Ledger()
		asset, err := l.Asset(ctx, p.Asset)
		if err != nil {
			return fmt.Errorf("auction: asset %s: %w", p.Asset.Hex(), err)
		}
		if asset.Decimals != domain.AssetDecimals {
			return domain.ErrInvalidMintDecimals
		}

		treasury, err := l.Account(ctx, p.Treasury)
		if err != nil {
			return fmt.Errorf("auction: treasury %s: %w", p.Treasury.Hex(), err)
		}
		if treasury.Asset != p.Asset || treasury.Owner != caller {
			return fmt.Errorf("auction: treasury %s not a %s account of the agent: %w",
				p.Treasury.Hex(), p.Asset.Hex(), domain.ErrAccountMismatch)
		}

		escrow := domain.TokenAccount{
			Address: s.slots.Escrow(),
			Owner:   s.slots.AuctionState(),
			Asset:   p.Asset,
		}
		if err := l.CreateAccount(ctx, escrow); err != nil {
			return fmt.Errorf("auction: create escrow: %w", err)
		}

		st := domain.AuctionState{
			Slot:       s.slots.AuctionState(),
			Agent:      caller,
			Asset:      p.Asset,
			Treasury:   p.Treasury,
			Escrow:     escrow.Address,
			MinimumBid: p.MinimumBid,
			CreatedAt:  s.clock.Now(),
		}
		if err := tx.CreateAuctionState(ctx, st); err != nil {
			return fmt.Errorf("auction: create state: %w", err)
		}
		state = st
		return nil
	})

	attrs := []slog.Attr{
		slog.String("agent", caller.Hex()),
		slog.String("asset", p.Asset.Hex()),
		slog.Uint64("minimum_bid", p.MinimumBid),
	}
	if err != nil {
		return domain.AuctionState{}, s.finish(ctx, "initialize", err, attrs...)
	}
	return state, s.finish(ctx, "initialize", nil, attrs...)
}

// SetMinimumBid replaces the bid floor. Existing active bids are not
// re-validated; the new floor only applies to later opens and adjustments.
func (s *Service) SetMinimumBid(ctx context.Context, caller domain.Address, minimumBid uint64) (domain.AuctionState, error) {
	st, err := s.updateAsAgent(ctx, caller, func(st *domain.AuctionState) {
		st.MinimumBid = minimumBid
	})
	return st, s.finish(ctx, "set_minimum_bid", err,
		slog.String("caller", caller.Hex()), slog.Uint64("minimum_bid", minimumBid))
}

// SetAgent hands every agent capability to newAgent immediately.
func (s *Service) SetAgent(ctx context.Context, caller, newAgent domain.Address) (domain.AuctionState, error) {
	st, err := s.updateAsAgent(ctx, caller, func(st *domain.AuctionState) {
		st.Agent = newAgent
	})
	return st, s.finish(ctx, "set_agent", err,
		slog.String("caller", caller.Hex()), slog.String("new_agent", newAgent.Hex()))
}

func (s *Service) updateAsAgent(ctx context.Context, caller domain.Address, mutate func(*domain.AuctionState)) (domain.AuctionState, error) {
	var state domain.AuctionState
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		st, err := s.loadState(ctx, tx)
		if err != nil {
			return err
		}
		if caller != st.Agent {
			return domain.ErrOnlyAgent
		}
		mutate(&st)
		if err := tx.PutAuctionState(ctx, st); err != nil {
			return fmt.Errorf("auction: save state: %w", err)
		}
		state = st
		return nil
	})
	if err != nil {
		return domain.AuctionState{}, err
	}
	return state, nil
}
