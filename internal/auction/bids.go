package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// OpenBid creates the caller's bid record and locks amount from source into
// escrow. source must be a token account of the auction asset owned by the
// caller.
func (s *Service) OpenBid(ctx context.Context, bidder, source domain.Address, amount uint64) (domain.Bid, error) {
	var (
		bid   domain.Bid
		state domain.AuctionState
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		st, err := s.loadState(ctx, tx)
		if err != nil {
			return err
		}

		slot := s.slots.Bid(bidder)
		if _, err := tx.Bid(ctx, slot); err == nil {
			return fmt.Errorf("auction: bid of %s: %w", bidder.Hex(), domain.ErrAlreadyExists)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("auction: bid of %s: %w", bidder.Hex(), err)
		}

		if amount < st.MinimumBid {
			return domain.ErrBidTooLow
		}
		if err := checkBidderAccount(ctx, tx.Ledger(), st, source, bidder); err != nil {
			return err
		}
		count, err := checkedAdd(st.ActiveBidCount, 1)
		if err != nil {
			return err
		}

		if err := tx.Ledger().Transfer(ctx, bidderTransfer(st, source, bidder, amount)); err != nil {
			return err
		}

		now := s.clock.Now()
		bid = domain.Bid{
			Slot:      slot,
			Auction:   st.Slot,
			Bidder:    bidder,
			Amount:    amount,
			Deposit:   s.cfg.BidDeposit,
			CreatedAt: now,
			UpdatedAt: now,
			Active:    true,
		}
		if err := tx.CreateBid(ctx, bid); err != nil {
			return fmt.Errorf("auction: create bid: %w", err)
		}

		st.ActiveBidCount = count
		if err := tx.PutAuctionState(ctx, st); err != nil {
			return fmt.Errorf("auction: save state: %w", err)
		}
		state = st
		return nil
	})

	attrs := []slog.Attr{slog.String("bidder", bidder.Hex()), slog.Uint64("amount", amount)}
	if err != nil {
		return domain.Bid{}, s.finish(ctx, "open_bid", err, attrs...)
	}
	s.recorder.ActiveBids(state.ActiveBidCount)
	s.emit(ctx, domain.EventBidPlaced, state.Slot, bidder, amount)
	return bid, s.finish(ctx, "open_bid", nil, attrs...)
}

// AdjustBid raises (change > 0) or lowers (change < 0) the caller's locked
// amount. A zero change only refreshes UpdatedAt. account is the caller's
// token account funds come from or go back to.
func (s *Service) AdjustBid(ctx context.Context, bidder, account domain.Address, change int64) (domain.Bid, error) {
	var bid domain.Bid
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		st, err := s.loadState(ctx, tx)
		if err != nil {
			return err
		}
		b, err := s.loadBid(ctx, tx, bidder)
		if err != nil {
			return err
		}
		if b.Bidder != bidder {
			return domain.ErrWrongBidder
		}
		if !b.Active {
			return domain.ErrBidNotActive
		}
		if err := checkBidderAccount(ctx, tx.Ledger(), st, account, bidder); err != nil {
			return err
		}

		switch {
		case change > 0:
			increase := uint64(change)
			amount, err := checkedAdd(b.Amount, increase)
			if err != nil {
				return err
			}
			if err := tx.Ledger().Transfer(ctx, bidderTransfer(st, account, bidder, increase)); err != nil {
				return err
			}
			b.Amount = amount

		case change < 0:
			decrease, err := magnitude(change)
			if err != nil {
				return err
			}
			amount, err := checkedSub(b.Amount, decrease)
			if err != nil {
				return domain.ErrInsufficientEscrow
			}
			if amount < st.MinimumBid {
				return domain.ErrAmountBelowMinimum
			}
			if err := tx.Ledger().Transfer(ctx, escrowTransfer(st, account, decrease)); err != nil {
				return err
			}
			b.Amount = amount
		}

		b.UpdatedAt = s.clock.Now()
		if err := tx.PutBid(ctx, b); err != nil {
			return fmt.Errorf("auction: save bid: %w", err)
		}
		bid = b
		return nil
	})

	attrs := []slog.Attr{slog.String("bidder", bidder.Hex()), slog.Int64("change", change)}
	if err != nil {
		return domain.Bid{}, s.finish(ctx, "adjust_bid", err, attrs...)
	}
	s.emit(ctx, domain.EventBidUpdated, bid.Auction, bidder, bid.Amount)
	return bid, s.finish(ctx, "adjust_bid", nil, append(attrs, slog.Uint64("amount", bid.Amount))...)
}

// WithdrawBid returns the caller's whole locked amount to account and
// deactivates the bid. The record stays, with its amount, until CloseBid.
func (s *Service) WithdrawBid(ctx context.Context, bidder, account domain.Address) (domain.Bid, error) {
	var (
		bid   domain.Bid
		state domain.AuctionState
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		st, err := s.loadState(ctx, tx)
		if err != nil {
			return err
		}
		b, err := s.loadBid(ctx, tx, bidder)
		if err != nil {
			return err
		}
		if b.Bidder != bidder {
			return domain.ErrWrongBidder
		}
		if !b.Active {
			return domain.ErrBidNotActive
		}
		if err := checkBidderAccount(ctx, tx.Ledger(), st, account, bidder); err != nil {
			return err
		}
		count, err := checkedSub(st.ActiveBidCount, 1)
		if err != nil {
			return err
		}

		if err := tx.Ledger().Transfer(ctx, escrowTransfer(st, account, b.Amount)); err != nil {
			return err
		}

		b.Active = false
		if err := tx.PutBid(ctx, b); err != nil {
			return fmt.Errorf("auction: save bid: %w", err)
		}
		st.ActiveBidCount = count
		if err := tx.PutAuctionState(ctx, st); err != nil {
			return fmt.Errorf("auction: save state: %w", err)
		}
		bid, state = b, st
		return nil
	})

	attrs := []slog.Attr{slog.String("bidder", bidder.Hex())}
	if err != nil {
		return domain.Bid{}, s.finish(ctx, "withdraw_bid", err, attrs...)
	}
	s.recorder.ActiveBids(state.ActiveBidCount)
	s.emit(ctx, domain.EventBidWithdrawn, state.Slot, bidder, bid.Amount)
	return bid, s.finish(ctx, "withdraw_bid", nil, append(attrs, slog.Uint64("amount", bid.Amount))...)
}

// CloseBid deletes the caller's inactive bid record. The returned record
// carries the storage deposit refunded to the bidder.
func (s *Service) CloseBid(ctx context.Context, bidder domain.Address) (domain.Bid, error) {
	var bid domain.Bid
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		b, err := s.loadBid(ctx, tx, bidder)
		if err != nil {
			return err
		}
		if b.Active {
			return domain.ErrBidStillActive
		}
		if b.Bidder != bidder {
			return domain.ErrWrongBidder
		}
		if err := tx.DeleteBid(ctx, b.Slot); err != nil {
			return fmt.Errorf("auction: delete bid: %w", err)
		}
		bid = b
		return nil
	})

	attrs := []slog.Attr{slog.String("bidder", bidder.Hex())}
	if err != nil {
		return domain.Bid{}, s.finish(ctx, "close_bid", err, attrs...)
	}
	return bid, s.finish(ctx, "close_bid", nil, append(attrs, slog.Uint64("deposit_refund", bid.Deposit))...)
}
