package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// Settle finalizes the bid of winner: the bid is deactivated and its whole
// amount moves from escrow to the treasury. Only the agent may settle, and
// the agent alone decides which bid wins; bids are not compared here. The
// winner's record survives, inactive, until the winner closes it.
func (s *Service) Settle(ctx context.Context, caller, winner domain.Address) (domain.Bid, error) {
	var (
		bid   domain.Bid
		state domain.AuctionState
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		st, err := s.loadState(ctx, tx)
		if err != nil {
			return err
		}
		if caller != st.Agent {
			return domain.ErrOnlyAgent
		}
		b, err := s.loadBid(ctx, tx, winner)
		if err != nil {
			return err
		}
		if !b.Active {
			return domain.ErrBidNotActive
		}

		b.Active = false
		count, err := checkedSub(st.ActiveBidCount, 1)
		if err != nil {
			return err
		}
		st.ActiveBidCount = count

		if err := tx.Ledger().Transfer(ctx, escrowTransfer(st, st.Treasury, b.Amount)); err != nil {
			return err
		}

		if err := tx.PutBid(ctx, b); err != nil {
			return fmt.Errorf("auction: save bid: %w", err)
		}
		if err := tx.PutAuctionState(ctx, st); err != nil {
			return fmt.Errorf("auction: save state: %w", err)
		}
		bid, state = b, st
		return nil
	})

	attrs := []slog.Attr{slog.String("caller", caller.Hex()), slog.String("winner", winner.Hex())}
	if err != nil {
		return domain.Bid{}, s.finish(ctx, "settle", err, attrs...)
	}
	s.recorder.ActiveBids(state.ActiveBidCount)
	s.emit(ctx, domain.EventBidSettled, state.Slot, bid.Bidder, bid.Amount)
	return bid, s.finish(ctx, "settle", nil, append(attrs, slog.Uint64("amount", bid.Amount))...)
}
