package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// State returns the auction state.
func (s *Service) State(ctx context.Context) (domain.AuctionState, error) {
	st, err := s.store.GetAuctionState(ctx, s.slots.AuctionState())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AuctionState{}, domain.ErrNotInitialized
	}
	if err != nil {
		return domain.AuctionState{}, fmt.Errorf("auction: get state: %w", err)
	}
	return st, nil
}

// Bid returns the bid record of bidder.
func (s *Service) Bid(ctx context.Context, bidder domain.Address) (domain.Bid, error) {
	b, err := s.store.GetBid(ctx, s.slots.Bid(bidder))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("auction: get bid of %s: %w", bidder.Hex(), err)
	}
	return b, nil
}

// ListBids lists bid records of this auction.
func (s *Service) ListBids(ctx context.Context, opts domain.ListOpts) ([]domain.Bid, error) {
	opts.Auction = s.slots.AuctionState()
	bids, err := s.store.ListBids(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("auction: list bids: %w", err)
	}
	return bids, nil
}

// EscrowBalance returns the pooled balance.
func (s *Service) EscrowBalance(ctx context.Context) (uint64, error) {
	acct, err := s.store.GetAccount(ctx, s.slots.Escrow())
	if errors.Is(err, domain.ErrNotFound) {
		return 0, domain.ErrNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("auction: get escrow: %w", err)
	}
	return acct.Balance, nil
}

// InvariantReport is the result of CheckInvariants.
type InvariantReport struct {
	ActiveBidCount uint64   `json:"active_bid_count"`
	CountedActive  uint64   `json:"counted_active"`
	ActiveSum      uint64   `json:"active_sum"`
	EscrowBalance  uint64   `json:"escrow_balance"`
	MinimumBid     uint64   `json:"minimum_bid"`
	BelowMinimum   []string `json:"below_minimum,omitempty"`
	Violations     []string `json:"violations,omitempty"`
	OK             bool     `json:"ok"`
}

// CheckInvariants verifies, on one consistent snapshot, that the active bid
// counter matches the active records and that escrow holds exactly the sum
// of active amounts. Active bids under the current floor are listed but are
// not violations, since the floor may have been raised after they were
// placed.
func (s *Service) CheckInvariants(ctx context.Context) (InvariantReport, error) {
	var rep InvariantReport
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		st, err := s.loadState(ctx, tx)
		if err != nil {
			return err
		}
		bids, err := tx.ListBids(ctx, domain.ListOpts{Auction: st.Slot, ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("auction: list bids: %w", err)
		}
		rep, err = inspect(ctx, tx, st, bids)
		return err
	})
	if err != nil {
		return InvariantReport{}, err
	}
	s.observe(ctx, rep)
	return rep, nil
}

// Snapshot is a consistent export of the whole auction.
type Snapshot struct {
	Program    domain.Address      `json:"program"`
	TakenAt    time.Time           `json:"taken_at"`
	State      domain.AuctionState `json:"state"`
	Bids       []domain.Bid        `json:"bids"`
	Invariants InvariantReport     `json:"invariants"`
}

// Snapshot reads state, every bid record and the invariant report in one
// unit of work.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Program: s.cfg.Program}
	err := s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		st, err := s.loadState(ctx, tx)
		if err != nil {
			return err
		}
		bids, err := tx.ListBids(ctx, domain.ListOpts{Auction: st.Slot})
		if err != nil {
			return fmt.Errorf("auction: list bids: %w", err)
		}
		var active []domain.Bid
		for _, b := range bids {
			if b.Active {
				active = append(active, b)
			}
		}
		rep, err := inspect(ctx, tx, st, active)
		if err != nil {
			return err
		}
		snap.State, snap.Bids, snap.Invariants = st, bids, rep
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap.TakenAt = s.clock.Now()
	s.observe(ctx, snap.Invariants)
	return snap, nil
}

// inspect builds the invariant report of st given its active bids.
func inspect(ctx context.Context, tx domain.Tx, st domain.AuctionState, active []domain.Bid) (InvariantReport, error) {
	escrow, err := tx.Ledger().Account(ctx, st.Escrow)
	if err != nil {
		return InvariantReport{}, fmt.Errorf("auction: escrow: %w", err)
	}

	rep := InvariantReport{
		ActiveBidCount: st.ActiveBidCount,
		EscrowBalance:  escrow.Balance,
		MinimumBid:     st.MinimumBid,
	}
	overflow := false
	for _, b := range active {
		rep.CountedActive++
		var carry uint64
		rep.ActiveSum, carry = bits.Add64(rep.ActiveSum, b.Amount, 0)
		if carry != 0 {
			overflow = true
		}
		if b.Amount < st.MinimumBid {
			rep.BelowMinimum = append(rep.BelowMinimum, b.Bidder.Hex())
		}
	}

	if rep.CountedActive != rep.ActiveBidCount {
		rep.Violations = append(rep.Violations, fmt.Sprintf(
			"active_bid_count is %d but %d bids are active", rep.ActiveBidCount, rep.CountedActive))
	}
	if overflow {
		rep.Violations = append(rep.Violations, "sum of active amounts overflows")
	} else if rep.ActiveSum != rep.EscrowBalance {
		rep.Violations = append(rep.Violations, fmt.Sprintf(
			"escrow holds %d but active bids lock %d", rep.EscrowBalance, rep.ActiveSum))
	}
	rep.OK = len(rep.Violations) == 0
	return rep, nil
}

func (s *Service) observe(ctx context.Context, rep InvariantReport) {
	s.recorder.ActiveBids(rep.ActiveBidCount)
	s.recorder.Escrow(rep.EscrowBalance)
	if !rep.OK {
		s.logger.ErrorContext(ctx, "auction: invariant violation",
			slog.Any("violations", rep.Violations),
		)
	}
}
