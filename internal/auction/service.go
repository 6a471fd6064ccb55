// Package auction implements the sealed-pool auction: bidders lock funds
// into a pooled escrow, adjust or withdraw them while their bid is open, and
// the agent settles one bid to the treasury.
//
// Every operation runs inside one domain.AuctionStore unit of work. All
// precondition checks happen before the single transfer it performs, and
// a failed transfer discards every state change of the operation. Events
// are emitted only after the unit of work commits.
package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alanyoungcy/sealedpool/internal/address"
	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// Recorder observes operation outcomes. The metrics package implements it.
type Recorder interface {
	Operation(op, outcome string)
	ActiveBids(n uint64)
	Escrow(balance uint64)
}

type nopRecorder struct{}

func (nopRecorder) Operation(string, string) {}
func (nopRecorder) ActiveBids(uint64)        {}
func (nopRecorder) Escrow(uint64)            {}

type nopSink struct{}

func (nopSink) Emit(context.Context, domain.Event) {}

// Config holds the parameters of one deployed auction.
type Config struct {
	// Program is the auction instance id every slot is derived from.
	Program domain.Address
	// BidDeposit is recorded on each new bid and refunded on close.
	BidDeposit uint64
	// SlotCacheSize bounds memoised bidder slots.
	SlotCacheSize int
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for bid timestamps.
func WithClock(c domain.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRecorder installs an operation recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service executes auction operations against an AuctionStore.
type Service struct {
	store    domain.AuctionStore
	sink     domain.EventSink
	slots    *address.Deriver
	cfg      Config
	clock    domain.Clock
	recorder Recorder
	logger   *slog.Logger
}

// NewService creates a Service. A nil sink drops events.
func NewService(store domain.AuctionStore, sink domain.EventSink, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if sink == nil {
		sink = nopSink{}
	}
	s := &Service{
		store:    store,
		sink:     sink,
		slots:    address.NewDeriver(cfg.Program, cfg.SlotCacheSize),
		cfg:      cfg,
		clock:    domain.SystemClock{},
		recorder: nopRecorder{},
		logger:   logger.With(slog.String("component", "auction")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slots exposes the slot deriver of this auction.
func (s *Service) Slots() *address.Deriver { return s.slots }

func (s *Service) loadState(ctx context.Context, tx domain.Tx) (domain.AuctionState, error) {
	st, err := tx.AuctionState(ctx, s.slots.AuctionState())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AuctionState{}, domain.ErrNotInitialized
	}
	if err != nil {
		return domain.AuctionState{}, fmt.Errorf("auction: load state: %w", err)
	}
	return st, nil
}

// loadBid returns the caller's bid record.
func (s *Service) loadBid(ctx context.Context, tx domain.Tx, bidder domain.Address) (domain.Bid, error) {
	b, err := tx.Bid(ctx, s.slots.Bid(bidder))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("auction: bid of %s: %w", bidder.Hex(), err)
	}
	return b, nil
}

// checkBidderAccount enforces that account holds the auction asset and is
// owned by bidder.
func checkBidderAccount(ctx context.Context, l domain.Ledger, st domain.AuctionState, account, bidder domain.Address) error {
	acct, err := l.Account(ctx, account)
	if err != nil {
		return fmt.Errorf("auction: token account %s: %w", account.Hex(), err)
	}
	if acct.Asset != st.Asset || acct.Owner != bidder {
		return fmt.Errorf("auction: token account %s not a %s account of %s: %w",
			account.Hex(), st.Asset.Hex(), bidder.Hex(), domain.ErrAccountMismatch)
	}
	return nil
}

// bidderTransfer moves funds the bidder signs for.
func bidderTransfer(st domain.AuctionState, from, bidder domain.Address, amount uint64) domain.Transfer {
	return domain.Transfer{
		From:      from,
		To:        st.Escrow,
		Asset:     st.Asset,
		Amount:    amount,
		Decimals:  domain.AssetDecimals,
		Authority: bidder,
	}
}

// escrowTransfer moves pooled funds under the auction's custodial authority.
func escrowTransfer(st domain.AuctionState, to domain.Address, amount uint64) domain.Transfer {
	return domain.Transfer{
		From:      st.Escrow,
		To:        to,
		Asset:     st.Asset,
		Amount:    amount,
		Decimals:  domain.AssetDecimals,
		Authority: st.Slot,
	}
}

func (s *Service) emit(ctx context.Context, kind domain.EventKind, auction, bidder domain.Address, amount uint64) {
	s.sink.Emit(context.WithoutCancel(ctx), domain.Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Auction: auction,
		Bidder:  bidder,
		Amount:  amount,
		At:      s.clock.Now(),
	})
}

// finish records and logs the outcome of op and returns err unchanged.
func (s *Service) finish(ctx context.Context, op string, err error, attrs ...slog.Attr) error {
	if err == nil {
		s.recorder.Operation(op, "ok")
		s.logger.LogAttrs(ctx, slog.LevelInfo, "auction: "+op, attrs...)
		return nil
	}

	outcome := domain.ErrorCode(err)
	if outcome == "" {
		outcome = "error"
	}
	s.recorder.Operation(op, outcome)
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, slog.LevelWarn, "auction: "+op+" rejected", attrs...)
	return err
}
