package handler

import (
	"context"

	"github.com/alanyoungcy/sealedpool/internal/auction"
	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// AuctionService is the part of *auction.Service the API drives.
type AuctionService interface {
	Initialize(ctx context.Context, caller domain.Address, p auction.InitParams) (domain.AuctionState, error)
	SetMinimumBid(ctx context.Context, caller domain.Address, minimumBid uint64) (domain.AuctionState, error)
	SetAgent(ctx context.Context, caller, newAgent domain.Address) (domain.AuctionState, error)
	Settle(ctx context.Context, caller, winner domain.Address) (domain.Bid, error)

	OpenBid(ctx context.Context, bidder, source domain.Address, amount uint64) (domain.Bid, error)
	AdjustBid(ctx context.Context, bidder, account domain.Address, change int64) (domain.Bid, error)
	WithdrawBid(ctx context.Context, bidder, account domain.Address) (domain.Bid, error)
	CloseBid(ctx context.Context, bidder domain.Address) (domain.Bid, error)

	State(ctx context.Context) (domain.AuctionState, error)
	Bid(ctx context.Context, bidder domain.Address) (domain.Bid, error)
	ListBids(ctx context.Context, opts domain.ListOpts) ([]domain.Bid, error)
	EscrowBalance(ctx context.Context) (uint64, error)
	CheckInvariants(ctx context.Context) (auction.InvariantReport, error)
}

var _ AuctionService = (*auction.Service)(nil)
