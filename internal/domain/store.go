package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Auction    Address
	Limit      int
	Offset     int
	ActiveOnly bool
	Since      *time.Time
	Until      *time.Time
}

// Tx is one unit of work. Everything written through a Tx, including
// transfers made through its Ledger, commits together or not at all.
type Tx interface {
	AuctionState(ctx context.Context, slot Address) (AuctionState, error)
	CreateAuctionState(ctx context.Context, s AuctionState) error
	PutAuctionState(ctx context.Context, s AuctionState) error

	Bid(ctx context.Context, slot Address) (Bid, error)
	ListBids(ctx context.Context, opts ListOpts) ([]Bid, error)
	CreateBid(ctx context.Context, b Bid) error
	PutBid(ctx context.Context, b Bid) error
	DeleteBid(ctx context.Context, slot Address) error

	Ledger() Ledger
}

// AuctionStore persists auction state, bid records and the ledger.
type AuctionStore interface {
	// Atomic runs fn in a single unit of work. If fn returns an error nothing
	// it wrote is observable.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetAuctionState(ctx context.Context, slot Address) (AuctionState, error)
	GetBid(ctx context.Context, slot Address) (Bid, error)
	ListBids(ctx context.Context, opts ListOpts) ([]Bid, error)
	GetAccount(ctx context.Context, addr Address) (TokenAccount, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
