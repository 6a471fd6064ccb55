package domain

import (
	"context"
	"time"
)

// EventKind names an auction notification.
type EventKind string

const (
	EventBidPlaced    EventKind = "bid_placed"
	EventBidUpdated   EventKind = "bid_updated"
	EventBidWithdrawn EventKind = "bid_withdrawn"
	EventBidSettled   EventKind = "bid_settled"
)

// Event is emitted after an operation commits. For EventBidUpdated Amount is
// the new locked amount; for EventBidSettled Bidder is the winner.
type Event struct {
	ID      string    `json:"id"`
	Kind    EventKind `json:"kind"`
	Auction Address   `json:"auction"`
	Bidder  Address   `json:"bidder"`
	Amount  uint64    `json:"amount"`
	At      time.Time `json:"at"`
}

// EventSink receives events fire-and-forget. Delivery failures are the
// sink's problem; no auction logic depends on them.
type EventSink interface {
	Emit(ctx context.Context, evt Event)
}
