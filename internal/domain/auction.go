package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies a principal, a token account, an asset or a storage
// slot. Bidders and agents are secp256k1 addresses.
type Address = common.Address

// AssetDecimals is the precision every auctioned asset must have.
const AssetDecimals uint8 = 6

// AuctionState is the singleton configuration and counter record of one
// deployed auction.
type AuctionState struct {
	// Slot is the storage location of this record. It is also the custodial
	// authority over Escrow.
	Slot           Address   `json:"slot"`
	Agent          Address   `json:"agent"`
	Asset          Address   `json:"asset"`
	Treasury       Address   `json:"treasury"`
	Escrow         Address   `json:"escrow"`
	MinimumBid     uint64    `json:"minimum_bid"`
	ActiveBidCount uint64    `json:"active_bid_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Bid is a bidder's record. At most one exists per bidder because Slot is
// derived from the bidder address.
type Bid struct {
	Slot      Address   `json:"slot"`
	Auction   Address   `json:"auction"`
	Bidder    Address   `json:"bidder"`
	Amount    uint64    `json:"amount"`
	Deposit   uint64    `json:"deposit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Active    bool      `json:"active"`
}

// Clock supplies timestamps for bid records. It is never used for control
// decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC truncated to seconds.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Second) }
