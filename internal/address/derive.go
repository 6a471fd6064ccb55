// Package address derives the deterministic storage slots used by an
// auction: the auction state record, its escrow token account and one bid
// record per bidder. A slot is the last 20 bytes of
// keccak256(program || seed_1 || ... || seed_n || "sealedpool-slot"), so any
// caller can locate a record from the program id and the seeds alone, and
// no private key exists for a slot.
package address

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
)

var (
	seedAuctionState = []byte("auction_state")
	seedEscrow       = []byte("escrow")
	seedBid          = []byte("bid")
	slotMarker       = []byte("sealedpool-slot")
)

// Derive returns the slot for program and seeds.
func Derive(program common.Address, seeds ...[]byte) common.Address {
	parts := make([][]byte, 0, len(seeds)+2)
	parts = append(parts, program.Bytes())
	parts = append(parts, seeds...)
	parts = append(parts, slotMarker)
	return common.BytesToAddress(ethcrypto.Keccak256(parts...)[12:])
}

// Deriver computes slots for one program and memoises bid slots.
type Deriver struct {
	program common.Address
	state   common.Address
	escrow  common.Address
	bids    *lru.Cache
}

// NewDeriver creates a Deriver for program. cacheSize bounds the number of
// memoised bid slots; a non-positive size disables memoisation.
func NewDeriver(program common.Address, cacheSize int) *Deriver {
	d := &Deriver{
		program: program,
		state:   Derive(program, seedAuctionState),
		escrow:  Derive(program, seedEscrow),
	}
	if cacheSize > 0 {
		// lru.New only fails for a non-positive size.
		d.bids, _ = lru.New(cacheSize)
	}
	return d
}

// Program returns the program id the deriver is bound to.
func (d *Deriver) Program() common.Address { return d.program }

// AuctionState returns the auction state slot. The state slot is also the
// custodial authority of the escrow account.
func (d *Deriver) AuctionState() common.Address { return d.state }

// Escrow returns the pooled escrow token account.
func (d *Deriver) Escrow() common.Address { return d.escrow }

// Bid returns the bid record slot for bidder.
func (d *Deriver) Bid(bidder common.Address) common.Address {
	if d.bids != nil {
		if v, ok := d.bids.Get(bidder); ok {
			return v.(common.Address)
		}
	}
	slot := Derive(d.program, seedBid, bidder.Bytes())
	if d.bids != nil {
		d.bids.Add(bidder, slot)
	}
	return slot
}
