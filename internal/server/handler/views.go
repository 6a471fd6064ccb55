package handler

import (
	"strconv"
	"time"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// Amounts go out twice: as a decimal string for display and as a string of
// base units so JavaScript clients keep full precision.
type amountView struct {
	Display string `json:"display"`
	Units   string `json:"units"`
}

func amount(units uint64) amountView {
	return amountView{Display: domain.FormatAmount(units), Units: strconv.FormatUint(units, 10)}
}

type stateView struct {
	Slot           string     `json:"slot"`
	Agent          string     `json:"agent"`
	Asset          string     `json:"asset"`
	Treasury       string     `json:"treasury"`
	Escrow         string     `json:"escrow"`
	MinimumBid     amountView `json:"minimum_bid"`
	ActiveBidCount uint64     `json:"active_bid_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

func stateOf(st domain.AuctionState) stateView {
	return stateView{
		Slot:           st.Slot.Hex(),
		Agent:          st.Agent.Hex(),
		Asset:          st.Asset.Hex(),
		Treasury:       st.Treasury.Hex(),
		Escrow:         st.Escrow.Hex(),
		MinimumBid:     amount(st.MinimumBid),
		ActiveBidCount: st.ActiveBidCount,
		CreatedAt:      st.CreatedAt,
	}
}

type bidView struct {
	Slot      string     `json:"slot"`
	Bidder    string     `json:"bidder"`
	Amount    amountView `json:"amount"`
	Deposit   uint64     `json:"deposit"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func bidOf(b domain.Bid) bidView {
	return bidView{
		Slot:      b.Slot.Hex(),
		Bidder:    b.Bidder.Hex(),
		Amount:    amount(b.Amount),
		Deposit:   b.Deposit,
		Active:    b.Active,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
