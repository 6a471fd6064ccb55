package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// BidHandler serves the bidder lifecycle and bid reads.
type BidHandler struct {
	svc    AuctionService
	logger *slog.Logger
}

func NewBidHandler(svc AuctionService, logger *slog.Logger) *BidHandler {
	return &BidHandler{svc: svc, logger: logHandler(logger, "bids")}
}

type openRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Open escrows amount from the caller's account into a new bid.
// POST /api/bids
func (h *BidHandler) Open(w http.ResponseWriter, r *http.Request) {
	bidder, ok := caller(w, r)
	if !ok {
		return
	}
	var req openRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	units, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	bid, err := h.svc.OpenBid(r.Context(), bidder, account, units)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bidOf(bid))
}

type adjustRequest struct {
	Account string `json:"account"`
	Change  string `json:"change"`
}

// Adjust raises or lowers the caller's active bid by a signed change.
// PATCH /api/bids
func (h *BidHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	bidder, ok := caller(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	change, err := domain.ParseAmountChange(req.Change)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	bid, err := h.svc.AdjustBid(r.Context(), bidder, account, change)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bidOf(bid))
}

type withdrawRequest struct {
	Account string `json:"account"`
}

// Withdraw refunds the caller's active bid.
// POST /api/bids/withdraw
func (h *BidHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	bidder, ok := caller(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	bid, err := h.svc.WithdrawBid(r.Context(), bidder, account)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bidOf(bid))
}

// Close deletes the caller's inactive bid record.
// DELETE /api/bids
func (h *BidHandler) Close(w http.ResponseWriter, r *http.Request) {
	bidder, ok := caller(w, r)
	if !ok {
		return
	}
	bid, err := h.svc.CloseBid(r.Context(), bidder)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bid":              bidOf(bid),
		"refunded_deposit": bid.Deposit,
	})
}

// List returns bid records, optionally only active ones.
// GET /api/bids?active=true&limit=50&offset=0
func (h *BidHandler) List(w http.ResponseWriter, r *http.Request) {
	bids, err := h.svc.ListBids(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]bidView, 0, len(bids))
	for _, b := range bids {
		out = append(out, bidOf(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": out, "count": len(out)})
}

// Get returns one bidder's record.
// GET /api/bids/{bidder}
func (h *BidHandler) Get(w http.ResponseWriter, r *http.Request) {
	bidder, err := parseAddress("bidder", r.PathValue("bidder"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	bid, err := h.svc.Bid(r.Context(), bidder)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bidOf(bid))
}
