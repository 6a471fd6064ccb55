package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/sealedpool/internal/auction"
	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// AuctionHandler serves auction-level reads and the agent's operations.
type AuctionHandler struct {
	svc    AuctionService
	logger *slog.Logger
}

func NewAuctionHandler(svc AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{svc: svc, logger: logHandler(logger, "auction")}
}

type initializeRequest struct {
	Asset      string `json:"asset"`
	Treasury   string `json:"treasury"`
	MinimumBid string `json:"minimum_bid"`
}

// Initialize creates the auction with the caller as agent.
// POST /api/auction/initialize
func (h *AuctionHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	agent, ok := caller(w, r)
	if !ok {
		return
	}
	var req initializeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	treasury, err := parseAddress("treasury", req.Treasury)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	minimum, err := domain.ParseAmount(req.MinimumBid)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	st, err := h.svc.Initialize(r.Context(), agent, auction.InitParams{
		Asset:      asset,
		Treasury:   treasury,
		MinimumBid: minimum,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, stateOf(st))
}

// GetState returns the auction state and the escrow balance.
// GET /api/auction
func (h *AuctionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.State(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	escrow, err := h.svc.EscrowBalance(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":          stateOf(st),
		"escrow_balance": amount(escrow),
	})
}

type settleRequest struct {
	Winner string `json:"winner"`
}

// Settle pays the winner's bid to the treasury.
// POST /api/auction/settle
func (h *AuctionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	agent, ok := caller(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	winner, err := parseAddress("winner", req.Winner)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	bid, err := h.svc.Settle(r.Context(), agent, winner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bidOf(bid))
}

type minimumBidRequest struct {
	MinimumBid string `json:"minimum_bid"`
}

// SetMinimumBid changes the floor for new bids and downward adjustments.
// PUT /api/auction/minimum-bid
func (h *AuctionHandler) SetMinimumBid(w http.ResponseWriter, r *http.Request) {
	agent, ok := caller(w, r)
	if !ok {
		return
	}
	var req minimumBidRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	minimum, err := domain.ParseAmount(req.MinimumBid)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	st, err := h.svc.SetMinimumBid(r.Context(), agent, minimum)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(st))
}

type agentRequest struct {
	Agent string `json:"agent"`
}

// SetAgent hands the agent role to another address.
// PUT /api/auction/agent
func (h *AuctionHandler) SetAgent(w http.ResponseWriter, r *http.Request) {
	agent, ok := caller(w, r)
	if !ok {
		return
	}
	var req agentRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	next, err := parseAddress("agent", req.Agent)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	st, err := h.svc.SetAgent(r.Context(), agent, next)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(st))
}

// Invariants runs the escrow and counter checks.
// GET /api/invariants
func (h *AuctionHandler) Invariants(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.CheckInvariants(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusOK
	if !rep.OK {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, rep)
}
