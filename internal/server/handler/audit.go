package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// AuditHandler serves the audit log of one auction.
type AuditHandler struct {
	audit   domain.AuditStore
	auction domain.Address
	logger  *slog.Logger
}

// NewAuditHandler lists entries of audit recorded for the auction state slot.
func NewAuditHandler(audit domain.AuditStore, auction domain.Address, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, auction: auction, logger: logHandler(logger, "audit")}
}

type auditView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// List returns audit entries newest first.
// GET /api/audit?limit=50&offset=0&since=2026-01-02T00:00:00Z&until=...
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	opts.ActiveOnly = false
	opts.Auction = h.auction
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &opts.Since}, {"until", &opts.Until}} {
		v := r.URL.Query().Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, p.name+": expected an RFC 3339 timestamp")
			return
		}
		*p.dst = &t
	}

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]auditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditView{ID: e.ID, Event: e.Event, Detail: e.Detail, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out, "count": len(out)})
}
