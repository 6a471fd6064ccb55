package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/events"
)

// EventsHandler replays recent events from the durable stream.
type EventsHandler struct {
	bus    domain.EventBus
	logger *slog.Logger
}

func NewEventsHandler(bus domain.EventBus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{bus: bus, logger: logHandler(logger, "events")}
}

type streamEntry struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// List returns stream entries after the given id. Pass the last id seen to
// page forward.
// GET /api/events?after=<id>&limit=100
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 1000)
		}
	}
	msgs, err := h.bus.StreamRead(r.Context(), events.Stream, r.URL.Query().Get("after"), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]streamEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, streamEntry{ID: m.ID, Event: json.RawMessage(m.Payload)})
	}
	next := r.URL.Query().Get("after")
	if len(out) > 0 {
		next = out[len(out)-1].ID
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out, "next": next})
}
