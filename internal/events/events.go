// Package events fans committed auction events out to the event bus, the
// audit log, operator notifications and the process log. Every sink is
// best-effort: a failed delivery is logged and never reaches the auction.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

const (
	// Stream is the durable stream every event is appended to.
	Stream = "events"
	// ChannelPattern matches every live event channel.
	ChannelPattern = "events:*"
)

// Channel returns the live channel for events of kind.
func Channel(kind domain.EventKind) string {
	return "events:" + string(kind)
}

// Wire is the JSON form of an event on the bus and the websocket feed.
// Amount is a string of base units so JavaScript clients keep precision.
type Wire struct {
	ID      string           `json:"id"`
	Kind    domain.EventKind `json:"kind"`
	Auction string           `json:"auction"`
	Bidder  string           `json:"bidder"`
	Amount  string           `json:"amount"`
	Display string           `json:"display"`
	At      time.Time        `json:"at"`
}

// Encode serializes evt as Wire JSON.
func Encode(evt domain.Event) ([]byte, error) {
	return json.Marshal(Wire{
		ID:      evt.ID,
		Kind:    evt.Kind,
		Auction: evt.Auction.Hex(),
		Bidder:  evt.Bidder.Hex(),
		Amount:  strconv.FormatUint(evt.Amount, 10),
		Display: domain.FormatAmount(evt.Amount),
		At:      evt.At,
	})
}

// Decode parses Wire JSON back into an event.
func Decode(data []byte) (domain.Event, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Event{}, fmt.Errorf("events: decode: %w", err)
	}
	amount, err := strconv.ParseUint(w.Amount, 10, 64)
	if err != nil {
		return domain.Event{}, fmt.Errorf("events: decode amount %q: %w", w.Amount, err)
	}
	return domain.Event{
		ID:      w.ID,
		Kind:    w.Kind,
		Auction: common.HexToAddress(w.Auction),
		Bidder:  common.HexToAddress(w.Bidder),
		Amount:  amount,
		At:      w.At,
	}, nil
}

// Fanout delivers each event to every sink in order.
type Fanout []domain.EventSink

// Emit implements domain.EventSink.
func (f Fanout) Emit(ctx context.Context, evt domain.Event) {
	for _, s := range f {
		s.Emit(ctx, evt)
	}
}

// LogSink writes one structured line per event.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "events"))}
}

// Emit implements domain.EventSink.
func (s *LogSink) Emit(ctx context.Context, evt domain.Event) {
	s.logger.InfoContext(ctx, "event",
		slog.String("id", evt.ID),
		slog.String("kind", string(evt.Kind)),
		slog.String("bidder", evt.Bidder.Hex()),
		slog.Uint64("amount", evt.Amount),
	)
}

var (
	_ domain.EventSink = Fanout(nil)
	_ domain.EventSink = (*LogSink)(nil)
)
