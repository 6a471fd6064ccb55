package events

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// BusSink publishes events to their live channel and appends them to the
// durable stream.
type BusSink struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewBusSink creates a BusSink over bus.
func NewBusSink(bus domain.EventBus, logger *slog.Logger) *BusSink {
	return &BusSink{bus: bus, logger: logger.With(slog.String("component", "event_bus"))}
}

// Emit implements domain.EventSink. The event is already committed, so a
// cancelled caller context does not stop delivery.
func (s *BusSink) Emit(ctx context.Context, evt domain.Event) {
	ctx = context.WithoutCancel(ctx)
	payload, err := Encode(evt)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode event failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, Channel(evt.Kind), payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("id", evt.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, Stream, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed",
			slog.String("id", evt.ID),
			slog.String("error", err.Error()),
		)
	}
}

// AuditSink records every event in the audit log.
type AuditSink struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditSink creates an AuditSink over audit.
func NewAuditSink(audit domain.AuditStore, logger *slog.Logger) *AuditSink {
	return &AuditSink{audit: audit, logger: logger.With(slog.String("component", "audit"))}
}

// Emit implements domain.EventSink. Like BusSink it ignores cancellation.
func (s *AuditSink) Emit(ctx context.Context, evt domain.Event) {
	ctx = context.WithoutCancel(ctx)
	err := s.audit.Log(ctx, string(evt.Kind), map[string]any{
		"event_id": evt.ID,
		"auction":  evt.Auction.Hex(),
		"bidder":   evt.Bidder.Hex(),
		"amount":   domain.FormatAmount(evt.Amount),
		"units":    evt.Amount,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("id", evt.ID),
			slog.String("error", err.Error()),
		)
	}
}

var (
	_ domain.EventSink = (*BusSink)(nil)
	_ domain.EventSink = (*AuditSink)(nil)
)
