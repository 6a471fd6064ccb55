package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// deliverTimeout bounds one delivery by the async worker.
const deliverTimeout = 15 * time.Second

// Deliverer is a slow event consumer, such as an operator notifier.
type Deliverer interface {
	Notify(ctx context.Context, evt domain.Event) error
}

// Async queues events for a Deliverer and delivers them from Run, so that
// slow network calls stay off the request path. When the queue is full the
// event is dropped.
type Async struct {
	target Deliverer
	queue  chan domain.Event
	logger *slog.Logger
}

// NewAsync creates an Async sink with a queue of size buffer.
func NewAsync(target Deliverer, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	return &Async{
		target: target,
		queue:  make(chan domain.Event, buffer),
		logger: logger.With(slog.String("component", "async_events")),
	}
}

// Emit implements domain.EventSink.
func (a *Async) Emit(ctx context.Context, evt domain.Event) {
	select {
	case a.queue <- evt:
	default:
		a.logger.WarnContext(ctx, "queue full, dropping event",
			slog.String("id", evt.ID),
			slog.String("kind", string(evt.Kind)),
		)
	}
}

// Run delivers queued events until ctx is cancelled.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-a.queue:
			dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
			if err := a.target.Notify(dctx, evt); err != nil {
				a.logger.WarnContext(ctx, "delivery failed",
					slog.String("id", evt.ID),
					slog.String("error", err.Error()),
				)
			}
			cancel()
		}
	}
}

var _ domain.EventSink = (*Async)(nil)
