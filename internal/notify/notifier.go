// Package notify delivers auction events to operator chat channels. Events
// are rendered once and dispatched to every registered Sender; the operator
// chooses which event kinds are worth a message.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// Message is a rendered notification.
type Message struct {
	Title  string
	Body   string
	Fields []Field
}

// Field is one labelled value of a Message.
type Field struct {
	Name  string
	Value string
}

// Sender is implemented by each notification channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Notifier renders auction events and dispatches them to its senders.
type Notifier struct {
	senders []Sender
	kinds   map[domain.EventKind]bool
	symbol  string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders. Only events whose
// kind appears in kinds are forwarded; an empty kinds list forwards all.
// symbol labels amounts, e.g. "USDC".
func NewNotifier(senders []Sender, kinds []string, symbol string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			allowed[domain.EventKind(k)] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   allowed,
		symbol:  symbol,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify renders evt and sends it if its kind is allowed.
func (n *Notifier) Notify(ctx context.Context, evt domain.Event) error {
	if len(n.kinds) > 0 && !n.kinds[evt.Kind] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("kind", string(evt.Kind)))
		return nil
	}
	return n.dispatch(ctx, n.render(evt))
}

// NotifyAll sends msg to all senders regardless of filters.
func (n *Notifier) NotifyAll(ctx context.Context, msg Message) error {
	return n.dispatch(ctx, msg)
}

func (n *Notifier) render(evt domain.Event) Message {
	amount := domain.FormatAmount(evt.Amount)
	if n.symbol != "" {
		amount += " " + n.symbol
	}

	var title, body string
	switch evt.Kind {
	case domain.EventBidPlaced:
		title, body = "Bid placed", fmt.Sprintf("%s locked %s", evt.Bidder.Hex(), amount)
	case domain.EventBidUpdated:
		title, body = "Bid updated", fmt.Sprintf("%s now bids %s", evt.Bidder.Hex(), amount)
	case domain.EventBidWithdrawn:
		title, body = "Bid withdrawn", fmt.Sprintf("%s withdrew %s", evt.Bidder.Hex(), amount)
	case domain.EventBidSettled:
		title, body = "Auction settled", fmt.Sprintf("%s won with %s", evt.Bidder.Hex(), amount)
	default:
		title, body = string(evt.Kind), amount
	}

	return Message{
		Title: title,
		Body:  body,
		Fields: []Field{
			{Name: "auction", Value: evt.Auction.Hex()},
			{Name: "at", Value: evt.At.UTC().Format("2006-01-02 15:04:05 MST")},
		},
	}
}

// dispatch sends msg to every sender. One failing sender does not stop the
// others; all failures are returned joined.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", msg.Title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
