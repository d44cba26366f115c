// Package notify fans position lifecycle events out to operators: chat
// senders (Telegram, Discord), the event bus and any other subscriber.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Sender delivers a titled message to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier formats lifecycle events and sends them to every Sender. When
// kinds is non-empty only those event kinds are sent.
type Notifier struct {
	senders []Sender
	kinds   map[domain.EventKind]bool
	logger  *slog.Logger
}

var _ domain.EventPublisher = (*Notifier)(nil)

// NewNotifier creates a Notifier.
func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			allowed[domain.EventKind(k)] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Publish sends evt unless it is filtered out. One failing sender does not
// stop delivery to the others.
func (n *Notifier) Publish(ctx context.Context, evt domain.LifecycleEvent) error {
	if len(n.senders) == 0 {
		return nil
	}
	if len(n.kinds) > 0 && !n.kinds[evt.Kind] {
		return nil
	}
	title, msg := Format(evt)

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed", slog.String("sender", s.Name()), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Format renders evt as a title and a message body.
func Format(evt domain.LifecycleEvent) (string, string) {
	var title string
	switch evt.Kind {
	case domain.EventOpened:
		title = "Position opened"
	case domain.EventDoubledDown:
		title = "Doubled down"
	case domain.EventSold:
		title = "Position sold"
	case domain.EventAbandoned:
		title = "Position abandoned"
	case domain.EventBuyFailed:
		title = "Buy failed"
	case domain.EventSellFailed:
		title = "Sell failed"
	default:
		title = string(evt.Kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Token: %s\n", evt.Token.Hex())
	if !evt.EntryPrice.IsZero() {
		fmt.Fprintf(&b, "Entry: %s\n", evt.EntryPrice.String())
	}
	if !evt.CurrentPrice.IsZero() {
		fmt.Fprintf(&b, "Price: %s\n", evt.CurrentPrice.String())
	}
	if !evt.Capital.IsZero() {
		fmt.Fprintf(&b, "Capital: %s\n", evt.Capital.String())
	}
	if evt.TxHash != "" {
		fmt.Fprintf(&b, "Tx: %s\n", evt.TxHash)
	}
	if evt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", evt.Reason)
	}
	return title, strings.TrimRight(b.String(), "\n")
}
