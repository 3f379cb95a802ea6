// Package notify delivers battle notifications. Every notification lands in
// the recipient's in-app inbox; selected kinds are also relayed to operator
// channels such as Discord or Telegram.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// Sender is one operator channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier implements domain.Notifier.
type Notifier struct {
	inbox   domain.NotificationStore
	senders []Sender
	relay   map[domain.NotificationKind]bool
	logger  *slog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier that stores into inbox and relays the listed
// kinds to senders. An empty kinds list relays nothing.
func NewNotifier(inbox domain.NotificationStore, senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	relay := make(map[domain.NotificationKind]bool, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			relay[domain.NotificationKind(k)] = true
		}
	}
	return &Notifier{
		inbox:   inbox,
		senders: senders,
		relay:   relay,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify persists n to the recipient's inbox and, for relayed kinds, fans it
// out to the operator channels. Only the inbox write can fail the call.
func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	if err := n.inbox.Create(ctx, msg); err != nil {
		return fmt.Errorf("notify: store %s for %s: %w", msg.Kind, msg.ProfileID, err)
	}

	if n.relay[msg.Kind] && len(n.senders) > 0 {
		text := msg.Message
		if msg.BattleID != "" {
			text += "\nbattle " + msg.BattleID
		}
		n.dispatch(ctx, msg.Title, text)
	}
	return nil
}

// dispatch sends to every channel concurrently. A failing channel is logged
// and does not hold back the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	var g errgroup.Group
	for _, s := range n.senders {
		g.Go(func() error {
			if err := s.Send(ctx, title, message); err != nil {
				n.logger.ErrorContext(ctx, "notifier: sender failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			n.logger.DebugContext(ctx, "notifier: relayed",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
			return nil
		})
	}
	_ = g.Wait()
}
