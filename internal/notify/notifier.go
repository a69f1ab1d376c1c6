// Package notify provides the operator notification system. Broadcasts are
// dispatched to all registered senders; delivery is best-effort and a
// failing sender never affects the strategy outcome. The package also hosts
// the Telegram command listener that feeds operator commands back into the
// strategy engine.
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Sender is the interface each notification channel must implement.
type Sender interface {
	// Send delivers one human-readable message.
	Send(ctx context.Context, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier fans a broadcast out to all senders. Sender failures are
// isolated from each other: every sender is attempted, failures are logged,
// and nothing propagates to the caller.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Broadcast delivers the message to every sender concurrently and waits for
// all attempts to finish. Implements domain.Broadcaster.
func (n *Notifier) Broadcast(ctx context.Context, message string) {
	n.logger.InfoContext(ctx, "broadcast", slog.String("message", message))

	if len(n.senders) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range n.senders {
		g.Go(func() error {
			if err := s.Send(ctx, message); err != nil {
				n.logger.ErrorContext(ctx, "sender failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()),
				)
			}
			// Failures stay inside the sender; joining only bounds the
			// fan-out, it never cancels siblings.
			return nil
		})
	}
	_ = g.Wait()
}
