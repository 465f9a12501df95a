package events

import (
	"context"
	"log/slog"
)

// Notifier pairs the in-process Registry with an external Publisher so a
// service can announce a committed change in one call.
type Notifier struct {
	Registry  *Registry
	Publisher Publisher
	Logger    *slog.Logger
}

// NewNotifier builds a Notifier. Nil arguments get an empty Registry, a
// NoopPublisher and slog.Default().
func NewNotifier(r *Registry, p Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = NewRegistry(logger)
	}
	if p == nil {
		p = &NoopPublisher{}
	}
	return &Notifier{Registry: r, Publisher: p, Logger: logger}
}

// Before fires a before-hook. A non-nil error is a *VetoError.
func (n *Notifier) Before(ctx context.Context, hook Hook, payload any) error {
	return n.Registry.Fire(ctx, hook, payload)
}

// After fires an after-hook and publishes payload on topic. Failures are
// logged; the change they describe has already been committed.
func (n *Notifier) After(ctx context.Context, hook Hook, topic string, payload any) {
	if hook != "" {
		_ = n.Registry.Fire(ctx, hook, payload)
	}
	if err := n.Publisher.Publish(ctx, topic, payload); err != nil {
		n.Logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
