// Package notify delivers "packages changed" notifications to interested
// clients. The reconciliation engine talks to a Notifier; concrete
// implementations fan the notification out to the in-process event bus
// and, optionally, to external subscribers over NATS.
package notify

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/packwatch/internal/events"
)

// Notifier signals clients that the set of packages they are looking at
// may be stale and should be re-fetched.
type Notifier interface {
	PackagesChanged(ctx context.Context)
}

// BusNotifier publishes a PackagesChanged event on the in-process bus.
type BusNotifier struct {
	bus    *events.Bus
	logger *slog.Logger
}

func NewBusNotifier(bus *events.Bus, logger *slog.Logger) *BusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusNotifier{bus: bus, logger: logger}
}

func (n *BusNotifier) PackagesChanged(ctx context.Context) {
	if err := n.bus.Publish(ctx, events.PackagesChanged{At: time.Now()}); err != nil {
		n.logger.Warn("failed to publish packages-changed event", "error", err)
	}
}
