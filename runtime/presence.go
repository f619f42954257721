package runtime

import (
	"context"
	"log/slog"

	"pairchat/domain/event"
	"pairchat/observability"
)

// PresenceWorker delivers a full presence snapshot to every connection
// whenever registry membership changes. Delivery is best effort per sink: a
// failing connection never blocks the others.
type PresenceWorker struct {
	log      *slog.Logger
	registry *Registry
	metrics  *observability.Metrics
}

func NewPresenceWorker(log *slog.Logger, registry *Registry, metrics *observability.Metrics) *PresenceWorker {
	return &PresenceWorker{log: log, registry: registry, metrics: metrics}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence broadcast")
			return nil
		case <-w.registry.Changed():
			w.broadcast(ctx)
		}
	}
}

func (w *PresenceWorker) broadcast(ctx context.Context) {
	users := w.registry.Snapshot()
	evt := event.Event{Name: event.UsersOnline, Payload: users}
	for _, sink := range w.registry.Sinks() {
		if err := sink.Consume(ctx, evt); err != nil {
			w.metrics.IncrDeliveriesDropped()
			w.log.Debug("Presence delivery failed", "error", err)
		}
	}
	w.log.Debug("Presence snapshot broadcast", "online", len(users))
}
