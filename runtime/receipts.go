package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"pairchat/contract"
	"pairchat/domain"
	"pairchat/domain/event"
	"pairchat/observability"
)

// ReadReceipts batch-marks a sender's messages read and notifies the sender
// if they still hold an active connection. A persistence failure here is
// reported to the reader but never terminates their session, and no receipt
// is emitted for a failed mark.
type ReadReceipts struct {
	log      *slog.Logger
	store    contract.MessageStore
	registry *Registry
	metrics  *observability.Metrics
}

func NewReadReceipts(log *slog.Logger, store contract.MessageStore, registry *Registry, metrics *observability.Metrics) *ReadReceipts {
	return &ReadReceipts{log: log, store: store, registry: registry, metrics: metrics}
}

// MarkRead flips every unread message from senderID to the reader. The
// update is batch, not itemized, and never touches the reversed direction.
func (r *ReadReceipts) MarkRead(ctx context.Context, reader domain.Identity, senderID string) error {
	count, err := r.store.MarkRead(ctx, senderID, reader.UserID)
	if err != nil {
		return fmt.Errorf("marking messages read: %w", err)
	}
	r.metrics.IncrReadReceipts()
	r.log.Debug("Messages marked read", "reader", reader.UserID, "sender", senderID, "count", count)

	sink, connected := r.registry.SinkFor(senderID)
	if !connected {
		return nil
	}
	evt := event.Event{Name: event.MessagesRead, Payload: event.ReadAck{
		ReadBy:         reader.UserID,
		ReadByUsername: reader.DisplayName,
	}}
	if err := sink.Consume(ctx, evt); err != nil {
		r.metrics.IncrDeliveriesDropped()
		r.log.Debug("Read receipt delivery failed", "sender", senderID, "error", err)
	}
	return nil
}
