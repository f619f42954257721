package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"pairchat/contract"
	"pairchat/domain"
	"pairchat/domain/event"
	"pairchat/errors"
	"pairchat/observability"
)

// Sanitizer rewrites a message body before persistence. The moderation
// package provides the production implementation.
type Sanitizer interface {
	Sanitize(body string) string
}

// Pipeline orchestrates an outgoing message: validate, sanitize, resolve the
// receiver, persist, fan out to the pair's room, then notify the receiver's
// personal channel. Persistence strictly precedes any broadcast: a client
// never observes a message that does not durably exist.
type Pipeline struct {
	log       *slog.Logger
	store     contract.MessageStore
	registry  *Registry
	sanitizer Sanitizer
	metrics   *observability.Metrics
	maxLength int
}

func NewPipeline(log *slog.Logger, store contract.MessageStore, registry *Registry,
	sanitizer Sanitizer, metrics *observability.Metrics, maxLength int) *Pipeline {
	if maxLength <= 0 {
		maxLength = domain.MaxMessageLength
	}
	return &Pipeline{
		log:       log,
		store:     store,
		registry:  registry,
		sanitizer: sanitizer,
		metrics:   metrics,
		maxLength: maxLength,
	}
}

// Send runs the full pipeline for one outgoing message and returns the
// persisted record on success.
func (p *Pipeline) Send(ctx context.Context, sender domain.Identity, receiverID, body string, kind domain.MessageType) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		p.metrics.IncrMessagesRejected()
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > p.maxLength {
		p.metrics.IncrMessagesRejected()
		return domain.Message{}, errors.ErrMessageTooLong
	}
	if kind == "" {
		kind = domain.MessageTypeText
	}

	room, err := domain.RoomKey(sender.UserID, receiverID)
	if err != nil {
		p.metrics.IncrMessagesRejected()
		return domain.Message{}, err
	}

	if p.sanitizer != nil {
		body = p.sanitizer.Sanitize(body)
	}

	receiver, err := p.store.GetUser(ctx, receiverID)
	if err != nil {
		p.metrics.IncrMessagesRejected()
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return domain.Message{}, errors.ErrReceiverNotFound
		}
		return domain.Message{}, fmt.Errorf("resolving receiver %s: %w", receiverID, err)
	}

	message, err := p.store.Create(ctx, sender.UserID, receiverID, body, kind)
	if err != nil {
		// No broadcast for an unpersisted message.
		return domain.Message{}, fmt.Errorf("persisting message: %w", err)
	}
	p.metrics.IncrMessagesSent()

	delivered := event.NewDelivered(message,
		domain.Summary{ID: sender.UserID, Username: sender.DisplayName},
		receiver.Summary(),
	)
	p.fanout(ctx, room, event.Event{Name: event.ReceiveMessage, Payload: delivered})

	// Direct notify is independent of room membership so the receiver hears
	// about the message even without the room view open.
	if sink, connected := p.registry.SinkFor(receiverID); connected {
		notification := event.Event{Name: event.NewMessageNotification, Payload: event.Notification{
			From:     sender.DisplayName,
			Message:  message.Body,
			SenderID: sender.UserID,
		}}
		if err := sink.Consume(ctx, notification); err != nil {
			p.metrics.IncrDeliveriesDropped()
			p.log.Debug("Notification delivery failed", "receiver", receiverID, "error", err)
		}
	}

	p.log.Debug("Message delivered", "room", room, "sender", sender.UserID, "receiver", receiverID)
	return message, nil
}

// JoinRoom is pure membership bookkeeping on the caller's handle.
func (p *Pipeline) JoinRoom(userID, peerID string) (domain.RoomID, error) {
	room, err := domain.RoomKey(userID, peerID)
	if err != nil {
		return "", err
	}
	p.registry.JoinRoom(userID, room)
	return room, nil
}

func (p *Pipeline) LeaveRoom(userID, peerID string) (domain.RoomID, error) {
	room, err := domain.RoomKey(userID, peerID)
	if err != nil {
		return "", err
	}
	p.registry.LeaveRoom(userID, room)
	return room, nil
}

func (p *Pipeline) fanout(ctx context.Context, room domain.RoomID, evt event.Event) {
	for _, sink := range p.registry.SinksForRoom(room) {
		if err := sink.Consume(ctx, evt); err != nil {
			p.metrics.IncrDeliveriesDropped()
			p.log.Debug("Room delivery failed", "room", room, "error", err)
		}
	}
}
