package runtime

import (
	"context"
	"log/slog"
	"testing"

	"pairchat/domain"
	"pairchat/domain/event"
	"pairchat/mocks"
	"pairchat/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestReadReceipts_MarkRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := domain.Identity{UserID: "u2", DisplayName: "bob"}

	t.Run("should ack the sender when they are connected", func(t *testing.T) {
		req := require.New(t)
		store := mocks.NewMockMessageStore(ctrl)
		registry := NewRegistry()

		senderSink := mocks.NewMockEventSink(ctrl)
		registry.Register(domain.Identity{UserID: "u1", DisplayName: "alice"}, "c1", senderSink)

		// Direction matters: u1's messages towards u2 flip, never the reverse
		store.EXPECT().MarkRead(gomock.Any(), "u1", "u2").Return(3, nil).Times(1)
		senderSink.EXPECT().
			Consume(gomock.Any(), gomock.Cond(func(e event.Event) bool {
				ack, ok := e.Payload.(event.ReadAck)
				return ok && e.Name == event.MessagesRead && ack.ReadBy == "u2" && ack.ReadByUsername == "bob"
			})).Return(nil).Times(1)

		receipts := NewReadReceipts(slog.Default(), store, registry, observability.NewMetrics())
		req.NoError(receipts.MarkRead(context.Background(), reader, "u1"))
	})

	t.Run("should skip the ack for a disconnected sender", func(t *testing.T) {
		req := require.New(t)
		store := mocks.NewMockMessageStore(ctrl)
		registry := NewRegistry()

		store.EXPECT().MarkRead(gomock.Any(), "u1", "u2").Return(0, nil).Times(1)

		receipts := NewReadReceipts(slog.Default(), store, registry, observability.NewMetrics())
		req.NoError(receipts.MarkRead(context.Background(), reader, "u1"))
	})

	t.Run("should emit no receipt for a failed mark", func(t *testing.T) {
		req := require.New(t)
		store := mocks.NewMockMessageStore(ctrl)
		registry := NewRegistry()

		senderSink := mocks.NewMockEventSink(ctrl)
		registry.Register(domain.Identity{UserID: "u1", DisplayName: "alice"}, "c1", senderSink)

		store.EXPECT().MarkRead(gomock.Any(), "u1", "u2").Return(0, context.DeadlineExceeded).Times(1)
		senderSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)

		receipts := NewReadReceipts(slog.Default(), store, registry, observability.NewMetrics())
		req.Error(receipts.MarkRead(context.Background(), reader, "u1"))
	})
}
