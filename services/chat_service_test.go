package services

import (
	"context"
	"log/slog"
	"testing"

	"pairchat/domain"
	"pairchat/errors"
	"pairchat/mocks"
	"pairchat/observability"
	"pairchat/runtime"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatFixture struct {
	messages *mocks.MockIMessageRepository
	users    *mocks.MockIUserRepository
	store    *mocks.MockMessageStore
	registry *runtime.Registry
	svc      *ChatService
}

func chatSetup(t *testing.T) chatFixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	messages := mocks.NewMockIMessageRepository(ctrl)
	users := mocks.NewMockIUserRepository(ctrl)
	store := mocks.NewMockMessageStore(ctrl)
	registry := runtime.NewRegistry()
	receipts := runtime.NewReadReceipts(slog.Default(), store, registry, observability.NewMetrics())

	return chatFixture{
		messages: messages,
		users:    users,
		store:    store,
		registry: registry,
		svc:      NewChatService(messages, users, nil, store, registry, receipts),
	}
}

func TestChatService_History(t *testing.T) {
	reader := domain.Identity{UserID: "u2", DisplayName: "bob"}
	ctx := context.Background()

	t.Run("should page oldest first and mark the conversation read", func(t *testing.T) {
		req := require.New(t)
		f := chatSetup(t)

		// Repository pages newest first
		newestFirst := []domain.Message{
			{Body: "third"}, {Body: "second"}, {Body: "first"},
		}
		next := "cursor-token"

		f.store.EXPECT().UserExists(ctx, "u1").Return(true, nil).Times(1)
		f.messages.EXPECT().
			History(ctx, domain.RoomID("u1_u2"), nil).
			Return(newestFirst, &next, nil).Times(1)
		// Fetching a conversation means looking at it
		f.store.EXPECT().MarkRead(ctx, "u1", "u2").Return(3, nil).Times(1)

		page, cursor, err := f.svc.History(ctx, reader, "u1", nil)

		req.NoError(err)
		req.Equal(&next, cursor)
		req.Equal("first", page[0].Body)
		req.Equal("third", page[2].Body)
	})

	t.Run("should fail for an unknown peer before touching history", func(t *testing.T) {
		req := require.New(t)
		f := chatSetup(t)

		f.store.EXPECT().UserExists(ctx, "ghost").Return(false, nil).Times(1)

		_, _, err := f.svc.History(ctx, reader, "ghost", nil)

		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("should reject a self conversation", func(t *testing.T) {
		req := require.New(t)
		f := chatSetup(t)

		f.store.EXPECT().UserExists(ctx, "u2").Return(true, nil).Times(1)

		_, _, err := f.svc.History(ctx, reader, "u2", nil)

		req.ErrorIs(err, errors.ErrSelfRoom)
	})
}

func TestChatService_ListUsers(t *testing.T) {
	req := require.New(t)
	f := chatSetup(t)
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f.registry.Register(domain.Identity{UserID: "u1", DisplayName: "alice"}, "c1",
		mocks.NewMockEventSink(ctrl))

	f.users.EXPECT().
		ListUsers(ctx, "u2").
		Return([]domain.User{
			{ID: "u1", Username: "alice"},
			{ID: "u3", Username: "carol"},
		}, nil).Times(1)

	listed, err := f.svc.ListUsers(ctx, "u2")

	req.NoError(err)
	req.Len(listed, 2)
	req.True(listed[0].IsOnline)
	req.False(listed[1].IsOnline)
}

func TestChatService_UnreadCount(t *testing.T) {
	req := require.New(t)
	f := chatSetup(t)
	ctx := context.Background()

	f.messages.EXPECT().UnreadCount(ctx, "u2").Return(7, nil).Times(1)

	count, err := f.svc.UnreadCount(ctx, "u2")

	req.NoError(err)
	req.Equal(7, count)
}
