package services

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"pairchat/contract"
	"pairchat/domain"
	"pairchat/errors"
	"pairchat/repositories"
	"pairchat/runtime"
)

// UserPresence is a directory entry enriched with live presence.
type UserPresence struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

type IChatService interface {
	History(ctx context.Context, reader domain.Identity, peerID string, cursor *string) ([]domain.Message, *string, error)
	ListUsers(ctx context.Context, excludeID string) ([]UserPresence, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	Search(ctx context.Context, userID, query string, limit int) ([]repositories.SearchHit, error)
}

// ChatService is the query side of the coordinator: paginated history, the
// user directory with presence, unread counts and full-text search. Sends
// go through the Pipeline, not through here.
type ChatService struct {
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	index    *repositories.MessageIndex
	store    contract.MessageStore
	registry *runtime.Registry
	receipts *runtime.ReadReceipts
}

func NewChatService(messages repositories.IMessageRepository, users repositories.IUserRepository,
	index *repositories.MessageIndex, store contract.MessageStore,
	registry *runtime.Registry, receipts *runtime.ReadReceipts) *ChatService {
	return &ChatService{
		messages: messages,
		users:    users,
		index:    index,
		store:    store,
		registry: registry,
		receipts: receipts,
	}
}

// History returns one page of the pair's conversation, oldest first, and
// marks the peer's messages to the reader as read (fetching a conversation
// means looking at it).
func (s *ChatService) History(ctx context.Context, reader domain.Identity, peerID string, cursor *string) ([]domain.Message, *string, error) {
	exists, err := s.store.UserExists(ctx, peerID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving peer: %w", err)
	}
	if !exists {
		return nil, nil, errors.ErrUserNotFound
	}

	room, err := domain.RoomKey(reader.UserID, peerID)
	if err != nil {
		return nil, nil, err
	}

	messages, next, err := s.messages.History(ctx, room, cursor)
	if err != nil {
		return nil, nil, err
	}

	if err := s.receipts.MarkRead(ctx, reader, peerID); err != nil {
		return nil, nil, err
	}

	// The repository pages newest first; clients render oldest first.
	return lo.Reverse(messages), next, nil
}

func (s *ChatService) ListUsers(ctx context.Context, excludeID string) ([]UserPresence, error) {
	users, err := s.users.ListUsers(ctx, excludeID)
	if err != nil {
		return nil, err
	}

	online := make(map[string]struct{})
	for _, u := range s.registry.Snapshot() {
		online[u.ID] = struct{}{}
	}

	return lo.Map(users, func(u domain.User, _ int) UserPresence {
		_, isOnline := online[u.ID]
		return UserPresence{ID: u.ID, Username: u.Username, IsOnline: isOnline}
	}), nil
}

func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.messages.UnreadCount(ctx, userID)
}

func (s *ChatService) Search(ctx context.Context, userID, query string, limit int) ([]repositories.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.index.Search(ctx, userID, query, limit)
}
