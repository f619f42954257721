package repositories

import (
	"context"
	stderrors "errors"
	"log/slog"

	"pairchat/contract"
	"pairchat/domain"
	"pairchat/errors"
)

// Store combines the message and user repositories behind the pipeline's
// MessageStore contract and feeds the search index on every create.
type Store struct {
	messages IMessageRepository
	users    IUserRepository
	index    *MessageIndex
	log      *slog.Logger
}

var _ contract.MessageStore = (*Store)(nil)

func NewStore(messages IMessageRepository, users IUserRepository, index *MessageIndex, log *slog.Logger) *Store {
	return &Store{messages: messages, users: users, index: index, log: log}
}

func (s *Store) Create(ctx context.Context, senderID, receiverID, body string, kind domain.MessageType) (domain.Message, error) {
	message, err := s.messages.Create(ctx, senderID, receiverID, body, kind)
	if err != nil {
		return domain.Message{}, err
	}
	if s.index != nil {
		// The Badger record is the source of truth; an indexing failure
		// only degrades search.
		if err := s.index.Index(message); err != nil {
			s.log.Warn("Message indexing failed", "id", message.ID, "error", err)
		}
	}
	return message, nil
}

func (s *Store) MarkRead(ctx context.Context, senderID, receiverID string) (int, error) {
	return s.messages.MarkRead(ctx, senderID, receiverID)
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	_, err := s.users.GetUserByID(ctx, userID)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.users.GetUserByID(ctx, userID)
}
