//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pairchat/domain"
)

const (
	messageKeyPrefix = "msg:"
	unreadKeyPrefix  = "unread:"
	maxPaddedNano    = "9999999999999999999"
)

type IMessageRepository interface {
	Create(ctx context.Context, senderID, receiverID, body string, kind domain.MessageType) (domain.Message, error)
	MarkRead(ctx context.Context, senderID, receiverID string) (int, error)
	History(ctx context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	UnreadCount(ctx context.Context, receiverID string) (int, error)
}

// MessageRepository persists messages in BadgerDB.
//
// Message keys are "msg:{room}:{timestamp_padded}:{uuid}":
//  1. the 19-digit zero padding makes lexicographic order chronological,
//  2. the uuid disconnects collisions of two messages in the same nanosecond.
//
// Every unread message also writes an index entry
// "unread:{receiver}:{sender}:{uuid}" holding the message key, which gives
// MarkRead its batch and UnreadCount an O(prefix) scan.
type MessageRepository struct {
	db           *badger.DB
	log          *slog.Logger
	limitPerPage *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitPerPage *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitPerPage: limitPerPage}
}

func (m *MessageRepository) Create(_ context.Context, senderID, receiverID, body string, kind domain.MessageType) (domain.Message, error) {
	room, err := domain.RoomKey(senderID, receiverID)
	if err != nil {
		return domain.Message{}, err
	}

	message := domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		Type:       kind,
		IsRead:     false,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return domain.Message{}, err
	}

	msgKey := messageKey(room, message.CreatedAt, message.ID)
	idxKey := unreadKey(receiverID, senderID, message.ID)

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(msgKey), data); err != nil {
			return err
		}
		return txn.Set([]byte(idxKey), []byte(msgKey))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// MarkRead flips IsRead on every unread message from senderID to receiverID
// and drops the index entries, all in one transaction. It never touches the
// reversed direction because the index key embeds both ids in order.
func (m *MessageRepository) MarkRead(_ context.Context, senderID, receiverID string) (int, error) {
	count := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(unreadKeyPrefix + receiverID + ":" + senderID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		type pending struct {
			idxKey []byte
			msgKey []byte
		}
		var batch []pending
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			idxKey := item.KeyCopy(nil)
			msgKey, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			batch = append(batch, pending{idxKey: idxKey, msgKey: msgKey})
		}

		for _, p := range batch {
			item, err := txn.Get(p.msgKey)
			if err != nil {
				return err
			}
			var message domain.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			}); err != nil {
				return err
			}

			message.IsRead = true
			data, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(p.msgKey, data); err != nil {
				return err
			}
			if err := txn.Delete(p.idxKey); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// History pages backwards through the room, newest first. The returned
// cursor is the key suffix of the oldest message served and feeds the next
// call.
func (m *MessageRepository) History(_ context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := messageKeyPrefix + string(room) + ":"
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		if cursor == nil {
			// Past any real timestamp, then walk backwards.
			seekKey = append(prefix, []byte(maxPaddedNano)...)
		} else {
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitPerPage != nil && len(messages) == *m.limitPerPage {
				m.log.Debug(fmt.Sprintf("Page limit of %d messages reached", *m.limitPerPage))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])

			var message domain.Message
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}

func (m *MessageRepository) UnreadCount(_ context.Context, receiverID string) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(unreadKeyPrefix + receiverID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func messageKey(room domain.RoomID, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s%s:%019d:%s", messageKeyPrefix, room, at.UnixNano(), id)
}

func unreadKey(receiverID, senderID string, id uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s:%s", unreadKeyPrefix, receiverID, senderID, id)
}
