package repositories

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"pairchat/domain"
)

// SearchHit is one full-text match over a user's message history.
type SearchHit struct {
	MessageID  string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Body       string `json:"message"`
}

// MessageIndex maintains a full-text index of message bodies in Bluge.
// Indexing is best effort from the caller's point of view: the durable
// record lives in Badger, the index only serves search.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (s *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String())
	doc.AddField(bluge.NewTextField("body", message.Body).StoreValue())
	doc.AddField(bluge.NewKeywordField("sender", message.SenderID).StoreValue())
	doc.AddField(bluge.NewKeywordField("receiver", message.ReceiverID).StoreValue())
	doc.AddField(bluge.NewDateTimeField("createdAt", message.CreatedAt))
	return s.writer.Update(doc.ID(), doc)
}

// Search matches the query against message bodies, restricted to messages
// where the user is sender or receiver.
func (s *MessageIndex) Search(ctx context.Context, userID, query string, limit int) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Closing index reader failed", "error", err)
		}
	}()

	participant := bluge.NewBooleanQuery()
	participant.AddShould(bluge.NewTermQuery(userID).SetField("sender"))
	participant.AddShould(bluge.NewTermQuery(userID).SetField("receiver"))
	participant.SetMinShould(1)

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("body")).
		AddMust(participant)

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for match, err := iterator.Next(); match != nil; match, err = iterator.Next() {
		if err != nil {
			return nil, err
		}
		var hit SearchHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "body":
				hit.Body = string(value)
			case "sender":
				hit.SenderID = string(value)
			case "receiver":
				hit.ReceiverID = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		if _, err := uuid.Parse(hit.MessageID); err != nil {
			s.log.Debug("Skipping hit with malformed id", "id", hit.MessageID)
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
