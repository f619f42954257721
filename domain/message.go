package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength is the upper bound on a message body after trimming.
const MaxMessageLength = 1000

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Message is a durably recorded chat message. The ID is assigned by the
// store. Everything except IsRead is immutable; IsRead only ever
// transitions false to true.
type Message struct {
	ID         uuid.UUID   `json:"id"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	Body       string      `json:"message"`
	Type       MessageType `json:"messageType"`
	IsRead     bool        `json:"isRead"`
	CreatedAt  time.Time   `json:"createdAt"`
}
