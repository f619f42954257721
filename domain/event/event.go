// Package event defines the wire-level events exchanged with connected
// clients. Inbound names are handled by the transport dispatch table,
// outbound payloads are fanned out to EventSinks.
package event

import (
	"time"

	"github.com/google/uuid"

	"pairchat/domain"
)

type Name string

// Inbound events, one logical channel per authenticated user.
const (
	JoinChat         Name = "join_chat"
	LeaveChat        Name = "leave_chat"
	SendMessage      Name = "send_message"
	Typing           Name = "typing"
	MarkMessagesRead Name = "mark_messages_read"
	UserLogout       Name = "user_logout"
)

// Outbound events.
const (
	UsersOnline            Name = "users_online"
	ReceiveMessage         Name = "receive_message"
	NewMessageNotification Name = "new_message_notification"
	UserTyping             Name = "user_typing"
	MessagesRead           Name = "messages_read"
	Error                  Name = "error"
)

// Event is an outbound envelope handed to EventSinks. The payload is one of
// the typed structs below and marshals as the "data" member on the wire.
type Event struct {
	Name    Name
	Payload any
}

// OnlineUser is one entry of a full presence snapshot.
type OnlineUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Delivered is the room-scoped delivery of a persisted message.
type Delivered struct {
	ID         uuid.UUID          `json:"id"`
	SenderID   string             `json:"senderId"`
	ReceiverID string             `json:"receiverId"`
	Body       string             `json:"message"`
	Type       domain.MessageType `json:"messageType"`
	IsRead     bool               `json:"isRead"`
	CreatedAt  time.Time          `json:"createdAt"`
	Sender     domain.Summary     `json:"sender"`
	Receiver   domain.Summary     `json:"receiver"`
}

// Notification reaches the receiver's personal channel regardless of room
// membership.
type Notification struct {
	From     string `json:"from"`
	Message  string `json:"message"`
	SenderID string `json:"senderId"`
}

// TypingSignal tells the peer whether the subject is composing.
type TypingSignal struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ReadAck notifies the original sender that their messages were read.
type ReadAck struct {
	ReadBy         string `json:"readBy"`
	ReadByUsername string `json:"readByUsername"`
}

// Failure is reported only to the connection whose operation failed.
type Failure struct {
	Message string `json:"message"`
}

func NewDelivered(m domain.Message, sender, receiver domain.Summary) Delivered {
	return Delivered{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Body:       m.Body,
		Type:       m.Type,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
		Sender:     sender,
		Receiver:   receiver,
	}
}
