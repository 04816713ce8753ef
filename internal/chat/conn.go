package chat

import "github.com/hongminglow/chat-be/internal/models"

// Names of events pushed to live connections.
const (
	EventNewMessage  = "new_message"
	EventMessageSent = "message_sent"
	EventUserTyping  = "user_typing"
	EventError       = "error"
)

// Conn is a live connection handle. Push must not block: it enqueues the
// event and reports false when the connection cannot take it.
type Conn interface {
	ID() string
	Push(Event) bool
}

// Event is a server-initiated message addressed to one connection.
type Event struct {
	Name string
	Data any
}

// NewMessagePayload is pushed to the receiver of a new message.
type NewMessagePayload struct {
	Message models.Message    `json:"message"`
	Sender  models.PublicUser `json:"sender"`
}

// MessageSentPayload acknowledges a stored message to its sender.
type MessageSentPayload struct {
	Message models.Message `json:"message"`
}

// TypingPayload tells the receiver whether UserID is typing.
type TypingPayload struct {
	UserID   int64 `json:"user_id"`
	IsTyping bool  `json:"is_typing"`
}

// ErrorPayload reports a failed event to the connection that sent it.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrorEvent wraps err for delivery to the connection that caused it.
func ErrorEvent(err error) Event {
	return Event{Name: EventError, Data: ErrorPayload{Message: PublicMessage(err)}}
}
