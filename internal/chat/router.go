package chat

import (
	"context"
	"log/slog"

	"github.com/hongminglow/chat-be/internal/models"
)

// Router persists messages sent over live connections and pushes them to
// the receiver when present.
type Router struct {
	messages *Messages
	presence *Presence
}

// NewRouter builds a router sharing the given registry.
func NewRouter(messages *Messages, presence *Presence) *Router {
	return &Router{messages: messages, presence: presence}
}

// Route stores the message, pushes new_message to the receiver's live
// connection if any, and acknowledges with message_sent on from. Pushes
// never block; a receiver that cannot take the event picks the message up
// from history instead. On error nothing is stored or pushed.
func (r *Router) Route(ctx context.Context, from Conn, senderID, receiverID int64, content string) (models.Message, error) {
	msg, sender, err := r.messages.create(ctx, senderID, receiverID, content)
	if err != nil {
		return models.Message{}, err
	}

	if to, ok := r.presence.Lookup(receiverID); ok {
		pushed := to.Push(Event{
			Name: EventNewMessage,
			Data: NewMessagePayload{Message: msg, Sender: sender.Public()},
		})
		if !pushed {
			slog.Warn("live push dropped", "message_id", msg.ID, "receiver_id", receiverID, "conn_id", to.ID())
		}
	}

	if from != nil {
		from.Push(Event{Name: EventMessageSent, Data: MessageSentPayload{Message: msg}})
	}
	return msg, nil
}
