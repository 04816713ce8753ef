package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hongminglow/chat-be/internal/models"
	"github.com/hongminglow/chat-be/internal/storage"
)

// Messages owns message creation, conversation history and read state.
// It is the only path that writes messages, used by both the HTTP handlers
// and the live Router.
type Messages struct {
	users    storage.UserStore
	messages storage.MessageStore
	now      func() time.Time
}

// NewMessages builds the service over the given stores.
func NewMessages(users storage.UserStore, messages storage.MessageStore) *Messages {
	return &Messages{
		users:    users,
		messages: messages,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a message. It returns only after the message
// is durable.
func (m *Messages) Create(ctx context.Context, senderID, receiverID int64, content string) (models.Message, error) {
	msg, _, err := m.create(ctx, senderID, receiverID, content)
	return msg, err
}

func (m *Messages) create(ctx context.Context, senderID, receiverID int64, content string) (models.Message, models.User, error) {
	content = strings.TrimSpace(content)
	if senderID == 0 || receiverID == 0 || content == "" {
		return models.Message{}, models.User{}, fmt.Errorf("%w: sender_id, receiver_id and content are required", ErrValidation)
	}
	if senderID == receiverID {
		return models.Message{}, models.User{}, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}

	sender, err := m.lookupUser(ctx, senderID, "sender")
	if err != nil {
		return models.Message{}, models.User{}, err
	}
	if _, err := m.lookupUser(ctx, receiverID, "receiver"); err != nil {
		return models.Message{}, models.User{}, err
	}

	created, err := m.messages.CreateMessage(ctx, models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  m.now(),
	})
	if err != nil {
		return models.Message{}, models.User{}, fmt.Errorf("persist message: %w", err)
	}
	return created, sender, nil
}

// Conversation returns every message between current and other, oldest
// first, after flipping the ones addressed to current to read.
func (m *Messages) Conversation(ctx context.Context, current, other int64) ([]models.Message, error) {
	if current == 0 {
		return nil, ErrUnauthenticated
	}
	if other == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if _, err := m.lookupUser(ctx, other, "user"); err != nil {
		return nil, err
	}
	msgs, err := m.messages.ReadConversation(ctx, current, other)
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	return msgs, nil
}

// MarkRead flags one message as read. Only its receiver may do so; repeating
// the call is a no-op.
func (m *Messages) MarkRead(ctx context.Context, actor, messageID int64) (models.Message, error) {
	if actor == 0 {
		return models.Message{}, ErrUnauthenticated
	}
	msg, err := m.messages.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Message{}, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return models.Message{}, fmt.Errorf("find message: %w", err)
	}
	if msg.ReceiverID != actor {
		return models.Message{}, fmt.Errorf("%w: only the receiver may mark a message read", ErrForbidden)
	}
	if msg.IsRead {
		return msg, nil
	}
	if err := m.messages.MarkRead(ctx, messageID); err != nil {
		return models.Message{}, fmt.Errorf("mark read: %w", err)
	}
	msg.IsRead = true
	return msg, nil
}

// Conversations lists the counterparts of userID with their latest message.
func (m *Messages) Conversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	return m.messages.ListConversations(ctx, userID)
}

func (m *Messages) lookupUser(ctx context.Context, id int64, role string) (models.User, error) {
	u, err := m.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, fmt.Errorf("%w: %s %d", ErrNotFound, role, id)
		}
		return models.User{}, fmt.Errorf("find %s: %w", role, err)
	}
	return u, nil
}
