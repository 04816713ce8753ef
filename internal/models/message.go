package models

import "time"

// Message is a directed text message between two users. Only IsRead changes
// after creation.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"is_read"`
}

// ConversationSummary describes the latest exchange with one counterpart.
type ConversationSummary struct {
	UserID             int64     `json:"user_id"`
	Username           string    `json:"username"`
	Phone              string    `json:"phone"`
	IsOnline           bool      `json:"is_online"`
	LastSeen           time.Time `json:"last_seen"`
	LastMessageTime    time.Time `json:"last_message_time"`
	LastMessageContent string    `json:"last_message_content"`
	UnreadCount        int       `json:"unread_count"`
}
