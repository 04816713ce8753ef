package sqlite

import (
	"time"

	"github.com/hongminglow/chat-be/internal/models"
)

// GORM models used for persistence.
type UserModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Phone        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	IsOnline     bool      `gorm:"not null;default:false"`
	LastSeen     time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type MessageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	SenderID   int64     `gorm:"not null;index:idx_messages_pair,priority:1"`
	ReceiverID int64     `gorm:"not null;index:idx_messages_pair,priority:2;index"`
	Content    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
	IsRead     bool      `gorm:"not null;default:false"`
}

func (MessageModel) TableName() string { return "messages" }

func (m UserModel) toDomain() models.User {
	return models.User{
		ID:           m.ID,
		Username:     m.Username,
		Phone:        m.Phone,
		PasswordHash: m.PasswordHash,
		IsOnline:     m.IsOnline,
		LastSeen:     m.LastSeen,
		CreatedAt:    m.CreatedAt,
	}
}

func (m MessageModel) toDomain() models.Message {
	return models.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.CreatedAt,
		IsRead:     m.IsRead,
	}
}
