package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hongminglow/chat-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures persistence operations for users and their presence columns.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	FindByPhone(ctx context.Context, phone string) (models.User, error)
	FindByUsernameOrPhone(ctx context.Context, identifier string) (models.User, error)
	SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error)
	// SetPresence writes is_online and last_seen in a single statement.
	SetPresence(ctx context.Context, id int64, online bool, seen time.Time) error
	TouchLastSeen(ctx context.Context, id int64, seen time.Time) error
	// ResetPresence marks every user offline. Called once at startup.
	ResetPresence(ctx context.Context) error
}

// MessageStore captures persistence operations for direct messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	FindMessage(ctx context.Context, id int64) (models.Message, error)
	// ReadConversation flips unread messages from other to reader and returns
	// the whole conversation oldest first, in one transaction.
	ReadConversation(ctx context.Context, reader, other int64) ([]models.Message, error)
	MarkRead(ctx context.Context, id int64) error
	ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	UserStore
	MessageStore
	Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ContainsPattern turns a free-text query into a LIKE pattern matching it as a
// literal substring. Use it with ESCAPE '\'.
func ContainsPattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
}
