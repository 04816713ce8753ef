package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hongminglow/chat-be/internal/models"
	"github.com/hongminglow/chat-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using GORM + SQLite for single-node deployments.
type Store struct {
	db *gorm.DB
}

// NewStore opens the database file and runs auto-migrations.
func NewStore(path string) (*Store, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	dsn := path + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	now := time.Now().UTC()
	m := UserModel{
		Username:     user.Username,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		LastSeen:     now,
		CreatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	return s.firstUser(ctx, "id = ?", id)
}

func (s *Store) FindByPhone(ctx context.Context, phone string) (models.User, error) {
	return s.firstUser(ctx, "phone = ?", phone)
}

func (s *Store) FindByUsernameOrPhone(ctx context.Context, identifier string) (models.User, error) {
	return s.firstUser(ctx, "username = ? OR phone = ?", identifier, identifier)
}

func (s *Store) firstUser(ctx context.Context, query string, args ...any) (models.User, error) {
	var m UserModel
	if err := s.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error) {
	pattern := storage.ContainsPattern(query)
	var rows []UserModel
	err := s.db.WithContext(ctx).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(phone) LIKE ? ESCAPE '\') AND id <> ?`, pattern, pattern, excludeID).
		Order("username").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toDomain())
	}
	return users, nil
}

func (s *Store) SetPresence(ctx context.Context, id int64, online bool, seen time.Time) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).
		Updates(map[string]any{"is_online": online, "last_seen": seen})
	return rowsOrNotFound(res)
}

func (s *Store) TouchLastSeen(ctx context.Context, id int64, seen time.Time) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Update("last_seen", seen)
	return rowsOrNotFound(res)
}

func (s *Store) ResetPresence(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&UserModel{}).Where("is_online = ?", true).Update("is_online", false).Error
}

func (s *Store) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	m := MessageModel{
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		CreatedAt:  msg.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return models.Message{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) FindMessage(ctx context.Context, id int64) (models.Message, error) {
	var m MessageModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Message{}, storage.ErrNotFound
		}
		return models.Message{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) ReadConversation(ctx context.Context, reader, other int64) ([]models.Message, error) {
	var rows []MessageModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&MessageModel{}).
			Where("sender_id = ? AND receiver_id = ? AND is_read = ?", other, reader, false).
			Update("is_read", true).Error; err != nil {
			return fmt.Errorf("mark conversation read: %w", err)
		}
		return tx.
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", reader, other, other, reader).
			Order("created_at ASC, id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, id int64) error {
	var m MessageModel
	if err := s.db.WithContext(ctx).Select("id").First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrNotFound
		}
		return err
	}
	return s.db.WithContext(ctx).Model(&MessageModel{}).Where("id = ?", id).Update("is_read", true).Error
}

// ListConversations folds the user's messages newest first into one summary per counterpart.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	var msgs []MessageModel
	if err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	index := make(map[int64]int)
	out := make([]models.ConversationSummary, 0)
	for _, m := range msgs {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		i, seen := index[other]
		if !seen {
			i = len(out)
			index[other] = i
			out = append(out, models.ConversationSummary{
				UserID:             other,
				LastMessageTime:    m.CreatedAt,
				LastMessageContent: m.Content,
			})
		}
		if m.ReceiverID == userID && !m.IsRead {
			out[i].UnreadCount++
		}
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(out))
	for _, c := range out {
		ids = append(ids, c.UserID)
	}
	var users []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		c := &out[index[u.ID]]
		c.Username = u.Username
		c.Phone = u.Phone
		c.IsOnline = u.IsOnline
		c.LastSeen = u.LastSeen
	}
	return out, nil
}

func rowsOrNotFound(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
