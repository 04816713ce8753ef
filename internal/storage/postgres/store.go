package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hongminglow/chat-be/internal/models"
	"github.com/hongminglow/chat-be/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const userColumns = `id, username, phone, password_hash, is_online, last_seen, created_at`

const messageColumns = `id, sender_id, receiver_id, content, created_at, is_read`

// Store provides Postgres-backed persistence for users and messages.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			phone TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_online BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS is_online BOOLEAN NOT NULL DEFAULT FALSE;`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW();`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			sender_id BIGINT NOT NULL REFERENCES users(id),
			receiver_id BIGINT NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_read BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, receiver_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (receiver_id) WHERE NOT is_read;`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row. New users always start offline.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (username, phone, password_hash, is_online, last_seen)
		VALUES ($1, $2, $3, FALSE, NOW())
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.Username, user.Phone, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// FindByID fetches a user by primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByPhone fetches a user by phone number.
func (s *Store) FindByPhone(ctx context.Context, phone string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

// FindByUsernameOrPhone fetches the first user matching the identifier as username or phone.
func (s *Store) FindByUsernameOrPhone(ctx context.Context, identifier string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 OR phone = $1 LIMIT 1`, identifier)
	return scanUser(row)
}

// SearchUsers matches username or phone case-insensitively.
func (s *Store) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error) {
	const stmt = `
	SELECT ` + userColumns + `
	FROM users
	WHERE (username ILIKE $1 ESCAPE '\' OR phone ILIKE $1 ESCAPE '\') AND id <> $2
	ORDER BY username
	LIMIT $3;
	`
	rows, err := s.pool.Query(ctx, stmt, storage.ContainsPattern(query), excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetPresence updates is_online and last_seen together.
func (s *Store) SetPresence(ctx context.Context, id int64, online bool, seen time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1`, id, online, seen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TouchLastSeen updates last_seen only.
func (s *Store) TouchLastSeen(ctx context.Context, id int64, seen time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_seen = $2 WHERE id = $1`, id, seen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ResetPresence marks everyone offline.
func (s *Store) ResetPresence(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET is_online = FALSE WHERE is_online`)
	return err
}

// CreateMessage inserts a message row and returns it with id and timestamp.
func (s *Store) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	const query = `
		INSERT INTO messages (sender_id, receiver_id, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING ` + messageColumns
	row := s.pool.QueryRow(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content, msg.Timestamp)
	return scanMessage(row)
}

// FindMessage fetches a message by id.
func (s *Store) FindMessage(ctx context.Context, id int64) (models.Message, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

// ReadConversation marks messages from other to reader as read and returns the conversation.
func (s *Store) ReadConversation(ctx context.Context, reader, other int64) ([]models.Message, error) {
	var out []models.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE messages SET is_read = TRUE WHERE sender_id = $1 AND receiver_id = $2 AND NOT is_read`,
			other, reader,
		); err != nil {
			return fmt.Errorf("mark conversation read: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at ASC, id ASC`,
			reader, other,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]models.Message, 0)
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead sets is_read on one message. Marking an already read message is not an error.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListConversations returns one summary per counterpart, newest first.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	const query = `
	WITH convo AS (
		SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS other_id,
			content, created_at, id
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
	), latest AS (
		SELECT DISTINCT ON (other_id) other_id, content, created_at
		FROM convo
		ORDER BY other_id, created_at DESC, id DESC
	)
	SELECT u.id, u.username, u.phone, u.is_online, u.last_seen, l.created_at, l.content,
	(
		SELECT COUNT(*) FROM messages m
		WHERE m.sender_id = u.id AND m.receiver_id = $1 AND NOT m.is_read
	)
	FROM latest l
	JOIN users u ON u.id = l.other_id
	ORDER BY l.created_at DESC;
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var c models.ConversationSummary
		if err := rows.Scan(&c.UserID, &c.Username, &c.Phone, &c.IsOnline, &c.LastSeen,
			&c.LastMessageTime, &c.LastMessageContent, &c.UnreadCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Phone, &user.PasswordHash, &user.IsOnline, &user.LastSeen, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Timestamp, &m.IsRead); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, storage.ErrNotFound
		}
		return models.Message{}, err
	}
	return m, nil
}
