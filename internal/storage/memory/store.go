package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/chat-be/internal/models"
	"github.com/hongminglow/chat-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps users and messages in-process. Every method holds the lock for
// its full duration, so multi-field updates are never partially visible.
type Store struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	messages map[int64]models.Message
	order    []int64
	nextUser int64
	nextMsg  int64
}

// NewStore initializes an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]models.User),
		messages: make(map[int64]models.Message),
	}
}

func (s *Store) Close() {}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username || u.Phone == user.Phone {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	s.nextUser++
	now := time.Now().UTC()
	user.ID = s.nextUser
	user.IsOnline = false
	user.LastSeen = now
	user.CreatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) FindByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindByPhone(_ context.Context, phone string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Phone == phone })
}

func (s *Store) FindByUsernameOrPhone(_ context.Context, identifier string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == identifier || u.Phone == identifier })
}

func (s *Store) find(match func(models.User) bool) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) SearchUsers(_ context.Context, query string, excludeID int64, limit int) ([]models.User, error) {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0)
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Phone), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetPresence(_ context.Context, id int64, online bool, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.IsOnline = online
	u.LastSeen = seen
	s.users[id] = u
	return nil
}

func (s *Store) TouchLastSeen(_ context.Context, id int64, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.LastSeen = seen
	s.users[id] = u
	return nil
}

func (s *Store) ResetPresence(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		u.IsOnline = false
		s.users[id] = u
	}
	return nil
}

func (s *Store) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMsg++
	msg.ID = s.nextMsg
	msg.IsRead = false
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	return msg, nil
}

func (s *Store) FindMessage(_ context.Context, id int64) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) ReadConversation(_ context.Context, reader, other int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0)
	for _, id := range s.order {
		m := s.messages[id]
		between := (m.SenderID == reader && m.ReceiverID == other) || (m.SenderID == other && m.ReceiverID == reader)
		if !between {
			continue
		}
		if m.SenderID == other && m.ReceiverID == reader && !m.IsRead {
			m.IsRead = true
			s.messages[id] = m
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.IsRead = true
	s.messages[id] = m
	return nil
}

func (s *Store) ListConversations(_ context.Context, userID int64) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index := make(map[int64]int)
	out := make([]models.ConversationSummary, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		m := s.messages[s.order[i]]
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		pos, seen := index[other]
		if !seen {
			u := s.users[other]
			pos = len(out)
			index[other] = pos
			out = append(out, models.ConversationSummary{
				UserID:             other,
				Username:           u.Username,
				Phone:              u.Phone,
				IsOnline:           u.IsOnline,
				LastSeen:           u.LastSeen,
				LastMessageTime:    m.Timestamp,
				LastMessageContent: m.Content,
			})
		}
		if m.ReceiverID == userID && !m.IsRead {
			out[pos].UnreadCount++
		}
	}
	return out, nil
}
