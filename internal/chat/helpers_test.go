package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hongminglow/chat-be/internal/models"
	"github.com/hongminglow/chat-be/internal/storage/memory"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []Event
	full   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Push(e Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.events = append(f.events, e)
	return true
}

func (f *fakeConn) named(name string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, e := range f.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store    *memory.Store
	presence *Presence
	sessions *Sessions
	messages *Messages
	router   *Router
	typing   *Typing
	seq      int
}

func newFixture() *fixture {
	store := memory.NewStore()
	presence := NewPresence()
	messages := NewMessages(store, store)
	return &fixture{
		store:    store,
		presence: presence,
		sessions: NewSessions(presence, store),
		messages: messages,
		router:   NewRouter(messages, presence),
		typing:   NewTyping(presence),
	}
}

func (f *fixture) user(t *testing.T, name string) models.User {
	t.Helper()
	f.seq++
	u, err := f.store.CreateUser(context.Background(), models.User{
		Username:     name,
		Phone:        fmt.Sprintf("+55 11 9%04d-0000", f.seq),
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) online(t *testing.T, id int64) bool {
	t.Helper()
	u, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u.IsOnline
}

// requirePresenceConsistent checks is_online against the registry for every user.
func (f *fixture) requirePresenceConsistent(t *testing.T, users ...models.User) {
	t.Helper()
	for _, u := range users {
		require.Equalf(t, f.presence.Online(u.ID), f.online(t, u.ID), "user %s", u.Username)
	}
}
