// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/chat-be/internal/models"
	"github.com/hongminglow/chat-be/internal/storage"
)

// Run exercises store against the storage contract. Names are prefixed so
// the suite can run against a shared database.
func Run(t *testing.T, store storage.Store) {
	t.Helper()
	s := &suite{store: store, prefix: fmt.Sprintf("st%d", time.Now().UnixNano()%1_000_000_000)}

	t.Run("users", s.testUsers)
	t.Run("presence", s.testPresence)
	t.Run("search", s.testSearch)
	t.Run("conversation", s.testConversation)
	t.Run("summaries", s.testSummaries)
}

type suite struct {
	store  storage.Store
	prefix string
	seq    int
}

func (s *suite) user(t *testing.T, name string) models.User {
	t.Helper()
	s.seq++
	u, err := s.store.CreateUser(context.Background(), models.User{
		Username:     fmt.Sprintf("%s_%s", s.prefix, name),
		Phone:        fmt.Sprintf("+%s%03d", s.prefix, s.seq),
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return u
}

func (s *suite) message(t *testing.T, from, to models.User, content string, at time.Time) models.Message {
	t.Helper()
	m, err := s.store.CreateMessage(context.Background(), models.Message{
		SenderID:   from.ID,
		ReceiverID: to.ID,
		Content:    content,
		Timestamp:  at,
	})
	require.NoError(t, err)
	return m
}

func (s *suite) testUsers(t *testing.T) {
	ctx := context.Background()
	u := s.user(t, "ana")
	assert.NotZero(t, u.ID)
	assert.False(t, u.IsOnline)

	_, err := s.store.CreateUser(ctx, models.User{Username: u.Username, Phone: "+0000" + s.prefix, PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	byID, err := s.store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, byID.Username)
	assert.Equal(t, "hash", byID.PasswordHash)

	byPhone, err := s.store.FindByPhone(ctx, u.Phone)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byPhone.ID)

	for _, ident := range []string{u.Username, u.Phone} {
		got, err := s.store.FindByUsernameOrPhone(ctx, ident)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	}

	_, err = s.store.FindByID(ctx, -1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.store.FindByUsernameOrPhone(ctx, s.prefix+"_nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func (s *suite) testPresence(t *testing.T) {
	ctx := context.Background()
	u := s.user(t, "presence")
	seen := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.store.SetPresence(ctx, u.ID, true, seen))
	got, err := s.store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)
	assert.True(t, got.LastSeen.Equal(seen), "last_seen %v want %v", got.LastSeen, seen)

	later := seen.Add(time.Minute)
	require.NoError(t, s.store.TouchLastSeen(ctx, u.ID, later))
	got, err = s.store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline, "touching last_seen keeps is_online")
	assert.True(t, got.LastSeen.Equal(later))

	require.NoError(t, s.store.ResetPresence(ctx))
	got, err = s.store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)

	assert.ErrorIs(t, s.store.SetPresence(ctx, -1, true, seen), storage.ErrNotFound)
}

func (s *suite) testSearch(t *testing.T) {
	ctx := context.Background()
	self := s.user(t, "searcher")
	for i := 0; i < 3; i++ {
		s.user(t, fmt.Sprintf("findme%d", i))
	}

	found, err := s.store.SearchUsers(ctx, s.prefix+"_findme", self.ID, 10)
	require.NoError(t, err)
	assert.Len(t, found, 3)

	for _, wildcard := range []string{"%", s.prefix + "_find%", s.prefix + "_findm_0"} {
		none, err := s.store.SearchUsers(ctx, wildcard, self.ID, 10)
		require.NoError(t, err)
		assert.Emptyf(t, none, "query %q must match literally", wildcard)
	}

	limited, err := s.store.SearchUsers(ctx, s.prefix, self.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	for _, u := range limited {
		assert.NotEqual(t, self.ID, u.ID)
	}
}

func (s *suite) testConversation(t *testing.T) {
	ctx := context.Background()
	ana := s.user(t, "conv_ana")
	bob := s.user(t, "conv_bob")
	eve := s.user(t, "conv_eve")
	base := time.Now().UTC().Truncate(time.Second)

	s.message(t, ana, bob, "first", base)
	toAna := s.message(t, bob, ana, "second", base.Add(time.Second))
	s.message(t, ana, bob, "third", base.Add(2*time.Second))
	s.message(t, eve, ana, "elsewhere", base.Add(3*time.Second))

	got, err := s.store.FindMessage(ctx, toAna.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)

	msgs, err := s.store.ReadConversation(ctx, ana.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	assert.False(t, msgs[0].IsRead, "outgoing messages are not flipped")
	assert.True(t, msgs[1].IsRead)

	// Bob has not read ana's messages yet.
	got, err = s.store.FindMessage(ctx, msgs[2].ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)

	require.NoError(t, s.store.MarkRead(ctx, msgs[2].ID))
	require.NoError(t, s.store.MarkRead(ctx, msgs[2].ID))
	got, err = s.store.FindMessage(ctx, msgs[2].ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	assert.ErrorIs(t, s.store.MarkRead(ctx, -1), storage.ErrNotFound)
	_, err = s.store.FindMessage(ctx, -1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func (s *suite) testSummaries(t *testing.T) {
	ctx := context.Background()
	me := s.user(t, "sum_me")
	bob := s.user(t, "sum_bob")
	cid := s.user(t, "sum_cid")
	base := time.Now().UTC().Truncate(time.Second)

	s.message(t, bob, me, "b1", base)
	s.message(t, bob, me, "b2", base.Add(time.Second))
	s.message(t, me, cid, "c1", base.Add(2*time.Second))

	summaries, err := s.store.ListConversations(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, cid.ID, summaries[0].UserID, "most recent conversation first")
	assert.Equal(t, "c1", summaries[0].LastMessageContent)
	assert.Zero(t, summaries[0].UnreadCount)

	assert.Equal(t, bob.ID, summaries[1].UserID)
	assert.Equal(t, bob.Username, summaries[1].Username)
	assert.Equal(t, "b2", summaries[1].LastMessageContent)
	assert.Equal(t, 2, summaries[1].UnreadCount)

	empty, err := s.store.ListConversations(ctx, s.user(t, "sum_lonely").ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
