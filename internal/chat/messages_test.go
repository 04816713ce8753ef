package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationOrderingAndReadFlip(t *testing.T) {
	f := newFixture()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.messages.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	_, err := f.messages.Create(ctx, alice.ID, bob.ID, "one")
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, bob.ID, alice.ID, "two")
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, carol.ID, bob.ID, "elsewhere")
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, alice.ID, bob.ID, "three")
	require.NoError(t, err)

	first, err := f.messages.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].Timestamp.Before(first[i-1].Timestamp), "non-decreasing timestamps")
	}
	assert.Equal(t, []string{"one", "two", "three"}, []string{first[0].Content, first[1].Content, first[2].Content})
	for _, m := range first {
		if m.ReceiverID == bob.ID {
			assert.True(t, m.IsRead)
		}
	}

	// Bob's own message stays unread until alice fetches.
	assert.False(t, first[1].IsRead)

	second, err := f.messages.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	carolMsgs, err := f.messages.Conversation(ctx, carol.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, carolMsgs, 1)
	assert.False(t, carolMsgs[0].IsRead, "other conversations untouched")
}

func TestConversationErrors(t *testing.T) {
	f := newFixture()
	alice := f.user(t, "alice")
	ctx := context.Background()

	_, err := f.messages.Conversation(ctx, 0, alice.ID)
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.messages.Conversation(ctx, alice.ID, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkRead(t *testing.T) {
	f := newFixture()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	ctx := context.Background()

	msg, err := f.messages.Create(ctx, alice.ID, bob.ID, "hi")
	require.NoError(t, err)

	_, err = f.messages.MarkRead(ctx, alice.ID, msg.ID)
	require.ErrorIs(t, err, ErrForbidden)
	stored, err := f.store.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRead, "forbidden call must not mutate")

	for i := 0; i < 2; i++ {
		got, err := f.messages.MarkRead(ctx, bob.ID, msg.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)
	}

	_, err = f.messages.MarkRead(ctx, alice.ID, msg.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.messages.MarkRead(ctx, bob.ID, 12345)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.messages.MarkRead(ctx, 0, msg.ID)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestConversationsSummaries(t *testing.T) {
	f := newFixture()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	ctx := context.Background()

	_, err := f.messages.Create(ctx, bob.ID, alice.ID, "hey alice")
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, carol.ID, alice.ID, "from carol")
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, carol.ID, alice.ID, "again")
	require.NoError(t, err)

	convos, err := f.messages.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, convos, 2)
	assert.Equal(t, carol.ID, convos[0].UserID)
	assert.Equal(t, "again", convos[0].LastMessageContent)
	assert.Equal(t, 2, convos[0].UnreadCount)
	assert.Equal(t, bob.ID, convos[1].UserID)
	assert.Equal(t, 1, convos[1].UnreadCount)
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "not found", PublicMessage(ErrNotFound))
	assert.Equal(t, "internal error", PublicMessage(assert.AnError))
	assert.Empty(t, PublicMessage(nil))
}
