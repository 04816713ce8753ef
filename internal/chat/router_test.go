package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteReceiverAbsent(t *testing.T) {
	f := newFixture()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	a := newFakeConn("a")
	ctx := context.Background()
	require.NoError(t, f.sessions.Join(ctx, a, alice.ID))

	msg, err := f.router.Route(ctx, a, alice.ID, bob.ID, "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.IsRead)

	sent := a.named(EventMessageSent)
	require.Len(t, sent, 1)
	assert.Equal(t, msg, sent[0].Data.(MessageSentPayload).Message)

	stored, err := f.store.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRead, "unread until bob fetches history")

	b := newFakeConn("b")
	require.NoError(t, f.sessions.Join(ctx, b, bob.ID))
	assert.Empty(t, b.events, "nothing is queued for later joiners")

	history, err := f.messages.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
	assert.True(t, history[0].IsRead)
}

func TestRouteReceiverPresent(t *testing.T) {
	f := newFixture()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	a, b := newFakeConn("a"), newFakeConn("b")
	ctx := context.Background()
	require.NoError(t, f.sessions.Join(ctx, a, alice.ID))
	require.NoError(t, f.sessions.Join(ctx, b, bob.ID))

	msg, err := f.router.Route(ctx, a, alice.ID, bob.ID, "hi")
	require.NoError(t, err)

	pushed := b.named(EventNewMessage)
	require.Len(t, pushed, 1)
	payload := pushed[0].Data.(NewMessagePayload)
	assert.Equal(t, msg, payload.Message)
	assert.Equal(t, alice.ID, payload.Sender.ID)
	assert.Equal(t, "alice", payload.Sender.Username)
	assert.Empty(t, a.named(EventNewMessage), "sender gets only the ack")
	require.Len(t, a.named(EventMessageSent), 1)

	history, err := f.messages.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsRead)
}

func TestRouteValidation(t *testing.T) {
	f := newFixture()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	a, b := newFakeConn("a"), newFakeConn("b")
	ctx := context.Background()
	require.NoError(t, f.sessions.Join(ctx, b, bob.ID))

	cases := []struct {
		name     string
		sender   int64
		receiver int64
		content  string
		want     error
	}{
		{"missing sender", 0, bob.ID, "hi", ErrValidation},
		{"missing receiver", alice.ID, 0, "hi", ErrValidation},
		{"blank content", alice.ID, bob.ID, "   ", ErrValidation},
		{"unknown receiver", alice.ID, 999, "hi", ErrNotFound},
		{"unknown sender", 999, bob.ID, "hi", ErrNotFound},
		{"message to self", bob.ID, bob.ID, "hi", ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.router.Route(ctx, a, tc.sender, tc.receiver, tc.content)
			require.ErrorIs(t, err, tc.want)
		})
	}

	assert.Empty(t, b.events, "receiver is never contacted on failure")
	assert.Empty(t, a.named(EventMessageSent))
	convos, err := f.messages.Conversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, convos, "no message persisted")
}

func TestRouteFullReceiverDoesNotBlock(t *testing.T) {
	f := newFixture()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	a, b := newFakeConn("a"), newFakeConn("b")
	b.full = true
	ctx := context.Background()
	require.NoError(t, f.sessions.Join(ctx, b, bob.ID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.router.Route(ctx, a, alice.ID, bob.ID, "are you there?")
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Route blocked on a full receiver")
	}
	require.Len(t, a.named(EventMessageSent), 1)

	history, err := f.messages.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "exactly one durable record")
}

func TestTypingRelay(t *testing.T) {
	f := newFixture()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	b := newFakeConn("b")
	ctx := context.Background()

	assert.False(t, f.typing.Relay(alice.ID, bob.ID, true), "dropped while bob is absent")

	require.NoError(t, f.sessions.Join(ctx, b, bob.ID))
	assert.True(t, f.typing.Relay(alice.ID, bob.ID, true))

	events := b.named(EventUserTyping)
	require.Len(t, events, 1)
	assert.Equal(t, TypingPayload{UserID: alice.ID, IsTyping: true}, events[0].Data)
}
