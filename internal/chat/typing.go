package chat

// Typing forwards ephemeral typing indicators. Nothing is stored or retried.
type Typing struct {
	presence *Presence
}

// NewTyping builds a relay over the shared registry.
func NewTyping(presence *Presence) *Typing {
	return &Typing{presence: presence}
}

// Relay forwards the indicator to receiverID's live connection and reports
// whether it was handed off.
func (t *Typing) Relay(senderID, receiverID int64, isTyping bool) bool {
	to, ok := t.presence.Lookup(receiverID)
	if !ok {
		return false
	}
	return to.Push(Event{
		Name: EventUserTyping,
		Data: TypingPayload{UserID: senderID, IsTyping: isTyping},
	})
}
