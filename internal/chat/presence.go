package chat

import "sync"

// Presence maps user ids to their live connection. A user has at most one
// entry; a later Join for the same user replaces the earlier handle.
// The reverse index keeps LeaveByHandle O(1).
type Presence struct {
	mu     sync.RWMutex
	byUser map[int64]Conn
	byConn map[string]int64
}

// NewPresence returns an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[int64]Conn),
		byConn: make(map[string]int64),
	}
}

// Join registers c as the live handle for userID, replacing any previous one.
func (p *Presence) Join(userID int64, c Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.byUser[userID]; ok {
		delete(p.byConn, prev.ID())
	}
	if old, ok := p.byConn[c.ID()]; ok && old != userID {
		delete(p.byUser, old)
	}
	p.byUser[userID] = c
	p.byConn[c.ID()] = userID
}

// LeaveByHandle removes the entry whose handle is c and returns its user id.
func (p *Presence) LeaveByHandle(c Conn) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.byConn[c.ID()]
	if !ok {
		return 0, false
	}
	delete(p.byConn, c.ID())
	delete(p.byUser, userID)
	return userID, true
}

// Lookup returns the live handle for userID.
func (p *Presence) Lookup(userID int64) (Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byUser[userID]
	return c, ok
}

// UserOf returns the user currently bound to c.
func (p *Presence) UserOf(c Conn) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	userID, ok := p.byConn[c.ID()]
	return userID, ok
}

// Online reports whether userID has a live entry.
func (p *Presence) Online(userID int64) bool {
	_, ok := p.Lookup(userID)
	return ok
}

// Len returns the number of present users.
func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}
