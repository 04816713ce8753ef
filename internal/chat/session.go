package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hongminglow/chat-be/internal/storage"
)

// Sessions drives the per-connection lifecycle
// (connected -> joined -> disconnected). Every presence transition writes
// the registry and the persisted is_online flag while holding mu, so no
// other transition observes one without the other.
type Sessions struct {
	mu       sync.Mutex
	presence *Presence
	users    storage.UserStore
	now      func() time.Time

	// pendingOffline holds users whose offline write failed after their
	// entry left the registry. Sweep and the next transition retry them.
	pendingOffline map[int64]time.Time
	retryDelay     time.Duration
}

const (
	offlineAttempts = 3
	offlineTimeout  = 2 * time.Second
)

// NewSessions builds a session handler over the shared registry.
func NewSessions(presence *Presence, users storage.UserStore) *Sessions {
	return &Sessions{
		presence: presence,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },

		pendingOffline: make(map[int64]time.Time),
		retryDelay:     100 * time.Millisecond,
	}
}

// Connect records a transport-level open. No state changes.
func (s *Sessions) Connect(c Conn) {
	slog.Debug("live connection opened", "conn_id", c.ID())
}

// Join binds c to userID. A connection already bound to someone else is
// released first.
func (s *Sessions) Join(ctx context.Context, c Conn, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return fmt.Errorf("find user: %w", err)
	}

	if prev, ok := s.presence.UserOf(c); ok && prev != userID {
		s.leaveLocked(ctx, c)
	}

	if err := s.users.SetPresence(ctx, userID, true, s.now()); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	delete(s.pendingOffline, userID)
	s.presence.Join(userID, c)
	s.flushPendingLocked(ctx)
	slog.Info("user joined", "user_id", userID, "conn_id", c.ID())
	return nil
}

// Disconnect releases c. Calling it for an unbound or already released
// connection does nothing.
func (s *Sessions) Disconnect(ctx context.Context, c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked(ctx, c)
	s.flushPendingLocked(ctx)
}

// Sweep retries offline writes that failed during earlier disconnects.
func (s *Sessions) Sweep(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushPendingLocked(ctx)
}

// Pending reports how many users still await their offline write.
func (s *Sessions) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingOffline)
}

// Identity returns the user bound to c, if any.
func (s *Sessions) Identity(c Conn) (int64, bool) {
	return s.presence.UserOf(c)
}

func (s *Sessions) leaveLocked(ctx context.Context, c Conn) {
	userID, ok := s.presence.UserOf(c)
	if !ok {
		slog.Debug("live connection closed before join", "conn_id", c.ID())
		return
	}
	seen := s.now()
	if err := s.markOffline(ctx, userID, seen); err != nil {
		slog.Error("mark offline failed, will retry", "user_id", userID, "conn_id", c.ID(), "err", err)
		s.pendingOffline[userID] = seen
	}
	s.presence.LeaveByHandle(c)
	slog.Info("user left", "user_id", userID, "conn_id", c.ID())
}

// markOffline writes is_online=false, retrying with a fresh bounded context
// so a cancelled caller context cannot leave the flag stuck.
func (s *Sessions) markOffline(ctx context.Context, userID int64, seen time.Time) error {
	base := context.WithoutCancel(ctx)
	var err error
	for attempt := 0; attempt < offlineAttempts; attempt++ {
		if attempt > 0 && s.retryDelay > 0 {
			time.Sleep(s.retryDelay)
		}
		attemptCtx, cancel := context.WithTimeout(base, offlineTimeout)
		err = s.users.SetPresence(attemptCtx, userID, false, seen)
		cancel()
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return nil
		}
	}
	return err
}

func (s *Sessions) flushPendingLocked(ctx context.Context) {
	for userID, seen := range s.pendingOffline {
		if s.presence.Online(userID) {
			delete(s.pendingOffline, userID)
			continue
		}
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), offlineTimeout)
		err := s.users.SetPresence(attemptCtx, userID, false, seen)
		cancel()
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("offline retry failed", "user_id", userID, "err", err)
			continue
		}
		delete(s.pendingOffline, userID)
		slog.Info("offline write reconciled", "user_id", userID)
	}
}
