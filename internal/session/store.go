package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for an unknown or expired session id.
	ErrNotFound = errors.New("session not found")

	// ErrBusy is returned when a session is already running a step.
	ErrBusy = errors.New("session is busy")
)

// Session is one API client's workspace. The Run is only reachable through
// Do and View, which serialize access to it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu   sync.Mutex
	busy bool
	run  *Run

	// lastSeen is guarded by Store.mu.
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session's run. fn may replace
// the run by returning a new one; returning nil keeps the current run.
// A second Do while one is in progress fails with ErrBusy instead of
// queueing, so a slow crawl is never started twice.
func (s *Session) Do(fn func(run *Run) (*Run, error)) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	run := s.run
	s.mu.Unlock()

	next, err := fn(run)

	s.mu.Lock()
	if next != nil {
		s.run = next
	}
	s.busy = false
	s.mu.Unlock()
	return err
}

// View calls fn with the current run, which may be nil. It fails with
// ErrBusy while a Do is in progress.
func (s *Session) View(fn func(run *Run) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	return fn(s.run)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithHooks sets callbacks invoked when a session is created and removed.
func WithHooks(opened, closed func()) StoreOption {
	return func(s *Store) {
		s.opened = opened
		s.closed = closed
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store keeps sessions in memory, keyed by random UUID. A session that has
// not been accessed for the TTL is removed.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration

	now    func() time.Time
	opened func()
	closed func()
	logger *slog.Logger
}

// NewStore creates a Store. A non-positive ttl disables expiry.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new session.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if s.opened != nil {
		s.opened()
	}
	s.logger.Debug("session created", "session_id", sess.ID)
	return sess
}

// Get returns the session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && s.expired(sess) {
		delete(s.sessions, id)
		ok = false
		s.mu.Unlock()
		s.notifyClosed(1)
		return nil, ErrNotFound
	}
	if ok {
		sess.lastSeen = s.now()
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete removes a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.notifyClosed(1)
	}
	return ok
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()

	s.notifyClosed(removed)
	if removed > 0 {
		s.logger.Debug("expired sessions removed", "count", removed)
	}
	return removed
}

// Janitor calls Sweep every interval until ctx is done.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// expired must be called with s.mu held.
func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.lastSeen) > s.ttl
}

func (s *Store) notifyClosed(n int) {
	if s.closed == nil {
		return
	}
	for range n {
		s.closed()
	}
}
