package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/events"
	"github.com/slidewise/deckd/internal/logging"
)

// Sessions owns session lifecycle: creation, restore on reconnect, TTL
// refresh, and the one-active-workflow guarantee per session. The busy
// flag is in-process state; workflow execution never spans instances.
type Sessions struct {
	store core.SessionStore
	bus   *events.Bus // may be nil
	log   *logging.Logger
	ttl   time.Duration
	retry *RetryPolicy

	mu   sync.Mutex
	busy map[string]bool
}

// NewSessions creates the session service.
func NewSessions(store core.SessionStore, bus *events.Bus, log *logging.Logger, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{
		store: store,
		bus:   bus,
		log:   log,
		ttl:   ttl,
		retry: StoreRetryPolicy(),
		busy:  make(map[string]bool),
	}
}

// Create starts a fresh session for the user.
func (s *Sessions) Create(ctx context.Context, userID string) (*core.Session, error) {
	session := core.NewSession(uuid.NewString(), userID, s.ttl)
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.Publish(events.NewSessionCreatedEvent(session.SessionID, userID))
	}
	s.log.WithSession(session.SessionID).Info("session created", "user_id", userID)
	return session, nil
}

// Restore looks up a prior session. A missing or expired session id is
// not an error: the client gets a fresh session and restored=false, so a
// stale id never blocks a reconnect.
func (s *Sessions) Restore(ctx context.Context, sessionID, userID string) (session *core.Session, restored bool, err error) {
	found, err := s.store.GetSession(ctx, sessionID)
	if err != nil && !core.IsCategory(err, core.ErrCatNotFound) {
		return nil, false, err
	}
	if found == nil || found.Expired() {
		s.log.WithSession(sessionID).Info("session not restorable, creating fresh")
		fresh, cerr := s.Create(ctx, userID)
		return fresh, false, cerr
	}

	found.Touch(s.ttl)
	if err := s.persist(ctx, found); err != nil {
		return nil, false, err
	}
	s.log.WithSession(found.SessionID).Info("session restored", "user_id", found.UserID)
	return found, true, nil
}

// Save persists session mutations and refreshes the TTL.
func (s *Sessions) Save(ctx context.Context, session *core.Session) error {
	session.Touch(s.ttl)
	return s.persist(ctx, session)
}

// Close deletes a session and releases its busy flag.
func (s *Sessions) Close(ctx context.Context, sessionID, reason string) error {
	s.mu.Lock()
	delete(s.busy, sessionID)
	s.mu.Unlock()

	if err := s.store.DeleteSession(ctx, sessionID); err != nil && !core.IsCategory(err, core.ErrCatNotFound) {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(events.NewSessionClosedEvent(sessionID, reason))
	}
	return nil
}

// AcquireWorkflow claims the session's single workflow slot. The release
// func must be called on every exit path of the workflow, success or
// failure; a second acquire while held fails with a busy error.
func (s *Sessions) AcquireWorkflow(sessionID string) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[sessionID] {
		return nil, core.ErrState(core.CodeWorkflowBusy,
			"a workflow is already running for this session")
	}
	s.busy[sessionID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.busy, sessionID)
			s.mu.Unlock()
		})
	}, nil
}

// Busy reports whether the session currently holds its workflow slot.
func (s *Sessions) Busy(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[sessionID]
}

func (s *Sessions) persist(ctx context.Context, session *core.Session) error {
	return s.retry.Execute(ctx, func(ctx context.Context) error {
		return s.store.SetSession(ctx, session, s.ttl)
	})
}
