package core

import "time"

// Session is the server-side record for one client session. Created on
// first contact, restored from the store on reconnect, expired after a
// TTL that refreshes on each access.
type Session struct {
	SessionID    string            `json:"session_id"`
	UserID       string            `json:"user_id"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Requirements map[string]string `json:"requirements,omitempty"`
	DraftTitle   string            `json:"draft_title,omitempty"`

	// ActiveRequestID points at the in-flight workflow, if any, so a
	// reconnect can resume from its checkpoint.
	ActiveRequestID string `json:"active_request_id,omitempty"`
}

// NewSession creates a session valid for the given TTL.
func NewSession(sessionID, userID string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:    sessionID,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		Requirements: make(map[string]string),
	}
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// Touch extends the expiry by the given TTL from now.
func (s *Session) Touch(ttl time.Duration) {
	s.ExpiresAt = time.Now().UTC().Add(ttl)
}
