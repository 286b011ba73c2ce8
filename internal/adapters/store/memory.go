// Package store provides session and presentation persistence backends.
// The memory backend serves single-process deployments and tests; the
// sqlite backend survives restarts.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/slidewise/deckd/internal/core"
)

// MemoryStore is an in-memory SessionStore and PresentationStore.
// Expired sessions are evicted lazily on read.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]memorySession
	presentations map[string]*core.Presentation
	structures    []core.StoredStructure
}

type memorySession struct {
	session   *core.Session
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]memorySession),
		presentations: make(map[string]*core.Presentation),
	}
}

// GetSession returns the session or a not_found error when missing or
// expired.
func (m *MemoryStore) GetSession(ctx context.Context, id string) (*core.Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, core.ErrNotFound("session", id)
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, core.ErrNotFound("session", id)
	}
	return entry.session, nil
}

// SetSession stores or refreshes a session with the given TTL.
func (m *MemoryStore) SetSession(ctx context.Context, s *core.Session, ttl time.Duration) error {
	if s == nil || s.SessionID == "" {
		return core.ErrValidation(core.CodeSessionError, "session must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = memorySession{session: s, expiresAt: time.Now().Add(ttl)}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an
// error.
func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// SavePresentation stores a finished presentation.
func (m *MemoryStore) SavePresentation(ctx context.Context, sessionID string, p *core.Presentation) error {
	if p == nil || p.PresentationID == "" {
		return core.ErrValidation(core.CodeInvalidState, "presentation must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presentations[p.PresentationID] = p
	return nil
}

// GetPresentation returns a stored presentation by id.
func (m *MemoryStore) GetPresentation(ctx context.Context, id string) (*core.Presentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presentations[id]
	if !ok {
		return nil, core.ErrNotFound("presentation", id)
	}
	return p, nil
}

// SaveStructure records a structure draft with its embedding for
// similarity queries.
func (m *MemoryStore) SaveStructure(ctx context.Context, sessionID, presentationID string, s *core.Structure, embedding []float32) error {
	if s == nil {
		return core.ErrValidation(core.CodeInvalidState, "structure must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structures = append(m.structures, core.StoredStructure{
		PresentationID: presentationID,
		SessionID:      sessionID,
		Structure:      s,
		Embedding:      embedding,
		CreatedAt:      time.Now(),
	})
	return nil
}

// FindSimilar returns up to limit stored structures ordered by cosine
// similarity, best first.
func (m *MemoryStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]core.StoredStructure, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry core.StoredStructure
		score float64
	}
	results := make([]scored, 0, len(m.structures))
	for _, entry := range m.structures {
		results = append(results, scored{entry: entry, score: cosineSimilarity(embedding, entry.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]core.StoredStructure, 0, len(results))
	for _, r := range results {
		out = append(out, r.entry)
	}
	return out, nil
}
