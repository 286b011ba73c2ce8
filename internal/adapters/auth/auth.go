// Package auth provides Authenticator adapters. Token verification
// proper is an external concern; these adapters cover development and
// shared-secret deployments.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/slidewise/deckd/internal/core"
)

// Permissive accepts every connection. An empty token gets a generated
// anonymous user id; otherwise the token itself identifies the user.
// Intended for development and tests only.
type Permissive struct{}

// Authenticate implements core.Authenticator.
func (Permissive) Authenticate(ctx context.Context, token string) (*core.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return &core.Identity{UserID: "anon_" + uuid.NewString()[:12]}, nil
	}
	return &core.Identity{UserID: token}, nil
}

// Static validates tokens against a fixed token-to-user mapping.
type Static struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewStatic creates a static authenticator from a token -> user id map.
func NewStatic(tokens map[string]string) *Static {
	copied := make(map[string]string, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &Static{tokens: copied}
}

// Authenticate implements core.Authenticator.
func (s *Static) Authenticate(ctx context.Context, token string) (*core.Identity, error) {
	s.mu.RLock()
	userID, ok := s.tokens[strings.TrimSpace(token)]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrAuth("unknown token")
	}
	return &core.Identity{UserID: userID}, nil
}

// Add registers a token at runtime.
func (s *Static) Add(token, userID string) {
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
}
