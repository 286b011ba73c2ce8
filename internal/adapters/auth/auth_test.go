package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/slidewise/deckd/internal/core"
)

func TestPermissiveGeneratesAnonymousID(t *testing.T) {
	ctx := context.Background()
	first, err := Permissive{}.Authenticate(ctx, "")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !strings.HasPrefix(first.UserID, "anon_") {
		t.Errorf("UserID = %q, want anon_ prefix", first.UserID)
	}
	second, _ := Permissive{}.Authenticate(ctx, "  ")
	if first.UserID == second.UserID {
		t.Error("anonymous ids should be unique per connection")
	}
}

func TestPermissiveUsesTokenAsUserID(t *testing.T) {
	identity, err := Permissive{}.Authenticate(context.Background(), " user-42 ")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity.UserID != "user-42" {
		t.Errorf("UserID = %q, want user-42", identity.UserID)
	}
}

func TestStaticAcceptsKnownToken(t *testing.T) {
	s := NewStatic(map[string]string{"secret-1": "alice"})
	identity, err := s.Authenticate(context.Background(), "secret-1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", identity.UserID)
	}
}

func TestStaticRejectsUnknownToken(t *testing.T) {
	s := NewStatic(map[string]string{"secret-1": "alice"})
	_, err := s.Authenticate(context.Background(), "wrong")
	if !core.IsCategory(err, core.ErrCatAuth) {
		t.Errorf("error category = %v, want auth", core.GetCategory(err))
	}
}

func TestStaticAddRegistersToken(t *testing.T) {
	s := NewStatic(nil)
	s.Add("secret-2", "bob")
	identity, err := s.Authenticate(context.Background(), "secret-2")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity.UserID != "bob" {
		t.Errorf("UserID = %q, want bob", identity.UserID)
	}
}
