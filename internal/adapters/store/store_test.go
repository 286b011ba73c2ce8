package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/slidewise/deckd/internal/core"
)

// stores under test share the same contract; run every case against both
// backends.
type testStore interface {
	core.SessionStore
	core.PresentationStore
}

func backends(t *testing.T) map[string]testStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "deckd.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]testStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := core.NewSession("sess-1", "user-1", time.Hour)
			sess.Requirements["audience"] = "executives"

			if err := s.SetSession(ctx, sess, time.Hour); err != nil {
				t.Fatalf("SetSession() error = %v", err)
			}
			got, err := s.GetSession(ctx, "sess-1")
			if err != nil {
				t.Fatalf("GetSession() error = %v", err)
			}
			if got.UserID != "user-1" {
				t.Errorf("UserID = %q, want user-1", got.UserID)
			}
			if got.Requirements["audience"] != "executives" {
				t.Errorf("Requirements = %v, want audience preserved", got.Requirements)
			}
		})
	}
}

func TestSessionExpiry(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := core.NewSession("sess-exp", "user-1", time.Hour)
			if err := s.SetSession(ctx, sess, -time.Minute); err != nil {
				t.Fatalf("SetSession() error = %v", err)
			}
			_, err := s.GetSession(ctx, "sess-exp")
			var derr *core.DomainError
			if !errors.As(err, &derr) || derr.Category != core.ErrCatNotFound {
				t.Errorf("GetSession(expired) = %v, want not_found domain error", err)
			}
		})
	}
}

func TestSessionDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := core.NewSession("sess-del", "user-1", time.Hour)
			if err := s.SetSession(ctx, sess, time.Hour); err != nil {
				t.Fatalf("SetSession() error = %v", err)
			}
			if err := s.DeleteSession(ctx, "sess-del"); err != nil {
				t.Fatalf("DeleteSession() error = %v", err)
			}
			if _, err := s.GetSession(ctx, "sess-del"); err == nil {
				t.Error("GetSession() after delete = nil error, want not_found")
			}
			// Deleting again is a no-op.
			if err := s.DeleteSession(ctx, "sess-del"); err != nil {
				t.Errorf("DeleteSession(missing) error = %v, want nil", err)
			}
		})
	}
}

func TestPresentationRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := &core.Presentation{
				PresentationID: "pres-1",
				Title:          "Q3 Review",
				Theme:          core.DefaultTheme(),
				Slides: []core.Slide{
					{
						SlideID:     "slide-1",
						SlideNumber: 1,
						Title:       "Q3 Review",
						LayoutType:  core.LayoutHero,
						Components: []core.SlideComponent{
							{Type: "text", Content: "Welcome", Source: core.AgentUXArchitect},
						},
					},
				},
			}

			if err := s.SavePresentation(ctx, "sess-1", p); err != nil {
				t.Fatalf("SavePresentation() error = %v", err)
			}
			got, err := s.GetPresentation(ctx, "pres-1")
			if err != nil {
				t.Fatalf("GetPresentation() error = %v", err)
			}
			if got.Title != "Q3 Review" || len(got.Slides) != 1 {
				t.Errorf("round trip lost data: %+v", got)
			}
			if got.Slides[0].Components[0].Source != core.AgentUXArchitect {
				t.Errorf("component source = %q, want ux_architect", got.Slides[0].Components[0].Source)
			}

			if _, err := s.GetPresentation(ctx, "missing"); err == nil {
				t.Error("GetPresentation(missing) = nil error, want not_found")
			}
		})
	}
}

func TestFindSimilarOrdering(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			near := &core.Structure{Title: "Sales strategy"}
			far := &core.Structure{Title: "Gardening tips"}

			if err := s.SaveStructure(ctx, "sess-1", "pres-near", near, []float32{1, 0, 0}); err != nil {
				t.Fatalf("SaveStructure() error = %v", err)
			}
			if err := s.SaveStructure(ctx, "sess-1", "pres-far", far, []float32{0, 1, 0}); err != nil {
				t.Fatalf("SaveStructure() error = %v", err)
			}

			got, err := s.FindSimilar(ctx, []float32{0.9, 0.1, 0}, 5)
			if err != nil {
				t.Fatalf("FindSimilar() error = %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("FindSimilar() returned %d results, want 2", len(got))
			}
			if got[0].PresentationID != "pres-near" {
				t.Errorf("best match = %q, want pres-near", got[0].PresentationID)
			}

			limited, err := s.FindSimilar(ctx, []float32{0.9, 0.1, 0}, 1)
			if err != nil {
				t.Fatalf("FindSimilar(limit=1) error = %v", err)
			}
			if len(limited) != 1 {
				t.Errorf("FindSimilar(limit=1) returned %d results, want 1", len(limited))
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"mismatched length", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
