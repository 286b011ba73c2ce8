package core

import (
	"context"
	"time"
)

// =============================================================================
// LLM Port
// =============================================================================

// LLMRequest configures one model invocation.
type LLMRequest struct {
	Prompt       string
	SystemPrompt string
	Context      map[string]interface{}
	Temperature  float64
	Timeout      time.Duration
}

// LLMResult is the model's reply. Parsed is populated when the model
// returned structured JSON.
type LLMResult struct {
	Output   string
	Parsed   map[string]interface{}
	Model    string
	Duration time.Duration
}

// LLMRunner is the opaque language-model capability. Adapters convert
// their underlying failures into DomainError categories; callers branch on
// the category, never on provider-specific errors. Selected once at
// construction: a real adapter or the deterministic mock.
type LLMRunner interface {
	// Name returns the adapter identifier (e.g., "genai", "mock").
	Name() string

	// Run executes a prompt and returns the result.
	Run(ctx context.Context, req LLMRequest) (*LLMResult, error)
}

// Embedder turns text into a vector for similarity queries. The mock
// adapter is deterministic so similarity behavior is testable offline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// =============================================================================
// Store Ports
// =============================================================================

// SessionStore persists sessions with a TTL.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	SetSession(ctx context.Context, s *Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error
}

// StoredStructure is a past presentation structure with its similarity
// embedding.
type StoredStructure struct {
	PresentationID string
	SessionID      string
	Structure      *Structure
	Embedding      []float32
	CreatedAt      time.Time
}

// PresentationStore persists finished presentations and structure drafts,
// and answers similarity queries over stored structures.
type PresentationStore interface {
	SavePresentation(ctx context.Context, sessionID string, p *Presentation) error
	GetPresentation(ctx context.Context, id string) (*Presentation, error)
	SaveStructure(ctx context.Context, sessionID, presentationID string, s *Structure, embedding []float32) error

	// FindSimilar returns up to limit stored structures ordered by cosine
	// similarity to the embedding, best first.
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]StoredStructure, error)
}

// =============================================================================
// Pub/Sub Port
// =============================================================================

// Publisher emits workflow progress onto a channel keyed by session.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Subscriber receives messages from a channel. The returned cancel func
// tears down the subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (cancel func(), err error)
}

// =============================================================================
// Auth Port
// =============================================================================

// Identity is the result of authenticating a connection.
type Identity struct {
	UserID    string
	SessionID string // empty when the client has no prior session
}

// Authenticator validates a connection's credential and yields the caller
// identity, or fails with an auth-category DomainError.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// =============================================================================
// Content Agent Port
// =============================================================================

// AgentTask is the unit of work dispatched to one content agent during the
// generation fan-out.
type AgentTask struct {
	RequestID     string
	SessionID     string
	CorrelationID string
	Structure     *Structure
	Requirements  map[string]string
}

// ContentAgent produces slide components for its specialty. Implementations
// must respect ctx cancellation; a timed-out agent is a failed agent for
// barrier purposes, not a fatal workflow error.
type ContentAgent interface {
	Name() AgentName
	Generate(ctx context.Context, task AgentTask) (*AgentOutput, error)
}
