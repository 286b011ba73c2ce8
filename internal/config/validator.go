package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/slidewise/deckd/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateServer(&cfg.Server)
	v.validateLog(&cfg.Log)
	v.validateWorkflow(&cfg.Workflow)
	v.validateClarification(&cfg.Clarification)
	v.validateAgents(&cfg.Agents)
	v.validateLLM(&cfg.LLM)
	v.validateAuth(&cfg.Auth)
	v.validateSession(&cfg.Session)
	v.validateStore(&cfg.Store)
	v.validateEvents(&cfg.Events)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateDuration(field, value string) {
	if value == "" {
		v.addError(field, value, "must not be empty")
		return
	}
	if _, err := time.ParseDuration(value); err != nil {
		v.addError(field, value, "must be a valid duration (e.g. 30s, 2m)")
	}
}

func (v *Validator) validateServer(c *ServerConfig) {
	if c.Port < 1 || c.Port > 65535 {
		v.addError("server.port", c.Port, "must be between 1 and 65535")
	}
	if c.MaxMessageBytes < 1024 {
		v.addError("server.max_message_bytes", c.MaxMessageBytes, "must be at least 1024")
	}
	v.validateDuration("server.read_timeout", c.ReadTimeout)
	v.validateDuration("server.write_timeout", c.WriteTimeout)
	v.validateDuration("server.shutdown_timeout", c.ShutdownTimeout)
	v.validateDuration("server.ping_interval", c.PingInterval)
	v.validateDuration("server.pong_timeout", c.PongTimeout)
}

func (v *Validator) validateLog(c *LogConfig) {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		v.addError("log.level", c.Level, "must be one of: debug, info, warn, error")
	}
	switch strings.ToLower(c.Format) {
	case "json", "text", "auto":
	default:
		v.addError("log.format", c.Format, "must be one of: json, text, auto")
	}
}

func (v *Validator) validateWorkflow(c *WorkflowConfig) {
	if c.MaxRetries < 0 {
		v.addError("workflow.max_retries", c.MaxRetries, "must not be negative")
	}
	if c.MinSlides < 1 {
		v.addError("workflow.min_slides", c.MinSlides, "must be at least 1")
	}
	if c.MaxSlides < c.MinSlides {
		v.addError("workflow.max_slides", c.MaxSlides, "must be >= min_slides")
	}
	if c.RetryMultiplier < 1.0 {
		v.addError("workflow.retry_multiplier", c.RetryMultiplier, "must be at least 1.0")
	}
	v.validateDuration("workflow.agent_timeout", c.AgentTimeout)
	v.validateDuration("workflow.phase_timeout", c.PhaseTimeout)
	v.validateDuration("workflow.retry_base_delay", c.RetryBaseDelay)
	v.validateDuration("workflow.retry_max_delay", c.RetryMaxDelay)
}

func (v *Validator) validateClarification(c *ClarificationConfig) {
	if c.MaxRounds < 1 {
		v.addError("clarification.max_rounds", c.MaxRounds, "must be at least 1")
	}
	if c.MinCompletenessScore < 0 || c.MinCompletenessScore > 1 {
		v.addError("clarification.min_completeness_score", c.MinCompletenessScore, "must be between 0 and 1")
	}
	if c.MaxQuestionsPerRound < 1 {
		v.addError("clarification.max_questions_per_round", c.MaxQuestionsPerRound, "must be at least 1")
	}
}

func (v *Validator) validateAgents(c *AgentsConfig) {
	if len(c.Mandatory) == 0 {
		v.addError("agents.mandatory", c.Mandatory, "must name at least one agent")
	}
	for _, name := range c.Mandatory {
		if !core.ValidAgentName(core.AgentName(name)) {
			v.addError("agents.mandatory", name, "unknown agent name")
		}
	}
}

func (v *Validator) validateLLM(c *LLMConfig) {
	switch c.Provider {
	case "mock", "genai":
	default:
		v.addError("llm.provider", c.Provider, "must be one of: mock, genai")
	}
	if c.Provider == "genai" && c.APIKey == "" {
		v.addError("llm.api_key", "", "required when provider is genai")
	}
	if c.MaxTokens < 1 {
		v.addError("llm.max_tokens", c.MaxTokens, "must be at least 1")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		v.addError("llm.temperature", c.Temperature, "must be between 0 and 2")
	}
	v.validateDuration("llm.timeout", c.Timeout)
}

func (v *Validator) validateAuth(c *AuthConfig) {
	switch c.Mode {
	case "permissive", "static":
	default:
		v.addError("auth.mode", c.Mode, "must be one of: permissive, static")
	}
	if c.Mode == "static" && len(c.Tokens) == 0 {
		v.addError("auth.tokens", c.Tokens, "required when mode is static")
	}
}

func (v *Validator) validateSession(c *SessionConfig) {
	v.validateDuration("session.ttl", c.TTL)
}

func (v *Validator) validateStore(c *StoreConfig) {
	switch c.Backend {
	case "memory", "sqlite":
	default:
		v.addError("store.backend", c.Backend, "must be one of: memory, sqlite")
	}
	if c.Backend == "sqlite" && c.Path == "" {
		v.addError("store.path", "", "required when backend is sqlite")
	}
}

func (v *Validator) validateEvents(c *EventsConfig) {
	switch c.Backend {
	case "memory", "nats":
	default:
		v.addError("events.backend", c.Backend, "must be one of: memory, nats")
	}
	if c.Backend == "nats" && c.NATSURL == "" {
		v.addError("events.nats_url", "", "required when backend is nats")
	}
	if c.Subject == "" {
		v.addError("events.subject_prefix", "", "must not be empty")
	}
}
