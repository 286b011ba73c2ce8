package config

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Clarification ClarificationConfig `mapstructure:"clarification"`
	Agents        AgentsConfig        `mapstructure:"agents"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Session       SessionConfig       `mapstructure:"session"`
	Store         StoreConfig         `mapstructure:"store"`
	Events        EventsConfig        `mapstructure:"events"`
}

// ServerConfig configures the HTTP/WebSocket server.
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
	PingInterval    string   `mapstructure:"ping_interval"`
	PongTimeout     string   `mapstructure:"pong_timeout"`
	MaxMessageBytes int64    `mapstructure:"max_message_bytes"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WorkflowConfig configures workflow execution.
type WorkflowConfig struct {
	MaxRetries      int     `mapstructure:"max_retries"`
	AgentTimeout    string  `mapstructure:"agent_timeout"`
	PhaseTimeout    string  `mapstructure:"phase_timeout"`
	MinSlides       int     `mapstructure:"min_slides"`
	MaxSlides       int     `mapstructure:"max_slides"`
	CheckpointDir   string  `mapstructure:"checkpoint_dir"`
	CheckpointEvery bool    `mapstructure:"checkpoint_every_phase"`
	RetryBaseDelay  string  `mapstructure:"retry_base_delay"`
	RetryMaxDelay   string  `mapstructure:"retry_max_delay"`
	RetryMultiplier float64 `mapstructure:"retry_multiplier"`
}

// ClarificationConfig configures the clarification loop.
type ClarificationConfig struct {
	MaxRounds            int     `mapstructure:"max_rounds"`
	MinCompletenessScore float64 `mapstructure:"min_completeness_score"`
	MaxQuestionsPerRound int     `mapstructure:"max_questions_per_round"`
}

// AgentsConfig configures content agent fan-out.
type AgentsConfig struct {
	Mandatory []string `mapstructure:"mandatory"`
}

// LLMConfig configures the language model backend.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     string  `mapstructure:"timeout"`
}

// AuthConfig selects the connection authenticator. Static mode maps
// shared-secret tokens to user ids; permissive mode accepts everyone.
type AuthConfig struct {
	Mode   string            `mapstructure:"mode"`
	Tokens map[string]string `mapstructure:"tokens"`
}

// SessionConfig configures session lifecycle.
type SessionConfig struct {
	TTL string `mapstructure:"ttl"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// EventsConfig configures the event bus backend.
type EventsConfig struct {
	Backend string `mapstructure:"backend"`
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject_prefix"`
}
