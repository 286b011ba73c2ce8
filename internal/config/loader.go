package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "DECKD",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "DECKD",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (DECKD_*)
// 3. Project config (.deckd.yaml in current directory)
// 4. User config (~/.config/deckd/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".deckd")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "deckd"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Server defaults
	l.v.SetDefault("server.host", "0.0.0.0")
	l.v.SetDefault("server.port", 8000)
	l.v.SetDefault("server.allowed_origins", []string{"*"})
	l.v.SetDefault("server.read_timeout", "30s")
	l.v.SetDefault("server.write_timeout", "30s")
	l.v.SetDefault("server.shutdown_timeout", "10s")
	l.v.SetDefault("server.ping_interval", "30s")
	l.v.SetDefault("server.pong_timeout", "60s")
	l.v.SetDefault("server.max_message_bytes", 65536)

	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	// Workflow defaults
	l.v.SetDefault("workflow.max_retries", 3)
	l.v.SetDefault("workflow.agent_timeout", "30s")
	l.v.SetDefault("workflow.phase_timeout", "2m")
	l.v.SetDefault("workflow.min_slides", 5)
	l.v.SetDefault("workflow.max_slides", 20)
	l.v.SetDefault("workflow.checkpoint_dir", ".deckd/checkpoints")
	l.v.SetDefault("workflow.checkpoint_every_phase", true)
	l.v.SetDefault("workflow.retry_base_delay", "500ms")
	l.v.SetDefault("workflow.retry_max_delay", "10s")
	l.v.SetDefault("workflow.retry_multiplier", 2.0)

	// Clarification defaults
	l.v.SetDefault("clarification.max_rounds", 3)
	l.v.SetDefault("clarification.min_completeness_score", 0.8)
	l.v.SetDefault("clarification.max_questions_per_round", 3)

	// Agent defaults
	l.v.SetDefault("agents.mandatory", []string{"ux_architect", "researcher"})

	// LLM defaults
	l.v.SetDefault("llm.provider", "mock")
	l.v.SetDefault("llm.model", "gemini-2.5-flash")
	l.v.SetDefault("llm.max_tokens", 4096)
	l.v.SetDefault("llm.temperature", 0.7)
	l.v.SetDefault("llm.timeout", "60s")

	// Auth defaults
	l.v.SetDefault("auth.mode", "permissive")

	// Session defaults
	l.v.SetDefault("session.ttl", "1h")

	// Store defaults
	l.v.SetDefault("store.backend", "memory")
	l.v.SetDefault("store.path", ".deckd/deckd.db")

	// Event defaults
	l.v.SetDefault("events.backend", "memory")
	l.v.SetDefault("events.nats_url", "nats://127.0.0.1:4222")
	l.v.SetDefault("events.subject_prefix", "deckd")
}
