package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slidewise/deckd/internal/adapters/auth"
	"github.com/slidewise/deckd/internal/adapters/llm"
	"github.com/slidewise/deckd/internal/adapters/pubsub"
	"github.com/slidewise/deckd/internal/adapters/store"
	"github.com/slidewise/deckd/internal/agent"
	"github.com/slidewise/deckd/internal/api"
	"github.com/slidewise/deckd/internal/config"
	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/events"
	"github.com/slidewise/deckd/internal/logging"
	"github.com/slidewise/deckd/internal/service"
	"github.com/slidewise/deckd/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the presentation generation server",
	Long: `Start the deckd WebSocket and HTTP server.

Clients connect to /ws and drive presentation generation through the
message protocol; /health and /api/v1 expose operational routes.

Examples:
  # Start with defaults (0.0.0.0:8000, in-memory store, mock model)
  deckd serve

  # Start on a custom port with SQLite persistence
  DECKD_STORE_BACKEND=sqlite deckd serve --port 3000

  # Use Gemini for real generation
  DECKD_LLM_PROVIDER=genai DECKD_LLM_API_KEY=... deckd serve

  # Require shared-secret tokens (mapped under auth.tokens in the config file)
  DECKD_AUTH_MODE=static deckd serve`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

// dataStore is the full persistence surface the server wires together.
type dataStore interface {
	core.SessionStore
	core.PresentationStore
}

func runServe(_ *cobra.Command, _ []string) error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	runner, embedder, err := buildLLM(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("model backend ready", "provider", runner.Name())

	bus := events.New(100)
	defer bus.Close()

	machineOpts := []workflow.Option{
		workflow.WithStore(st),
		workflow.WithBus(bus),
	}
	var checkpoints *workflow.Checkpointer
	if cfg.Workflow.CheckpointEvery {
		checkpoints, err = workflow.NewCheckpointer(cfg.Workflow.CheckpointDir)
		if err != nil {
			return fmt.Errorf("creating checkpoint dir: %w", err)
		}
		machineOpts = append(machineOpts, workflow.WithCheckpointer(checkpoints))
	}

	mandatory := make([]core.AgentName, 0, len(cfg.Agents.Mandatory))
	for _, name := range cfg.Agents.Mandatory {
		mandatory = append(mandatory, core.AgentName(name))
	}
	machine := workflow.New(
		agent.NewAnalyzer(runner, logger),
		agent.NewClarifier(runner, logger, cfg.Clarification.MaxRounds, cfg.Clarification.MaxQuestionsPerRound),
		agent.NewBuilder(runner, embedder, st, logger, cfg.Workflow.MinSlides, cfg.Workflow.MaxSlides),
		agent.NewContentAgents(),
		logger,
		workflow.Config{
			MinCompletenessScore: cfg.Clarification.MinCompletenessScore,
			MaxRetries:           cfg.Workflow.MaxRetries,
			AgentTimeout:         cfg.Workflow.AgentTimeoutDuration(),
			PhaseTimeout:         cfg.Workflow.PhaseTimeoutDuration(),
			MandatoryAgents:      mandatory,
		},
		machineOpts...,
	)

	sessions := service.NewSessions(st, bus, logger, cfg.Session.TTLDuration())

	publisher, err := buildPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	relay := service.NewRelay(bus, publisher, logger)
	relay.Start(ctx)
	defer relay.Stop()

	serverOpts := []api.ServerOption{api.WithPresentationStore(st)}
	if checkpoints != nil {
		serverOpts = append(serverOpts, api.WithWorkflowCheckpoints(checkpoints))
	}
	server := api.NewServer(
		api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			ReadTimeout:     cfg.Server.ReadTimeoutDuration(),
			WriteTimeout:    cfg.Server.WriteTimeoutDuration(),
			ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
			PingInterval:    cfg.Server.PingIntervalDuration(),
			PongTimeout:     cfg.Server.PongTimeoutDuration(),
			MaxMessageBytes: cfg.Server.MaxMessageBytes,
		},
		machine,
		sessions,
		buildAuth(cfg),
		logger,
		serverOpts...,
	)

	logger.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"events", cfg.Events.Backend,
	)
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func buildStore(cfg *config.Config, logger *logging.Logger) (dataStore, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Warn("closing store", "error", err.Error())
			}
		}, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func buildLLM(ctx context.Context, cfg *config.Config, logger *logging.Logger) (core.LLMRunner, core.Embedder, error) {
	switch cfg.LLM.Provider {
	case "genai":
		runner, err := llm.NewGenAIRunner(ctx, llm.GenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.TimeoutDuration(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating genai runner: %w", err)
		}
		embedder, err := llm.NewGenAIEmbedder(ctx, cfg.LLM.APIKey, "")
		if err != nil {
			return nil, nil, fmt.Errorf("creating genai embedder: %w", err)
		}
		policy := service.LLMRetryPolicy()
		policy.BaseDelay = cfg.Workflow.RetryBaseDelayDuration()
		policy.MaxDelay = cfg.Workflow.RetryMaxDelayDuration()
		policy.Multiplier = cfg.Workflow.RetryMultiplier
		return service.NewRetryingRunner(runner, policy, logger), embedder, nil
	default:
		return llm.NewMockRunner(), &llm.MockEmbedder{}, nil
	}
}

func buildAuth(cfg *config.Config) core.Authenticator {
	switch cfg.Auth.Mode {
	case "static":
		return auth.NewStatic(cfg.Auth.Tokens)
	default:
		return auth.Permissive{}
	}
}

func buildPublisher(cfg *config.Config) (core.Publisher, error) {
	switch cfg.Events.Backend {
	case "nats":
		broker, err := pubsub.NewNATSBroker(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		return broker, nil
	default:
		return pubsub.NewMemoryBroker(), nil
	}
}
