package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-patient-sim-service/internal/agent"
	agentgemini "ai-patient-sim-service/internal/agent/gemini"
	agentmock "ai-patient-sim-service/internal/agent/mock"
	"ai-patient-sim-service/internal/catalog"
	"ai-patient-sim-service/internal/config"
	"ai-patient-sim-service/internal/eval"
	"ai-patient-sim-service/internal/events"
	"ai-patient-sim-service/internal/observability/logging"
	"ai-patient-sim-service/internal/textgen"
	textgengemini "ai-patient-sim-service/internal/textgen/gemini"
	textgenmock "ai-patient-sim-service/internal/textgen/mock"
)

// Application holds process-wide state for the service: configuration,
// the case catalog, and the shared agent, evaluation, and event-publishing
// backends that every encounter uses.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Catalog      *catalog.Catalog
	Dialer       agent.Dialer
	Generator    textgen.Generator
	Publisher    *events.Publisher
	Orchestrator *eval.Orchestrator
}

// New constructs a new Application from the provided configuration,
// building the agent and evaluation backends named by it.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	cases, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load case catalog: %w", err)
	}
	a.Catalog = cases

	if err := a.setupAgent(ctx); err != nil {
		return nil, err
	}
	if err := a.setupTextGen(ctx); err != nil {
		return nil, err
	}

	a.Publisher = events.New(&events.Config{
		Brokers:         cfg.Kafka.Brokers,
		TopicTurn:       cfg.Kafka.TopicTurn,
		TopicEvaluation: cfg.Kafka.TopicEvaluation,
		Principal:       cfg.Service.Principal,
		Enabled:         cfg.Kafka.Enabled,
	})

	a.Orchestrator = eval.NewOrchestrator(a.Generator, eval.Options{
		RubricTimeout: cfg.Evaluation.RubricTimeout,
	})

	appLogger.Info().
		Int("cases", len(a.Catalog.All())).
		Str("agentProvider", cfg.Agent.Provider).
		Str("textgenProvider", cfg.TextGen.Provider).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Msg("AI Patient Sim service application created")
	return a, nil
}

// setupLogger configures the global zerolog logger for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a.Logger = log.With().
		Str("service", "ai-patient-sim-service").
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", a.Cfg.Observability.LogLevel).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

func (a *Application) setupAgent(ctx context.Context) error {
	switch a.Cfg.Agent.Provider {
	case "gemini":
		dialer, err := agentgemini.NewDialer(ctx, a.Cfg.Agent.APIKey, a.Cfg.Agent.Model)
		if err != nil {
			return fmt.Errorf("create agent dialer: %w", err)
		}
		a.Dialer = dialer
	case "mock":
		a.Dialer = &agentmock.Dialer{}
	default:
		return fmt.Errorf("unknown agent provider %q", a.Cfg.Agent.Provider)
	}
	return nil
}

func (a *Application) setupTextGen(ctx context.Context) error {
	switch a.Cfg.TextGen.Provider {
	case "gemini":
		gen, err := textgengemini.New(ctx, a.Cfg.Agent.APIKey, a.Cfg.TextGen.Model)
		if err != nil {
			return fmt.Errorf("create text generator: %w", err)
		}
		a.Generator = gen
	case "mock":
		a.Generator = &textgenmock.Generator{}
	default:
		return fmt.Errorf("unknown textgen provider %q", a.Cfg.TextGen.Provider)
	}
	return nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("AI Patient Sim service starting")

	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	if err := a.Publisher.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Failed to close event publisher")
	}

	shutdownLogger.Info().Msg("AI Patient Sim service shutting down")
}
