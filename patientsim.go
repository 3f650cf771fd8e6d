// Package patientsim provides a high-level façade over the conversation
// simulator (credential rotation, resilient model invocation, transcript
// persistence & session lifecycle) enabling rapid construction of clinical
// role-play deployments. Most applications interact with this package by:
//  1. Loading a config.Config (file, environment or defaults)
//  2. Creating a Service via New() (optionally overriding the model or stores)
//  3. Driving sessions through Intake, SubmitTurn and Debrief
//
// The façade delegates orchestration to simulation.Simulation while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply provider
// credentials, a durable store path and a structured logger.
package patientsim

import (
	"context"
	"errors"
	"fmt"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/time/rate"

	"github.com/hupe1980/patientsim/config"
	"github.com/hupe1980/patientsim/core"
	"github.com/hupe1980/patientsim/invoker"
	"github.com/hupe1980/patientsim/logging"
	"github.com/hupe1980/patientsim/model"
	"github.com/hupe1980/patientsim/model/anthropic"
	"github.com/hupe1980/patientsim/model/openai"
	"github.com/hupe1980/patientsim/rotation"
	"github.com/hupe1980/patientsim/scenario"
	"github.com/hupe1980/patientsim/simulation"
	"github.com/hupe1980/patientsim/transcript"
)

// Options override individual components that would otherwise be built from
// the configuration.
type Options struct {
	// Model replaces the provider selected by the configuration. Useful for
	// tests and scripted runs.
	Model model.Model
	// Transcripts replaces the SQLite transcript store.
	Transcripts core.TranscriptStore
	// CursorStore replaces the file-backed rotation cursor.
	CursorStore rotation.CursorStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Service is the high-level façade aggregating the simulation and its
// supporting components.
type Service struct {
	cfg    *config.Config
	sim    *simulation.Simulation
	owned  *transcript.SQLiteStore
	logger logging.Logger
}

// New builds a Service from configuration. Any component not overridden via
// options is constructed from the config: the provider model, a file-backed
// rotation cursor and a SQLite transcript store.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	m := opts.Model
	if m == nil {
		built, err := buildModel(cfg)
		if err != nil {
			return nil, err
		}
		m = built
	}

	cursor := opts.CursorStore
	if cursor == nil {
		cursor = rotation.NewFileCursorStore(cfg.Rotation.CursorPath)
	}

	creds := make([]rotation.Credential, 0, len(cfg.Credentials))
	for _, c := range cfg.Credentials {
		creds = append(creds, rotation.Credential(c))
	}
	if len(creds) == 0 {
		// Only the mock provider passes validation without credentials; the
		// rotator still needs a non-empty list to hand out.
		creds = []rotation.Credential{"mock"}
	}

	rot, err := rotation.New(creds, cursor, func(o *rotation.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("build rotator: %w", err)
	}

	inv := invoker.New(m, func(o *invoker.Options) {
		o.MaxAttempts = cfg.Retry.MaxAttempts
		o.BaseDelay = cfg.Retry.BaseDelay
		o.Multiplier = cfg.Retry.Multiplier
		o.MaxDelay = cfg.Retry.MaxDelay
		if cfg.Retry.RequestsPerMinute > 0 {
			o.Limiter = rate.NewLimiter(rate.Limit(float64(cfg.Retry.RequestsPerMinute)/60.0), 1)
		}
		o.Logger = opts.Logger
	})

	transcripts := opts.Transcripts
	var owned *transcript.SQLiteStore
	if transcripts == nil {
		store, err := transcript.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open transcript store: %w", err)
		}
		owned = store
		transcripts = store
	}

	scen := scenario.Default()
	if err := applyScenarioFiles(&scen, cfg.Scenario); err != nil {
		if owned != nil {
			owned.Close()
		}
		return nil, err
	}

	sim := simulation.New(rot, inv, transcripts, scen, func(o *simulation.Options) {
		o.ContextTurns = cfg.Dialogue.ContextTurns
		o.DebriefAfter = cfg.Dialogue.DebriefAfter
		o.SurveyURL = cfg.Survey.URL
		o.Logger = opts.Logger
	})

	return &Service{
		cfg:    cfg,
		sim:    sim,
		owned:  owned,
		logger: opts.Logger,
	}, nil
}

// buildModel constructs the provider adapter named by the configuration.
func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxCompletionTokens = cfg.Model.MaxTokens
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = sdkanthropic.Model(cfg.Model.Name)
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxTokens = cfg.Model.MaxTokens
		}), nil
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

// applyScenarioFiles overlays file-based overrides onto the built-in case.
func applyScenarioFiles(scen *scenario.Scenario, cfg config.ScenarioConfig) error {
	if cfg.InstructionsFile != "" {
		content, err := os.ReadFile(cfg.InstructionsFile)
		if err != nil {
			return fmt.Errorf("read instructions file: %w", err)
		}
		scen.Instructions = string(content)
	}
	if cfg.BriefingFile != "" {
		content, err := os.ReadFile(cfg.BriefingFile)
		if err != nil {
			return fmt.Errorf("read briefing file: %w", err)
		}
		scen.Briefing = string(content)
	}
	if cfg.RubricFile != "" {
		content, err := os.ReadFile(cfg.RubricFile)
		if err != nil {
			return fmt.Errorf("read rubric file: %w", err)
		}
		scen.RubricTemplate = string(content)
	}
	return nil
}

// Intake registers a trainee and opens a new session.
func (s *Service) Intake(ctx context.Context, req simulation.IntakeRequest) (*core.Session, error) {
	return s.sim.Intake(ctx, req)
}

// SubmitTurn sends one trainee message through the simulated patient.
func (s *Service) SubmitTurn(ctx context.Context, sessionID, text string) (*simulation.TurnResult, error) {
	return s.sim.SubmitTurn(ctx, sessionID, text)
}

// Debrief evaluates the conversation and closes out the session.
func (s *Service) Debrief(ctx context.Context, sessionID string) (*simulation.DebriefReport, error) {
	return s.sim.Debrief(ctx, sessionID)
}

// Session returns the live session with the given id.
func (s *Service) Session(id string) (*core.Session, error) {
	return s.sim.Session(id)
}

// EndSession drops the session from the registry, leaving the durable
// transcript in place.
func (s *Service) EndSession(id string) error {
	return s.sim.EndSession(id)
}

// Simulation exposes the underlying orchestrator for embedding, e.g. into
// the HTTP server.
func (s *Service) Simulation() *simulation.Simulation {
	return s.sim
}

// Config returns the configuration the service was built from.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Close releases resources owned by the service. Injected stores are the
// caller's to close.
func (s *Service) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}
