package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full runtime configuration of the simulator.
type Config struct {
	// Credentials is the ordered list of provider API keys handed out in
	// round-robin order across sessions.
	Credentials []string `koanf:"credentials"`

	Model    ModelConfig    `koanf:"model"`
	Retry    RetryConfig    `koanf:"retry"`
	Dialogue DialogueConfig `koanf:"dialogue"`
	Store    StoreConfig    `koanf:"store"`
	Rotation RotationConfig `koanf:"rotation"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Scenario ScenarioConfig `koanf:"scenario"`
	Survey   SurveyConfig   `koanf:"survey"`
}

// ModelConfig selects and tunes the language model.
type ModelConfig struct {
	Provider    string  `koanf:"provider"` // openai, anthropic or mock
	Name        string  `koanf:"name"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int64   `koanf:"max_tokens"`
}

// RetryConfig tunes the resilient invoker.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	BaseDelay         time.Duration `koanf:"base_delay"`
	Multiplier        float64       `koanf:"multiplier"`
	MaxDelay          time.Duration `koanf:"max_delay"`
	RequestsPerMinute int           `koanf:"requests_per_minute"` // 0 disables throttling
}

// DialogueConfig tunes the conversation loop.
type DialogueConfig struct {
	// ContextTurns is the number of trailing window turns sent with each
	// exchange.
	ContextTurns int `koanf:"context_turns"`
	// DebriefAfter is the minimum window size before the debrief unlocks.
	DebriefAfter int `koanf:"debrief_after"`
}

// StoreConfig locates the transcript database.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// RotationConfig locates the durable rotation cursor.
type RotationConfig struct {
	CursorPath string `koanf:"cursor_path"`
}

// ServerConfig tunes the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig tunes structured logging.
type LoggingConfig struct {
	Level     string `koanf:"level"`  // debug, info, warn, error
	Format    string `koanf:"format"` // json or text
	AddSource bool   `koanf:"add_source"`
}

// ScenarioConfig optionally replaces parts of the built-in scenario with
// file contents.
type ScenarioConfig struct {
	InstructionsFile string `koanf:"instructions_file"`
	BriefingFile     string `koanf:"briefing_file"`
	RubricFile       string `koanf:"rubric_file"`
}

// SurveyConfig configures the post-debrief survey link.
type SurveyConfig struct {
	URL string `koanf:"url"`
}

// Default returns the configuration used when no file and no environment
// overrides are present. Callers can adjust fields before handing it to
// patientsim.New; Validate still runs there.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills missing values. Single API keys exported the usual way
// (OPENAI_API_KEY / ANTHROPIC_API_KEY) become a one-entry credential list
// when no list is configured.
func applyDefaults(cfg *Config) {
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "openai"
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 0.7
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 1024
	}

	if len(cfg.Credentials) == 0 {
		var envKey string
		switch cfg.Model.Provider {
		case "openai":
			envKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			envKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if envKey != "" {
			cfg.Credentials = []string{envKey}
		}
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 5 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}

	if cfg.Dialogue.ContextTurns == 0 {
		cfg.Dialogue.ContextTurns = 10
	}
	if cfg.Dialogue.DebriefAfter == 0 {
		cfg.Dialogue.DebriefAfter = 20
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "patientsim.db"
	}
	if cfg.Rotation.CursorPath == "" {
		cfg.Rotation.CursorPath = "rotation.json"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Dialogue exchanges can legitimately retry for over a minute.
		cfg.Server.WriteTimeout = 3 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the assembled configuration. All failures wrap ErrInvalid.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("%w: unknown model provider %q", ErrInvalid, c.Model.Provider)
	}

	if c.Model.Provider != "mock" && len(c.Credentials) == 0 {
		return fmt.Errorf("%w: no credentials configured for provider %q", ErrInvalid, c.Model.Provider)
	}
	for i, cred := range c.Credentials {
		if cred == "" {
			return fmt.Errorf("%w: credential %d is empty", ErrInvalid, i)
		}
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range [0, 2]", ErrInvalid, c.Model.Temperature)
	}
	if c.Model.MaxTokens < 1 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalid)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry max_attempts must be at least 1", ErrInvalid)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("%w: retry delays must not be negative", ErrInvalid)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("%w: retry multiplier must be at least 1", ErrInvalid)
	}
	if c.Retry.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: requests_per_minute must not be negative", ErrInvalid)
	}

	if c.Dialogue.ContextTurns < 1 {
		return fmt.Errorf("%w: context_turns must be at least 1", ErrInvalid)
	}
	if c.Dialogue.DebriefAfter < 2 {
		return fmt.Errorf("%w: debrief_after must be at least 2", ErrInvalid)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalid, c.Server.Port)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown logging format %q", ErrInvalid, c.Logging.Format)
	}

	return nil
}
