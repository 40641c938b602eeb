package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/drrepo/pkg/resilience"
)

// Settings holds the tunable, non-secret configuration.
type Settings struct {
	Provider    string            `yaml:"provider"`
	Model       string            `yaml:"model"`
	Timeout     int               `yaml:"timeout_seconds,omitempty"`
	Retry       RetryConfig       `yaml:"retry,omitempty"`
	Breakers    BreakerConfig     `yaml:"breakers,omitempty"`
	Synthesis   SynthesisConfig   `yaml:"synthesis,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Concurrency ConcurrencyConfig `yaml:"concurrency,omitempty"`
	EvidenceDir string            `yaml:"evidence_dir,omitempty"`
}

// RetryConfig defines retry and backoff behavior.
type RetryConfig struct {
	MaxRetries    int     `yaml:"max_retries,omitempty"`
	BaseDelayMs   int     `yaml:"base_delay_ms,omitempty"`
	BackoffFactor float64 `yaml:"backoff_factor,omitempty"`
	MaxDelayMs    int     `yaml:"max_delay_ms,omitempty"`
}

// BreakerConfig defines circuit breaker thresholds. Overrides are keyed by
// dependency name (github, reasoning, search).
type BreakerConfig struct {
	FailureThreshold int                        `yaml:"failure_threshold,omitempty"`
	CooldownSeconds  int                        `yaml:"cooldown_seconds,omitempty"`
	Overrides        map[string]BreakerOverride `yaml:"overrides,omitempty"`
}

// BreakerOverride replaces the defaults for one dependency. Zero fields
// inherit the defaults.
type BreakerOverride struct {
	FailureThreshold int `yaml:"failure_threshold,omitempty"`
	CooldownSeconds  int `yaml:"cooldown_seconds,omitempty"`
}

// SynthesisConfig tunes report synthesis.
type SynthesisConfig struct {
	MaxActionItems int `yaml:"max_action_items,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// ConcurrencyConfig bounds batch runs.
type ConcurrencyConfig struct {
	MaxParallel int `yaml:"max_parallel,omitempty"`
}

// LoadSettings reads settings from a YAML file and applies defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	applyDefaults(&s)
	return &s, nil
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() *Settings {
	s := &Settings{}
	applyDefaults(s)
	return s
}

func applyDefaults(s *Settings) {
	if s.Provider == "" {
		s.Provider = "groq"
	}
	if s.Model == "" {
		s.Model = defaultModels[s.Provider]
	}
	if s.Timeout == 0 {
		s.Timeout = 30
	}
	if s.Retry.MaxRetries == 0 {
		s.Retry.MaxRetries = 3
	}
	if s.Retry.BaseDelayMs == 0 {
		s.Retry.BaseDelayMs = 1000
	}
	if s.Retry.BackoffFactor == 0 {
		s.Retry.BackoffFactor = 2.0
	}
	if s.Retry.MaxDelayMs == 0 {
		s.Retry.MaxDelayMs = 60000
	}
	if s.Breakers.FailureThreshold == 0 {
		s.Breakers.FailureThreshold = 5
	}
	if s.Breakers.CooldownSeconds == 0 {
		s.Breakers.CooldownSeconds = 60
	}
	if s.Synthesis.MaxActionItems == 0 {
		s.Synthesis.MaxActionItems = 10
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if s.Logging.Format == "" {
		s.Logging.Format = "text"
	}
	if s.Concurrency.MaxParallel == 0 {
		s.Concurrency.MaxParallel = 4
	}
}

var defaultModels = map[string]string{
	"groq":      "llama-3.3-70b-versatile",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
	"google":    "gemini-2.0-flash",
	"mock":      "mock",
}

// applyEnv lets the environment override the file.
func applyEnv(s *Settings) error {
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		if v != s.Provider && os.Getenv("MODEL_NAME") == "" {
			s.Model = defaultModels[v]
		}
		s.Provider = v
	}
	s.Model = getEnvOrDefault("MODEL_NAME", s.Model)
	s.Logging.Level = getEnvOrDefault("LOG_LEVEL", s.Logging.Level)
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("MAX_RETRIES must be a non-negative integer, got %q", v)
		}
		s.Retry.MaxRetries = n
	}
	return nil
}

// Policy converts the retry section to a resilience policy. Callers attach
// their own classifier.
func (s *Settings) Policy() resilience.Policy {
	return resilience.Policy{
		MaxRetries:    s.Retry.MaxRetries,
		BaseDelay:     time.Duration(s.Retry.BaseDelayMs) * time.Millisecond,
		BackoffFactor: s.Retry.BackoffFactor,
		MaxDelay:      time.Duration(s.Retry.MaxDelayMs) * time.Millisecond,
	}
}

// BreakerDefaults converts the breaker section to resilience settings.
func (s *Settings) BreakerDefaults() resilience.Settings {
	return resilience.Settings{
		FailureThreshold: s.Breakers.FailureThreshold,
		Cooldown:         time.Duration(s.Breakers.CooldownSeconds) * time.Second,
	}
}

// BreakerOverrides returns registry options for every configured override.
func (s *Settings) BreakerOverrides() []resilience.RegistryOption {
	defaults := s.BreakerDefaults()
	opts := make([]resilience.RegistryOption, 0, len(s.Breakers.Overrides))
	for name, o := range s.Breakers.Overrides {
		bs := defaults
		if o.FailureThreshold > 0 {
			bs.FailureThreshold = o.FailureThreshold
		}
		if o.CooldownSeconds > 0 {
			bs.Cooldown = time.Duration(o.CooldownSeconds) * time.Second
		}
		opts = append(opts, resilience.WithOverride(name, bs))
	}
	return opts
}

// RequestTimeout is the per-call deadline for external requests.
func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
