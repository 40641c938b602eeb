package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	GroqAPIKey      string
	GitHubToken     string
	TavilyAPIKey    string
	Settings        *Settings
	ConfigDir       string
}

// Load reads ~/.drrepo/settings.yaml if present, then the environment.
// API keys are only ever taken from the environment.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	settingsPath := filepath.Join(configDir, "settings.yaml")
	if _, err := os.Stat(settingsPath); err != nil {
		return build(configDir, DefaultSettings())
	}
	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return build(configDir, settings)
}

// LoadWithSettingsFile loads config with a specific settings file.
func LoadWithSettingsFile(path string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	settings, err := LoadSettings(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings from %s: %w", path, err)
	}
	return build(configDir, settings)
}

func build(configDir string, settings *Settings) (*Config, error) {
	if err := applyEnv(settings); err != nil {
		return nil, err
	}
	return &Config{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
		GitHubToken:     getEnvOrDefault("GH_TOKEN", os.Getenv("GITHUB_TOKEN")),
		TavilyAPIKey:    os.Getenv("TAVILY_API_KEY"),
		Settings:        settings,
		ConfigDir:       configDir,
	}, nil
}

// APIKey returns the key for the given reasoning provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "google":
		return c.GoogleAPIKey
	case "groq":
		return c.GroqAPIKey
	default:
		return ""
	}
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	if name == "mock" {
		return true
	}
	return c.APIKey(name) != ""
}

// MissingKeyError lists the environment variables a run needs but lacks.
type MissingKeyError struct {
	Keys []string
}

func (e *MissingKeyError) Error() string {
	return "missing required API keys: " + strings.Join(e.Keys, ", ")
}

var providerEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GOOGLE_API_KEY",
	"groq":      "GROQ_API_KEY",
}

// Validate checks that the selected provider and both external services
// have credentials.
func (c *Config) Validate() error {
	provider := c.Settings.Provider
	var missing []string
	switch env, ok := providerEnv[provider]; {
	case provider == "mock":
	case !ok:
		return fmt.Errorf("unknown provider %q", provider)
	case c.APIKey(provider) == "":
		missing = append(missing, env)
	}
	if c.GitHubToken == "" {
		missing = append(missing, "GH_TOKEN")
	}
	if c.TavilyAPIKey == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}
	if len(missing) > 0 {
		return &MissingKeyError{Keys: missing}
	}
	return nil
}

// IsMissingKey reports whether err is a MissingKeyError.
func IsMissingKey(err error) bool {
	var mk *MissingKeyError
	return errors.As(err, &mk)
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".drrepo")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
