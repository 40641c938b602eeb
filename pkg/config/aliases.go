package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// ModelAliases maps short names to provider model identifiers and lists
// the models each provider accepts.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}
	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}
	return &aliases, nil
}

// LoadAliasesWithFallback loads ~/.drrepo/models.yaml, then fallbackPath,
// then the built-in table.
func LoadAliasesWithFallback(fallbackPath string) (*ModelAliases, error) {
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".drrepo", "models.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return LoadAliases(userPath)
		}
	}
	if fallbackPath != "" {
		if _, err := os.Stat(fallbackPath); err == nil {
			return LoadAliases(fallbackPath)
		}
	}
	return DefaultAliases(), nil
}

// Resolve returns the model an alias points at, or the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if model, ok := a.Aliases[modelOrAlias]; ok {
		return model
	}
	return modelOrAlias
}

// ValidateModel checks that model, after alias resolution, is listed for
// provider. Providers without a list accept anything.
func (a *ModelAliases) ValidateModel(provider, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}
	models, ok := a.Providers[provider]
	if !ok {
		return nil
	}
	resolved := a.Resolve(model)
	if slices.Contains(models, resolved) {
		return nil
	}
	return fmt.Errorf("model %q not in %s provider list", resolved, provider)
}

// ValidateSettings checks the configured provider/model pair.
func (a *ModelAliases) ValidateSettings(s *Settings) error {
	if s == nil {
		return nil
	}
	return a.ValidateModel(s.Provider, s.Model)
}

// SortedAliases returns alias names in lexical order.
func (a *ModelAliases) SortedAliases() []string {
	if a == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(a.Aliases))
}

// ListProviders returns a sorted list of provider names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(a.Providers))
}

// ProviderModels returns the models listed for provider.
func (a *ModelAliases) ProviderModels(provider string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[provider]
}

// DefaultAliases returns the built-in alias table.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"fast":     "llama-3.1-8b-instant",
			"default":  "llama-3.3-70b-versatile",
			"cheap":    "gpt-4o-mini",
			"quality":  "claude-sonnet-4-20250514",
			"research": "gemini-2.0-flash",
		},
		Providers: map[string][]string{
			"groq":      {"llama-3.3-70b-versatile", "llama-3.1-8b-instant"},
			"openai":    {"gpt-4o-mini", "gpt-4o"},
			"anthropic": {"claude-sonnet-4-20250514", "claude-opus-4-20250514"},
			"google":    {"gemini-2.0-flash", "gemini-2.0-pro"},
		},
	}
}
