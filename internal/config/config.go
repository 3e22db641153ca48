package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (THREADFLOW_*). Nested keys use
// underscores doubled into dots: THREADFLOW_SERVER__PORT -> server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("THREADFLOW_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "THREADFLOW_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderGoogle:     true,
	ProviderOllama:     true,
	ProviderOpenRouter: true,
}

// validQualityTiers is the set of recognized quality tier values.
var validQualityTiers = map[QualityTier]bool{
	QualityLite:   true,
	QualityNormal: true,
	QualityMax:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai, google, ollama, openrouter", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.Fallback.Provider != "" && !validProviders[c.Fallback.Provider] {
		return fmt.Errorf("invalid fallback.provider %q", c.Fallback.Provider)
	}
	if c.Fallback.Provider == c.Provider && c.Fallback.Model == c.Model && c.Fallback.Provider != "" {
		return fmt.Errorf("fallback must differ from the primary provider/model")
	}

	if c.Resolver.Mode != "" && c.Resolver.Mode != ResolverHeuristic && c.Resolver.Mode != ResolverLLM {
		return fmt.Errorf("invalid resolver.mode %q: must be heuristic or llm", c.Resolver.Mode)
	}

	if c.Quality != "" && !validQualityTiers[c.Quality] {
		return fmt.Errorf("invalid quality %q: must be one of lite, normal, max", c.Quality)
	}

	if c.Memory.Enabled && c.Memory.EmbeddingProvider != "" && !validProviders[c.Memory.EmbeddingProvider] {
		return fmt.Errorf("invalid memory.embedding_provider %q", c.Memory.EmbeddingProvider)
	}

	if c.Window.MaxTurns < 0 {
		return fmt.Errorf("window.max_turns must be non-negative")
	}
	if c.Window.TokenBudget < 0 {
		return fmt.Errorf("window.token_budget must be non-negative")
	}

	if c.Routing.Epsilon < 0 || c.Routing.Epsilon > 1 {
		return fmt.Errorf("routing.epsilon must be between 0 and 1")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number")
	}

	if c.RPM < 0 {
		return fmt.Errorf("rpm must be non-negative")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
