package config

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ResolverMode selects how pronoun resolution runs.
type ResolverMode string

const (
	ResolverHeuristic ResolverMode = "heuristic"
	ResolverLLM       ResolverMode = "llm"
)

// Config is the top-level threadflow configuration, corresponding to .threadflow.yml.
type Config struct {
	Provider ProviderType   `yaml:"provider" koanf:"provider"`
	Model    string         `yaml:"model" koanf:"model"`
	Quality  QualityTier    `yaml:"quality" koanf:"quality"`
	Fallback FallbackConfig `yaml:"fallback" koanf:"fallback"`
	Resolver ResolverConfig `yaml:"resolver" koanf:"resolver"`
	Window   WindowConfig   `yaml:"window" koanf:"window"`
	Routing  RoutingConfig  `yaml:"routing" koanf:"routing"`
	Memory   MemoryConfig   `yaml:"memory" koanf:"memory"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	DataDir  string         `yaml:"data_dir" koanf:"data_dir"`

	// TurnTimeoutSeconds bounds one full turn; RPM, when positive,
	// rate-limits provider calls.
	TurnTimeoutSeconds int `yaml:"turn_timeout_seconds" koanf:"turn_timeout_seconds"`
	RPM                int `yaml:"rpm" koanf:"rpm"`
}

// FallbackConfig names the provider tried once when the primary call
// fails with a retriable error. An empty provider disables fallback.
type FallbackConfig struct {
	Provider ProviderType `yaml:"provider" koanf:"provider"`
	Model    string       `yaml:"model" koanf:"model"`
}

// ResolverConfig controls reference resolution.
type ResolverConfig struct {
	Mode           ResolverMode `yaml:"mode" koanf:"mode"`
	Model          string       `yaml:"model" koanf:"model"`
	TimeoutSeconds int          `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// WindowConfig shapes the context window.
type WindowConfig struct {
	MaxTurns     int    `yaml:"max_turns" koanf:"max_turns"`
	TokenBudget  int    `yaml:"token_budget" koanf:"token_budget"`
	SystemPrompt string `yaml:"system_prompt" koanf:"system_prompt"`
}

// RoutingConfig controls model selection. Epsilon is the exploration
// probability; 0 keeps routing fully deterministic.
type RoutingConfig struct {
	Epsilon float64 `yaml:"epsilon" koanf:"epsilon"`
}

// MemoryConfig controls the long-term memory store.
type MemoryConfig struct {
	Enabled           bool         `yaml:"enabled" koanf:"enabled"`
	Dir               string       `yaml:"dir" koanf:"dir"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	RecallLimit       int          `yaml:"recall_limit" koanf:"recall_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
