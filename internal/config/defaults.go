package config

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	FallbackModel  string
	EmbeddingModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-3-5-haiku-latest", FallbackModel: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "claude-sonnet-4-20250514", FallbackModel: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "claude-opus-4-20250514", FallbackModel: "gpt-4o", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", FallbackModel: "claude-3-5-haiku-latest", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "gpt-4o", FallbackModel: "claude-sonnet-4-20250514", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "o4-mini", FallbackModel: "claude-sonnet-4-20250514", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderGoogle: {
		QualityLite:   {Model: "gemini-2.0-flash", FallbackModel: "gpt-4o-mini", EmbeddingModel: "text-embedding-004"},
		QualityNormal: {Model: "gemini-2.5-pro", FallbackModel: "gpt-4o", EmbeddingModel: "text-embedding-004"},
		QualityMax:    {Model: "gemini-2.5-pro", FallbackModel: "gpt-4o", EmbeddingModel: "text-embedding-004"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llama3.2", FallbackModel: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityNormal: {Model: "llama3", FallbackModel: "llama3.2", EmbeddingModel: "nomic-embed-text"},
		QualityMax:    {Model: "llama3:70b", FallbackModel: "llama3", EmbeddingModel: "nomic-embed-text"},
	},
	ProviderOpenRouter: {
		QualityLite:   {Model: "deepseek/deepseek-chat-v3-0324", FallbackModel: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "anthropic/claude-sonnet-4", FallbackModel: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "anthropic/claude-opus-4", FallbackModel: "gpt-4o", EmbeddingModel: "text-embedding-3-large"},
	},
}

// DefaultSystemPrompt frames every conversation unless overridden.
const DefaultSystemPrompt = "You are a helpful assistant. Answer concisely and accurately."

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderAnthropic,
		Model:    "claude-sonnet-4-20250514",
		Quality:  QualityNormal,
		Fallback: FallbackConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o",
		},
		Resolver: ResolverConfig{
			Mode:           ResolverHeuristic,
			TimeoutSeconds: 10,
		},
		Window: WindowConfig{
			MaxTurns:     20,
			TokenBudget:  8000,
			SystemPrompt: DefaultSystemPrompt,
		},
		Routing: RoutingConfig{
			Epsilon: 0,
		},
		Memory: MemoryConfig{
			Enabled:           false,
			Dir:               ".threadflow/memory",
			EmbeddingProvider: ProviderOpenAI,
			EmbeddingModel:    "text-embedding-3-small",
			RecallLimit:       3,
		},
		Server: ServerConfig{
			Port:     8080,
			AllowAll: false,
		},
		DataDir:            ".threadflow",
		TurnTimeoutSeconds: 120,
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Normal Anthropic preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderAnthropic][QualityNormal]
}
