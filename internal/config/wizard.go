package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .threadflow.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to threadflow! Let's configure your assistant.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select primary LLM provider",
		Items: []string{"anthropic", "openai", "google", "ollama", "openrouter"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Quality tier.
	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite   — fast & cheap",
			"normal — balanced",
			"max    — highest quality",
		},
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	quality := tiers[qualityIdx]

	preset := GetPreset(provider, quality)

	// 3. Fallback provider.
	fallbackPrompt := promptui.Select{
		Label: "Select fallback provider (tried once when the primary fails)",
		Items: []string{"openai", "anthropic", "google", "ollama", "none"},
	}
	_, fallbackStr, err := fallbackPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("fallback selection: %w", err)
	}

	// 4. Long-term memory.
	memoryPrompt := promptui.Select{
		Label: "Enable long-term memory (vector recall across threads)",
		Items: []string{"no", "yes"},
	}
	memoryIdx, _, err := memoryPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("memory selection: %w", err)
	}

	// 5. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP server port",
		Default: "8080",
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p < 1 || p > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	port, _ := strconv.Atoi(portStr)

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = preset.Model
	cfg.Quality = quality
	cfg.Server.Port = port
	cfg.Memory.Enabled = memoryIdx == 1
	cfg.Memory.EmbeddingProvider = embeddingProviderFor(provider)
	cfg.Memory.EmbeddingModel = preset.EmbeddingModel

	if fallbackStr == "none" || fallbackStr == providerStr {
		cfg.Fallback = FallbackConfig{}
	} else {
		fbPreset := GetPreset(ProviderType(fallbackStr), quality)
		cfg.Fallback = FallbackConfig{
			Provider: ProviderType(fallbackStr),
			Model:    fbPreset.Model,
		}
	}

	// Check for API keys.
	for _, p := range []ProviderType{cfg.Provider, cfg.Fallback.Provider} {
		envVar := APIKeyEnvVar(p)
		if envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running threadflow serve.\n", envVar)
		}
	}

	configPath := ".threadflow.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. OpenAI embeddings are used for all cloud providers.
func embeddingProviderFor(p ProviderType) ProviderType {
	if p == ProviderOllama {
		return ProviderOllama
	}
	return ProviderOpenAI
}
