package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/threadflow/internal/config"
	"github.com/ziadkadry99/threadflow/internal/contextengine"
	"github.com/ziadkadry99/threadflow/internal/db"
	"github.com/ziadkadry99/threadflow/internal/embeddings"
	"github.com/ziadkadry99/threadflow/internal/llm"
	"github.com/ziadkadry99/threadflow/internal/memory"
	"github.com/ziadkadry99/threadflow/internal/orchestrator"
	"github.com/ziadkadry99/threadflow/internal/resolver"
	"github.com/ziadkadry99/threadflow/internal/router"
	"github.com/ziadkadry99/threadflow/internal/thread"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `threadflow init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// stack bundles everything a command needs to process turns.
type stack struct {
	database *db.DB
	store    thread.Store
	memories memory.Store // nil when disabled
	orch     *orchestrator.Orchestrator
}

func (s *stack) Close() {
	if s.database != nil {
		s.database.Close()
	}
}

// buildStack opens storage and wires the full turn pipeline from config.
func buildStack(cfg *config.Config) (*stack, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "threadflow.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	store := thread.NewSQLiteStore(database)

	var memories memory.Store
	if cfg.Memory.Enabled {
		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		chromemStore, err := memory.NewChromemStore(embedder)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("creating memory store: %w", err)
		}
		if err := chromemStore.Load(context.Background(), cfg.Memory.Dir); err != nil {
			// An empty memory dir on first run is expected.
			fmt.Fprintf(os.Stderr, "Warning: could not load memories from %s: %v\n", cfg.Memory.Dir, err)
		}
		memories = chromemStore
	}

	engine := contextengine.New(store, contextengine.Options{
		SystemPrompt: cfg.Window.SystemPrompt,
		MaxTurns:     cfg.Window.MaxTurns,
		TokenBudget:  cfg.Window.TokenBudget,
	})

	var rng *rand.Rand
	if cfg.Routing.Epsilon > 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rt := router.New(cfg.Routing.Epsilon, rng)

	res, err := createResolverFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	orch := orchestrator.New(store, res, engine, rt, providerFactory(cfg), memories, orchestrator.Options{
		FallbackProvider: string(cfg.Fallback.Provider),
		FallbackModel:    cfg.Fallback.Model,
		TurnTimeout:      time.Duration(cfg.TurnTimeoutSeconds) * time.Second,
		RecallLimit:      cfg.Memory.RecallLimit,
	})

	return &stack{database: database, store: store, memories: memories, orch: orch}, nil
}

// providerFactory builds providers on demand, applying the configured
// rate limit.
func providerFactory(cfg *config.Config) orchestrator.ProviderFactory {
	return func(providerType, model string) (llm.Provider, error) {
		provider, err := llm.NewProvider(providerType, model)
		if err != nil {
			return nil, err
		}
		if cfg.RPM > 0 {
			provider = llm.NewRateLimitedProvider(provider, cfg.RPM)
		}
		return provider, nil
	}
}

// createResolverFromConfig builds the configured resolver variant.
func createResolverFromConfig(cfg *config.Config) (resolver.Resolver, error) {
	if cfg.Resolver.Mode != config.ResolverLLM {
		return resolver.NewHeuristicResolver(), nil
	}

	model := cfg.Resolver.Model
	if model == "" {
		model = config.GetPreset(cfg.Provider, config.QualityLite).Model
	}
	provider, err := llm.NewProvider(string(cfg.Provider), model)
	if err != nil {
		return nil, fmt.Errorf("creating resolver provider: %w", err)
	}
	return resolver.NewLLMResolver(provider, model, time.Duration(cfg.Resolver.TimeoutSeconds)*time.Second), nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.Memory.EmbeddingProvider
	if provider == "" {
		provider = config.ProviderOpenAI
	}
	model := cfg.Memory.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider, cfg.Quality).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, 768, ""), nil
	default:
		// OpenAI embeddings serve all cloud providers.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for embeddings when memory is enabled")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model)), nil
	}
}

// persistMemories saves long-term memory to disk if it is enabled.
func persistMemories(cfg *config.Config, memories memory.Store) {
	if memories == nil {
		return
	}
	if err := memories.Persist(context.Background(), cfg.Memory.Dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: persisting memories: %v\n", err)
	}
}
