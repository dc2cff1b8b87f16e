// Package app composes the pipeline from configuration: ontology, canonical
// schema, LLM adapter, engines, reasoning store, orchestrator.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/config"
	"github.com/yourorg/enos-mapper/internal/grouping"
	"github.com/yourorg/enos-mapper/internal/mapping"
	"github.com/yourorg/enos-mapper/internal/ontology"
	"github.com/yourorg/enos-mapper/internal/pipeline"
	"github.com/yourorg/enos-mapper/internal/reasoning"
	"github.com/yourorg/enos-mapper/internal/reflection"
	"github.com/yourorg/enos-mapper/internal/schema"
	"github.com/yourorg/enos-mapper/internal/tagging"
)

// App bundles the long-lived objects an entry point needs.
type App struct {
	Config       *config.Config
	Ontology     *ontology.Store
	Orchestrator *pipeline.Orchestrator
	Reasoning    *reasoning.Store

	persistentCache *ai.PersistentCache
}

// Build wires the full pipeline. Process-wide objects (rate limiter, prompt
// cache) are constructed once here and passed into the components that use
// them.
func Build(cfg *config.Config) (*App, error) {
	// Ontology: site documents when configured, the built-in catalog otherwise.
	var ont *ontology.Store
	var err error
	if cfg.OntologyEquipmentPath != "" && cfg.OntologyResourcesPath != "" {
		ont, err = ontology.LoadFiles(cfg.OntologyEquipmentPath, cfg.OntologyResourcesPath)
		if err != nil {
			return nil, err
		}
	} else {
		ont = ontology.Default()
	}

	// Canonical schema: external document when configured, derived from the
	// ontology's standard points otherwise.
	adapter := schema.New(ont)
	canonical := schema.FromOntology(ont)
	if cfg.CanonicalSchemaPath != "" {
		raw, err := os.ReadFile(cfg.CanonicalSchemaPath)
		if err != nil {
			return nil, fmt.Errorf("canonical schema: read %q: %w", cfg.CanonicalSchemaPath, err)
		}
		points, issues, err := adapter.AdaptDocument(raw)
		if err != nil {
			return nil, err
		}
		slog.Info("canonical schema loaded", "points", len(points), "issues", len(issues))
		canonical = points
	}

	app := &App{Config: cfg, Ontology: ont}

	// LLM adapter with its process-wide cache and rate limiter.
	var svc ai.Service = ai.NewDisabled()
	if cfg.AIEnabled {
		var cache ai.CacheLayer
		if cfg.AICacheEnabled {
			layers := []ai.CacheLayer{ai.NewMemoryCache(cfg.AICacheMaxSize, cfg.AICacheTTL)}
			persistent, err := ai.NewPersistentCache(ai.PersistentCacheConfig{
				DBPath:  cfg.AICacheDBPath,
				TTL:     cfg.AICacheTTL,
				MaxSize: 10 * cfg.AICacheMaxSize,
			})
			if err != nil {
				slog.Warn("persistent ai cache unavailable; using memory only", "err", err)
			} else {
				app.persistentCache = persistent
				layers = append(layers, persistent)
			}
			cache = ai.NewMultiLevelCache(layers...)
		}
		limiter := ai.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		client, err := ai.NewClient(ai.ClientConfig{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			Temperature:    cfg.AITemperature,
			MaxTokens:      cfg.AIMaxTokens,
			RequestTimeout: cfg.AIRequestTimeout,
			MaxRetries:     cfg.AIMaxRetries,
			RetryBaseDelay: cfg.AIRetryBaseDelay,
			ParallelCalls:  cfg.AIParallelCalls,
			CacheEnabled:   cfg.AICacheEnabled,
		}, cache, limiter)
		if err != nil {
			return nil, err
		}
		svc = client
	}

	an := analyzer.New(ont.Abbreviations())
	grouper := grouping.NewEngine(ont, an, svc, cfg.InstanceIDStrategy, cfg.AIMaxTokens/2)
	tagger := tagging.NewEngine(ont, an, svc)
	mapper := mapping.NewEngine(ont, canonical, svc, mapping.DefaultWeights(), mapping.Thresholds{
		Auto:    cfg.ThresholdAuto,
		Suggest: cfg.ThresholdSuggest,
		Reflect: cfg.ThresholdReflect,
	})
	reflector := reflection.NewEngine(ont, an, svc, mapper)

	store, err := reasoning.NewStore(cfg.ReasoningDBPath)
	if err != nil {
		return nil, err
	}
	app.Reasoning = store

	app.Orchestrator = pipeline.New(pipeline.Config{
		BatchSize:        cfg.BatchSize,
		NReflect:         cfg.NReflect,
		OperationTimeout: cfg.OperationTimeout,
	}, grouper, tagger, mapper, reflector, store)

	return app, nil
}

// Close releases the app's persistent resources.
func (a *App) Close() {
	if a.persistentCache != nil {
		_ = a.persistentCache.Close()
	}
	if a.Reasoning != nil {
		_ = a.Reasoning.Close()
	}
}
