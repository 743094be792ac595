package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/abchbx/nutrition-agent/internal/agent"
	"github.com/abchbx/nutrition-agent/internal/api"
	"github.com/abchbx/nutrition-agent/internal/config"
	"github.com/abchbx/nutrition-agent/internal/dailylog"
	"github.com/abchbx/nutrition-agent/internal/embedding"
	"github.com/abchbx/nutrition-agent/internal/engine"
	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/knowledge"
	"github.com/abchbx/nutrition-agent/internal/memory"
	"github.com/abchbx/nutrition-agent/internal/nutritionix"
	"github.com/abchbx/nutrition-agent/internal/resolver"
	"github.com/abchbx/nutrition-agent/internal/semantic"
	"github.com/abchbx/nutrition-agent/internal/usda"
)

// app is the fully wired process.
type app struct {
	cfg      config.Config
	table    *foodtable.Table
	memory   *memory.Store
	resolver *resolver.Engine
	logger   *dailylog.Logger
	agent    *agent.Agent
	usda     *usda.CachedSource
}

func newEngine(cfg config.LLMConfig) engine.Engine {
	if cfg.Backend == config.BackendOpenAI {
		return engine.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}
	return engine.NewOllamaEngine(cfg.OllamaURL)
}

func newProvider(cfg config.LLMConfig, eng engine.Engine) embedding.Provider {
	if cfg.Embedder == config.EmbedderHash {
		return embedding.NewHashProvider(0)
	}
	return embedding.NewEngineProvider(eng, cfg.EmbedModel)
}

// embedModel is the model EnsureReady must find; the hash embedder needs none.
func embedModel(cfg config.LLMConfig) string {
	if cfg.Embedder == config.EmbedderHash {
		return ""
	}
	return cfg.EmbedModel
}

// buildApp wires every component. Startup progress goes to progress.
// Semantic search, the knowledge base and the external sources degrade to
// "unavailable" instead of failing startup.
func buildApp(ctx context.Context, cfg config.Config, progress io.Writer) (*app, error) {
	eng := newEngine(cfg.LLM)
	if err := engine.EnsureReady(ctx, eng, cfg.LLM.ChatModel, embedModel(cfg.LLM), progress); err != nil {
		return nil, err
	}
	if cfg.LLM.SelectModel != "" && cfg.LLM.SelectModel != cfg.LLM.ChatModel {
		if err := engine.EnsureReady(ctx, eng, cfg.LLM.SelectModel, "", progress); err != nil {
			return nil, err
		}
	}
	provider := newProvider(cfg.LLM, eng)

	table := foodtable.Load(cfg.Storage.FoodTablePath())
	slog.Info("food table loaded", "path", cfg.Storage.FoodTablePath(), "records", table.Len())

	store, err := memory.Open(cfg.Storage.UsersPath())
	if err != nil {
		return nil, fmt.Errorf("opening user memory: %w", err)
	}

	src := resolver.Sources{
		Table:       table,
		TierTimeout: cfg.Resolver.TierTimeout,
	}
	a := &app{cfg: cfg, table: table, memory: store}

	if ix, err := semantic.Open(ctx, cfg.Storage.IndexPath(), provider, table.All()); err != nil {
		slog.Warn("semantic search disabled", "error", err)
	} else {
		src.Index = ix
	}

	if cfg.USDAConfigured() {
		client := usda.New(cfg.USDA.APIKey, cfg.USDA.BaseURL, cfg.USDA.Timeout)
		cached, err := usda.NewCachedSource(client, int64(cfg.USDA.CacheSize), cfg.USDA.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("creating USDA cache: %w", err)
		}
		a.usda = cached
		src.Authoritative = cached
	} else {
		slog.Info("USDA_API_KEY not set, skipping the authoritative tier")
	}

	nx := nutritionix.New(cfg.Nutritionix.URL, cfg.Nutritionix.AppID, cfg.Nutritionix.AppKey, cfg.Nutritionix.Timeout)
	if nx.Configured() {
		src.Secondary = nx
	} else {
		slog.Info("Nutritionix credentials not set, skipping the secondary tier")
	}

	a.resolver = resolver.New(src)
	a.logger = dailylog.NewLogger(a.resolver, store)

	exec := &agent.Executor{
		Resolver:    a.resolver,
		Catalog:     table,
		Chat:        eng,
		Model:       cfg.LLM.ChatModel,
		Temperature: &cfg.LLM.Temperature,
	}
	sections := knowledge.LoadAll(ctx, cfg.Storage.KnowledgePaths())
	if kb, err := knowledge.Build(ctx, provider, sections); err != nil {
		slog.Warn("knowledge base disabled", "error", err)
	} else {
		exec.Knowledge = kb
	}

	a.agent = agent.New(agent.Config{
		Store:       store,
		Selector:    agent.NewSelector(eng, cfg.LLM.SelectModel),
		Runner:      exec,
		Chat:        eng,
		Model:       cfg.LLM.ChatModel,
		Temperature: &cfg.LLM.Temperature,
	})
	return a, nil
}

func (a *app) deps() api.Deps {
	return api.Deps{
		Resolver:  a.resolver,
		Catalog:   a.table,
		Assistant: a.agent,
		Profiles:  a.memory,
		Logger:    a.logger,
		Token:     a.cfg.Server.Token,
		Now:       time.Now,
	}
}

func (a *app) Close() {
	if a.usda != nil {
		a.usda.Close()
	}
}
