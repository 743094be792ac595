package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// Environment names without a NUTRITION_ prefix are kept compatible with
// existing deployments' .env files.
var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "NUTRITION_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "NUTRITION_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.token", typ: kString, env: "NUTRITION_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "llm.backend", typ: kString, env: "NUTRITION_LLM_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.LLM.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Backend },
	},
	{
		key: "llm.ollama_url", typ: kString, env: "NUTRITION_OLLAMA_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.OllamaURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OllamaURL },
	},
	{
		key: "llm.openai_base_url", typ: kString, env: "OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenAIBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenAIBaseURL },
	},
	{
		key: "llm.openai_api_key", typ: kString, env: "OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenAIAPIKey },
	},
	{
		key: "llm.chat_model", typ: kString, env: "AGENT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ChatModel },
	},
	{
		key: "llm.select_model", typ: kString, env: "NUTRITION_SELECT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.SelectModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.SelectModel },
	},
	{
		key: "llm.embed_model", typ: kString, env: "EMBEDDING_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedModel },
	},
	{
		key: "llm.embedder", typ: kString, env: "NUTRITION_EMBEDDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Embedder = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Embedder },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "AGENT_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NUTRITION_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.food_table", typ: kString, env: "DATABASE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.FoodTable = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.FoodTablePath() },
	},
	{
		key: "storage.index_dir", typ: kString, env: "VECTOR_DB_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.IndexDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.IndexPath() },
	},
	{
		key: "storage.users_dir", typ: kString, env: "USER_DATA_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.UsersDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.UsersPath() },
	},
	{
		key: "storage.knowledge_files", typ: kString, env: "NUTRITION_KNOWLEDGE_FILES",
		apply:   func(cfg *Config, v any) { cfg.Storage.KnowledgeFiles = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.KnowledgeFiles },
	},
	{
		key: "usda.api_key", typ: kString, env: "USDA_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.USDA.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.USDA.APIKey },
	},
	{
		key: "usda.base_url", typ: kString, env: "USDA_API_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.USDA.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.USDA.BaseURL },
	},
	{
		key: "usda.timeout", typ: kDuration, env: "NUTRITION_USDA_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.USDA.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.USDA.Timeout },
	},
	{
		key: "usda.cache_size", typ: kInt, env: "NUTRITION_USDA_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.USDA.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.USDA.CacheSize },
	},
	{
		key: "usda.cache_ttl", typ: kDuration, env: "NUTRITION_USDA_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.USDA.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.USDA.CacheTTL },
	},
	{
		key: "nutritionix.url", typ: kString, env: "NUTRITIONIX_API_URL",
		apply:   func(cfg *Config, v any) { cfg.Nutritionix.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Nutritionix.URL },
	},
	{
		key: "nutritionix.app_id", typ: kString, env: "NUTRITIONIX_APP_ID",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Nutritionix.AppID = v.(string) },
		extract: func(cfg Config) any { return cfg.Nutritionix.AppID },
	},
	{
		key: "nutritionix.app_key", typ: kString, env: "NUTRITIONIX_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Nutritionix.AppKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Nutritionix.AppKey },
	},
	{
		key: "nutritionix.timeout", typ: kDuration, env: "NUTRITION_NUTRITIONIX_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Nutritionix.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Nutritionix.Timeout },
	},
	{
		key: "resolver.tier_timeout", typ: kDuration, env: "NUTRITION_TIER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Resolver.TierTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Resolver.TierTimeout },
	},
	{
		key: "log.level", typ: kString, env: "LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "NUTRITION_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

// parse converts raw text to the key's value type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err == nil && d < 0 {
			return nil, fmt.Errorf("negative duration %s", raw)
		}
		return d, err
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
