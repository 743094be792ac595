package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	LLM         LLMConfig
	Storage     StorageConfig
	USDA        USDAConfig
	Nutritionix NutritionixConfig
	Resolver    ResolverConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
	Token   string
}

type LLMConfig struct {
	Backend       string
	OllamaURL     string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	ChatModel     string
	SelectModel   string
	EmbedModel    string
	Embedder      string
	Temperature   float64
}

type StorageConfig struct {
	DataDir        string
	FoodTable      string
	IndexDir       string
	UsersDir       string
	KnowledgeFiles string
}

type USDAConfig struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

type NutritionixConfig struct {
	URL     string
	AppID   string
	AppKey  string
	Timeout time.Duration
}

type ResolverConfig struct {
	TierTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"

	EmbedderEngine = "engine"
	EmbedderHash   = "hash"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    8000,
			MCPPort: 8001,
		},
		LLM: LLMConfig{
			Backend:       BackendOllama,
			OllamaURL:     "http://localhost:11434",
			OpenAIBaseURL: "https://api.openai.com/v1",
			ChatModel:     "qwen2.5:7b",
			SelectModel:   "qwen2.5:3b",
			EmbedModel:    "bge-m3",
			Embedder:      EmbedderEngine,
			Temperature:   0.7,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		USDA: USDAConfig{
			BaseURL:   "https://api.nal.usda.gov/fdc/v1",
			Timeout:   10 * time.Second,
			CacheSize: 1000,
			CacheTTL:  24 * time.Hour,
		},
		Nutritionix: NutritionixConfig{
			URL:     "https://trackapi.nutritionix.com/v2/natural/nutrients",
			Timeout: 10 * time.Second,
		},
		Resolver: ResolverConfig{
			TierTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration in three layers: defaults, the JSON config file
// at $XDG_CONFIG_HOME/nutrition-agent/config.json, then environment
// variables. A .env file in the working directory is loaded into the
// environment first; variables already set win over it. Secrets are only
// read from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env: %v\n", err)
	}
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.LLM.Backend {
	case BackendOllama:
	case BackendOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("missing required config: OpenAI API key. Set it via environment variable OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm.backend must be %q or %q, got %q", BackendOllama, BackendOpenAI, c.LLM.Backend))
	}
	if c.LLM.Embedder != EmbedderEngine && c.LLM.Embedder != EmbedderHash {
		errs = append(errs, fmt.Errorf("llm.embedder must be %q or %q, got %q", EmbedderEngine, EmbedderHash, c.LLM.Embedder))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.USDA.CacheSize < 0 {
		errs = append(errs, errors.New("usda.cache_size must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.MCPPort <= 0 {
		errs = append(errs, errors.New("server ports must be positive"))
	}
	return errors.Join(errs...)
}

// FoodTablePath is the CSV food table, by default inside the data dir.
func (s StorageConfig) FoodTablePath() string {
	return s.orData(s.FoodTable, "nutrition_data.csv")
}

// IndexPath is the semantic index directory.
func (s StorageConfig) IndexPath() string {
	return s.orData(s.IndexDir, "food_index")
}

// UsersPath is the directory of per-user profile files.
func (s StorageConfig) UsersPath() string {
	return s.orData(s.UsersDir, "user_profiles")
}

// KnowledgePaths lists the knowledge sources. The default is a single
// knowledge_base.md in the data dir.
func (s StorageConfig) KnowledgePaths() []string {
	var out []string
	for _, p := range strings.Split(s.KnowledgeFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{filepath.Join(s.DataDir, "knowledge_base.md")}
	}
	return out
}

func (s StorageConfig) orData(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(s.DataDir, name)
}

// USDAConfigured reports whether the authoritative source can be queried.
func (c Config) USDAConfigured() bool { return c.USDA.APIKey != "" }

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "nutrition-data"
		}
	}
	return filepath.Join(dir, "nutrition-agent")
}

func configFilePath() string {
	if p := os.Getenv("NUTRITION_CONFIG_FILE"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "nutrition-agent", "config.json")
}
