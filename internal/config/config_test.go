package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 || cfg.Server.MCPPort != 8001 {
		t.Errorf("ports = %d/%d, want 8000/8001", cfg.Server.Port, cfg.Server.MCPPort)
	}
	if cfg.LLM.Backend != BackendOllama {
		t.Errorf("LLM.Backend = %q", cfg.LLM.Backend)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("LLM.Temperature = %v, want 0.7", cfg.LLM.Temperature)
	}
	if cfg.USDA.Timeout != 10*time.Second || cfg.USDA.CacheTTL != 24*time.Hour {
		t.Errorf("USDA timings = %v/%v", cfg.USDA.Timeout, cfg.USDA.CacheTTL)
	}
	if cfg.Storage.DataDir != "/data/nutrition-agent" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if got := cfg.Storage.FoodTablePath(); got != "/data/nutrition-agent/nutrition_data.csv" {
		t.Errorf("FoodTablePath = %q", got)
	}
	if cfg.USDAConfigured() {
		t.Error("USDA should not be configured without a key")
	}
}

func TestFileValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "server.port": 9000,
  "llm.chat_model": "llama3",
  "llm.temperature": "0.2",
  "usda.timeout": "3s",
  "resolver.tier_timeout": "1500ms",
  "storage.users_dir": "/srv/users"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.LLM.ChatModel != "llama3" {
		t.Errorf("LLM.ChatModel = %q", cfg.LLM.ChatModel)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("LLM.Temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.USDA.Timeout != 3*time.Second {
		t.Errorf("USDA.Timeout = %v", cfg.USDA.Timeout)
	}
	if cfg.Resolver.TierTimeout != 1500*time.Millisecond {
		t.Errorf("Resolver.TierTimeout = %v", cfg.Resolver.TierTimeout)
	}
	if cfg.Storage.UsersPath() != "/srv/users" {
		t.Errorf("UsersPath = %q", cfg.Storage.UsersPath())
	}
}

func TestFileIgnoresSecrets(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"usda.api_key": "from-file"}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.USDA.APIKey != "" {
		t.Errorf("secret read from file: %q", cfg.USDA.APIKey)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"llm.chat_model": "file-model"}`)
	t.Setenv("AGENT_MODEL", "env-model")
	t.Setenv("USDA_API_KEY", "k")
	t.Setenv("NUTRITION_TIER_TIMEOUT", "2s")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.ChatModel != "env-model" {
		t.Errorf("LLM.ChatModel = %q, want env-model", cfg.LLM.ChatModel)
	}
	if !cfg.USDAConfigured() {
		t.Error("USDA key from env not applied")
	}
	if cfg.Resolver.TierTimeout != 2*time.Second {
		t.Errorf("Resolver.TierTimeout = %v", cfg.Resolver.TierTimeout)
	}
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUTRITION_SERVER_PORT", "not-a-port")
	t.Setenv("NUTRITION_USDA_TIMEOUT", "-5s")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "none.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
	if cfg.USDA.Timeout != 10*time.Second {
		t.Errorf("USDA.Timeout = %v, want default", cfg.USDA.Timeout)
	}
}

func TestOpenAIBackendRequiresKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUTRITION_LLM_BACKEND", "openai")

	_, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "none.json")))
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("err = %v, want missing key error", err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	if _, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "none.json"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := defaults()
	cfg.LLM.Backend = "gpt"
	cfg.Log.Format = "xml"
	cfg.LLM.Embedder = "magic"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"llm.backend", "log.format", "llm.embedder"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %s", err, want)
		}
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	t.Setenv("NUTRITION_CONFIG_FILE", path)

	if err := SetKey("server.port", "9100"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := SetKey("usda.cache_ttl", "90m"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := SetKey("log.level", "debug"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.USDA.CacheTTL != 90*time.Minute {
		t.Errorf("USDA.CacheTTL = %v", cfg.USDA.CacheTTL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestSetKeyRejects(t *testing.T) {
	t.Setenv("NUTRITION_CONFIG_FILE", filepath.Join(t.TempDir(), "config.json"))

	cases := map[string][2]string{
		"unknown":  {"no.such_key", "x"},
		"secret":   {"usda.api_key", "x"},
		"bad int":  {"server.port", "abc"},
		"bad time": {"usda.timeout", "soon"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if err := SetKey(c[0], c[1]); err == nil {
				t.Errorf("SetKey(%q, %q) succeeded", c[0], c[1])
			}
		})
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.USDA.APIKey = "super-secret"

	for _, info := range ShowAll(cfg) {
		if strings.Contains(info.Value, "super-secret") {
			t.Fatalf("secret leaked in %s", info.Key)
		}
		switch info.Key {
		case "usda.api_key":
			if info.Value != "(set)" {
				t.Errorf("usda.api_key = %q, want (set)", info.Value)
			}
		case "nutritionix.app_id":
			if info.Value != "(unset)" {
				t.Errorf("nutritionix.app_id = %q, want (unset)", info.Value)
			}
		case "usda.timeout":
			if info.Value != "10s" {
				t.Errorf("usda.timeout = %q", info.Value)
			}
		}
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "server.token" || k == "openai_api_key" || strings.HasSuffix(k, "api_key") || strings.HasPrefix(k, "nutritionix.app_") {
			t.Errorf("secret key %s listed", k)
		}
	}
}

func TestKnowledgePaths(t *testing.T) {
	s := StorageConfig{DataDir: "/d"}
	if got := s.KnowledgePaths(); !reflect.DeepEqual(got, []string{"/d/knowledge_base.md"}) {
		t.Errorf("default = %v", got)
	}
	s.KnowledgeFiles = " a.md, ,b.pdf "
	if got := s.KnowledgePaths(); !reflect.DeepEqual(got, []string{"a.md", "b.pdf"}) {
		t.Errorf("list = %v", got)
	}
}
