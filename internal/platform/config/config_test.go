package config

import (
	"os"
	"testing"
)

// clearEnv unsets all TUTOR_ environment variables for a clean test.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"TUTOR_SERVER_PORT",
		"TUTOR_SERVER_HOST",
		"TUTOR_DATABASE_URL",
		"TUTOR_DATABASE_MAX_CONNS",
		"TUTOR_DATABASE_MIN_CONNS",
		"TUTOR_CACHE_URL",
		"TUTOR_AI_DEEPSEEK_API_KEY",
		"TUTOR_AI_DEEPSEEK_MODEL",
		"TUTOR_AI_OPENAI_API_KEY",
		"TUTOR_AI_OPENAI_MODEL",
		"TUTOR_EMBEDDING_API_KEY",
		"TUTOR_EMBEDDING_BASE_URL",
		"TUTOR_EMBEDDING_MODEL",
		"TUTOR_RETRIEVAL_K",
		"TUTOR_RETRIEVAL_EXPAND",
		"TUTOR_LOG_LEVEL",
		"TUTOR_LOG_FORMAT",
		"TUTOR_PROMPTS_PATH",
		"TUTOR_MATERIAL_DIR",
	}
	for _, v := range envVars {
		_ = os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty (memory stores)", cfg.Database.URL)
	}
	if cfg.AI.DeepSeek.Model != "deepseek-chat" {
		t.Errorf("DeepSeek.Model = %q", cfg.AI.DeepSeek.Model)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding.Model = %q", cfg.Embedding.Model)
	}
	if cfg.Retrieval.K != 4 || !cfg.Retrieval.Expand {
		t.Errorf("Retrieval = %+v, want K=4 Expand=true", cfg.Retrieval)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUTOR_SERVER_PORT", "9090")
	t.Setenv("TUTOR_DATABASE_URL", "postgres://tutor:tutor@db:5432/tutor")
	t.Setenv("TUTOR_RETRIEVAL_EXPAND", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://tutor:tutor@db:5432/tutor" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Retrieval.Expand {
		t.Error("Retrieval.Expand = true, want false")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Retrieval: RetrievalConfig{K: 4},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() passed without any AI provider")
	}

	cfg.AI.DeepSeek.APIKey = "sk-test"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() passed without an embedding key")
	}

	cfg.Embedding.APIKey = "sk-embed"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	cfg.Retrieval.K = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() passed with K=0")
	}
}
