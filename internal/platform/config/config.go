// Package config loads application configuration from environment variables.
// All variables use the TUTOR_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AI          AIConfig
	Embedding   EmbeddingConfig
	Retrieval   RetrievalConfig
	Log         LogConfig
	PromptsPath string
	MaterialDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL
// selects the in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL selects
// the in-process recency tracker.
type CacheConfig struct {
	URL string
}

// AIConfig holds configuration for the LLM providers.
type AIConfig struct {
	DeepSeek DeepSeekConfig
	OpenAI   OpenAIConfig
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
	Model  string
}

// OpenAIConfig holds OpenAI provider settings, used as the fallback
// chat provider and for embeddings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RetrievalConfig holds retrieval defaults.
type RetrievalConfig struct {
	K      int
	Expand bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with TUTOR_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TUTOR_SERVER_PORT", 8080),
			Host: envStr("TUTOR_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("TUTOR_DATABASE_URL", ""),
			MaxConns: envInt("TUTOR_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("TUTOR_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("TUTOR_CACHE_URL", ""),
		},
		AI: AIConfig{
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("TUTOR_AI_DEEPSEEK_API_KEY", ""),
				Model:  envStr("TUTOR_AI_DEEPSEEK_MODEL", "deepseek-chat"),
			},
			OpenAI: OpenAIConfig{
				APIKey: envStr("TUTOR_AI_OPENAI_API_KEY", ""),
				Model:  envStr("TUTOR_AI_OPENAI_MODEL", "gpt-4o-mini"),
			},
		},
		Embedding: EmbeddingConfig{
			APIKey:  envStr("TUTOR_EMBEDDING_API_KEY", ""),
			BaseURL: envStr("TUTOR_EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			Model:   envStr("TUTOR_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Retrieval: RetrievalConfig{
			K:      envInt("TUTOR_RETRIEVAL_K", 4),
			Expand: envBool("TUTOR_RETRIEVAL_EXPAND", true),
		},
		Log: LogConfig{
			Level:  envStr("TUTOR_LOG_LEVEL", "info"),
			Format: envStr("TUTOR_LOG_FORMAT", "json"),
		},
		PromptsPath: envStr("TUTOR_PROMPTS_PATH", ""),
		MaterialDir: envStr("TUTOR_MATERIAL_DIR", "./materials"),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if !c.HasAIProvider() {
		return fmt.Errorf("at least one AI provider must be configured")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("TUTOR_EMBEDDING_API_KEY is required")
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("TUTOR_RETRIEVAL_K must be positive, got %d", c.Retrieval.K)
	}
	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.DeepSeek.APIKey != "" || c.AI.OpenAI.APIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
