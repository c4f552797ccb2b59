// Package config provides YAML-based configuration for adotb.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. ADOTB_CONFIG environment variable
//  3. ~/.adotb/config.yaml
//  4. ./adotb.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// VectorDB configures the vector store backend.
	VectorDB VectorDBConfig `yaml:"vectordb"`

	// Transcription configures the audio transcription provider.
	Transcription TranscriptionConfig `yaml:"transcription"`

	// Auth configures the Supabase identity provider.
	Auth AuthConfig `yaml:"auth"`

	// Chat configures per-turn retrieval tuning.
	Chat ChatConfig `yaml:"chat"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures conversation transcript persistence.
	History HistoryConfig `yaml:"history"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0). Answer generation
	// forces 0 per turn regardless; this applies to other model usage.
	Temperature float32 `yaml:"temperature"`

	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`

	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure"`

	// Bedrock holds AWS Bedrock-specific settings.
	Bedrock BedrockConfig `yaml:"bedrock"`

	// Gemini holds Google Gemini-specific settings.
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// BedrockConfig holds AWS Bedrock provider settings.
type BedrockConfig struct {
	// Region is the AWS region for Bedrock.
	Region string `yaml:"region"`
	// ModelID is the Bedrock model identifier.
	ModelID string `yaml:"model_id"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: openai, ollama.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// VectorDBConfig holds vector store settings. Chroma uses Path; Postgres
// and Qdrant use Host/Port.
type VectorDBConfig struct {
	// Kind selects the backend: chroma, postgres, qdrant.
	Kind string `yaml:"kind"`
	// Path is the on-disk location for the embedded chroma store.
	Path string `yaml:"path"`
	// Collection is the collection or table name.
	Collection string `yaml:"collection"`
	// QueryLimit is the default number of documents returned per query.
	QueryLimit int `yaml:"query_limit"`
	// Host is the remote store hostname.
	Host string `yaml:"host"`
	// Port is the remote store port.
	Port int `yaml:"port"`
	// User is the Postgres user.
	User string `yaml:"user"`
	// Password is the Postgres password. Prefer env var POSTGRES_DB_PASSWORD.
	Password string `yaml:"password"`
	// Database is the Postgres database name.
	Database string `yaml:"database"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// TranscriptionConfig holds audio transcription settings.
type TranscriptionConfig struct {
	// Provider selects the backend: whisper.
	Provider string `yaml:"provider"`
	// APIKey is the transcription API key. Prefer env var TRANSCRIPTION_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the transcription model name.
	Model string `yaml:"model"`
}

// AuthConfig holds Supabase identity provider settings. Leaving URL empty
// disables authentication (development mode).
type AuthConfig struct {
	// URL is the Supabase project URL.
	URL string `yaml:"url"`
	// Key is the Supabase service key. Prefer env var SUPABASE_KEY.
	Key string `yaml:"key"`
}

// ChatConfig holds per-turn retrieval tuning.
type ChatConfig struct {
	// ContextChars caps the prompt context block size in characters.
	ContextChars int `yaml:"context_chars"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// RateLimit is the sustained per-IP request rate on guarded endpoints.
	RateLimit float32 `yaml:"rate_limit"`
	// RateBurst is the per-IP burst size on guarded endpoints.
	RateBurst int `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds conversation transcript settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
// The vector-store and Supabase names match the deployment environment the
// service historically ran in.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"AWS_REGION", func(c *Config) string { return c.Model.Bedrock.Region }},
	{"BEDROCK_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.ModelID }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"VECTORDB_TYPE", func(c *Config) string { return c.VectorDB.Kind }},
	{"CHROMA_DB_PATH", func(c *Config) string { return c.VectorDB.Path }},
	{"CHROMA_DB_COLLECTION", func(c *Config) string { return c.VectorDB.Collection }},
	{"CHROMA_DB_QUERY_LIMIT", func(c *Config) string { return intStr(c.VectorDB.QueryLimit) }},
	{"POSTGRES_DB_HOST", func(c *Config) string { return c.VectorDB.Host }},
	{"POSTGRES_DB_PORT", func(c *Config) string { return intStr(c.VectorDB.Port) }},
	{"POSTGRES_DB_USER", func(c *Config) string { return c.VectorDB.User }},
	{"POSTGRES_DB_PASSWORD", func(c *Config) string { return c.VectorDB.Password }},
	{"POSTGRES_DB_NAME", func(c *Config) string { return c.VectorDB.Database }},
	{"QDRANT_HOST", func(c *Config) string { return c.VectorDB.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.VectorDB.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.VectorDB.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.VectorDB.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.VectorDB.TLS) }},
	{"TRANSCRIPTION_PROVIDER", func(c *Config) string { return c.Transcription.Provider }},
	{"TRANSCRIPTION_API_KEY", func(c *Config) string { return c.Transcription.APIKey }},
	{"TRANSCRIPTION_MODEL", func(c *Config) string { return c.Transcription.Model }},
	{"SUPABASE_URL", func(c *Config) string { return c.Auth.URL }},
	{"SUPABASE_KEY", func(c *Config) string { return c.Auth.Key }},
	{"CHAT_CONTEXT_CHARS", func(c *Config) string { return intStr(c.Chat.ContextChars) }},
	{"ADOTB_HOST", func(c *Config) string { return c.Server.Host }},
	{"ADOTB_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"ADOTB_RATE_LIMIT", func(c *Config) string { return float32Str(c.Server.RateLimit) }},
	{"ADOTB_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"ADOTB_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("ADOTB_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".adotb", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("adotb.yaml"); err == nil {
		return "adotb.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
