package commands

import (
	"os"
	"strconv"

	"github.com/adotb/adotb-go/internal/embedder"
	"github.com/adotb/adotb-go/internal/vectordb"
)

// embeddingConfigFromEnv builds the embedding backend config from the
// EMBEDDING_* environment variables. The OpenAI key doubles as the embedding
// key when no dedicated one is set, matching the common single-key setup.
func embeddingConfigFromEnv() *embedder.Config {
	apiKey := os.Getenv("EMBEDDING_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return &embedder.Config{
		Kind:       embedder.Kind(envOrDefault("EMBEDDING_PROVIDER", string(embedder.KindOpenAI))),
		APIKey:     apiKey,
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
	}
}

// vectorDBConfigFromEnv builds the vector store config for the backend
// selected by VECTORDB_TYPE (default chroma). Each backend reads its own
// connection variables.
func vectorDBConfigFromEnv(dimensions int) *vectordb.Config {
	kind := vectordb.Kind(envOrDefault("VECTORDB_TYPE", string(vectordb.KindChroma)))
	cfg := &vectordb.Config{
		Kind:       kind,
		Dimensions: dimensions,
		QueryLimit: envInt("CHROMA_DB_QUERY_LIMIT", 0),
	}
	switch kind {
	case vectordb.KindPostgres:
		cfg.Host = envOrDefault("POSTGRES_DB_HOST", "localhost")
		cfg.Port = envInt("POSTGRES_DB_PORT", 5432)
		cfg.User = envOrDefault("POSTGRES_DB_USER", "admin")
		cfg.Password = os.Getenv("POSTGRES_DB_PASSWORD")
		cfg.Database = envOrDefault("POSTGRES_DB_NAME", "adotbcollection")
	case vectordb.KindQdrant:
		cfg.Host = envOrDefault("QDRANT_HOST", "localhost")
		cfg.Port = envInt("QDRANT_PORT", 6334)
		cfg.Collection = envOrDefault("QDRANT_COLLECTION", "adotbcollection")
		cfg.APIKey = os.Getenv("QDRANT_API_KEY")
		cfg.UseTLS = os.Getenv("QDRANT_TLS") == "true"
	default:
		cfg.Path = envOrDefault("CHROMA_DB_PATH", "chromadb_store")
		cfg.Collection = envOrDefault("CHROMA_DB_COLLECTION", "adotbcollection")
	}
	return cfg
}

// envOrDefault returns the env var's value, or fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the env var parsed as an int, or fallback if unset or
// unparseable.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envFloat returns the env var parsed as a float64, or fallback if unset or
// unparseable.
func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
