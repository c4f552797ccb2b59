package embedder

import (
	"fmt"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// Kind enumerates the supported embedding backends. The set is closed:
// anything else is rejected before any side effect.
type Kind string

const (
	// KindOpenAI selects the remote OpenAI embeddings API.
	KindOpenAI Kind = "openai"
	// KindOllama selects a locally running Ollama instance.
	KindOllama Kind = "ollama"
)

// Default embedding models and output dimensions per backend.
const (
	defaultOpenAIModel = "text-embedding-ada-002"
	defaultOllamaModel = "nomic-embed-text"

	// defaultOpenAIDimensions is the output size of text-embedding-ada-002.
	defaultOpenAIDimensions = 1536
	// defaultOllamaDimensions is the output size of nomic-embed-text.
	// Other Ollama models may differ — override via Config.Dimensions.
	defaultOllamaDimensions = 768
)

// Config holds the declarative choice of embedding backend plus its
// parameters, as received from the API surface or environment.
type Config struct {
	// Kind identifies which backend to use.
	Kind Kind
	// APIKey is the credential for remote backends (unused by ollama).
	APIKey string
	// Model overrides the backend's default embedding model.
	Model string
	// Endpoint overrides the backend's default base URL.
	Endpoint string
	// Dimensions overrides the backend's default vector size. Choosing a
	// backend is a collection-wide commitment: stores with fixed schemas
	// size their columns from this value.
	Dimensions int
}

// ResolvedDimensions returns the embedding vector size this config will
// produce. Stores that fix dimensionality at creation time (Postgres,
// Qdrant) call this before building their schema.
func (c *Config) ResolvedDimensions() int {
	if c.Dimensions > 0 {
		return c.Dimensions
	}
	switch c.Kind {
	case KindOllama:
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs a rag.Embedder for the configured backend. An unknown kind
// is an unsupported-technology error; missing credentials for a remote
// backend fail here so callers get a clear error before the first batch.
func New(cfg *Config) (rag.Embedder, error) {
	switch cfg.Kind {
	case KindOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
		}), nil

	case KindOllama:
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), nil

	default:
		return nil, apperrors.Unsupported(fmt.Sprintf("embedding type %q is not supported (yet)", cfg.Kind))
	}
}
