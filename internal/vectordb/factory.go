package vectordb

import (
	"context"
	"fmt"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// Kind identifies a vector store backend.
type Kind string

const (
	// KindChroma selects the embedded chromem-go store (local path only).
	KindChroma Kind = "chroma"
	// KindPostgres selects Postgres with the pgvector extension.
	KindPostgres Kind = "postgres"
	// KindQdrant selects a remote Qdrant instance.
	KindQdrant Kind = "qdrant"
)

// Config is the backend-independent store configuration. Host/Port address
// a remote store; Path locates an embedded one. The two forms are mutually
// exclusive per instance.
type Config struct {
	Kind       Kind
	Host       string
	Port       int
	Path       string
	User       string
	Password   string
	Database   string
	Collection string
	APIKey     string
	UseTLS     bool
	Dimensions int
	QueryLimit int
	Embedder   rag.Embedder
}

// New constructs the vector store selected by cfg.Kind. The backend set is
// closed: anything else is rejected up front rather than at first use.
func New(ctx context.Context, cfg *Config) (rag.VectorStore, error) {
	remote := cfg.Host != "" || cfg.Port != 0
	if remote && cfg.Path != "" {
		return nil, apperrors.Malformed("vector store config sets both host/port and a local path")
	}

	switch cfg.Kind {
	case KindChroma:
		if remote {
			return nil, apperrors.Unsupported("chroma runs embedded; remote similarity search is served by qdrant")
		}
		return NewChromaStore(&ChromaConfig{
			Path:       cfg.Path,
			Collection: cfg.Collection,
			Embedder:   cfg.Embedder,
			QueryLimit: cfg.QueryLimit,
		})
	case KindPostgres:
		if cfg.Path != "" {
			return nil, apperrors.Unsupported("postgres is a remote store and takes no local path")
		}
		return NewPostgresStore(ctx, &PostgresConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			User:       cfg.User,
			Password:   cfg.Password,
			Database:   cfg.Database,
			Collection: cfg.Collection,
			Dimensions: cfg.Dimensions,
			Embedder:   cfg.Embedder,
			QueryLimit: cfg.QueryLimit,
		})
	case KindQdrant:
		if cfg.Path != "" {
			return nil, apperrors.Unsupported("qdrant is a remote store and takes no local path")
		}
		return NewQdrantStore(ctx, &QdrantConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Collection: cfg.Collection,
			Dimensions: cfg.Dimensions,
			APIKey:     cfg.APIKey,
			UseTLS:     cfg.UseTLS,
			Embedder:   cfg.Embedder,
			QueryLimit: cfg.QueryLimit,
		})
	default:
		return nil, apperrors.Unsupported(fmt.Sprintf("unknown vector store kind %q", cfg.Kind))
	}
}
