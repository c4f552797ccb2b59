// Package pipeline composes the pluggable backends into the two working
// assemblies of the system: an upload pipeline for ingesting documents and a
// conversation pipeline that adds answer generation, transcription, and
// per-session state on top of it.
package pipeline

import (
	"context"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/embedder"
	"github.com/adotb/adotb-go/internal/fileproc"
	"github.com/adotb/adotb-go/internal/rag"
	"github.com/adotb/adotb-go/internal/vectordb"
)

// UploadPipeline assembles a file processor, an embedding provider, and a
// vector store. Components are swapped whole: a Set call either installs a
// fully constructed replacement or leaves the previous one untouched.
type UploadPipeline struct {
	processor fileproc.Processor
	embedder  rag.Embedder
	store     rag.VectorStore
}

// NewUploadPipeline returns an empty pipeline; install components with the
// Set methods before use.
func NewUploadPipeline() *UploadPipeline {
	return &UploadPipeline{}
}

// SetFileProcessor selects the text chunking strategy.
func (p *UploadPipeline) SetFileProcessor(kind fileproc.Kind) error {
	proc, err := fileproc.New(kind)
	if err != nil {
		return err
	}
	p.processor = proc
	return nil
}

// SetEmbedding constructs and installs the embedding provider.
func (p *UploadPipeline) SetEmbedding(cfg *embedder.Config) error {
	e, err := embedder.New(cfg)
	if err != nil {
		return err
	}
	p.embedder = e
	return nil
}

// SetVectorDB constructs and installs the vector store. Construction
// connects and fails fast, so a rejected store never replaces a live one.
func (p *UploadPipeline) SetVectorDB(ctx context.Context, cfg *vectordb.Config) error {
	if cfg.Embedder == nil {
		cfg.Embedder = p.embedder
	}
	store, err := vectordb.New(ctx, cfg)
	if err != nil {
		return err
	}
	if p.store != nil {
		_ = p.store.Close()
	}
	p.store = store
	return nil
}

// Processor returns the installed file processor.
func (p *UploadPipeline) Processor() fileproc.Processor { return p.processor }

// Embedder returns the installed embedding provider, which may be nil when
// the store embeds internally.
func (p *UploadPipeline) Embedder() rag.Embedder { return p.embedder }

// Store returns the installed vector store.
func (p *UploadPipeline) Store() rag.VectorStore { return p.store }

// Ingest embeds the full batch and then adds it to the store. The batch is
// committed atomically: an embedding failure rejects all documents before
// anything reaches the store.
func (p *UploadPipeline) Ingest(ctx context.Context, docs []rag.Document) error {
	if p.store == nil {
		return apperrors.Store("no vector store configured", nil, false)
	}
	if len(docs) == 0 {
		return nil
	}
	for i := range docs {
		docs[i].Normalize()
	}
	if p.embedder != nil {
		if err := p.embedder.Embed(ctx, docs); err != nil {
			return err
		}
	}
	return p.store.Add(ctx, docs)
}

// Close releases the vector store connection.
func (p *UploadPipeline) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}
