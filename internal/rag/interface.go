package rag

import "context"

// Embedder converts document text into dense vector embeddings, writing the
// result into each document's Embedding field in place. Implementations must
// be safe to call from multiple goroutines.
type Embedder interface {
	// Embed computes embeddings for every document in docs and assigns
	// docs[i].Embedding. Documents must have non-empty Text. A failure
	// leaves the whole batch unembedded — partial assignment is not allowed,
	// since ingestion commits batches atomically.
	Embed(ctx context.Context, docs []Document) error
}

// VectorStore persists documents and answers similarity queries over them.
// A store instance is bound to one collection; instances pointed at the same
// collection may be shared across sessions (reads dominate, concurrent
// writers to one document id are last-write-wins).
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Add upserts documents by ID. Documents without an embedding are
	// embedded by the store's own embedding function where the backend
	// supports that; otherwise the call fails.
	Add(ctx context.Context, docs []Document) error

	// Query returns up to limit documents ranked by descending similarity
	// to text. When labels is non-empty only documents whose Label is in
	// the set are returned. limit <= 0 selects the store's default.
	Query(ctx context.Context, text string, labels []string, limit int) ([]Document, error)

	// Labels returns the distinct set of labels currently present in the
	// collection.
	Labels(ctx context.Context) ([]string, error)

	// Get fetches documents by ID, in the order requested. Unknown IDs are
	// skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Persist flushes any buffered state to durable storage. A no-op for
	// backends that write through.
	Persist(ctx context.Context) error

	// Close releases connections and resources held by the store.
	Close() error
}

// Generator assembles a prompt from retrieved context plus conversation
// history, calls a language model, and returns the grounded answer with its
// cited sources. Implementations must be safe to call from multiple
// goroutines.
type Generator interface {
	// Generate answers query using the bound vector store for context and
	// history for conversational continuity. language selects the response
	// language ("" means English). It never returns a partial Answer: any
	// upstream failure surfaces as a single wrapped error.
	Generate(ctx context.Context, query string, history []ChatTurn, language string) (*Answer, error)
}

// Transcriber converts raw audio bytes into text.
type Transcriber interface {
	// Transcribe returns the transcription of the given audio payload.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
