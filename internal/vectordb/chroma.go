// Package vectordb provides the vector store backends behind the
// rag.VectorStore contract: an embedded chromem-go store, a Postgres store
// using the pgvector extension, and a remote Qdrant store. All three share
// the document metadata mapping (label, links, media, free-form metadata)
// so a collection written by one backend reads back identically everywhere.
package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// chromaOverfetch is the multiple of the requested limit fetched before
// label post-filtering. chromem's where clause matches a single exact value,
// so multi-label filters are applied client-side over a larger candidate set.
const chromaOverfetch = 4

// ChromaStore implements rag.VectorStore backed by an embedded chromem-go
// database, persisted under a local directory (or in memory for tests).
// Documents arriving without an embedding are embedded by the collection's
// own embedding function.
type ChromaStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	limit      int

	// labelsPath is the sidecar file persisting the label inventory next
	// to the database directory. Empty for in-memory databases.
	labelsPath string

	// mu guards dim and labels. dim is the embedding dimensionality
	// observed on the first added vector; chromem accepts mixed sizes and
	// silently corrupts similarity ranking, so the store rejects
	// mismatches itself. labels is the distinct label set, maintained at
	// Add time because chromem has no metadata scan and an unfiltered
	// similarity query would embed the probe text on every inventory call.
	mu     sync.Mutex
	dim    int
	labels map[string]bool
}

// ChromaConfig holds the settings for constructing a ChromaStore.
type ChromaConfig struct {
	// Path is the directory for the persistent database. Empty selects an
	// in-memory database (used by tests).
	Path string
	// Collection is the collection name inside the database.
	Collection string
	// Embedder computes vectors for documents and queries that arrive
	// without one. Nil falls back to chromem's default (OpenAI via env).
	Embedder rag.Embedder
	// QueryLimit is the default result count for Query. Defaults to 10.
	QueryLimit int
}

// NewChromaStore opens (or creates) the database and collection. It fails
// fast when the path is unusable.
func NewChromaStore(cfg *ChromaConfig) (*ChromaStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, apperrors.Store("could not open local vector database", fmt.Errorf("chroma: open %s: %w", cfg.Path, err), false)
		}
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "adotbcollection"
	}

	var embedFunc chromem.EmbeddingFunc
	if cfg.Embedder != nil {
		embedFunc = embeddingFuncFrom(cfg.Embedder)
	} else {
		embedFunc = chromem.NewEmbeddingFuncDefault()
	}

	col, err := db.GetOrCreateCollection(collection, nil, embedFunc)
	if err != nil {
		return nil, apperrors.Store("could not open collection", fmt.Errorf("chroma: collection %s: %w", collection, err), false)
	}

	limit := cfg.QueryLimit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	s := &ChromaStore{db: db, collection: col, limit: limit, labels: map[string]bool{}}
	if cfg.Path != "" {
		// Sibling of the database directory, so chromem's own layout stays
		// untouched.
		s.labelsPath = cfg.Path + ".labels.json"
		s.loadLabelSidecar()
	}
	return s, nil
}

// loadLabelSidecar seeds the label set from the persisted sidecar file. A
// missing or unreadable sidecar leaves the set empty; Labels then falls
// back to a one-time collection scan.
func (s *ChromaStore) loadLabelSidecar() {
	raw, err := os.ReadFile(s.labelsPath)
	if err != nil {
		return
	}
	var labels []string
	if json.Unmarshal(raw, &labels) != nil {
		return
	}
	for _, l := range labels {
		s.labels[l] = true
	}
}

// persistLabelSidecar writes the current label set. Callers hold mu.
func (s *ChromaStore) persistLabelSidecar() {
	if s.labelsPath == "" {
		return
	}
	labels := make([]string, 0, len(s.labels))
	for l := range s.labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	if raw, err := json.Marshal(labels); err == nil {
		_ = os.WriteFile(s.labelsPath, raw, 0o644)
	}
}

// embeddingFuncFrom adapts a rag.Embedder to chromem's per-text callback.
func embeddingFuncFrom(e rag.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		docs := []rag.Document{{ID: "query", Text: text}}
		if err := e.Embed(ctx, docs); err != nil {
			return nil, err
		}
		return docs[0].Embedding, nil
	}
}

// Add upserts documents by ID. Vectors are computed by the collection's
// embedding function for documents that arrive without one.
func (s *ChromaStore) Add(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := make([]chromem.Document, 0, len(docs))
	for i := range docs {
		doc := docs[i]
		doc.Normalize()
		if doc.ID == "" {
			return apperrors.Malformed("document with empty id")
		}
		if doc.Embedding != nil {
			if err := s.checkDimension(len(doc.Embedding)); err != nil {
				return err
			}
		}
		batch = append(batch, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Text,
			Embedding: doc.Embedding,
			Metadata:  encodeMetadata(&doc),
		})
	}

	if err := s.collection.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return apperrors.Store("could not add documents", fmt.Errorf("chroma: add: %w", err), false)
	}

	s.mu.Lock()
	for i := range batch {
		if l := batch[i].Metadata[metaLabel]; l != "" {
			s.labels[l] = true
		}
	}
	s.persistLabelSidecar()
	s.mu.Unlock()
	return nil
}

// checkDimension records the first seen vector size and rejects later
// mismatches. One collection, one embedding provider.
func (s *ChromaStore) checkDimension(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim == 0 {
		s.dim = n
		return nil
	}
	if s.dim != n {
		return apperrors.Malformed(fmt.Sprintf("embedding dimension %d does not match collection dimension %d", n, s.dim))
	}
	return nil
}

// Query runs a similarity search and post-filters by label. The candidate
// set is over-fetched so label filtering still yields up to limit results.
func (s *ChromaStore) Query(ctx context.Context, text string, labels []string, limit int) ([]rag.Document, error) {
	if limit <= 0 {
		limit = s.limit
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	n := limit
	if len(labels) > 0 {
		n = limit * chromaOverfetch
	}
	if n > count {
		n = count
	}

	results, err := s.collection.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, apperrors.Store("similarity search failed", fmt.Errorf("chroma: query: %w", err), false)
	}

	wanted := labelSet(labels)
	docs := make([]rag.Document, 0, limit)
	for _, r := range results {
		doc := decodeMetadata(r.ID, r.Content, r.Metadata)
		doc.Score = r.Similarity
		if wanted != nil && !wanted[doc.Label] {
			continue
		}
		docs = append(docs, doc)
		if len(docs) == limit {
			break
		}
	}
	return docs, nil
}

// Labels returns the distinct labels present in the collection, from the
// set maintained at Add time. No embedding call is made: the inventory also
// backs readiness probes, which must not depend on the embedding provider.
func (s *ChromaStore) Labels(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A database written before the sidecar existed has documents but no
	// recorded labels. Rebuild once with a full-collection query; this is
	// the only Labels path that touches the embedding function.
	if len(s.labels) == 0 && s.collection.Count() > 0 {
		results, err := s.collection.Query(ctx, " ", s.collection.Count(), nil, nil)
		if err != nil {
			return nil, apperrors.Store("could not list labels", fmt.Errorf("chroma: labels: %w", err), false)
		}
		for _, r := range results {
			if l := r.Metadata[metaLabel]; l != "" {
				s.labels[l] = true
			}
		}
		s.persistLabelSidecar()
	}

	if len(s.labels) == 0 {
		return nil, nil
	}
	labels := make([]string, 0, len(s.labels))
	for l := range s.labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels, nil
}

// Get fetches documents by ID, skipping unknown IDs.
func (s *ChromaStore) Get(ctx context.Context, ids []string) ([]rag.Document, error) {
	docs := make([]rag.Document, 0, len(ids))
	for _, id := range ids {
		d, err := s.collection.GetByID(ctx, id)
		if err != nil {
			continue
		}
		docs = append(docs, decodeMetadata(d.ID, d.Content, d.Metadata))
	}
	return docs, nil
}

// Persist is a no-op: the persistent chromem database writes through on Add.
func (s *ChromaStore) Persist(context.Context) error { return nil }

// Close releases the in-process database handle.
func (s *ChromaStore) Close() error { return nil }

// Metadata keys shared by all backends.
const (
	metaLabel = "label"
	metaLinks = "links"
	metaMedia = "media"
	metaExtra = "extra"
)

// encodeMetadata flattens a document's label, links, media, and free-form
// metadata into the string map chromem stores per document. Links and media
// are comma-joined (order-preserving); the open metadata map is JSON.
func encodeMetadata(doc *rag.Document) map[string]string {
	meta := map[string]string{
		metaLabel: doc.Label,
		metaLinks: strings.Join(doc.Links, ","),
		metaMedia: strings.Join(doc.Media, ","),
	}
	if len(doc.Metadata) > 0 {
		if raw, err := json.Marshal(doc.Metadata); err == nil {
			meta[metaExtra] = string(raw)
		}
	}
	return meta
}

// decodeMetadata is the inverse of encodeMetadata.
func decodeMetadata(id, text string, meta map[string]string) rag.Document {
	doc := rag.Document{ID: id, Text: text, Label: meta[metaLabel]}
	if doc.Label == "" {
		doc.Label = rag.DefaultLabel
	}
	doc.Links = splitList(meta[metaLinks])
	doc.Media = splitList(meta[metaMedia])
	if raw := meta[metaExtra]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &doc.Metadata)
	}
	return doc
}

// splitList splits a comma-joined list, mapping the empty string to an
// empty (non-nil) list so round-trips compare equal.
func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// labelSet builds a membership set from a label slice; nil means unfiltered.
func labelSet(labels []string) map[string]bool {
	if len(labels) == 0 {
		return nil
	}
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}
