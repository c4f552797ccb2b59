package vectordb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// Payload keys used for Qdrant points.
const (
	payloadDocID = "doc_id"
	payloadText  = "text"
	payloadLabel = "label"
	payloadLinks = "links"
	payloadMedia = "media"
	payloadExtra = "extra"
)

// scrollPageSize bounds the label scan. Label listing is an admin call;
// collections larger than this would need server-side aggregation instead.
const scrollPageSize = 10000

// QdrantConfig holds connection parameters for a Qdrant-backed store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// Dimensions is the dimensionality of the embeddings stored in this
	// collection. Zero is accepted when the collection already exists,
	// for read paths (label inventory, Get) that never embed.
	Dimensions int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Embedder computes vectors for documents and queries that arrive
	// without one. Needed by Add and Query; Qdrant stores vectors, it does
	// not compute them. Read paths work without one.
	Embedder rag.Embedder

	// QueryLimit is the default result count for Query. Defaults to 10.
	QueryLimit int
}

// QdrantStore implements rag.VectorStore backed by a Qdrant instance.
// Point IDs are derived deterministically from document IDs, so re-adding a
// document upserts rather than duplicates.
type QdrantStore struct {
	client   *qdrant.Client
	cfg      *QdrantConfig
	embedder rag.Embedder
	limit    int
}

// NewQdrantStore connects and ensures the target collection exists,
// creating it with cosine distance if necessary. Construction fails fast on
// an unreachable server.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "adotbcollection"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, apperrors.Store("could not connect to vector database", fmt.Errorf("qdrant: client: %w", err), true)
	}

	limit := cfg.QueryLimit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	store := &QdrantStore{client: client, cfg: cfg, embedder: cfg.Embedder, limit: limit}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return apperrors.Store("could not reach vector database", fmt.Errorf("qdrant: collection exists: %w", err), true)
	}
	if exists {
		return nil
	}
	if s.cfg.Dimensions <= 0 {
		return apperrors.Malformed(fmt.Sprintf("collection %q does not exist and no vector dimension was configured to create it", s.cfg.Collection))
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return apperrors.Store("could not create collection", fmt.Errorf("qdrant: create collection %q: %w", s.cfg.Collection, err), true)
	}
	return nil
}

// pointID maps a document ID onto a stable UUID, as Qdrant point IDs must
// be UUIDs or integers.
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String())
}

// Add upserts documents by ID, embedding any that arrive without a vector.
func (s *QdrantStore) Add(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var missing []int
	for i := range docs {
		docs[i].Normalize()
		if docs[i].ID == "" {
			return apperrors.Malformed("document with empty id")
		}
		if docs[i].Embedding == nil {
			missing = append(missing, i)
		} else if s.cfg.Dimensions > 0 && len(docs[i].Embedding) != s.cfg.Dimensions {
			return apperrors.Malformed(fmt.Sprintf("embedding dimension %d does not match collection dimension %d", len(docs[i].Embedding), s.cfg.Dimensions))
		}
	}
	if len(missing) > 0 {
		if s.embedder == nil {
			return apperrors.Malformed("no embedding provider configured")
		}
		pending := make([]rag.Document, len(missing))
		for j, i := range missing {
			pending[j] = docs[i]
		}
		if err := s.embedder.Embed(ctx, pending); err != nil {
			return err
		}
		for j, i := range missing {
			if s.cfg.Dimensions > 0 && len(pending[j].Embedding) != s.cfg.Dimensions {
				return apperrors.Malformed(fmt.Sprintf("embedding dimension %d does not match collection dimension %d", len(pending[j].Embedding), s.cfg.Dimensions))
			}
			docs[i].Embedding = pending[j].Embedding
		}
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		payload := map[string]any{
			payloadDocID: doc.ID,
			payloadText:  doc.Text,
			payloadLabel: doc.Label,
			payloadLinks: anyList(doc.Links),
			payloadMedia: anyList(doc.Media),
		}
		if len(doc.Metadata) > 0 {
			payload[payloadExtra] = doc.Metadata
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return apperrors.Store("could not add documents", fmt.Errorf("qdrant: upsert: %w", err), false)
	}
	return nil
}

// Query embeds the query text and runs a cosine similarity search, filtered
// server-side by label when labels is non-empty.
func (s *QdrantStore) Query(ctx context.Context, text string, labels []string, limit int) ([]rag.Document, error) {
	if limit <= 0 {
		limit = s.limit
	}

	if s.embedder == nil {
		return nil, apperrors.Malformed("no embedding provider configured")
	}
	query := []rag.Document{{ID: "query", Text: text}}
	if err := s.embedder.Embed(ctx, query); err != nil {
		return nil, err
	}

	n := uint64(limit)
	req := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query[0].Embedding...),
		Limit:          &n,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(labels) > 0 {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeywords(payloadLabel, labels...)},
		}
	}

	results, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, apperrors.Store("similarity search failed", fmt.Errorf("qdrant: query: %w", err), false)
	}

	docs := make([]rag.Document, 0, len(results))
	for _, r := range results {
		doc := docFromPayload(r.Payload)
		doc.Score = r.Score
		docs = append(docs, doc)
	}
	return docs, nil
}

// Labels scans the collection payloads and returns the distinct labels.
func (s *QdrantStore) Labels(ctx context.Context) ([]string, error) {
	limit := uint32(scrollPageSize)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadLabel),
	})
	if err != nil {
		return nil, apperrors.Store("could not list labels", fmt.Errorf("qdrant: scroll: %w", err), false)
	}

	seen := map[string]bool{}
	var labels []string
	for _, p := range points {
		if v, ok := p.Payload[payloadLabel]; ok {
			label := v.GetStringValue()
			if label != "" && !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}
	return labels, nil
}

// Get fetches documents by ID, in the order requested.
func (s *QdrantStore) Get(ctx context.Context, ids []string) ([]rag.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(id))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperrors.Store("could not fetch documents", fmt.Errorf("qdrant: get: %w", err), false)
	}

	byID := make(map[string]rag.Document, len(points))
	for _, p := range points {
		doc := docFromPayload(p.Payload)
		byID[doc.ID] = doc
	}
	docs := make([]rag.Document, 0, len(points))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

// Persist is a no-op: Qdrant persists server-side on every upsert.
func (s *QdrantStore) Persist(context.Context) error { return nil }

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func anyList(items []string) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}

func docFromPayload(payload map[string]*qdrant.Value) rag.Document {
	doc := rag.Document{Label: rag.DefaultLabel, Links: []string{}, Media: []string{}}
	if v, ok := payload[payloadDocID]; ok {
		doc.ID = v.GetStringValue()
	}
	if v, ok := payload[payloadText]; ok {
		doc.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadLabel]; ok && v.GetStringValue() != "" {
		doc.Label = v.GetStringValue()
	}
	doc.Links = stringList(payload[payloadLinks])
	doc.Media = stringList(payload[payloadMedia])
	if v, ok := payload[payloadExtra]; ok {
		if sv := v.GetStructValue(); sv != nil {
			doc.Metadata = make(map[string]any, len(sv.Fields))
			for k, fv := range sv.Fields {
				doc.Metadata[k] = valueToAny(fv)
			}
		}
	}
	return doc
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.Values))
		for _, item := range kind.ListValue.Values {
			items = append(items, valueToAny(item))
		}
		return items
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(kind.StructValue.Fields))
		for k, item := range kind.StructValue.Fields {
			m[k] = valueToAny(item)
		}
		return m
	default:
		return nil
	}
}

func stringList(v *qdrant.Value) []string {
	out := []string{}
	if v == nil {
		return out
	}
	lv := v.GetListValue()
	if lv == nil {
		return out
	}
	for _, item := range lv.Values {
		out = append(out, item.GetStringValue())
	}
	return out
}
