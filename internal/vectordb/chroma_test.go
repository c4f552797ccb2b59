package vectordb

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// hashEmbedder assigns deterministic vectors derived from the text so
// similarity search is stable without a live embedding provider. Identical
// texts embed identically; different texts land on different vectors.
type hashEmbedder struct{ dim int }

func (e *hashEmbedder) Embed(_ context.Context, docs []rag.Document) error {
	dim := e.dim
	if dim == 0 {
		dim = 8
	}
	for i := range docs {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = 0.001
		}
		for _, b := range []byte(docs[i].Text) {
			vec[int(b)%dim]++
		}
		docs[i].Embedding = vec
	}
	return nil
}

func newTestStore(t *testing.T) *ChromaStore {
	t.Helper()
	store, err := NewChromaStore(&ChromaConfig{
		Collection: "testcollection",
		Embedder:   &hashEmbedder{},
	})
	if err != nil {
		t.Fatalf("NewChromaStore: %v", err)
	}
	return store
}

func TestChromaStore_QueryFiltersByLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	docs := []rag.Document{
		{ID: "NIV-Gen-1", Text: "In the beginning God created the heavens and the earth", Label: "NIV-Bible"},
		{ID: "ESV-Gen-1", Text: "In the beginning, God created the heavens and the earth.", Label: "ESV-Bible"},
		{ID: "Guide-1", Text: "A short practical guide to reading ancient texts", Label: ""},
	}
	if err := store.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := store.Query(ctx, "in the beginning", []string{"NIV-Bible"}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d documents, want 1", len(got))
	}
	if got[0].ID != "NIV-Gen-1" {
		t.Errorf("got document %q, want NIV-Gen-1", got[0].ID)
	}
	for _, d := range got {
		if d.Label != "NIV-Bible" {
			t.Errorf("document %q leaked label %q past the filter", d.ID, d.Label)
		}
	}
}

func TestChromaStore_QueryUnfilteredReturnsAllLabels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	docs := []rag.Document{
		{ID: "a", Text: "alpha", Label: "one"},
		{ID: "b", Text: "bravo", Label: "two"},
	}
	if err := store.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := store.Query(ctx, "alpha", nil, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d documents, want 2", len(got))
	}
}

func TestChromaStore_QueryLimitClampedToCollectionSize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Add(ctx, []rag.Document{{ID: "only", Text: "a single document"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := store.Query(ctx, "single", nil, 50)
	if err != nil {
		t.Fatalf("Query with limit above count: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d documents, want 1", len(got))
	}
}

func TestChromaStore_QueryEmptyCollection(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	got, err := store.Query(context.Background(), "anything", nil, 5)
	if err != nil {
		t.Fatalf("Query on empty collection: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d documents from empty collection", len(got))
	}
}

func TestChromaStore_AddUpsertsByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Add(ctx, []rag.Document{{ID: "doc-1", Text: "first version"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(ctx, []rag.Document{{ID: "doc-1", Text: "second version", Label: "revised"}}); err != nil {
		t.Fatalf("Add (again): %v", err)
	}

	got, err := store.Get(ctx, []string{"doc-1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d documents, want 1", len(got))
	}
	if got[0].Text != "second version" || got[0].Label != "revised" {
		t.Errorf("got %q/%q, want the re-added version", got[0].Text, got[0].Label)
	}
}

func TestChromaStore_DefaultLabelApplied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Add(ctx, []rag.Document{{ID: "plain", Text: "no label given"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := store.Get(ctx, []string{"plain"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0].Label != rag.DefaultLabel {
		t.Errorf("label = %q, want %q", got[0].Label, rag.DefaultLabel)
	}
}

func TestChromaStore_MetadataRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	in := rag.Document{
		ID:    "meta-1",
		Text:  "document with the works",
		Label: "NIV-Bible",
		Links: []string{"https://example.org/a", "https://example.org/b"},
		Media: []string{"https://example.org/a.png"},
	}
	if err := store.Add(ctx, []rag.Document{in}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := store.Get(ctx, []string{"meta-1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got[0].Links, in.Links) {
		t.Errorf("links = %v, want %v", got[0].Links, in.Links)
	}
	if !reflect.DeepEqual(got[0].Media, in.Media) {
		t.Errorf("media = %v, want %v", got[0].Media, in.Media)
	}
}

func TestChromaStore_GetSkipsUnknownIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Add(ctx, []rag.Document{{ID: "known", Text: "here"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := store.Get(ctx, []string{"missing", "known"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0].ID != "known" {
		t.Fatalf("got %v, want just the known document", got)
	}
}

func TestChromaStore_Labels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	docs := []rag.Document{
		{ID: "1", Text: "one", Label: "NIV-Bible"},
		{ID: "2", Text: "two", Label: "NIV-Bible"},
		{ID: "3", Text: "three", Label: "ESV-Bible"},
		{ID: "4", Text: "four"},
	}
	if err := store.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	labels, err := store.Labels(ctx)
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	sort.Strings(labels)
	want := []string{"ESV-Bible", "NIV-Bible", rag.DefaultLabel}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("labels = %v, want %v", labels, want)
	}
}

// countedEmbedder wraps hashEmbedder and records how many times it runs.
type countedEmbedder struct {
	hashEmbedder
	calls int
}

func (e *countedEmbedder) Embed(ctx context.Context, docs []rag.Document) error {
	e.calls++
	return e.hashEmbedder.Embed(ctx, docs)
}

func TestChromaStore_LabelsWithoutEmbedding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emb := &countedEmbedder{}
	store, err := NewChromaStore(&ChromaConfig{
		Collection: "testcollection",
		Embedder:   emb,
	})
	if err != nil {
		t.Fatalf("NewChromaStore: %v", err)
	}

	docs := []rag.Document{{ID: "1", Text: "one", Label: "NIV-Bible", Embedding: []float32{1, 0, 0}}}
	if err := store.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	labels, err := store.Labels(ctx)
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if !reflect.DeepEqual(labels, []string{"NIV-Bible"}) {
		t.Errorf("labels = %v, want [NIV-Bible]", labels)
	}
	// Readiness probes list labels; they must work when the embedding
	// provider is down.
	if emb.calls != 0 {
		t.Errorf("embedder ran %d times during Add+Labels, want 0", emb.calls)
	}
}

func TestChromaStore_LabelsSurviveReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := t.TempDir() + "/chroma"

	store, err := NewChromaStore(&ChromaConfig{
		Path:       path,
		Collection: "testcollection",
		Embedder:   &hashEmbedder{},
	})
	if err != nil {
		t.Fatalf("NewChromaStore: %v", err)
	}
	add := []rag.Document{{ID: "1", Text: "one", Label: "NIV-Bible", Embedding: []float32{1, 0, 0}}}
	if err := store.Add(ctx, add); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	emb := &countedEmbedder{}
	reopened, err := NewChromaStore(&ChromaConfig{
		Path:       path,
		Collection: "testcollection",
		Embedder:   emb,
	})
	if err != nil {
		t.Fatalf("NewChromaStore (reopen): %v", err)
	}
	labels, err := reopened.Labels(ctx)
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if !reflect.DeepEqual(labels, []string{"NIV-Bible"}) {
		t.Errorf("labels = %v, want [NIV-Bible]", labels)
	}
	if emb.calls != 0 {
		t.Errorf("embedder ran %d times listing a reopened store, want 0", emb.calls)
	}
}

func TestChromaStore_RejectsEmptyID(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	err := store.Add(context.Background(), []rag.Document{{ID: "  ", Text: "whitespace id"}})
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindMalformed {
		t.Fatalf("err = %v, want malformed input", err)
	}
}

func TestChromaStore_RejectsMixedDimensions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Add(ctx, []rag.Document{{ID: "a", Text: "x", Embedding: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := store.Add(ctx, []rag.Document{{ID: "b", Text: "y", Embedding: []float32{1, 0}}})
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindMalformed {
		t.Fatalf("err = %v, want malformed input on dimension mismatch", err)
	}
}
