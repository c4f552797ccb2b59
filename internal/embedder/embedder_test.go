package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// newEmbedTestServer returns an httptest server that answers the OpenAI
// embeddings API with a fixed two-dimensional vector per input, echoing
// indexes in reverse order to exercise the reordering path.
func newEmbedTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp := openaiEmbedResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func Test_OpenAIEmbedder_AssignsInPlace(t *testing.T) {
	t.Parallel()

	srv := newEmbedTestServer(t)
	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})

	docs := []rag.Document{
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second"},
	}
	if err := e.Embed(context.Background(), docs); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if docs[0].Embedding == nil || docs[1].Embedding == nil {
		t.Fatal("embeddings were not assigned in place")
	}
	if docs[0].Embedding[0] != 0 || docs[1].Embedding[0] != 1 {
		t.Errorf("embeddings assigned to wrong documents: %v / %v", docs[0].Embedding, docs[1].Embedding)
	}
}

func Test_OpenAIEmbedder_EmptyTextRejectedBeforeCall(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	docs := []rag.Document{{ID: "a", Text: ""}}

	err := e.Embed(context.Background(), docs)
	if err == nil {
		t.Fatal("expected error for empty text")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindMalformed {
		t.Errorf("want malformed-input error, got %v", err)
	}
	if called {
		t.Error("upstream was called despite invalid input")
	}
	if docs[0].Embedding != nil {
		t.Error("document was mutated on failure")
	}
}

func Test_OpenAIEmbedder_UpstreamFailureLeavesDocsUntouched(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "quota exceeded"}})
	}))
	t.Cleanup(srv.Close)

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	docs := []rag.Document{{ID: "a", Text: "hello"}}

	err := e.Embed(context.Background(), docs)
	if err == nil {
		t.Fatal("expected upstream error")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindUpstream {
		t.Errorf("want upstream-provider error, got %v", err)
	}
	if docs[0].Embedding != nil {
		t.Error("document was mutated on failure")
	}
}

func Test_Factory_UnknownKindRejected(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{Kind: "sentence-transformers"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindUnsupported {
		t.Errorf("want unsupported-technology error, got %v", err)
	}
}

func Test_Factory_OpenAIRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := New(&Config{Kind: KindOpenAI}); err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func Test_Config_ResolvedDimensions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		want int
	}{
		{"openai default", Config{Kind: KindOpenAI}, 1536},
		{"ollama default", Config{Kind: KindOllama}, 768},
		{"explicit override", Config{Kind: KindOllama, Dimensions: 384}, 384},
	}
	for _, tc := range cases {
		if got := tc.cfg.ResolvedDimensions(); got != tc.want {
			t.Errorf("%s: want %d, got %d", tc.name, tc.want, got)
		}
	}
}
