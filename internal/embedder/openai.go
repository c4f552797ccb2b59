// Package embedder provides implementations of the rag.Embedder contract for
// turning document text into dense vector embeddings. Each implementation
// talks to a different backend (OpenAI, Ollama) via plain HTTP — no
// additional SDK dependencies are required. Embedders mutate the documents
// they are given: a successful call fills every document's Embedding field,
// a failed call fills none.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// OpenAIEmbedder implements rag.Embedder using the OpenAI embeddings REST
// API. It is safe for concurrent use.
type OpenAIEmbedder struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// model is the embedding model name (e.g. "text-embedding-ada-002").
	model string
	// dimensions is the requested vector length (0 = model default).
	dimensions int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL; empty selects the public OpenAI endpoint.
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name.
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIEmbedder{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// openaiEmbedRequest is the JSON body sent to the embeddings endpoint.
type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiEmbedResponse is the JSON body returned from the embeddings endpoint.
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed computes embeddings for the batch and assigns them in place.
// The call is all-or-nothing: no document is mutated on failure.
func (e *OpenAIEmbedder) Embed(ctx context.Context, docs []rag.Document) error {
	texts, err := textsOf(docs)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return nil
	}

	body := openaiEmbedRequest{Input: texts, Model: e.model}
	if e.dimensions > 0 {
		body.Dimensions = e.dimensions
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("openai embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("openai embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return apperrors.Upstream("embedding service unreachable", fmt.Errorf("openai embedder: request failed: %w", err))
	}
	defer resp.Body.Close()

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return apperrors.Upstream("embedding service returned an unreadable response", fmt.Errorf("openai embedder: decode response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return apperrors.Upstream("embedding request rejected", fmt.Errorf("openai embedder: %s", msg))
	}

	if len(result.Data) != len(texts) {
		return apperrors.Upstream("embedding count mismatch", fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(result.Data)))
	}

	// The API may return data out of order; place by index.
	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return apperrors.Upstream("embedding index out of range", fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts)))
		}
		vectors[d.Index] = d.Embedding
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	return nil
}

// textsOf extracts the text of each document, rejecting empty text before
// any network call is made.
func textsOf(docs []rag.Document) ([]string, error) {
	texts := make([]string, 0, len(docs))
	for i := range docs {
		if docs[i].Text == "" {
			return nil, apperrors.Malformed(fmt.Sprintf("document %q has empty text", docs[i].ID))
		}
		texts = append(texts, docs[i].Text)
	}
	return texts, nil
}
