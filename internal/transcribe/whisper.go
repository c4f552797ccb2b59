// Package transcribe converts chat audio messages into text before they
// enter the question pipeline.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/adotb/adotb-go/internal/apperrors"
)

const (
	defaultWhisperBaseURL = "https://api.openai.com/v1"
	defaultWhisperModel   = "whisper-1"
	whisperTimeout        = 120 * time.Second
)

// WhisperTranscriber implements rag.Transcriber against the OpenAI audio
// transcription endpoint.
type WhisperTranscriber struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// WhisperConfig holds the settings for constructing a WhisperTranscriber.
type WhisperConfig struct {
	// APIKey authenticates against the API. Required.
	APIKey string
	// Model overrides the transcription model (default whisper-1).
	Model string
	// BaseURL overrides the API endpoint, for proxies and compatible servers.
	BaseURL string
}

// NewWhisperTranscriber validates the config and returns a ready client.
func NewWhisperTranscriber(cfg *WhisperConfig) (*WhisperTranscriber, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.Malformed("audio transcription requires an API key")
	}
	model := cfg.Model
	if model == "" {
		model = defaultWhisperModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperBaseURL
	}
	return &WhisperTranscriber{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: whisperTimeout},
	}, nil
}

// Transcribe uploads the audio payload and returns the recognised text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", apperrors.Malformed("audio payload is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.webm")
	if err != nil {
		return "", apperrors.Upstream("could not transcribe audio", fmt.Errorf("transcribe: form file: %w", err))
	}
	if _, err := part.Write(audio); err != nil {
		return "", apperrors.Upstream("could not transcribe audio", fmt.Errorf("transcribe: write payload: %w", err))
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", apperrors.Upstream("could not transcribe audio", fmt.Errorf("transcribe: write field: %w", err))
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.Upstream("could not transcribe audio", fmt.Errorf("transcribe: close form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", apperrors.Upstream("could not transcribe audio", fmt.Errorf("transcribe: build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", apperrors.Upstream("could not transcribe audio", fmt.Errorf("transcribe: request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperrors.Upstream("could not transcribe audio",
			fmt.Errorf("transcribe: status %d: %s", resp.StatusCode, raw))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.Upstream("could not transcribe audio", fmt.Errorf("transcribe: decode response: %w", err))
	}
	return parsed.Text, nil
}
