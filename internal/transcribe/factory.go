package transcribe

import (
	"fmt"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// Kind identifies a transcription backend.
type Kind string

// KindWhisper selects the OpenAI Whisper API.
const KindWhisper Kind = "whisper"

// Config is the backend-independent transcription configuration.
type Config struct {
	Kind    Kind
	APIKey  string
	Model   string
	BaseURL string
}

// New constructs the transcriber selected by cfg.Kind. The set is closed.
func New(cfg *Config) (rag.Transcriber, error) {
	switch cfg.Kind {
	case KindWhisper, "":
		return NewWhisperTranscriber(&WhisperConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, apperrors.Unsupported(fmt.Sprintf("unknown transcription kind %q", cfg.Kind))
	}
}
