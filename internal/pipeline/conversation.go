package pipeline

import (
	"context"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/generator"
	"github.com/adotb/adotb-go/internal/rag"
	"github.com/adotb/adotb-go/internal/transcribe"
)

// ConversationPipeline extends an UploadPipeline with the collaborators a
// chat session needs: an answer generator, an audio transcriber, and the
// session's resolved label entitlements.
type ConversationPipeline struct {
	*UploadPipeline

	generator   rag.Generator
	transcriber rag.Transcriber
	labels      []string
}

// NewConversationPipeline wraps an upload pipeline. labels are the
// entitlements resolved for this session; retrieval never widens them.
func NewConversationPipeline(base *UploadPipeline, labels []string) *ConversationPipeline {
	return &ConversationPipeline{UploadPipeline: base, labels: labels}
}

// SetGenerator constructs and installs the answer generator, bound to the
// pipeline's store and the session's labels.
func (p *ConversationPipeline) SetGenerator(model generator.ChatModel, queryLimit, contextChars int) error {
	if p.store == nil {
		return apperrors.Store("no vector store configured", nil, false)
	}
	gen, err := generator.New(&generator.Config{
		Store:        p.store,
		Model:        model,
		Labels:       p.labels,
		QueryLimit:   queryLimit,
		ContextChars: contextChars,
	})
	if err != nil {
		return err
	}
	p.generator = gen
	return nil
}

// SetTranscriber constructs and installs the audio transcriber.
func (p *ConversationPipeline) SetTranscriber(cfg *transcribe.Config) error {
	t, err := transcribe.New(cfg)
	if err != nil {
		return err
	}
	p.transcriber = t
	return nil
}

// Labels returns the session's resolved label entitlements.
func (p *ConversationPipeline) Labels() []string { return p.labels }

// Answer runs one retrieval-augmented generation call.
func (p *ConversationPipeline) Answer(ctx context.Context, query string, hist []rag.ChatTurn, language string) (*rag.Answer, error) {
	if p.generator == nil {
		return nil, apperrors.Upstream("no generator configured", nil)
	}
	return p.generator.Generate(ctx, query, hist, language)
}

// Transcribe converts an audio payload to text.
func (p *ConversationPipeline) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if p.transcriber == nil {
		return "", apperrors.Unsupported("audio input is not configured for this session")
	}
	return p.transcriber.Transcribe(ctx, audio)
}

// Persist flushes the vector store if the backend needs explicit
// persistence. Called when a session closes.
func (p *ConversationPipeline) Persist(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	return p.store.Persist(ctx)
}
