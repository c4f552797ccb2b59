package fileproc

import (
	"fmt"
	"io"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

const (
	langchainChunkTokens  = 1000
	langchainChunkOverlap = 50
)

// LangchainProcessor chunks text by token count with overlap, via
// langchaingo's token splitter. Overlapping windows keep sentences that
// straddle a boundary retrievable from both sides.
type LangchainProcessor struct {
	splitter textsplitter.TokenSplitter
}

// NewLangchainProcessor builds a processor with the standard window size.
func NewLangchainProcessor() *LangchainProcessor {
	return &LangchainProcessor{
		splitter: textsplitter.NewTokenSplitter(
			textsplitter.WithChunkSize(langchainChunkTokens),
			textsplitter.WithChunkOverlap(langchainChunkOverlap),
		),
	}
}

// ProcessText reads r to the end and returns one document per token window.
func (p *LangchainProcessor) ProcessText(r io.Reader, name, label string, metadata map[string]any) ([]rag.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Malformed(fmt.Sprintf("could not read file contents: %v", err))
	}
	if label == "" {
		label = rag.DefaultLabel
	}

	chunks, err := p.splitter.SplitText(string(raw))
	if err != nil {
		return nil, apperrors.Malformed(fmt.Sprintf("could not split file contents: %v", err))
	}

	docs := make([]rag.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, rag.Document{
			ID:       fmt.Sprintf("%s-%d", name, i),
			Text:     chunk,
			Label:    label,
			Links:    []string{},
			Media:    []string{},
			Metadata: copyMetadata(metadata),
		})
	}
	return docs, nil
}
