// Package fileproc turns uploaded files into documents ready for ingestion.
// Text and markdown files are chunked by one of two strategies; CSV files
// carry pre-chunked documents with their metadata in columns.
package fileproc

import (
	"fmt"
	"io"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// Kind identifies a text chunking strategy.
type Kind string

const (
	// KindVanilla chunks text by fixed line windows with no overlap.
	KindVanilla Kind = "vanilla"
	// KindLangchain chunks text by token windows with a small overlap.
	KindLangchain Kind = "langchain"
)

// Processor converts raw text into documents. The label, when non-empty,
// applies to every produced document; name seeds the generated document IDs.
type Processor interface {
	ProcessText(r io.Reader, name, label string, metadata map[string]any) ([]rag.Document, error)
}

// New returns the processor for the given kind. The set is closed.
func New(kind Kind) (Processor, error) {
	switch kind {
	case KindVanilla, "":
		return &VanillaProcessor{}, nil
	case KindLangchain:
		return NewLangchainProcessor(), nil
	default:
		return nil, apperrors.Unsupported(fmt.Sprintf("unknown file processor kind %q", kind))
	}
}
