package fileproc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// vanillaChunkLines is the number of source lines per chunk.
const vanillaChunkLines = 1000

// VanillaProcessor chunks text into fixed windows of whole lines, with no
// overlap. Document IDs are "{name}-{chunk index}".
type VanillaProcessor struct{}

// ProcessText reads r to the end and returns one document per line window.
func (p *VanillaProcessor) ProcessText(r io.Reader, name, label string, metadata map[string]any) ([]rag.Document, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = rag.DefaultLabel
	}

	var docs []rag.Document
	for i := 0; i < len(lines); i += vanillaChunkLines {
		end := i + vanillaChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		docs = append(docs, rag.Document{
			ID:       fmt.Sprintf("%s-%d", name, i/vanillaChunkLines),
			Text:     strings.Join(lines[i:end], ""),
			Label:    label,
			Links:    []string{},
			Media:    []string{},
			Metadata: copyMetadata(metadata),
		})
	}
	return docs, nil
}

// readLines splits the input into lines with their trailing newline kept,
// so joining a window reproduces the original text.
func readLines(r io.Reader) ([]string, error) {
	var (
		lines  []string
		reader = bufio.NewReader(r)
	)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, apperrors.Malformed(fmt.Sprintf("could not read file contents: %v", err))
		}
	}
}

// copyMetadata gives each document its own map so later mutation of one
// document's metadata cannot leak into its siblings.
func copyMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
