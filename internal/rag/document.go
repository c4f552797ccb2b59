// Package rag defines the data contract and component interfaces for the
// retrieval-augmented chat pipeline: the Document model, embedding providers,
// vector stores, the answer generator, and audio transcription.
// Concrete implementations (chromem, Postgres/pgvector, Qdrant, OpenAI,
// Ollama, Whisper) satisfy these interfaces so the pipeline and session
// layers never depend on a specific backend.
package rag

import "strings"

// DefaultLabel is the open-access label applied to documents uploaded
// without an explicit label. Labels are never empty: filtering and
// entitlement checks rely on every document carrying one.
const DefaultLabel = "open-access"

// Document is the canonical unit of text plus metadata moving through the
// system, both at ingestion time and as a retrieval result.
type Document struct {
	// ID is unique within a collection. The generator uses it to cite which
	// document an answer came from, so a source tag plus serial number works
	// well (e.g. "NIV-Bible-Mat-1").
	ID string `json:"docId"`

	// Text is the sentence or chunk to be vectorised and retrieved.
	Text string `json:"text"`

	// Embedding is the vector for Text. Absent (nil) until an embedding
	// provider has processed the document; stores that embed internally
	// accept documents without it.
	Embedding []float32 `json:"embedding,omitempty"`

	// Label is the access-control / topical tag shared by a set of
	// documents. Used for entitlement filtering at query time.
	Label string `json:"label"`

	// Links are URLs of the source resource, surfaced to the end user as
	// citations. Order is preserved.
	Links []string `json:"links"`

	// Media are supplementary image/audio/video URLs for multimodal output.
	// Order is preserved.
	Media []string `json:"media"`

	// Metadata carries format-specific extras that ride along with the text.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Score is the similarity score assigned during retrieval.
	// Zero outside of query results.
	Score float32 `json:"-"`
}

// Normalize trims the ID and applies DefaultLabel when the label is empty.
// Stores call it before persisting so the label invariant holds everywhere.
func (d *Document) Normalize() {
	d.ID = strings.TrimSpace(d.ID)
	if strings.TrimSpace(d.Label) == "" {
		d.Label = DefaultLabel
	}
}

// ChatTurn is one completed question/answer exchange in a session.
// History is an ordered, append-only sequence of turns; insertion order is
// what the generator replays into the prompt.
type ChatTurn struct {
	// Question is the user's message for this turn.
	Question string `json:"question"`
	// Answer is the generated response for this turn.
	Answer string `json:"answer"`
}

// Answer is the result of one retrieval-augmented generation call.
type Answer struct {
	// Question echoes the query the answer responds to.
	Question string
	// Text is the model's answer.
	Text string
	// Sources are the context documents the answer was grounded on,
	// in the ranked order they were supplied to the model.
	Sources []Document
}
