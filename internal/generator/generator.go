// Package generator produces grounded answers: it retrieves context
// documents for a query, assembles a question-answering prompt with the
// conversation history, and calls the configured chat model.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/budget"
	"github.com/adotb/adotb-go/internal/rag"
)

// answerSnippetChars is how much of each past answer feeds the retrieval
// query. Questions carry most of the signal; a clipped answer adds topic
// continuity without drowning the current question.
const answerSnippetChars = 50

// ChatModel is the minimal surface the generator needs from an LLM backend.
// Satisfied by every eino chat model.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the collaborators and tuning for a Generator.
type Config struct {
	// Store supplies context documents.
	Store rag.VectorStore

	// Model generates the answer text.
	Model ChatModel

	// Labels restricts retrieval to the given document labels. Empty means
	// unfiltered. Fixed per generator: one generator serves one session's
	// entitlements.
	Labels []string

	// QueryLimit caps how many documents are retrieved per question.
	// Zero selects the store's default.
	QueryLimit int

	// ContextChars caps the total size of the context block in the prompt.
	// Zero selects budget.DefaultContextChars.
	ContextChars int
}

// Generator implements rag.Generator on a vector store plus a chat model.
type Generator struct {
	store        rag.VectorStore
	model        ChatModel
	labels       []string
	queryLimit   int
	contextChars int
}

// New validates the collaborators and returns a ready Generator.
func New(cfg *Config) (*Generator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("generator: a vector store is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("generator: a chat model is required")
	}
	contextChars := cfg.ContextChars
	if contextChars <= 0 {
		contextChars = budget.DefaultContextChars
	}
	return &Generator{
		store:        cfg.Store,
		model:        cfg.Model,
		labels:       cfg.Labels,
		queryLimit:   cfg.QueryLimit,
		contextChars: contextChars,
	}, nil
}

// Generate retrieves context for the query, builds the prompt, and asks the
// model. The returned Answer carries the documents that made it into the
// prompt, in ranked order, as its sources.
func (g *Generator) Generate(ctx context.Context, query string, history []rag.ChatTurn, language string) (*rag.Answer, error) {
	window := budget.WindowTurns(history, budget.DefaultHistoryTurns)

	docs, err := g.store.Query(ctx, retrievalQuery(query, window), g.labels, g.queryLimit)
	if err != nil {
		return nil, err
	}

	snippets := make([]string, len(docs))
	for i, d := range docs {
		snippets[i] = contextSnippet(&d)
	}
	keep := budget.PrefixWithinBudget(snippets, g.contextChars)
	sources := docs[:keep]

	prompt := buildPrompt(snippets[:keep], query, window, language)

	msg, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, model.WithTemperature(0))
	if err != nil {
		return nil, apperrors.Upstream("could not generate an answer", fmt.Errorf("generator: chat completion: %w", err))
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, apperrors.Upstream("the model returned an empty answer", nil)
	}

	return &rag.Answer{
		Question: query,
		Text:     strings.TrimSpace(msg.Content),
		Sources:  sources,
	}, nil
}

// retrievalQuery builds the text the store searches on: every windowed
// question plus a clipped slice of its answer, then the current question.
// Past questions keep follow-ups like "what about verse two?" retrievable.
func retrievalQuery(query string, window []rag.ChatTurn) string {
	var sb strings.Builder
	for _, turn := range window {
		sb.WriteString(turn.Question)
		sb.WriteString("\n")
		answer := turn.Answer
		if len(answer) > answerSnippetChars {
			answer = answer[:answerSnippetChars]
		}
		sb.WriteString(answer)
		sb.WriteString("\n")
	}
	sb.WriteString(query)
	return sb.String()
}

// contextSnippet formats one document for the context block.
func contextSnippet(d *rag.Document) string {
	return "{source:" + d.ID + ", text: " + d.Text + "},"
}

// buildPrompt assembles the full prompt: assistant framing, the grounding
// instruction with the fixed refusal sentence, the context block, and the
// conversation replayed as Human/AI exchanges.
func buildPrompt(snippets []string, query string, window []rag.ChatTurn, language string) string {
	var sb strings.Builder

	sb.WriteString("The following is a conversation with an AI assistant for ")
	sb.WriteString("Bible translators. The assistant is")
	sb.WriteString(" helpful, creative, clever, very friendly and follows instructions carefully.\n")
	sb.WriteString("Read the paragraph below and answer the question, using only the information" +
		" in the context delimited by triple backticks. " +
		"If the question cannot be answered based on the context alone, " +
		`write "Sorry, I had trouble answering this question based on the ` +
		"information I found\n\n")
	if language != "" {
		sb.WriteString("Respond in " + language + ".\n\n")
	}
	sb.WriteString("Context:\n```[")
	for _, s := range snippets {
		sb.WriteString(s)
	}
	sb.WriteString("]\n```\n\n")

	for _, turn := range window {
		sb.WriteString("\nHuman: " + turn.Question + "\nAI: " + turn.Answer)
	}
	sb.WriteString("\nHuman: " + query + "\nAI: ")

	return sb.String()
}
