package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// fakeStore records the query it was asked and serves canned documents.
type fakeStore struct {
	docs      []rag.Document
	err       error
	gotQuery  string
	gotLabels []string
	gotLimit  int
}

func (f *fakeStore) Add(context.Context, []rag.Document) error { return nil }

func (f *fakeStore) Query(_ context.Context, text string, labels []string, limit int) ([]rag.Document, error) {
	f.gotQuery = text
	f.gotLabels = labels
	f.gotLimit = limit
	return f.docs, f.err
}

func (f *fakeStore) Labels(context.Context) ([]string, error)              { return nil, nil }
func (f *fakeStore) Get(context.Context, []string) ([]rag.Document, error) { return nil, nil }
func (f *fakeStore) Persist(context.Context) error                         { return nil }
func (f *fakeStore) Close() error                                          { return nil }

// fakeModel records the prompt and answers with a fixed string.
type fakeModel struct {
	answer    string
	err       error
	gotPrompt string
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.gotPrompt = input[len(input)-1].Content
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.answer, nil), nil
}

func newTestGenerator(t *testing.T, store *fakeStore, chat *fakeModel, labels []string) *Generator {
	t.Helper()
	g, err := New(&Config{Store: store, Model: chat, Labels: labels})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestGenerate_PromptCarriesContextAndRefusalInstruction(t *testing.T) {
	t.Parallel()
	store := &fakeStore{docs: []rag.Document{
		{ID: "NIV-Gen-1", Text: "In the beginning God created the heavens and the earth"},
	}}
	chat := &fakeModel{answer: "God created the heavens and the earth."}
	g := newTestGenerator(t, store, chat, nil)

	ans, err := g.Generate(context.Background(), "What was created first?", nil, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.Contains(chat.gotPrompt, "Sorry, I had trouble answering this question based on the information I found") {
		t.Error("prompt is missing the refusal instruction")
	}
	if !strings.Contains(chat.gotPrompt, "{source:NIV-Gen-1, text: In the beginning God created the heavens and the earth},") {
		t.Error("prompt is missing the retrieved context")
	}
	if !strings.HasSuffix(chat.gotPrompt, "\nHuman: What was created first?\nAI: ") {
		t.Errorf("prompt does not end with the open exchange: %q", chat.gotPrompt[len(chat.gotPrompt)-60:])
	}
	if ans.Text != "God created the heavens and the earth." {
		t.Errorf("answer = %q", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].ID != "NIV-Gen-1" {
		t.Errorf("sources = %v, want the context document", ans.Sources)
	}
}

func TestGenerate_HistoryWindowedIntoPromptAndRetrieval(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	chat := &fakeModel{answer: "ok"}
	g := newTestGenerator(t, store, chat, nil)

	var history []rag.ChatTurn
	for i := 0; i < 20; i++ {
		history = append(history, rag.ChatTurn{
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
		})
	}

	if _, err := g.Generate(context.Background(), "current question", history, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if strings.Contains(chat.gotPrompt, "question 4") {
		t.Error("prompt contains a turn older than the history window")
	}
	if !strings.Contains(chat.gotPrompt, "\nHuman: question 19\nAI: answer 19") {
		t.Error("prompt is missing the most recent turn")
	}
	if !strings.Contains(store.gotQuery, "question 19") {
		t.Error("retrieval query is missing the most recent question")
	}
	if strings.Contains(store.gotQuery, "question 4") {
		t.Error("retrieval query contains a turn older than the history window")
	}
	if !strings.HasSuffix(store.gotQuery, "current question") {
		t.Error("retrieval query does not end with the current question")
	}
}

func TestGenerate_RetrievalQueryClipsAnswers(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	chat := &fakeModel{answer: "ok"}
	g := newTestGenerator(t, store, chat, nil)

	long := strings.Repeat("a", 300)
	history := []rag.ChatTurn{{Question: "q", Answer: long}}
	if _, err := g.Generate(context.Background(), "next", history, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(store.gotQuery, long) {
		t.Error("retrieval query carries the full answer instead of a clipped slice")
	}
	if !strings.Contains(store.gotQuery, strings.Repeat("a", answerSnippetChars)) {
		t.Error("retrieval query lost the answer snippet entirely")
	}
}

func TestGenerate_ContextBudgetDropsOverflowingDocuments(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", 60)
	store := &fakeStore{docs: []rag.Document{
		{ID: "top", Text: big},
		{ID: "second", Text: big},
	}}
	chat := &fakeModel{answer: "ok"}
	g, err := New(&Config{Store: store, Model: chat, ContextChars: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ans, err := g.Generate(context.Background(), "q", nil, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].ID != "top" {
		t.Fatalf("sources = %v, want only the top-ranked document", ans.Sources)
	}
	if strings.Contains(chat.gotPrompt, "{source:second") {
		t.Error("prompt contains a document the budget should have dropped")
	}
}

func TestGenerate_LabelsPassedThrough(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	chat := &fakeModel{answer: "ok"}
	g := newTestGenerator(t, store, chat, []string{"NIV-Bible", "open-access"})

	if _, err := g.Generate(context.Background(), "q", nil, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(store.gotLabels) != 2 || store.gotLabels[0] != "NIV-Bible" {
		t.Errorf("labels = %v, want the generator's entitlements", store.gotLabels)
	}
}

func TestGenerate_LanguageInstruction(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	chat := &fakeModel{answer: "ok"}
	g := newTestGenerator(t, store, chat, nil)

	if _, err := g.Generate(context.Background(), "q", nil, "Hindi"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(chat.gotPrompt, "Respond in Hindi.") {
		t.Error("prompt is missing the response language instruction")
	}

	chat2 := &fakeModel{answer: "ok"}
	g2 := newTestGenerator(t, store, chat2, nil)
	if _, err := g2.Generate(context.Background(), "q", nil, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(chat2.gotPrompt, "Respond in") {
		t.Error("prompt carries a language instruction when none was requested")
	}
}

func TestGenerate_ModelFailureIsUpstream(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	chat := &fakeModel{err: errors.New("rate limited")}
	g := newTestGenerator(t, store, chat, nil)

	_, err := g.Generate(context.Background(), "q", nil, "")
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindUpstream {
		t.Fatalf("err = %v, want upstream", err)
	}
}

func TestGenerate_StoreFailurePropagates(t *testing.T) {
	t.Parallel()
	store := &fakeStore{err: apperrors.Store("boom", errors.New("boom"), false)}
	chat := &fakeModel{answer: "ok"}
	g := newTestGenerator(t, store, chat, nil)

	_, err := g.Generate(context.Background(), "q", nil, "")
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindStore {
		t.Fatalf("err = %v, want store error", err)
	}
}
