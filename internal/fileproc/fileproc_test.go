package fileproc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

func TestVanilla_SingleChunkForSmallFile(t *testing.T) {
	t.Parallel()
	p := &VanillaProcessor{}
	docs, err := p.ProcessText(strings.NewReader("line one\nline two\nline three"), "notes.txt", "", nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	if docs[0].ID != "notes.txt-0" {
		t.Errorf("id = %q, want notes.txt-0", docs[0].ID)
	}
	if docs[0].Text != "line one\nline two\nline three" {
		t.Errorf("text = %q, content was not preserved", docs[0].Text)
	}
	if docs[0].Label != rag.DefaultLabel {
		t.Errorf("label = %q, want %q", docs[0].Label, rag.DefaultLabel)
	}
}

func TestVanilla_SplitsOnLineWindows(t *testing.T) {
	t.Parallel()
	var sb strings.Builder
	for i := 0; i < vanillaChunkLines+5; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}

	p := &VanillaProcessor{}
	docs, err := p.ProcessText(strings.NewReader(sb.String()), "big", "NIV-Bible", nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[1].ID != "big-1" {
		t.Errorf("second chunk id = %q, want big-1", docs[1].ID)
	}
	if got := docs[0].Text + docs[1].Text; got != sb.String() {
		t.Error("joined chunks do not reproduce the input")
	}
	for _, d := range docs {
		if d.Label != "NIV-Bible" {
			t.Errorf("chunk %s label = %q, want the upload label on every chunk", d.ID, d.Label)
		}
	}
}

func TestVanilla_EmptyFileYieldsNoDocuments(t *testing.T) {
	t.Parallel()
	p := &VanillaProcessor{}
	docs, err := p.ProcessText(strings.NewReader(""), "empty", "", nil)
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("got %d documents from an empty file", len(docs))
	}
}

func TestVanilla_MetadataCopiedPerChunk(t *testing.T) {
	t.Parallel()
	var sb strings.Builder
	for i := 0; i < vanillaChunkLines+1; i++ {
		sb.WriteString("x\n")
	}
	p := &VanillaProcessor{}
	docs, err := p.ProcessText(strings.NewReader(sb.String()), "m", "", map[string]any{"source": "upload"})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	docs[0].Metadata["source"] = "mutated"
	if docs[1].Metadata["source"] != "upload" {
		t.Error("metadata map is shared between chunks")
	}
}

func TestProcessCSV_ParsesRows(t *testing.T) {
	t.Parallel()
	in := strings.Join([]string{
		"id,text,label,links,medialinks",
		`NIV-Gen-1,"In the beginning",NIV-Bible,"https://a.example, https://b.example",`,
		"NIV-Gen-2,Second sentence,,,https://c.example/clip.mp4",
	}, "\n")

	docs, err := ProcessCSV(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("ProcessCSV: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}

	want := rag.Document{
		ID:    "NIV-Gen-1",
		Text:  "In the beginning",
		Label: "NIV-Bible",
		Links: []string{"https://a.example", "https://b.example"},
		Media: []string{},
	}
	if !reflect.DeepEqual(docs[0], want) {
		t.Errorf("first document = %+v, want %+v", docs[0], want)
	}
	if docs[1].Label != rag.DefaultLabel {
		t.Errorf("empty label column should default to %q, got %q", rag.DefaultLabel, docs[1].Label)
	}
	if !reflect.DeepEqual(docs[1].Media, []string{"https://c.example/clip.mp4"}) {
		t.Errorf("media = %v", docs[1].Media)
	}
}

func TestProcessCSV_TabDelimited(t *testing.T) {
	t.Parallel()
	in := "id\ttext\tlabel\tlinks\tmedialinks\n" +
		"doc-1\tsome text, with a comma\topen-access\thttps://a.example,https://b.example\t\n"

	docs, err := ProcessCSV(strings.NewReader(in), '\t')
	if err != nil {
		t.Fatalf("ProcessCSV: %v", err)
	}
	if docs[0].Text != "some text, with a comma" {
		t.Errorf("text = %q, comma inside a tab-delimited cell must survive", docs[0].Text)
	}
	if len(docs[0].Links) != 2 {
		t.Errorf("links = %v, cell-internal commas still separate list values", docs[0].Links)
	}
}

func TestProcessCSV_MissingColumnRejected(t *testing.T) {
	t.Parallel()
	in := "id,text,label\n1,hello,open-access\n"
	_, err := ProcessCSV(strings.NewReader(in), ',')
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindMalformed {
		t.Fatalf("err = %v, want malformed input", err)
	}
}

func TestProcessCSV_ShortRowRejected(t *testing.T) {
	t.Parallel()
	in := "id,text,label,links,medialinks\n1,only-two\n"
	_, err := ProcessCSV(strings.NewReader(in), ',')
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindMalformed {
		t.Fatalf("err = %v, want malformed input", err)
	}
}

func TestProcessCSV_EmptyTextRejected(t *testing.T) {
	t.Parallel()
	in := "id,text,label,links,medialinks\ndoc-1, ,open-access,,\n"
	_, err := ProcessCSV(strings.NewReader(in), ',')
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindMalformed {
		t.Fatalf("err = %v, want malformed input", err)
	}
}

func TestNew_KnownAndUnknownKinds(t *testing.T) {
	t.Parallel()
	if _, err := New(KindVanilla); err != nil {
		t.Errorf("New(vanilla): %v", err)
	}
	if _, err := New(KindLangchain); err != nil {
		t.Errorf("New(langchain): %v", err)
	}
	_, err := New("unstructured")
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindUnsupported {
		t.Fatalf("err = %v, want unsupported", err)
	}
}
