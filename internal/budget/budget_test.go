package budget

import (
	"strings"
	"testing"

	"github.com/adotb/adotb-go/internal/rag"
)

func Test_PrefixWithinBudget_StopsBeforeOverflow(t *testing.T) {
	t.Parallel()

	snippets := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}

	n := PrefixWithinBudget(snippets, 100)
	if n != 2 {
		t.Fatalf("want 2 snippets within budget of 100, got %d", n)
	}

	total := 0
	for _, s := range snippets[:n] {
		total += len(s)
	}
	if total > 100 {
		t.Errorf("selected prefix exceeds budget: %d chars", total)
	}
}

func Test_PrefixWithinBudget_AllFit(t *testing.T) {
	t.Parallel()

	snippets := []string{"one", "two", "three"}
	if n := PrefixWithinBudget(snippets, 100); n != 3 {
		t.Errorf("want all 3 snippets, got %d", n)
	}
}

func Test_PrefixWithinBudget_FirstTooLarge(t *testing.T) {
	t.Parallel()

	snippets := []string{strings.Repeat("x", 200), "small"}
	if n := PrefixWithinBudget(snippets, 100); n != 0 {
		t.Errorf("want 0 when head snippet overflows, got %d", n)
	}
}

func Test_PrefixWithinBudget_DefaultBudget(t *testing.T) {
	t.Parallel()

	// One snippet just under the default and one pushing past it.
	snippets := []string{
		strings.Repeat("x", DefaultContextChars-1),
		strings.Repeat("y", 10),
	}
	if n := PrefixWithinBudget(snippets, 0); n != 1 {
		t.Errorf("want 1 snippet under default budget, got %d", n)
	}
}

func Test_WindowTurns_KeepsMostRecent(t *testing.T) {
	t.Parallel()

	history := []rag.ChatTurn{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3"},
	}

	got := WindowTurns(history, 2)
	if len(got) != 2 {
		t.Fatalf("want 2 turns, got %d", len(got))
	}
	if got[0].Question != "q2" || got[1].Question != "q3" {
		t.Errorf("want the two most recent turns, got %+v", got)
	}
}

func Test_WindowTurns_ShortHistoryUnchanged(t *testing.T) {
	t.Parallel()

	history := []rag.ChatTurn{{Question: "q1", Answer: "a1"}}
	got := WindowTurns(history, 15)
	if len(got) != 1 || got[0].Question != "q1" {
		t.Errorf("short history should be returned unchanged, got %+v", got)
	}
}
