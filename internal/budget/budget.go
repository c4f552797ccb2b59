// Package budget bounds the size of what goes into an LLM prompt. Because
// the system supports multiple model backends with different tokenizers, the
// limits are expressed in characters rather than tokens: conservative, cheap
// to compute, and identical across providers.
package budget

import "github.com/adotb/adotb-go/internal/rag"

const (
	// DefaultContextChars is the character budget for retrieved context in
	// one prompt. Roughly 11k tokens at 4 chars/token, which leaves room
	// for history and the answer on 16k-context models.
	DefaultContextChars = 44000

	// DefaultHistoryTurns is the number of most recent turns replayed into
	// the prompt. Older turns are dropped, not summarized.
	DefaultHistoryTurns = 15
)

// PrefixWithinBudget returns the number of leading snippets whose cumulative
// length fits within maxChars. Snippets are consumed in ranked order and
// never split: the first snippet that would overflow the budget ends the
// prefix. maxChars <= 0 selects DefaultContextChars.
func PrefixWithinBudget(snippets []string, maxChars int) int {
	if maxChars <= 0 {
		maxChars = DefaultContextChars
	}
	total := 0
	for i, s := range snippets {
		total += len(s)
		if total > maxChars {
			return i
		}
	}
	return len(snippets)
}

// WindowTurns returns the most recent n turns of history, preserving order.
// n <= 0 selects DefaultHistoryTurns.
func WindowTurns(history []rag.ChatTurn, n int) []rag.ChatTurn {
	if n <= 0 {
		n = DefaultHistoryTurns
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
