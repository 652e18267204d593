// Package truncate shrinks oversized text without ever splitting a
// multi-byte character. Middle truncation keeps the head and tail of the
// text and replaces the middle with a marker naming how much was cut;
// line-window truncation does the same at line granularity for formatted
// command output.
package truncate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lightmill/winnow/internal/tokens"
)

// markerFormat is the middle-truncation marker. The blank lines around it
// keep the marker visually separate from the surviving head and tail.
const markerFormat = "\n\n[... truncated %d characters ...]\n\n"

// Mode expresses a truncation budget in bytes or tokens. Token budgets
// convert to bytes through the estimator's ratio.
type Mode struct {
	bytes int
}

// Bytes returns a Mode budgeting n bytes.
func Bytes(n int) Mode { return Mode{bytes: n} }

// Tokens returns a Mode budgeting n estimated tokens.
func Tokens(n int) Mode { return Mode{bytes: n * tokens.BytesPerToken} }

// Budget returns the byte budget.
func (m Mode) Budget() int { return m.bytes }

// Shrink truncates text to fit the budget, replacing the middle with a
// marker. The budget covers the marker: the result never exceeds it. Text
// already within budget is returned unchanged, which makes Shrink
// idempotent for a fixed budget.
func Shrink(text string, mode Mode) string {
	budget := mode.Budget()
	if len(text) <= budget {
		return text
	}
	if budget <= 0 {
		return ""
	}

	marker := fmt.Sprintf(markerFormat, len(text)-budget)
	if len(marker) >= budget {
		return hardCut(marker, budget)
	}

	avail := budget - len(marker)
	headBudget := (avail + 1) / 2
	tailBudget := avail - headBudget

	headEnd := cutHead(text, headBudget)
	tailStart := cutTail(text, len(text)-tailBudget)

	// Recompute with the real removed count; digit growth can push the
	// assembly past budget, so hard-cut as a last resort.
	marker = fmt.Sprintf(markerFormat, tailStart-headEnd)
	out := text[:headEnd] + marker + text[tailStart:]
	if len(out) > budget {
		out = hardCut(out, budget)
	}
	return out
}

// ShrinkHeadTail keeps up to head leading bytes and tail trailing bytes of
// text, joining them with the truncation marker when notice is set. Unlike
// Shrink, the marker is not charged against the head and tail budgets; the
// result is at most head+tail+len(marker) bytes. Text within head+tail is
// returned unchanged.
func ShrinkHeadTail(text string, head, tail int, notice bool) string {
	if head < 0 {
		head = 0
	}
	if tail < 0 {
		tail = 0
	}
	if len(text) <= head+tail {
		return text
	}

	headEnd := cutHead(text, head)
	tailStart := cutTail(text, len(text)-tail)

	if !notice {
		return text[:headEnd] + text[tailStart:]
	}
	marker := fmt.Sprintf(markerFormat, tailStart-headEnd)
	return text[:headEnd] + marker + text[tailStart:]
}

// cutHead returns the end offset of a head slice of at most budget bytes,
// preferring to end just after a line break, else at a rune boundary.
func cutHead(text string, budget int) int {
	if budget <= 0 {
		return 0
	}
	if budget >= len(text) {
		return len(text)
	}
	if idx := strings.LastIndexByte(text[:budget], '\n'); idx >= 0 {
		return idx + 1
	}
	return runeFloor(text, budget)
}

// cutTail returns the start offset of a tail slice beginning at or after
// start, preferring to begin just after a line break, else at a rune
// boundary.
func cutTail(text string, start int) int {
	if start <= 0 {
		return 0
	}
	if start >= len(text) {
		return len(text)
	}
	if idx := strings.IndexByte(text[start:], '\n'); idx >= 0 && start+idx+1 < len(text) {
		return start + idx + 1
	}
	return runeCeil(text, start)
}

// runeFloor returns the largest offset ≤ i that starts a rune.
func runeFloor(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// runeCeil returns the smallest offset ≥ i that starts a rune, or
// len(text).
func runeCeil(text string, i int) int {
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

// hardCut truncates s to at most n bytes at a rune boundary.
func hardCut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	return s[:runeFloor(s, n)]
}
