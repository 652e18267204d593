package truncate

import (
	"fmt"

	"github.com/lightmill/winnow/internal/history"
)

// omittedPartsFormat is appended once when whole text parts were dropped.
const omittedPartsFormat = "[omitted %d text items]"

// Parts truncates the text parts of a message against one shared byte
// budget, in order. Non-text parts pass through unchanged and cost
// nothing. A text part that arrives after the budget is spent is dropped;
// if any were dropped, a single marker part naming the count is appended.
// Returns the new parts and whether anything changed.
func Parts(parts []history.Part, budget int) ([]history.Part, bool) {
	remaining := budget
	omitted := 0
	changed := false

	out := make([]history.Part, 0, len(parts))
	for _, part := range parts {
		tp, ok := part.(history.TextPart)
		if !ok {
			out = append(out, part)
			continue
		}
		if remaining <= 0 {
			omitted++
			changed = true
			continue
		}
		if len(tp.Text) <= remaining {
			remaining -= len(tp.Text)
			out = append(out, tp)
			continue
		}
		shrunk := Shrink(tp.Text, Bytes(remaining))
		remaining -= len(shrunk)
		changed = true
		if shrunk == "" {
			omitted++
			continue
		}
		out = append(out, history.TextPart{Text: shrunk})
	}

	if omitted > 0 {
		out = append(out, history.TextPart{Text: fmt.Sprintf(omittedPartsFormat, omitted)})
	}
	return out, changed
}
