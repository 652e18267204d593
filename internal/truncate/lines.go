package truncate

import (
	"fmt"
	"strings"
)

// lineMarkerFormat replaces the omitted middle of a line window.
const lineMarkerFormat = "[... omitted %d of %d lines ...]"

// Lines keeps the first ⌈keep/2⌉ and last ⌊keep/2⌋ lines of text, replacing
// the omitted middle with a marker naming the cut. Text with at most keep
// lines is returned unchanged. Meant for formatted command output where
// cutting mid-line would garble tables and diffs.
func Lines(text string, keep int) string {
	lines := strings.Split(text, "\n")
	total := len(lines)
	if total <= keep {
		return text
	}
	if keep <= 0 {
		return fmt.Sprintf(lineMarkerFormat, total, total)
	}

	headN := (keep + 1) / 2
	tailN := keep / 2
	marker := fmt.Sprintf(lineMarkerFormat, total-headN-tailN, total)

	out := make([]string, 0, keep+1)
	out = append(out, lines[:headN]...)
	out = append(out, marker)
	out = append(out, lines[total-tailN:]...)
	return strings.Join(out, "\n")
}
