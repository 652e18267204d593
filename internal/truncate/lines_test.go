package truncate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/require"
)

func numberedLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %02d", i+1)
	}
	return strings.Join(lines, "\n")
}

func TestLines_FitsUnchanged(t *testing.T) {
	t.Parallel()

	text := numberedLines(5)
	require.Equal(t, text, Lines(text, 5))
	require.Equal(t, text, Lines(text, 50))
}

func TestLines_WindowsMiddle(t *testing.T) {
	t.Parallel()

	out := Lines(numberedLines(12), 5)
	require.Equal(t,
		"line 01\nline 02\nline 03\n[... omitted 7 of 12 lines ...]\nline 11\nline 12",
		out)
}

func TestLines_Golden(t *testing.T) {
	golden.RequireEqual(t, []byte(Lines(numberedLines(12), 5)))
}

func TestLines_OddKeepFavorsHead(t *testing.T) {
	t.Parallel()

	out := Lines(numberedLines(10), 3)
	require.Equal(t,
		"line 01\nline 02\n[... omitted 7 of 10 lines ...]\nline 10",
		out)
}

func TestLines_ZeroKeepIsMarkerOnly(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[... omitted 10 of 10 lines ...]", Lines(numberedLines(10), 0))
}

func TestLines_TrailingNewlineCountsAsLine(t *testing.T) {
	t.Parallel()

	out := Lines("a\nb\n", 2)
	require.Equal(t, "a\n[... omitted 1 of 3 lines ...]\n", out)
}

func TestLines_KeepOneIsHeadOnly(t *testing.T) {
	t.Parallel()

	out := Lines(numberedLines(10), 1)
	require.Equal(t, "line 01\n[... omitted 9 of 10 lines ...]", out)
}
