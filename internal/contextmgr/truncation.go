package contextmgr

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/history"
	"github.com/lightmill/winnow/internal/truncate"
)

// maxJSONDepth bounds recursion into structured tool output so that
// deeply nested or adversarial payloads cannot blow the stack.
const maxJSONDepth = 10

// truncationStrategy shrinks oversized tool output in place. Tool results
// holding structured JSON are truncated per string leaf so the payload
// stays parseable; plain text gets head/tail truncation with an elision
// marker. Oversized tool call arguments on assistant messages are handled
// the same way.
//
// Rewrites are committed only when they make the message smaller. Text
// sitting just above the budget can come back larger once the elision
// marker is added, and the stage must never increase the token estimate.
type truncationStrategy struct {
	policy config.Policy
}

func newTruncationStrategy(policy config.Policy) *truncationStrategy {
	return &truncationStrategy{policy: policy}
}

func (s *truncationStrategy) Name() string { return stageTruncation }

func (s *truncationStrategy) Apply(_ context.Context, conv *history.Conversation) (Outcome, error) {
	t := s.policy.Truncation
	c := *conv

	lastResult := -1
	if t.PreserveLastToolResult {
		for i := len(c) - 1; i >= 0; i-- {
			if c[i].Role == history.Tool {
				lastResult = i
				break
			}
		}
	}

	changed := false
	for i := range c {
		switch c[i].Role {
		case history.Tool:
			if i == lastResult {
				continue
			}
			if s.truncateResult(&c[i]) {
				changed = true
			}
		case history.Assistant:
			if s.truncateCallArguments(&c[i]) {
				changed = true
			}
		}
	}

	return outcomeFor(changed, *conv, s.policy), nil
}

// truncateResult shrinks one tool result message. Returns true if the
// message content changed.
func (s *truncationStrategy) truncateResult(msg *history.Message) bool {
	t := s.policy.Truncation
	if t.Mode == config.TruncateLines {
		return truncateResultLines(msg, t.LineWindow)
	}

	texts, total := countText(msg.Parts)
	if total <= t.MaxLength {
		return false
	}

	// Several text parts share one budget; a single part is truncated
	// directly, honoring JSON structure when there is any.
	if texts > 1 {
		parts, ok := truncate.Parts(msg.Parts, t.MaxLength)
		if !ok {
			return false
		}
		if _, after := countText(parts); after >= total {
			return false
		}
		msg.Parts = parts
		return true
	}

	text := msg.Text()
	out, ok := s.truncateBytes(text)
	if !ok || len(out) >= len(text) {
		return false
	}
	msg.SetText(out)
	return true
}

// truncateResultLines keeps a window of leading and trailing lines in
// every text part that overflows the line window.
func truncateResultLines(msg *history.Message, window int) bool {
	changed := false
	for i, part := range msg.Parts {
		tp, ok := part.(history.TextPart)
		if !ok {
			continue
		}
		out := truncate.Lines(tp.Text, window)
		if out == tp.Text || len(out) >= len(tp.Text) {
			continue
		}
		msg.Parts[i] = history.TextPart{Text: out}
		changed = true
	}
	return changed
}

// countText tallies the text parts of a message and their total bytes.
func countText(parts []history.Part) (n, total int) {
	for _, part := range parts {
		if tp, ok := part.(history.TextPart); ok {
			n++
			total += len(tp.Text)
		}
	}
	return n, total
}

// truncateCallArguments shrinks oversized tool call arguments on an
// assistant message. Arguments are JSON almost always, so the structured
// path applies first and plain truncation is the fallback.
func (s *truncationStrategy) truncateCallArguments(msg *history.Message) bool {
	t := s.policy.Truncation
	changed := false
	for i, call := range msg.ToolCalls {
		if len(call.Arguments) <= t.MaxLength {
			continue
		}
		out, ok := s.truncateBytes(call.Arguments)
		if !ok || len(out) >= len(call.Arguments) {
			continue
		}
		msg.ToolCalls[i].Arguments = out
		changed = true
	}
	return changed
}

// truncateBytes truncates text that exceeds the byte budget, recursing
// into JSON string leaves when the text is a JSON document.
func (s *truncationStrategy) truncateBytes(text string) (string, bool) {
	t := s.policy.Truncation
	if len(text) <= t.MaxLength {
		return text, false
	}
	if parsed := gjson.Parse(text); gjson.Valid(text) && (parsed.IsObject() || parsed.IsArray()) {
		return s.truncateJSONLeaves(text, parsed)
	}
	return truncate.ShrinkHeadTail(text, t.HeadLength, t.TailLength, t.ShowNotice), true
}

type jsonLeaf struct {
	path string
	text string
}

// truncateJSONLeaves rewrites every oversized string leaf of a JSON
// document, leaving keys, numbers, and structure intact. The document
// may stay above the budget when its weight is structural rather than
// in any single leaf.
func (s *truncationStrategy) truncateJSONLeaves(raw string, parsed gjson.Result) (string, bool) {
	t := s.policy.Truncation
	var leaves []jsonLeaf
	collectOversizedLeaves("", parsed, 0, t.MaxLength, &leaves)
	if len(leaves) == 0 {
		return raw, false
	}

	out := raw
	changed := false
	for _, leaf := range leaves {
		shrunk := truncate.ShrinkHeadTail(leaf.text, t.HeadLength, t.TailLength, t.ShowNotice)
		if len(shrunk) >= len(leaf.text) {
			continue
		}
		next, err := sjson.Set(out, leaf.path, shrunk)
		if err != nil {
			slog.Warn("Skipping unaddressable JSON leaf during truncation",
				"path", leaf.path,
				"error", err,
			)
			continue
		}
		out = next
		changed = true
	}
	return out, changed
}

// collectOversizedLeaves walks a parsed JSON value and records the paths
// of string leaves longer than maxLen. Recursion stops at maxJSONDepth.
func collectOversizedLeaves(prefix string, value gjson.Result, depth, maxLen int, out *[]jsonLeaf) {
	if depth > maxJSONDepth {
		return
	}
	idx := 0
	value.ForEach(func(key, val gjson.Result) bool {
		var step string
		if value.IsObject() {
			step = escapeJSONPathKey(key.String())
		} else {
			step = strconv.Itoa(idx)
		}
		idx++
		path := step
		if prefix != "" {
			path = prefix + "." + step
		}
		switch {
		case val.IsObject() || val.IsArray():
			collectOversizedLeaves(path, val, depth+1, maxLen, out)
		case val.Type == gjson.String && len(val.String()) > maxLen:
			*out = append(*out, jsonLeaf{path: path, text: val.String()})
		}
		return true
	})
}

var jsonPathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// escapeJSONPathKey makes an object key safe for use in a gjson/sjson
// path expression.
func escapeJSONPathKey(key string) string {
	return jsonPathEscaper.Replace(key)
}
