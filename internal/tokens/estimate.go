// Package tokens estimates the token cost of conversations. The pipeline
// runs on a cheap byte heuristic; an exact BPE-backed counter is available
// for calibration and tooling.
package tokens

import (
	"github.com/charmbracelet/x/exp/ordered"

	"github.com/lightmill/winnow/internal/history"
)

// BytesPerToken is the estimated bytes per token. Four bytes per token is
// a reasonable upper-bound average for English prose and source code under
// modern BPE vocabularies, erring on the side of over-counting.
const BytesPerToken = 4

// Bytes returns the estimable byte size of a message: all text part bytes,
// each tool call's name and raw argument bytes, and the role and name
// fields. Binary parts and wiring fields like the tool call ID carry no
// estimable cost.
func Bytes(msg history.Message) int {
	n := len(msg.Role) + len(msg.Name)
	for _, part := range msg.Parts {
		if tp, ok := part.(history.TextPart); ok {
			n += len(tp.Text)
		}
	}
	for _, call := range msg.ToolCalls {
		n += len(call.Name) + len(call.Arguments)
	}
	return n
}

// BytesAll returns the summed estimable byte size of the conversation.
func BytesAll(conv history.Conversation) int {
	n := 0
	for _, msg := range conv {
		n += Bytes(msg)
	}
	return n
}

// EstimateOne returns the estimated token count of a single message,
// rounding up.
func EstimateOne(msg history.Message) int {
	return (Bytes(msg) + BytesPerToken - 1) / BytesPerToken
}

// Estimate returns the estimated token count of the whole conversation,
// rounding up. An empty conversation estimates to zero.
func Estimate(conv history.Conversation) int {
	return (BytesAll(conv) + BytesPerToken - 1) / BytesPerToken
}

// Pressure returns the conversation's estimated fraction of the token
// budget, clamped to [0, 1]. A non-positive budget reads as fully over
// budget.
func Pressure(conv history.Conversation, maxTokens int) float64 {
	if maxTokens <= 0 {
		return 1.0
	}
	ratio := float64(Estimate(conv)) / float64(maxTokens)
	return ordered.Clamp(ratio, 0.0, 1.0)
}
