package tokens

import "github.com/lightmill/winnow/internal/history"

// Counter counts the tokens in a piece of text. Implementations must be
// safe for concurrent use.
type Counter interface {
	Count(text string) int
}

// Heuristic is the byte-ratio Counter. It is the counting discipline the
// pipeline itself runs on, exposed as a Counter so calibration tooling can
// compare it against an exact tokenizer.
type Heuristic struct{}

// Count implements Counter.
func (Heuristic) Count(text string) int {
	return (len(text) + BytesPerToken - 1) / BytesPerToken
}

// CountMessage runs c over every estimable field of msg: text parts, tool
// call names and arguments, and the role and name fields.
func CountMessage(c Counter, msg history.Message) int {
	n := c.Count(string(msg.Role)) + c.Count(msg.Name)
	for _, part := range msg.Parts {
		if tp, ok := part.(history.TextPart); ok {
			n += c.Count(tp.Text)
		}
	}
	for _, call := range msg.ToolCalls {
		n += c.Count(call.Name) + c.Count(call.Arguments)
	}
	return n
}

// CountConversation sums CountMessage over the conversation.
func CountConversation(c Counter, conv history.Conversation) int {
	n := 0
	for _, msg := range conv {
		n += CountMessage(c, msg)
	}
	return n
}
