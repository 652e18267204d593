package history

import "slices"

// Conversation is an ordered transcript. Strategies mutate it through the
// pointer methods; readers treat the value form as immutable.
type Conversation []Message

// Clone returns a conversation whose message slice and per-message part and
// tool call slices are independent of the receiver's.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	for i, msg := range c {
		out[i] = msg.Clone()
	}
	return out
}

// Messages returns the transcript as a plain slice.
func (c Conversation) Messages() []Message { return c }

// Index returns the position of the message with the given ID, or -1.
func (c Conversation) Index(id string) int {
	return slices.IndexFunc(c, func(m Message) bool { return m.ID == id })
}

// FirstIndex returns the position of the first message matching pred, or -1.
func (c Conversation) FirstIndex(pred func(Message) bool) int {
	return slices.IndexFunc(c, pred)
}

// Insert places msgs at position i, shifting later messages right.
func (c *Conversation) Insert(i int, msgs ...Message) {
	*c = slices.Insert(*c, i, msgs...)
}

// Append adds msgs to the end of the transcript.
func (c *Conversation) Append(msgs ...Message) {
	*c = append(*c, msgs...)
}

// callerIndex returns the position of the assistant message that issued the
// tool call answered by the result at i, or -1 when no such caller exists
// before it.
func (c Conversation) callerIndex(i int) int {
	id := c[i].ToolCallID
	if id == "" {
		return -1
	}
	for j := i - 1; j >= 0; j-- {
		if c[j].Role != Assistant {
			continue
		}
		for _, call := range c[j].ToolCalls {
			if call.ID == id {
				return j
			}
		}
	}
	return -1
}

// resultIndices returns the positions of every tool result after i that
// answers one of the calls issued by the assistant message at i.
func (c Conversation) resultIndices(i int) []int {
	if len(c[i].ToolCalls) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(c[i].ToolCalls))
	for _, call := range c[i].ToolCalls {
		ids[call.ID] = struct{}{}
	}
	var out []int
	for j := i + 1; j < len(c); j++ {
		if c[j].Role != Tool {
			continue
		}
		if _, ok := ids[c[j].ToolCallID]; ok {
			out = append(out, j)
		}
	}
	return out
}

// deleteAt removes the messages at the given positions and returns how many
// were dropped.
func (c *Conversation) deleteAt(indices map[int]struct{}) int {
	if len(indices) == 0 {
		return 0
	}
	out := make(Conversation, 0, len(*c)-len(indices))
	for i, msg := range *c {
		if _, drop := indices[i]; drop {
			continue
		}
		out = append(out, msg)
	}
	removed := len(*c) - len(out)
	*c = out
	return removed
}
