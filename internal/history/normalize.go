package history

// EnsureInvariants repairs tool call/result pairing in place and reports
// whether anything changed. After it returns, every tool call has exactly
// one result somewhere after it, and every tool result answers exactly one
// earlier call.
//
// Repairs, in order:
//   - tool results that answer no earlier call are removed, including
//     results that appear before their call
//   - extra results for an already-answered call are removed, keeping the
//     first occurrence
//   - calls with no surviving result get a synthetic "aborted" result
//     inserted immediately after the calling message
func EnsureInvariants(c *Conversation) bool {
	changed := false

	// First pass: drop orphaned and duplicate results, recording which
	// calls end up answered.
	known := make(map[string]struct{})
	answered := make(map[string]struct{})
	kept := make(Conversation, 0, len(*c))
	for _, msg := range *c {
		if msg.Role != Tool {
			for _, call := range msg.ToolCalls {
				known[call.ID] = struct{}{}
			}
			kept = append(kept, msg)
			continue
		}
		if _, ok := known[msg.ToolCallID]; !ok {
			changed = true
			continue
		}
		if _, dup := answered[msg.ToolCallID]; dup {
			changed = true
			continue
		}
		answered[msg.ToolCallID] = struct{}{}
		kept = append(kept, msg)
	}

	// Second pass: fabricate results for calls nothing answered. The
	// synthetic result goes directly after the calling message so the
	// pair reads as an immediately-aborted invocation.
	out := kept[:0:0]
	for _, msg := range kept {
		out = append(out, msg)
		for _, call := range msg.ToolCalls {
			if _, ok := answered[call.ID]; ok {
				continue
			}
			out = append(out, newAbortedResult(call))
			changed = true
		}
	}

	*c = out
	return changed
}

// RemovePaired removes the message at i together with everything its pair
// closure reaches: dropping an assistant message drops the results of its
// calls, and dropping a tool result drops the calling assistant message and
// that message's other results. Returns the number of messages removed, or
// 0 when i is out of range.
func RemovePaired(c *Conversation, i int) int {
	if i < 0 || i >= len(*c) {
		return 0
	}
	drop := map[int]struct{}{i: {}}
	switch msg := (*c)[i]; {
	case msg.Role == Assistant && len(msg.ToolCalls) > 0:
		for _, j := range c.resultIndices(i) {
			drop[j] = struct{}{}
		}
	case msg.Role == Tool:
		if caller := c.callerIndex(i); caller >= 0 {
			drop[caller] = struct{}{}
			for _, j := range c.resultIndices(caller) {
				drop[j] = struct{}{}
			}
		}
	}
	return c.deleteAt(drop)
}
