package contextmgr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lightmill/winnow/internal/history"
	"github.com/lightmill/winnow/internal/tokens"
	"github.com/lightmill/winnow/internal/truncate"
)

// fallbackMaxBytes caps deterministic fallback output: the truncated
// summary when the model cannot produce one smaller than its input, and
// the local digest when there is no model at all.
const fallbackMaxBytes = 2048

// summarySystemPrompt asks for a summary dense enough to resume work from.
const summarySystemPrompt = `You are summarizing a conversation between a user and a coding assistant so the conversation can continue with less context.

Produce a summary that preserves:
- Key decisions, configurations, and code changes, with file or symbol names where they matter
- Errors encountered and how they were resolved
- The current state of the task
- Pending work and known next steps

Aim to compress the conversation to roughly 30% of its size. Output only the summary text, with no preamble and no closing remarks.`

// aggressiveSummarySystemPrompt is the retry prompt used when the first
// summary came back no smaller than its input.
const aggressiveSummarySystemPrompt = `You are compressing a conversation between a user and a coding assistant that is close to overflowing its context window.

Write the shortest summary that still lets the assistant resume: the current task state, decisions that constrain future work, and unresolved problems. Drop examples, quoted output, and anything recoverable from the workspace. Output only the summary text.`

// LLMClient is the minimal completion surface the summarizer needs from a
// model provider.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Summarizer condenses a block of messages into prose that replaces them.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []history.Message) (string, error)
}

// llmSummarizer asks a model for the summary and escalates when the reply
// is not actually smaller than what it summarizes: first with a terser
// prompt, then by deterministically truncating the summary it has.
type llmSummarizer struct {
	client LLMClient
}

// NewLLMSummarizer returns a Summarizer backed by client. A nil client is
// allowed and yields the deterministic digest, which keeps compaction
// usable in tests and offline runs.
func NewLLMSummarizer(client LLMClient) Summarizer {
	return &llmSummarizer{client: client}
}

func (s *llmSummarizer) Summarize(ctx context.Context, msgs []history.Message) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}
	formatted := formatMessagesForSummary(msgs)
	if s.client == nil {
		return fallbackSummary(msgs), nil
	}

	counter := tokens.Heuristic{}
	inputTokens := counter.Count(formatted)

	result, err := s.client.Complete(ctx, summarySystemPrompt, formatted)
	if err != nil {
		return "", fmt.Errorf("requesting summary: %w", err)
	}
	if counter.Count(result) < inputTokens {
		return result, nil
	}

	slog.Debug("Summary not smaller than input, retrying with aggressive prompt",
		"summary_tokens", counter.Count(result),
		"input_tokens", inputTokens,
	)
	result, err = s.client.Complete(ctx, aggressiveSummarySystemPrompt, formatted)
	if err != nil {
		return "", fmt.Errorf("requesting aggressive summary: %w", err)
	}
	if counter.Count(result) < inputTokens {
		return result, nil
	}

	slog.Debug("Aggressive summary still too large, truncating it",
		"summary_tokens", counter.Count(result),
		"input_tokens", inputTokens,
	)
	return truncate.Shrink(result, truncate.Bytes(fallbackMaxBytes)), nil
}

// formatMessagesForSummary renders messages as a block the model can
// quote sequence numbers from.
func formatMessagesForSummary(msgs []history.Message) string {
	var b strings.Builder
	b.WriteString("<messages>\n")
	for i, msg := range msgs {
		fmt.Fprintf(&b, "--- Message (seq: %d, role: %s) ---\n", i+1, msg.Role)
		text := msg.Text()
		if len(msg.ToolCalls) > 0 {
			names := make([]string, len(msg.ToolCalls))
			for j, call := range msg.ToolCalls {
				names[j] = call.Name
			}
			if text != "" {
				text += "\n"
			}
			text += "[invoked tools: " + strings.Join(names, ", ") + "]"
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	b.WriteString("</messages>")
	return b.String()
}

// fallbackSummary builds a local digest with no model involved: one line
// per message, hard-capped in size. It loses detail but never fails and
// never grows.
func fallbackSummary(msgs []history.Message) string {
	var b strings.Builder
	b.WriteString("Conversation digest (deterministic fallback):\n")
	for _, msg := range msgs {
		line := msg.Text()
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		if line == "" && len(msg.ToolCalls) > 0 {
			line = fmt.Sprintf("[%d tool calls]", len(msg.ToolCalls))
		}
		fmt.Fprintf(&b, "- %s: %s\n", msg.Role, line)
	}
	return truncate.Shrink(b.String(), truncate.Bytes(fallbackMaxBytes))
}
