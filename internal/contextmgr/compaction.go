package contextmgr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/x/exp/ordered"
	"github.com/dustin/go-humanize"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/history"
	"github.com/lightmill/winnow/internal/tokens"
)

// summaryHeaderFormat frames the synthetic message that replaces
// compacted history. The wording is part of the conversation the model
// sees, so it states plainly what happened and where live context resumes.
const summaryHeaderFormat = "[CONTEXT COMPRESSION: Previous %d messages summarized]\n\n%s\n\n[End of summary - recent context continues below]"

// compactionStrategy replaces the older part of the conversation with a
// single synthetic summary message, keeping the most recent messages
// verbatim. The swap is atomic: on any failure the conversation is left
// exactly as it was.
type compactionStrategy struct {
	policy     config.Policy
	summarizer Summarizer
}

func newCompactionStrategy(policy config.Policy, summarizer Summarizer) *compactionStrategy {
	return &compactionStrategy{policy: policy, summarizer: summarizer}
}

func (s *compactionStrategy) Name() string { return stageCompaction }

func (s *compactionStrategy) Apply(ctx context.Context, conv *history.Conversation) (Outcome, error) {
	c := *conv
	p := s.policy.Compaction
	if tokens.Pressure(c, s.policy.MaxTokens) < s.policy.CompactionThreshold {
		return OutcomeNoChange, nil
	}
	if len(c) < p.MinMessagesForSummary {
		slog.Debug("Compaction skipped, conversation too short",
			"messages", len(c),
			"min_messages", p.MinMessagesForSummary,
		)
		return OutcomeNoChange, nil
	}
	if s.summarizer == nil {
		slog.Warn("Compaction skipped, no summarizer configured")
		return OutcomeNoChange, nil
	}

	// Always summarize at least one message and always keep at least one,
	// whatever preserve-recent-count says.
	split := ordered.Clamp(len(c)-p.PreserveRecentCount, 1, len(c)-1)
	head, tail := c[:split], c[split:]

	summary, err := s.summarizer.Summarize(ctx, head)
	if err != nil {
		return OutcomeNoChange, fmt.Errorf("summarizing %d messages: %w", len(head), err)
	}
	if strings.TrimSpace(summary) == "" {
		slog.Warn("Compaction skipped, summarizer returned empty summary", "messages", len(head))
		return OutcomeNoChange, nil
	}

	summaryMsg := history.NewSystemMessage(fmt.Sprintf(summaryHeaderFormat, len(head), summary))
	summaryMsg.Synthetic = true

	next := make(history.Conversation, 0, len(tail)+1)
	next = append(next, summaryMsg)
	next = append(next, tail...)
	// The split can land between a call and its result, leaving the kept
	// tail opening with results whose calls were summarized away.
	history.EnsureInvariants(&next)

	beforeTokens := tokens.Estimate(c)
	afterTokens := tokens.Estimate(next)
	if afterTokens >= beforeTokens {
		slog.Warn("Compaction produced no savings, keeping original history",
			"before_tokens", humanize.Comma(int64(beforeTokens)),
			"after_tokens", humanize.Comma(int64(afterTokens)),
		)
		return OutcomeNoChange, nil
	}

	slog.Info("Compacted conversation",
		"summarized", len(head),
		"kept", len(tail),
		"before_tokens", humanize.Comma(int64(beforeTokens)),
		"after_tokens", humanize.Comma(int64(afterTokens)),
	)
	*conv = next
	return outcomeFor(true, *conv, s.policy), nil
}
