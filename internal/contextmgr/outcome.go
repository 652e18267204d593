// Package contextmgr reduces a conversation to fit its token budget. A
// fixed pipeline of strategies runs in order: evict whole messages, then
// truncate oversized tool output, then compact old history into a summary.
// The pipeline stops early once pressure drops below the compaction
// threshold.
package contextmgr

import (
	"context"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/history"
	"github.com/lightmill/winnow/internal/tokens"
)

// Outcome reports what a strategy did to the conversation.
type Outcome int

const (
	// OutcomeNoChange means the strategy left the conversation untouched.
	OutcomeNoChange Outcome = iota
	// OutcomeApplied means the strategy changed the conversation but
	// pressure still warrants running later stages.
	OutcomeApplied
	// OutcomeTargetReached means the strategy changed the conversation
	// and pressure fell below the compaction threshold, so the remaining
	// stages are skipped.
	OutcomeTargetReached
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoChange:
		return "no-change"
	case OutcomeApplied:
		return "applied"
	case OutcomeTargetReached:
		return "target-reached"
	default:
		return "unknown"
	}
}

// Stage names, used in logs and failure events.
const (
	stageWindow     = "window"
	stageTruncation = "truncation"
	stageCompaction = "compaction"
)

// strategy is one stage of the reduction pipeline. Strategies are
// constructed per run from the policy and hold no state across runs.
type strategy interface {
	Name() string
	Apply(ctx context.Context, conv *history.Conversation) (Outcome, error)
}

// outcomeFor grades a mutation: whether the conversation now sits below
// the compaction threshold decides between Applied and TargetReached.
func outcomeFor(changed bool, conv history.Conversation, policy config.Policy) Outcome {
	if !changed {
		return OutcomeNoChange
	}
	if tokens.Pressure(conv, policy.MaxTokens) < policy.CompactionThreshold {
		return OutcomeTargetReached
	}
	return OutcomeApplied
}
