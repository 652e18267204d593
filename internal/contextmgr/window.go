package contextmgr

import (
	"context"
	"log/slog"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/history"
)

// windowStrategy evicts whole messages, keeping the most recent ones plus
// any preserved anchors (system messages and the first user message). It
// never splits a tool call from its result: after eviction the conversation
// is re-normalized, which drops results whose calling message was evicted.
type windowStrategy struct {
	policy config.Policy
}

func newWindowStrategy(policy config.Policy) *windowStrategy {
	return &windowStrategy{policy: policy}
}

func (s *windowStrategy) Name() string { return stageWindow }

func (s *windowStrategy) Apply(_ context.Context, conv *history.Conversation) (Outcome, error) {
	w := s.policy.Window
	c := *conv
	if len(c) < w.MinMessagesBeforeWindowing || len(c) <= w.Size {
		return OutcomeNoChange, nil
	}

	preserved := make([]bool, len(c))
	preservedCount := 0
	firstUser := c.FirstIndex(func(m history.Message) bool { return m.Role == history.User })
	for i, msg := range c {
		switch {
		case w.PreserveSystem && msg.Role == history.System:
			preserved[i] = true
		case w.PreserveInitialTask && i == firstUser:
			preserved[i] = true
		default:
			continue
		}
		preservedCount++
	}

	keep := make([]bool, len(c))
	switch {
	case preservedCount < w.Size:
		// Preserved messages all fit. Fill the rest of the window with
		// the most recent non-preserved messages.
		copy(keep, preserved)
		budget := w.Size - preservedCount
		for i := len(c) - 1; i >= 0 && budget > 0; i-- {
			if preserved[i] {
				continue
			}
			keep[i] = true
			budget--
		}
	case w.Strict:
		// Preserved messages alone overflow the window. Keep only the
		// most recent window-size of them so the bound is hard.
		budget := w.Size
		for i := len(c) - 1; i >= 0 && budget > 0; i-- {
			if preserved[i] {
				keep[i] = true
				budget--
			}
		}
	default:
		// Soft bound: preserved messages survive even when they alone
		// exceed the window.
		copy(keep, preserved)
	}

	next := make(history.Conversation, 0, w.Size)
	dropped := 0
	for i, msg := range c {
		if keep[i] {
			next = append(next, msg)
		} else {
			dropped++
		}
	}
	if dropped == 0 {
		return OutcomeNoChange, nil
	}

	// Eviction can orphan tool results whose calling message fell outside
	// the window; normalization removes them. It never adds synthetic
	// results here because a kept call's results are more recent than the
	// call and therefore kept with it.
	history.EnsureInvariants(&next)
	slog.Debug("Evicted messages outside window",
		"dropped", dropped,
		"kept", len(next),
		"window_size", w.Size,
	)

	*conv = next
	return outcomeFor(true, *conv, s.policy), nil
}
