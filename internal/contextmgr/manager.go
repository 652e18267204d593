package contextmgr

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/history"
	"github.com/lightmill/winnow/internal/pubsub"
	"github.com/lightmill/winnow/internal/tokens"
)

// Report summarizes one pipeline run.
type Report struct {
	// PressureBefore and PressureAfter are the context pressure in [0, 1]
	// measured before the first stage and after the last one.
	PressureBefore float64
	PressureAfter  float64
	// Warn is set when pressure still sits at or above the warning
	// threshold after the run.
	Warn bool
	// Compacted is set when the compaction stage replaced history with a
	// summary during this run.
	Compacted bool
}

// Manager runs the reduction pipeline over conversations and publishes
// lifecycle events while doing so.
type Manager interface {
	// Run reduces conv in place until pressure drops below the compaction
	// threshold or all stages have run. The conversation is normalized
	// first, so callers may hand in histories with unanswered or orphaned
	// tool calls. The caller must not mutate conv concurrently.
	Run(ctx context.Context, conv *history.Conversation, policy config.Policy) (Report, error)

	// TryRun is Run guarded against concurrent invocations on the same
	// conversation: the second caller gets ok=false and a zero Report
	// while the first is still running.
	TryRun(ctx context.Context, conv *history.Conversation, policy config.Policy) (Report, bool, error)

	// Subscribe returns a channel of pipeline events. The channel closes
	// when ctx is done or the manager shuts down.
	Subscribe(ctx context.Context) <-chan pubsub.Event[Event]

	// Shutdown closes all subscriber channels. The manager must not be
	// used afterwards.
	Shutdown()
}

type contextManager struct {
	summarizer Summarizer
	broker     *pubsub.Broker[Event]
	inFlight   sync.Map // *history.Conversation -> struct{}
}

// NewManager builds a Manager that compacts through summarizer. A nil
// summarizer disables compaction; eviction and truncation still run.
func NewManager(summarizer Summarizer) Manager {
	return &contextManager{
		summarizer: summarizer,
		broker:     pubsub.NewBroker[Event](),
	}
}

// NewManagerWithLLM is a convenience constructor wiring the default
// model-backed summarizer around client.
func NewManagerWithLLM(client LLMClient) Manager {
	return NewManager(NewLLMSummarizer(client))
}

func (m *contextManager) Run(ctx context.Context, conv *history.Conversation, policy config.Policy) (Report, error) {
	// Repair before measuring: orphaned results and unanswered calls
	// would otherwise skew the estimate and break the stages' assumptions.
	history.EnsureInvariants(conv)

	before := tokens.Pressure(*conv, policy.MaxTokens)
	report := Report{PressureBefore: before, PressureAfter: before}
	if before < policy.CompactionThreshold && before < policy.WarningThreshold {
		return report, nil
	}

	m.broker.Publish(pubsub.CreatedEvent, Event{Type: EventStarted, PressureBefore: before})
	slog.Debug("Context reduction started",
		"pressure", before,
		"messages", len(*conv),
		"tokens", humanize.Comma(int64(tokens.Estimate(*conv))),
	)

	stages := []strategy{
		newWindowStrategy(policy),
		newTruncationStrategy(policy),
		newCompactionStrategy(policy, m.summarizer),
	}
	for _, stage := range stages {
		outcome, err := stage.Apply(ctx, conv)
		if err != nil {
			m.broker.Publish(pubsub.CreatedEvent, Event{
				Type:           EventFailed,
				PressureBefore: before,
				Stage:          stage.Name(),
				Error:          err.Error(),
			})
			if ctx.Err() != nil {
				report.PressureAfter = tokens.Pressure(*conv, policy.MaxTokens)
				return report, err
			}
			// A stage failing for its own reasons, a summarizer refusal
			// for instance, degrades the run instead of aborting it.
			slog.Warn("Context reduction stage failed",
				"stage", stage.Name(),
				"error", err,
			)
			continue
		}
		if outcome != OutcomeNoChange && stage.Name() == stageCompaction {
			report.Compacted = true
		}
		if outcome == OutcomeTargetReached {
			slog.Debug("Context reduction target reached", "stage", stage.Name())
			break
		}
	}

	after := tokens.Pressure(*conv, policy.MaxTokens)
	report.PressureAfter = after
	report.Warn = after >= policy.WarningThreshold

	m.broker.Publish(pubsub.CreatedEvent, Event{
		Type:           EventCompleted,
		PressureBefore: before,
		PressureAfter:  after,
		Compacted:      report.Compacted,
	})
	if report.Warn {
		m.broker.Publish(pubsub.CreatedEvent, Event{
			Type:           EventWarning,
			PressureBefore: before,
			PressureAfter:  after,
		})
		slog.Warn("Context pressure above warning threshold after reduction",
			"pressure", after,
			"threshold", policy.WarningThreshold,
		)
	}
	slog.Debug("Context reduction finished",
		"pressure_before", before,
		"pressure_after", after,
		"compacted", report.Compacted,
		"tokens", humanize.Comma(int64(tokens.Estimate(*conv))),
	)
	return report, nil
}

func (m *contextManager) TryRun(ctx context.Context, conv *history.Conversation, policy config.Policy) (Report, bool, error) {
	if _, loaded := m.inFlight.LoadOrStore(conv, struct{}{}); loaded {
		slog.Debug("Context reduction already in flight, skipping")
		return Report{}, false, nil
	}
	defer m.inFlight.Delete(conv)

	report, err := m.Run(ctx, conv, policy)
	return report, true, err
}

func (m *contextManager) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return m.broker.Subscribe(ctx)
}

func (m *contextManager) Shutdown() {
	m.broker.Shutdown()
}
