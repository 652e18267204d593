package contextmgr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/history"
)

// criticalPolicy puts a ten-message 400-byte-per-message conversation at
// roughly 0.87 pressure with eviction disabled, so reduction falls through
// to compaction.
func criticalPolicy() config.Policy {
	p := config.Default()
	p.MaxTokens = 1200
	p.Compaction.PreserveRecentCount = 2
	return p
}

func TestManager_BelowThresholdsReturnsImmediately(t *testing.T) {
	t.Parallel()
	mock := &mockSummarizer{summary: "unused"}
	m := NewManager(mock)
	defer m.Shutdown()
	ch := m.Subscribe(context.Background())

	conv := chatConversation(4, 50)
	report, err := m.Run(context.Background(), &conv, config.Default())
	require.NoError(t, err)

	require.False(t, report.Warn)
	require.False(t, report.Compacted)
	require.Equal(t, report.PressureBefore, report.PressureAfter)
	require.Less(t, report.PressureBefore, 0.01)
	require.Len(t, conv, 4)
	require.Zero(t, mock.callCount)
	require.Zero(t, len(ch), "no events for a run that does nothing")
}

func TestManager_NormalizesBeforeEstimating(t *testing.T) {
	t.Parallel()
	m := NewManager(&mockSummarizer{summary: "unused"})
	defer m.Shutdown()

	// An assistant message with an unanswered call comes in, for example
	// after an aborted turn. Even a run that changes nothing else must
	// hand back a well-formed conversation.
	conv := history.Conversation{
		history.NewUserMessage("do the thing"),
		history.NewAssistantMessage("", history.ToolCall{ID: "call_1", Name: "bash", Arguments: `{}`}),
	}

	_, err := m.Run(context.Background(), &conv, config.Default())
	require.NoError(t, err)

	require.Len(t, conv, 3)
	require.Equal(t, history.Tool, conv[2].Role)
	require.Equal(t, "call_1", conv[2].ToolCallID)
	require.True(t, conv[2].Synthetic)
	require.Equal(t, history.AbortedResultText, conv[2].Text())
}

func TestManager_WindowShortCircuitsPipeline(t *testing.T) {
	t.Parallel()
	mock := &mockSummarizer{summary: "unused"}
	m := NewManager(mock)
	defer m.Shutdown()

	conv := chatConversation(30, 400)
	policy := config.Default()
	policy.MaxTokens = 3500
	policy.Window.Size = 5
	policy.Window.MinMessagesBeforeWindowing = 0

	report, err := m.Run(context.Background(), &conv, policy)
	require.NoError(t, err)

	require.Len(t, conv, 5, "eviction alone reaches the target")
	require.Zero(t, mock.callCount, "compaction never runs once the target is reached")
	require.False(t, report.Compacted)
	require.False(t, report.Warn)
	require.Less(t, report.PressureAfter, policy.CompactionThreshold)
	require.GreaterOrEqual(t, report.PressureBefore, policy.CompactionThreshold)
}

func TestManager_CompactsWhenPressureCritical(t *testing.T) {
	t.Parallel()
	mock := &mockSummarizer{summary: "worked through the task"}
	m := NewManager(mock)
	defer m.Shutdown()

	conv := chatConversation(10, 400)
	report, err := m.Run(context.Background(), &conv, criticalPolicy())
	require.NoError(t, err)

	require.True(t, report.Compacted)
	require.False(t, report.Warn)
	require.Equal(t, 1, mock.callCount)
	require.Len(t, mock.gotMsgs, 8)

	require.Len(t, conv, 3)
	require.True(t, conv[0].Synthetic)
	require.Contains(t, conv[0].Text(), "CONTEXT COMPRESSION")
	require.Contains(t, conv[0].Text(), "worked through the task")
}

func TestManager_SummarizerFailureIsRecoverable(t *testing.T) {
	t.Parallel()
	mock := &mockSummarizer{err: errors.New("model overloaded")}
	m := NewManager(mock)
	defer m.Shutdown()

	conv := chatConversation(10, 400)
	original := conv.Clone()

	report, err := m.Run(context.Background(), &conv, criticalPolicy())
	require.NoError(t, err, "a failed compaction degrades the run, it does not abort it")

	require.False(t, report.Compacted)
	require.True(t, report.Warn, "pressure stays high when compaction fails")
	require.Equal(t, original, conv)
}

func TestManager_CancellationPropagates(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &mockSummarizer{err: context.Canceled}
	m := NewManager(mock)
	defer m.Shutdown()

	conv := chatConversation(10, 400)
	original := conv.Clone()

	_, err := m.Run(ctx, &conv, criticalPolicy())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, original, conv, "a cancelled compaction must not commit anything")
}

func TestManager_TryRunGuardsConcurrentRuns(t *testing.T) {
	t.Parallel()
	llm := &blockingMockLLM{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManagerWithLLM(llm)
	defer m.Shutdown()

	conv := chatConversation(10, 400)
	policy := criticalPolicy()

	type outcome struct {
		report Report
		ok     bool
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, ok, err := m.TryRun(context.Background(), &conv, policy)
		first <- outcome{r, ok, err}
	}()

	<-llm.entered
	report, ok, err := m.TryRun(context.Background(), &conv, policy)
	require.NoError(t, err)
	require.False(t, ok, "second run on the same conversation is refused")
	require.Zero(t, report)

	close(llm.release)
	got := <-first
	require.NoError(t, got.err)
	require.True(t, got.ok)
	require.True(t, got.report.Compacted)

	// Once the first run finished the guard is released.
	_, ok, err = m.TryRun(context.Background(), &conv, policy)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestManager_PublishesLifecycleEvents(t *testing.T) {
	t.Parallel()
	m := NewManager(&mockSummarizer{summary: "short"})
	ch := m.Subscribe(context.Background())

	conv := chatConversation(10, 400)
	_, err := m.Run(context.Background(), &conv, criticalPolicy())
	require.NoError(t, err)

	started := <-ch
	require.Equal(t, EventStarted, started.Payload.Type)
	require.GreaterOrEqual(t, started.Payload.PressureBefore, 0.8)

	completed := <-ch
	require.Equal(t, EventCompleted, completed.Payload.Type)
	require.True(t, completed.Payload.Compacted)
	require.Less(t, completed.Payload.PressureAfter, completed.Payload.PressureBefore)

	m.Shutdown()
	for range ch { //nolint:revive // drain until the broker closes the channel
	}
}

func TestManager_PublishesFailureAndWarning(t *testing.T) {
	t.Parallel()
	m := NewManager(&mockSummarizer{err: errors.New("boom")})
	ch := m.Subscribe(context.Background())

	conv := chatConversation(10, 400)
	report, err := m.Run(context.Background(), &conv, criticalPolicy())
	require.NoError(t, err)
	require.True(t, report.Warn)

	var types []EventType
	for range 4 {
		ev := <-ch
		types = append(types, ev.Payload.Type)
	}
	require.Equal(t, []EventType{EventStarted, EventFailed, EventCompleted, EventWarning}, types)

	m.Shutdown()
	for range ch {
	}
}

func TestManager_PressureNeverIncreases(t *testing.T) {
	t.Parallel()
	m := NewManager(&mockSummarizer{summary: "squeezed"})
	defer m.Shutdown()

	assistant, result := toolExchange("call_1", "bash", strings.Repeat("log line\n", 2000))
	conv := chatConversation(20, 300)
	conv = append(conv, assistant, result, history.NewUserMessage("and now?"))

	policy := config.Default()
	policy.MaxTokens = 2000
	policy.Window.Size = 12
	policy.Window.MinMessagesBeforeWindowing = 0
	policy.Truncation.MaxLength = 500
	policy.Truncation.HeadLength = 200
	policy.Truncation.TailLength = 100
	policy.Truncation.PreserveLastToolResult = false

	report, err := m.Run(context.Background(), &conv, policy)
	require.NoError(t, err)
	require.LessOrEqual(t, report.PressureAfter, report.PressureBefore)
}
