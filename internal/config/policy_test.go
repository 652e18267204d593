package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	p := Default()
	require.NoError(t, p.Validate())

	require.Equal(t, 128000, p.MaxTokens)
	require.InDelta(t, 0.70, p.WarningThreshold, 1e-9)
	require.InDelta(t, 0.80, p.CompactionThreshold, 1e-9)

	require.Equal(t, 40, p.Window.Size)
	require.True(t, p.Window.PreserveSystem)
	require.True(t, p.Window.PreserveInitialTask)
	require.Equal(t, 50, p.Window.MinMessagesBeforeWindowing)
	require.False(t, p.Window.Strict)

	require.Equal(t, 4000, p.Truncation.MaxLength)
	require.Equal(t, 3000, p.Truncation.HeadLength)
	require.Equal(t, 1000, p.Truncation.TailLength)
	require.True(t, p.Truncation.ShowNotice)
	require.True(t, p.Truncation.PreserveLastToolResult)
	require.Equal(t, TruncateBytes, p.Truncation.Mode)
	require.Equal(t, 100, p.Truncation.LineWindow)

	require.Equal(t, 10, p.Compaction.PreserveRecentCount)
	require.Equal(t, 3, p.Compaction.MinMessagesForSummary)
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr string
	}{
		{
			name:    "zero max tokens",
			mutate:  func(p *Policy) { p.MaxTokens = 0 },
			wantErr: "max_tokens",
		},
		{
			name:    "warning threshold above one",
			mutate:  func(p *Policy) { p.WarningThreshold = 1.5 },
			wantErr: "warning_threshold",
		},
		{
			name:    "warning threshold zero",
			mutate:  func(p *Policy) { p.WarningThreshold = 0 },
			wantErr: "warning_threshold",
		},
		{
			name:    "compaction threshold negative",
			mutate:  func(p *Policy) { p.CompactionThreshold = -0.1 },
			wantErr: "compaction_threshold",
		},
		{
			name:    "zero window size",
			mutate:  func(p *Policy) { p.Window.Size = 0 },
			wantErr: "window.size",
		},
		{
			name:    "negative windowing minimum",
			mutate:  func(p *Policy) { p.Window.MinMessagesBeforeWindowing = -1 },
			wantErr: "min_messages_before_windowing",
		},
		{
			name:    "zero truncation max length",
			mutate:  func(p *Policy) { p.Truncation.MaxLength = 0 },
			wantErr: "max_length",
		},
		{
			name:    "negative head length",
			mutate:  func(p *Policy) { p.Truncation.HeadLength = -1 },
			wantErr: "head and tail",
		},
		{
			name: "head plus tail exceeds max",
			mutate: func(p *Policy) {
				p.Truncation.HeadLength = 3500
				p.Truncation.TailLength = 1500
			},
			wantErr: "exceeds max_length",
		},
		{
			name:    "unknown truncation mode",
			mutate:  func(p *Policy) { p.Truncation.Mode = "words" },
			wantErr: "truncation.mode",
		},
		{
			name: "lines mode without window",
			mutate: func(p *Policy) {
				p.Truncation.Mode = TruncateLines
				p.Truncation.LineWindow = 0
			},
			wantErr: "line_window",
		},
		{
			name:    "negative preserve recent",
			mutate:  func(p *Policy) { p.Compaction.PreserveRecentCount = -1 },
			wantErr: "preserve_recent_count",
		},
		{
			name:    "summary minimum below two",
			mutate:  func(p *Policy) { p.Compaction.MinMessagesForSummary = 1 },
			wantErr: "min_messages_for_summary",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Default()
			tt.mutate(&p)

			err := p.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPolicy_Validate_EmptyModeDefaultsToBytes(t *testing.T) {
	t.Parallel()

	p := Default()
	p.Truncation.Mode = ""
	require.NoError(t, p.Validate())
}
