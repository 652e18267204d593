// Package config defines the context-management policy and loads it from
// layered JSON files with environment overrides.
package config

import (
	"fmt"
)

// Truncation modes.
const (
	// TruncateBytes cuts tool output in the middle on a byte budget.
	TruncateBytes = "bytes"
	// TruncateLines keeps a window of leading and trailing lines, for
	// formatted command output.
	TruncateLines = "lines"
)

// Policy is the complete context-management configuration for one
// conversation. The pipeline treats it as read-only for the duration of a
// run.
type Policy struct {
	// MaxTokens is the model context budget the pipeline manages toward.
	MaxTokens int `json:"max_tokens,omitempty" jsonschema:"description=Model context window budget in tokens"`
	// WarningThreshold is the pressure at which the caller should surface
	// a context warning.
	WarningThreshold float64 `json:"warning_threshold,omitempty" jsonschema:"description=Pressure ratio that triggers a user-visible warning"`
	// CompactionThreshold is the pressure at which the pipeline starts
	// reducing the conversation.
	CompactionThreshold float64 `json:"compaction_threshold,omitempty" jsonschema:"description=Pressure ratio that triggers eviction truncation and compaction"`

	Window     WindowPolicy     `json:"window,omitempty"`
	Truncation TruncationPolicy `json:"truncation,omitempty"`
	Compaction CompactionPolicy `json:"compaction,omitempty"`
}

// WindowPolicy configures sliding-window eviction.
//
// The preserve booleans intentionally lack omitempty: their default is
// true, so an explicit false in a policy file must survive marshaling.
type WindowPolicy struct {
	// Size is the target message count after eviction.
	Size int `json:"size,omitempty" jsonschema:"description=Target number of messages kept by eviction"`
	// PreserveSystem pins system messages.
	PreserveSystem bool `json:"preserve_system" jsonschema:"description=Never evict system messages"`
	// PreserveInitialTask pins the first user message.
	PreserveInitialTask bool `json:"preserve_initial_task" jsonschema:"description=Never evict the first user message"`
	// MinMessagesBeforeWindowing disables eviction for short conversations.
	MinMessagesBeforeWindowing int `json:"min_messages_before_windowing,omitempty" jsonschema:"description=Minimum conversation length before eviction applies"`
	// Strict caps the window at Size even when preserved messages alone
	// exceed it; the default soft mode never drops preserved messages.
	Strict bool `json:"strict,omitempty" jsonschema:"description=Drop oldest preserved messages rather than exceed the window size"`
}

// TruncationPolicy configures tool-output truncation.
type TruncationPolicy struct {
	// MaxLength is the byte length above which a tool result is truncated.
	MaxLength int `json:"max_length,omitempty" jsonschema:"description=Tool output byte length that triggers truncation"`
	// HeadLength is the byte budget for the kept head.
	HeadLength int `json:"head_length,omitempty" jsonschema:"description=Bytes kept from the start of truncated output"`
	// TailLength is the byte budget for the kept tail.
	TailLength int `json:"tail_length,omitempty" jsonschema:"description=Bytes kept from the end of truncated output"`
	// ShowNotice inserts a marker naming how much was cut.
	ShowNotice bool `json:"show_truncation_notice" jsonschema:"description=Insert a marker describing the truncation"`
	// PreserveLastToolResult exempts the most recent tool result.
	PreserveLastToolResult bool `json:"preserve_last_tool_result" jsonschema:"description=Never truncate the most recent tool result"`
	// Mode selects byte truncation or line-window truncation.
	Mode string `json:"mode,omitempty" jsonschema:"description=Truncation mode,enum=bytes,enum=lines"`
	// LineWindow is the line count kept in line mode.
	LineWindow int `json:"line_window,omitempty" jsonschema:"description=Lines kept when mode is lines"`
}

// CompactionPolicy configures summary-based compaction.
type CompactionPolicy struct {
	// PreserveRecentCount is how many trailing messages survive verbatim.
	PreserveRecentCount int `json:"preserve_recent_count,omitempty" jsonschema:"description=Recent messages kept verbatim through compaction"`
	// MinMessagesForSummary is the minimum conversation length worth
	// summarizing.
	MinMessagesForSummary int `json:"min_messages_for_summary,omitempty" jsonschema:"description=Minimum messages before compaction may run"`
}

// Default returns the stock policy.
func Default() Policy {
	return Policy{
		MaxTokens:           128000,
		WarningThreshold:    0.70,
		CompactionThreshold: 0.80,
		Window: WindowPolicy{
			Size:                       40,
			PreserveSystem:             true,
			PreserveInitialTask:        true,
			MinMessagesBeforeWindowing: 50,
			Strict:                     false,
		},
		Truncation: TruncationPolicy{
			MaxLength:              4000,
			HeadLength:             3000,
			TailLength:             1000,
			ShowNotice:             true,
			PreserveLastToolResult: true,
			Mode:                   TruncateBytes,
			LineWindow:             100,
		},
		Compaction: CompactionPolicy{
			PreserveRecentCount:   10,
			MinMessagesForSummary: 3,
		},
	}
}

// Validate reports the first policy violation found.
func (p Policy) Validate() error {
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", p.MaxTokens)
	}
	if p.WarningThreshold <= 0 || p.WarningThreshold > 1 {
		return fmt.Errorf("warning_threshold must be in (0, 1], got %v", p.WarningThreshold)
	}
	if p.CompactionThreshold <= 0 || p.CompactionThreshold > 1 {
		return fmt.Errorf("compaction_threshold must be in (0, 1], got %v", p.CompactionThreshold)
	}
	if p.Window.Size <= 0 {
		return fmt.Errorf("window.size must be positive, got %d", p.Window.Size)
	}
	if p.Window.MinMessagesBeforeWindowing < 0 {
		return fmt.Errorf("window.min_messages_before_windowing must not be negative, got %d", p.Window.MinMessagesBeforeWindowing)
	}
	if p.Truncation.MaxLength <= 0 {
		return fmt.Errorf("truncation.max_length must be positive, got %d", p.Truncation.MaxLength)
	}
	if p.Truncation.HeadLength < 0 || p.Truncation.TailLength < 0 {
		return fmt.Errorf("truncation head and tail lengths must not be negative, got %d and %d",
			p.Truncation.HeadLength, p.Truncation.TailLength)
	}
	if p.Truncation.HeadLength+p.Truncation.TailLength > p.Truncation.MaxLength {
		return fmt.Errorf("truncation head+tail (%d) exceeds max_length (%d)",
			p.Truncation.HeadLength+p.Truncation.TailLength, p.Truncation.MaxLength)
	}
	switch p.Truncation.Mode {
	case "", TruncateBytes:
	case TruncateLines:
		if p.Truncation.LineWindow <= 0 {
			return fmt.Errorf("truncation.line_window must be positive in lines mode, got %d", p.Truncation.LineWindow)
		}
	default:
		return fmt.Errorf("truncation.mode must be %q or %q, got %q", TruncateBytes, TruncateLines, p.Truncation.Mode)
	}
	if p.Compaction.PreserveRecentCount < 0 {
		return fmt.Errorf("compaction.preserve_recent_count must not be negative, got %d", p.Compaction.PreserveRecentCount)
	}
	if p.Compaction.MinMessagesForSummary < 2 {
		return fmt.Errorf("compaction.min_messages_for_summary must be at least 2, got %d", p.Compaction.MinMessagesForSummary)
	}
	return nil
}
