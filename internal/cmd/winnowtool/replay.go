package main

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/contextmgr"
	"github.com/lightmill/winnow/internal/history"
)

type replayOptions struct {
	configs []string
	summary string
	out     string
}

// staticSummarizer stands in for the model during offline replays.
type staticSummarizer struct {
	text string
}

func (s staticSummarizer) Summarize(_ context.Context, msgs []history.Message) (string, error) {
	if s.text != "" {
		return s.text, nil
	}
	return fmt.Sprintf("Summary of %d earlier messages (replay placeholder).", len(msgs)), nil
}

var replayCmd = &cobra.Command{
	Use:   "replay <transcript>",
	Short: "Run the reduction pipeline over a transcript",
	Long: heredoc.Doc(`
		Replay loads a transcript, runs eviction, truncation, and compaction
		against the configured policy, and prints the resulting pressure
		readings. Compaction uses a canned summary instead of a model call,
		so replays are deterministic and work offline.
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd, args[0], loadReplayOptions(cmd))
	},
}

func init() {
	replayCmd.Flags().StringArray("config", nil, "Policy file(s); later files override earlier ones")
	replayCmd.Flags().String("summary", "", "Canned summary text used when compaction triggers")
	replayCmd.Flags().String("out", "", "Write the reduced transcript to this file")

	rootCmd.AddCommand(replayCmd)
}

func loadReplayOptions(cmd *cobra.Command) replayOptions {
	configs, _ := cmd.Flags().GetStringArray("config")
	summary, _ := cmd.Flags().GetString("summary")
	out, _ := cmd.Flags().GetString("out")

	return replayOptions{
		configs: configs,
		summary: summary,
		out:     out,
	}
}

func runReplay(cmd *cobra.Command, path string, opts replayOptions) error {
	conv, err := loadTranscript(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	policy, err := config.Load(opts.configs...)
	if err != nil {
		return err
	}

	mgr := contextmgr.NewManager(staticSummarizer{text: opts.summary})
	defer mgr.Shutdown()

	before := len(conv)
	report, err := mgr.Run(cmd.Context(), &conv, *policy)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	cmd.Printf("messages: %d -> %d\n", before, len(conv))
	cmd.Printf("pressure: %.3f -> %.3f\n", report.PressureBefore, report.PressureAfter)
	cmd.Printf("compacted: %v, warn: %v\n", report.Compacted, report.Warn)

	if opts.out != "" {
		n, err := writeTranscript(opts.out, conv)
		if err != nil {
			return err
		}
		cmd.Printf("wrote %s (%s)\n", opts.out, humanize.Bytes(uint64(n)))
	}
	return nil
}
