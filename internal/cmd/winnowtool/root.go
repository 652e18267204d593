package main

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/lightmill/winnow/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "winnowtool",
	Short: "Inspect and replay context reduction over transcripts",
	Long: heredoc.Doc(`
		winnowtool works on transcript files: JSON arrays of messages in the
		conversation wire format. It estimates token pressure the way the
		pipeline does, and replays the full reduction pipeline offline with a
		canned summarizer standing in for the model.
	`),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logFile, _ := cmd.Flags().GetString("log-file")
		debug, _ := cmd.Flags().GetBool("debug")
		return log.Setup(logFile, debug)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
