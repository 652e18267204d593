package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lightmill/winnow/internal/config"
	"github.com/lightmill/winnow/internal/tokens"
)

type estimateOptions struct {
	maxTokens int
	exact     bool
	model     string
}

type estimateResult struct {
	path     string
	messages int
	tokens   int
	pressure float64
	exact    int // 0 unless counted with a real tokenizer
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <transcript>...",
	Short: "Estimate token pressure for transcript files",
	Long: heredoc.Doc(`
		Estimate prints the heuristic token count and the resulting pressure
		for each transcript. With --exact, a real BPE tokenizer runs as well
		and the heuristic's drift against it is reported.
	`),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := loadEstimateOptions(cmd)

		var counter tokens.Counter
		if opts.exact {
			bpe, err := tokens.NewBPECounterForModel(opts.model)
			if err != nil {
				return fmt.Errorf("loading encoding for %q: %w", opts.model, err)
			}
			counter = bpe
		}

		results := make([]estimateResult, len(args))
		var g errgroup.Group
		for i, path := range args {
			g.Go(func() error {
				res, err := estimateFile(path, opts, counter)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, res := range results {
			printEstimate(cmd, res)
		}
		return nil
	},
}

func init() {
	estimateCmd.Flags().Int("max-tokens", config.Default().MaxTokens, "Token budget the pressure reading is measured against")
	estimateCmd.Flags().Bool("exact", false, "Also count with a real BPE tokenizer and report heuristic drift")
	estimateCmd.Flags().String("model", "gpt-4o", "Model name selecting the BPE encoding for --exact")

	rootCmd.AddCommand(estimateCmd)
}

func loadEstimateOptions(cmd *cobra.Command) estimateOptions {
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	exact, _ := cmd.Flags().GetBool("exact")
	model, _ := cmd.Flags().GetString("model")

	return estimateOptions{
		maxTokens: maxTokens,
		exact:     exact,
		model:     model,
	}
}

func estimateFile(path string, opts estimateOptions, counter tokens.Counter) (estimateResult, error) {
	conv, err := loadTranscript(path)
	if err != nil {
		return estimateResult{}, err
	}

	res := estimateResult{
		path:     path,
		messages: len(conv),
		tokens:   tokens.Estimate(conv),
		pressure: tokens.Pressure(conv, opts.maxTokens),
	}
	if counter != nil {
		res.exact = tokens.CountConversation(counter, conv)
	}
	return res, nil
}

func printEstimate(cmd *cobra.Command, res estimateResult) {
	cmd.Printf("%s: %d messages, ~%s tokens, pressure %.3f\n",
		res.path, res.messages, humanize.Comma(int64(res.tokens)), res.pressure)
	if res.exact > 0 {
		drift := (float64(res.tokens) - float64(res.exact)) / float64(res.exact) * 100
		cmd.Printf("  exact: %s tokens, heuristic drift %+.1f%%\n",
			humanize.Comma(int64(res.exact)), drift)
	}
}
