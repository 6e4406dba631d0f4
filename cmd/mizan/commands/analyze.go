package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <company> [company...]",
	Short: "Run the decision pipeline",
	Long: `Resolve each company reference and run the full gate pipeline.

Several inputs run as independent pipelines with bounded concurrency;
one halting never affects the others.

Example:
  go run ./cmd/mizan analyze "Apple Inc"
  go run ./cmd/mizan analyze AAPL MSFT KO --concurrency 2
  go run ./cmd/mizan analyze coca cola --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeJSON        bool
	analyzeConcurrency int
	analyzeJoin        bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the raw pipeline response as JSON")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "parallel runs for several inputs (default: BATCH_CONCURRENCY)")
	analyzeCmd.Flags().BoolVar(&analyzeJoin, "join", false, "treat all arguments as one query (e.g. coca cola)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	queries := args
	if analyzeJoin {
		queries = []string{strings.Join(args, " ")}
	}

	out := cmd.OutOrStdout()

	if len(queries) == 1 {
		return analyzeOne(ctx, a, queries[0], cmd)
	}

	concurrency := analyzeConcurrency
	if concurrency <= 0 {
		concurrency = a.cfg.Pipeline.BatchConcurrency
	}

	results, err := a.orchestrator.RunBatch(ctx, queries, concurrency)
	if err != nil {
		return err
	}

	if analyzeJSON {
		return PrintJSON(out, results)
	}
	for _, r := range results {
		if r.Response != nil {
			PrintResponse(out, r.Response)
		}
	}
	PrintBatchSummary(out, results)
	return nil
}

func analyzeOne(ctx context.Context, a *app, query string, cmd *cobra.Command) error {
	resp, err := a.orchestrator.Run(ctx, query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		return PrintJSON(out, resp)
	}
	PrintResponse(out, resp)
	return nil
}
