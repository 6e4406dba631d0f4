package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/mizan/internal/scheduler"
	"github.com/wonny/mizan/internal/scheduler/jobs"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watchlist on a cron schedule",
	Long: `Start the scheduler with the watchlist job.

Every tick runs an independent pipeline per ticker and logs the verdicts.
Nothing is stored between ticks.

Configuration:
  WATCHLIST        comma separated tickers (or --tickers)
  WATCH_SCHEDULE   cron with seconds field (default "0 30 16 * * 1-5")

Example:
  go run ./cmd/mizan watch --tickers AAPL,MSFT,KO
  go run ./cmd/mizan watch --now`,
	RunE: runWatch,
}

var (
	watchTickers  []string
	watchSchedule string
	watchNow      bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVar(&watchTickers, "tickers", nil, "tickers to watch (default: WATCHLIST)")
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule with seconds (default: WATCH_SCHEDULE)")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "run one pass immediately after start")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	tickers := a.cfg.Watch.Tickers
	if len(watchTickers) > 0 {
		tickers = watchTickers
	}
	if len(tickers) == 0 {
		return fmt.Errorf("watchlist is empty: set WATCHLIST or --tickers")
	}
	schedule := a.cfg.Watch.Schedule
	if watchSchedule != "" {
		schedule = watchSchedule
	}

	sched := scheduler.New(a.log)
	job := jobs.NewWatchlistJob(a.orchestrator, tickers, schedule, a.cfg.Pipeline.BatchConcurrency, a.log)
	if err := sched.AddJob(job); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	next, _ := sched.NextRun(job.Name())
	PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Watching %s (%s), next run %s",
		strings.Join(tickers, ", "), schedule, next.Format("2006-01-02 15:04:05")))

	if watchNow {
		if err := sched.RunJob(job.Name()); err != nil {
			return err
		}
	}

	<-ctx.Done()

	stats := sched.GetJobStats()[job.Name()]
	fmt.Fprintf(cmd.OutOrStdout(), "\nwatchlist: %d runs, %d failed\n", stats.TotalRuns, stats.FailureCount)
	return nil
}
