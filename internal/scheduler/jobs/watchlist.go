// Package jobs holds the scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/mizan/internal/brain"
	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/pkg/logger"
)

// DefaultWatchSchedule runs after the US close on weekdays (seconds field first)
const DefaultWatchSchedule = "0 30 16 * * 1-5"

// BatchRunner runs independent pipelines
type BatchRunner interface {
	RunBatch(ctx context.Context, queries []string, concurrency int) ([]brain.BatchResult, error)
}

// WatchlistJob analyses every configured ticker and logs the verdicts.
// Each run is independent; nothing carries over between ticks.
type WatchlistJob struct {
	runner      BatchRunner
	tickers     []string
	schedule    string
	concurrency int
	logger      *logger.Logger
}

// NewWatchlistJob creates a new watchlist job
func NewWatchlistJob(runner BatchRunner, tickers []string, schedule string, concurrency int, log *logger.Logger) *WatchlistJob {
	if schedule == "" {
		schedule = DefaultWatchSchedule
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WatchlistJob{
		runner:      runner,
		tickers:     append([]string(nil), tickers...),
		schedule:    schedule,
		concurrency: concurrency,
		logger:      log,
	}
}

// Name returns the job name
func (j *WatchlistJob) Name() string {
	return "watchlist"
}

// Schedule returns the cron schedule
func (j *WatchlistJob) Schedule() string {
	return j.schedule
}

// Summary counts verdicts of one watchlist pass
type Summary struct {
	Invest int
	Watch  int
	Reject int
	Halted int
	Failed int
}

// Run executes the watchlist pass.
// Halted pipelines are reported, not retried; the job fails only when
// no ticker produced a response at all.
func (j *WatchlistJob) Run(ctx context.Context) error {
	if len(j.tickers) == 0 {
		j.logger.Warn("Watchlist is empty, nothing to analyse")
		return nil
	}

	results, err := j.runner.RunBatch(ctx, j.tickers, j.concurrency)
	if err != nil {
		return fmt.Errorf("watchlist batch: %w", err)
	}

	summary := j.report(results)

	j.logger.Event("info", "watchlist_completed", map[string]interface{}{
		"tickers": len(j.tickers),
		"invest":  summary.Invest,
		"watch":   summary.Watch,
		"reject":  summary.Reject,
		"halted":  summary.Halted,
		"failed":  summary.Failed,
	})

	if summary.Failed == len(j.tickers) {
		return errors.New("watchlist: every run failed")
	}
	return nil
}

func (j *WatchlistJob) report(results []brain.BatchResult) Summary {
	var s Summary
	for _, r := range results {
		log := j.logger.WithField("ticker", r.Query)

		if r.Response == nil {
			s.Failed++
			log.WithField("error", r.Error).Warn("Watchlist run failed")
			continue
		}

		resp := r.Response
		if resp.Status == contracts.StatusError {
			s.Halted++
			fields := map[string]interface{}{"failed_stage": resp.FailedStage.String()}
			if resp.Error != nil {
				fields["code"] = resp.Error.Code
			}
			log.WithFields(fields).Warn("Watchlist run halted")
			continue
		}

		switch resp.Metadata.Verdict {
		case contracts.VerdictInvest:
			s.Invest++
		case contracts.VerdictWatch:
			s.Watch++
		case contracts.VerdictReject:
			s.Reject++
		}

		log.WithFields(map[string]interface{}{
			"verdict":    resp.Metadata.Verdict,
			"confidence": resp.Pipeline.Confidence,
			"run_id":     resp.Metadata.RunID,
		}).Info("Watchlist verdict")
	}
	return s
}
