package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mizan/internal/brain"
	"github.com/wonny/mizan/internal/contracts"
)

type fakeRunner struct {
	results []brain.BatchResult
	err     error
	got     []string
	conc    int
}

func (f *fakeRunner) RunBatch(_ context.Context, qs []string, n int) ([]brain.BatchResult, error) {
	f.got, f.conc = qs, n
	return f.results, f.err
}

func okResponse(verdict string) *contracts.PipelineResponse {
	return &contracts.PipelineResponse{
		Status:   contracts.StatusOK,
		Metadata: contracts.Metadata{Verdict: verdict, RunID: "run_x"},
	}
}

func TestWatchlistJob_Defaults(t *testing.T) {
	j := NewWatchlistJob(&fakeRunner{}, nil, "", 2, nil)
	assert.Equal(t, "watchlist", j.Name())
	assert.Equal(t, DefaultWatchSchedule, j.Schedule())
	assert.NoError(t, j.Run(context.Background()))
}

func TestWatchlistJob_Run(t *testing.T) {
	gerr := contracts.GateError{Code: "MARKET_NO_DATA", Message: "no bars"}
	runner := &fakeRunner{results: []brain.BatchResult{
		{Query: "AAPL", Response: okResponse(contracts.VerdictInvest)},
		{Query: "MSFT", Response: okResponse(contracts.VerdictReject)},
		{Query: "ZZZZ", Response: &contracts.PipelineResponse{Status: contracts.StatusError, FailedStage: contracts.StageMarketData, Error: &gerr}},
		{Query: "KO", Error: "context deadline exceeded"},
	}}

	tickers := []string{"AAPL", "MSFT", "ZZZZ", "KO"}
	j := NewWatchlistJob(runner, tickers, "0 0 17 * * *", 3, nil)
	require.NoError(t, j.Run(context.Background()))
	assert.Equal(t, tickers, runner.got)
	assert.Equal(t, 3, runner.conc)

	s := j.report(runner.results)
	assert.Equal(t, Summary{Invest: 1, Reject: 1, Halted: 1, Failed: 1}, s)
}

func TestWatchlistJob_AllFailed(t *testing.T) {
	runner := &fakeRunner{results: []brain.BatchResult{{Query: "A", Error: "boom"}}}
	j := NewWatchlistJob(runner, []string{"A"}, "", 1, nil)
	assert.Error(t, j.Run(context.Background()))
}

func TestWatchlistJob_BatchError(t *testing.T) {
	runner := &fakeRunner{err: context.Canceled}
	j := NewWatchlistJob(runner, []string{"A"}, "", 1, nil)
	assert.ErrorIs(t, j.Run(context.Background()), context.Canceled)
}
