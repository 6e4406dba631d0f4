package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingJob struct {
	name     string
	schedule string
	failures int32 // fail this many times before succeeding
	calls    atomic.Int32
	block    bool
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if j.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 0 * * * *"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 0 * * * *"}))

	err := s.AddJob(&countingJob{name: "a", schedule: "0 0 * * * *"})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob(&countingJob{name: "bad", schedule: "not a schedule"})
	assert.ErrorContains(t, err, "failed to schedule")

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 0 * * * *"}))
	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
	assert.Error(t, s.RunJob("a"))

	_, err := s.NextRun("a")
	assert.Error(t, err)
}

func TestRunJob_RetriesThenSucceeds(t *testing.T) {
	s := New(nil, WithRetries(2, time.Millisecond))
	defer s.Stop()

	job := &countingJob{name: "flaky", schedule: "0 0 * * * *", failures: 2}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("flaky"))

	assert.Eventually(t, func() bool {
		h, _ := s.GetJobHistory("flaky")
		return len(h.Results) == 1
	}, time.Second, 5*time.Millisecond)

	h, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	assert.True(t, h.Results[0].Success)
	assert.Equal(t, int32(3), job.calls.Load())

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	s := New(nil, WithRetries(1, time.Millisecond))
	defer s.Stop()

	job := &countingJob{name: "broken", schedule: "0 0 * * * *", failures: 100}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("broken"))

	assert.Eventually(t, func() bool {
		h, _ := s.GetJobHistory("broken")
		return len(h.Results) == 1
	}, time.Second, 5*time.Millisecond)

	h, _ := s.GetJobHistory("broken")
	assert.False(t, h.Results[0].Success)
	assert.Equal(t, "transient", h.Results[0].Error)
	assert.Equal(t, int32(2), job.calls.Load())
	assert.Equal(t, 1, s.GetJobStats()["broken"].FailureCount)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := New(nil, WithRetries(5, time.Hour))

	job := &countingJob{name: "slow", schedule: "0 0 * * * *", block: true}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("slow"))

	assert.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	h, _ := s.GetJobHistory("slow")
	require.Len(t, h.Results, 1)
	assert.False(t, h.Results[0].Success)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestScheduledExecution(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a cron tick")
	}

	s := New(nil)
	job := &countingJob{name: "tick", schedule: "* * * * * *"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	defer s.Stop()

	next, err := s.NextRun("tick")
	require.NoError(t, err)
	assert.False(t, next.IsZero())

	assert.Eventually(t, func() bool { return job.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestJobHistory(t *testing.T) {
	var h JobHistory
	for i := 0; i < maxHistory+5; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Empty(t, h.GetLatestResults(0))
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)

	assert.Equal(t, 0.0, (&JobHistory{}).GetSuccessRate())
}
