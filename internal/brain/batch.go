package brain

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/mizan/internal/contracts"
)

// DefaultBatchConcurrency bounds parallel runs when the caller passes <= 0
const DefaultBatchConcurrency = 4

// BatchResult is one query's outcome in a batch
type BatchResult struct {
	Query    string                      `json:"query"`
	Response *contracts.PipelineResponse `json:"response,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// RunBatch executes independent runs with bounded concurrency.
// Results keep input order. One query failing never cancels its siblings;
// the returned error is non-nil only when ctx is done.
func (o *Orchestrator) RunBatch(ctx context.Context, queries []string, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]BatchResult, len(queries))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			results[i].Query = q
			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			resp, err := o.Run(ctx, q)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Response = resp
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	o.logger.Event("info", "batch_completed", map[string]interface{}{
		"queries":     len(queries),
		"concurrency": concurrency,
	})
	return results, nil
}
