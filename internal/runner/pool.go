package runner

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

type Job func(ctx context.Context) error

// ErrSkipped is reported for jobs that never started because ctx was done.
var ErrSkipped = errors.New("job skipped: context done")

// RunPool executes jobs with at most maxWorkers concurrently. Every job
// runs even when others fail; all errors are returned in job order.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	results := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for i, job := range jobs {
		if ctx.Err() != nil {
			results[i] = ErrSkipped
			continue
		}
		g.Go(func() error {
			results[i] = job(ctx)
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
