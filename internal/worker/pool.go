package worker

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to a Pool.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one job.
type Result interface {
	Err() error
}

// Pool runs jobs with bounded concurrency. Results come back in
// submission order so callers get deterministic output regardless of
// scheduling.
type Pool struct {
	workers int
}

// NewPool creates a pool that runs at most workers jobs at once.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes all jobs and returns one result per job, index-aligned
// with the input. A cancelled context stops dispatching new jobs; slots
// for jobs never started stay nil.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return results
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = j.Execute(ctx)
		}(i, job)
	}

	wg.Wait()
	return results
}
