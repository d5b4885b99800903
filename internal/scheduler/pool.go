package scheduler

import (
	"context"
	"sync"
)

// outcome is the result of settling one catalog entry.
type outcome struct {
	kind    string // "recurring" or "bill"
	id      int64
	skipped bool // bill left unsettled for insufficient funds
	err     error
}

type settleJob func(ctx context.Context) outcome

// runPool executes settlement jobs on a bounded worker pool and returns one
// outcome per started job. Entries settle independently: a failure is
// captured in its outcome and never stops the remaining jobs. Cancelling ctx
// stops dispatching new jobs; in-flight ones finish.
func runPool(ctx context.Context, workers int, jobs []settleJob) []outcome {
	if len(jobs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	indexCh := make(chan int)
	outCh := make(chan outcome, len(jobs))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			outCh <- jobs[idx](ctx)
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := range jobs {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(outCh)

	outcomes := make([]outcome, 0, len(jobs))
	for o := range outCh {
		outcomes = append(outcomes, o)
	}
	return outcomes
}
