package ibk

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// RunPool applies fn to every task using at most workers goroutines and
// returns the results in completion order. fn reports failure through its
// result value, so one task failing never stops the others. RunPool returns
// only once every task has finished. A worker count below 1 selects
// DefaultWorkers.
func RunPool[T, R any](workers int, tasks []T, fn func(T) R) []R {
	if workers < 1 {
		workers = DefaultWorkers()
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make([]R, 0, len(tasks))
	)
	g.SetLimit(workers)

	for _, task := range tasks {
		g.Go(func() error {
			r := fn(task)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
