// Package testutil holds helpers shared by package tests.
package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "certchain/pkg/domain-errors"
)

// ConcurrentResult counts outcomes of concurrent operations by domain code.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	Other     int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.Other
}

// RunConcurrent starts fn in n goroutines at once and waits for all of them.
// Conflict errors are counted apart from other failures.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg                         sync.WaitGroup
		successes, conflicts, errs atomic.Int32
		start                      = make(chan struct{})
	)
	for i := range n {
		wg.Go(func() {
			<-start
			switch err := fn(i); {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			default:
				errs.Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Conflicts: conflicts.Load(),
		Other:     errs.Load(),
	}
}
