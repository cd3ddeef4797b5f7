package engine

import (
	"context"
	"time"

	"github.com/facefinder/facefinder/internal/face"
)

// TimeoutMessage is the terminal error string recorded for a run that
// exceeded its deadline. Pollers match on it, so it is part of the contract.
const TimeoutMessage = "Processing timed out"

// RunWithDeadline executes Run on a dedicated goroutine and waits at most
// deadline for it to finish. A non-positive deadline disables the limit.
//
// When the deadline elapses first, the returned summary carries only the
// cheaply countable total and TimeoutMessage; the worker goroutine is not
// killed (in-flight file writes are allowed to complete so output is never
// truncated) but its eventual result is discarded.
func (r *Runner) RunWithDeadline(ctx context.Context, req BatchRequest, deadline time.Duration) (*face.Summary, error) {
	if deadline <= 0 {
		return r.Run(ctx, req)
	}

	type outcome struct {
		summary *face.Summary
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		s, err := r.Run(ctx, req)
		done <- outcome{s, err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.summary, out.err
	case <-timer.C:
		return &face.Summary{
			TotalImages: r.CountImages(req.Dir),
			Results:     []face.ImageResult{},
			Error:       TimeoutMessage,
		}, nil
	}
}
