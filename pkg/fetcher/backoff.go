package fetcher

import (
	"context"
	"time"
)

// attemptFailure is the classified outcome of one failed fetch attempt.
type attemptFailure struct {
	Kind          ErrorKind
	Status        int
	Excerpt       string
	RetryAfter    time.Duration
	HasRetryAfter bool
	Err           error
}

// backoffFor returns the wait before the attempt that follows a failure.
//
// Rate-limited responses honor a parseable Retry-After header and otherwise
// wait 5*attempt seconds. Every other failure waits 2^attempt seconds. The
// exponential schedule is uncapped on purpose: with the default three
// attempts the worst case is eight seconds, and the attempt bound is the
// operator's knob.
func backoffFor(fail *attemptFailure, attempt int) time.Duration {
	if fail.Kind == KindRateLimited {
		if fail.HasRetryAfter {
			return fail.RetryAfter
		}
		return time.Duration(5*attempt) * time.Second
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
