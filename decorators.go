package resilience

import (
	"context"
	"time"
)

// Call runs fn if cb currently permits it, recording the outcome
// afterward. Returns ErrCallNotPermitted without running fn if the
// breaker is Open. A panic inside fn is recorded as a failure and
// re-panicked (preserving the caller's stack trace and recover
// semantics), matching the teacher's Execute/panic-recovery behavior
// generalized onto the new core.
func Call(cb *CircuitBreaker, fn func() (any, error)) (result any, err error) {
	if !cb.IsCallPermitted() {
		return nil, ErrCallNotPermitted
	}

	defer func() {
		if r := recover(); r != nil {
			cb.OnError(errRecoveredPanic)
			panic(r)
		}
	}()

	result, err = fn()
	if err != nil {
		cb.OnError(err)
	} else {
		cb.OnSuccess()
	}
	return result, err
}

// CallContext is Call, but returns ctx.Err() immediately without running
// fn or recording an outcome if ctx is already done — cancellation is
// client-initiated, not a sign of collaborator health, so it must not
// influence the failure rate.
func CallContext(ctx context.Context, cb *CircuitBreaker, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Call(cb, fn)
}

// Acquire blocks for up to timeout acquiring a permit from rl, then runs
// fn. Returns ErrRequestNotPermitted without running fn if no permit
// becomes available in time.
func Acquire(ctx context.Context, rl RateLimiter, timeout time.Duration, fn func() (any, error)) (any, error) {
	if !rl.AcquirePermission(ctx, timeout) {
		return nil, ErrRequestNotPermitted
	}
	return fn()
}
