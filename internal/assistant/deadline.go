// internal/assistant/deadline.go
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is the cause of a context cancelled by RunWithDeadline.
var ErrTimeout = errors.New("ASSISTANT_TIMEOUT")

type outcome[T any] struct {
	value T
	err   error
}

// RunWithDeadline races fn against d. fn receives a context cancelled with cause ErrTimeout
// when d expires. Whichever side finishes first decides the result and the other side is
// discarded: a result observed after expiry is dropped and ErrTimeout returned instead. An
// early context.DeadlineExceeded from fn, such as a rate limiter refusing a wait that cannot
// finish in time, is reported as ErrTimeout too. A cancelled parent returns the parent's cause.
func RunWithDeadline[T any](parent context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeoutCause(parent, d, ErrTimeout)
	defer cancel()

	// Buffered so a late fn never blocks once nobody is listening.
	done := make(chan outcome[T], 1)
	go func() {
		var o outcome[T]
		defer func() {
			if r := recover(); r != nil {
				o = outcome[T]{err: fmt.Errorf("assistant panicked: %v", r)}
			}
			done <- o
		}()
		o.value, o.err = fn(ctx)
	}()

	var zero T
	select {
	case o := <-done:
		if errors.Is(context.Cause(ctx), ErrTimeout) {
			return zero, ErrTimeout
		}
		if errors.Is(o.err, context.DeadlineExceeded) {
			return o.value, fmt.Errorf("%w: %w", ErrTimeout, o.err)
		}
		return o.value, o.err
	case <-ctx.Done():
		if cause := context.Cause(ctx); !errors.Is(cause, ErrTimeout) {
			return zero, cause
		}
		return zero, ErrTimeout
	}
}
