package utils

import (
	"context"
	"time"
)

// RaceResult is the discriminated outcome of a race between an operation and
// a timer: exactly one of Value/Err is meaningful, and TimedOut marks which
// side settled first.
type RaceResult[T any] struct {
	Value    T
	Err      error
	TimedOut bool
}

// RaceWithTimeout runs op against a timer of the given duration. Whichever
// settles first determines the outcome; when the timer wins, op's context is
// cancelled and its eventual result is discarded without blocking the caller.
func RaceWithTimeout[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) RaceResult[T] {
	opCtx, cancel := context.WithCancel(ctx)

	type settled struct {
		value T
		err   error
	}

	// Buffered so the losing goroutine never leaks waiting on the send.
	done := make(chan settled, 1)
	go func() {
		value, err := op(opCtx)
		done <- settled{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-done:
		cancel()
		return RaceResult[T]{Value: result.value, Err: result.err}
	case <-timer.C:
		cancel()
		var zero T
		return RaceResult[T]{Value: zero, TimedOut: true}
	case <-ctx.Done():
		cancel()
		var zero T
		return RaceResult[T]{Value: zero, Err: ctx.Err()}
	}
}
