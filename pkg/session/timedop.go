package session

import (
	"context"
	"time"

	"github.com/foxyproxy/foxy/pkg/ferrors"
)

// timedResult carries one blocking operation's outcome across the
// goroutine boundary in runTimed.
type timedResult[T any] struct {
	val T
	err error
}

// runTimed races op against a deadline derived from s.Opts.Timeout (or ctx,
// if it carries an earlier deadline). This is the Go translation of the
// teacher's session timer wrapper: instead of a coroutine re-entered by an
// intermediate handler, op runs on its own goroutine and the result is
// raced over a channel against a time.Timer and ctx.Done(). If the timeout
// or the cancellation wins, the
// session's stream is force-closed to unblock whatever syscall op is
// parked in, and the goroutine's result is drained before returning so it
// never leaks or writes to a channel nobody reads again.
func runTimed[T any](ctx context.Context, s *Session, op string, fn func() (T, error)) (T, error) {
	ch := make(chan timedResult[T], 1)
	go func() {
		v, err := fn()
		ch <- timedResult[T]{val: v, err: err}
	}()

	timeout := s.Opts.Timeout
	if timeout <= 0 {
		select {
		case r := <-ch:
			return r.val, r.err
		case <-ctx.Done():
			s.Stream.Close()
			<-ch
			var zero T
			return zero, ferrors.NewTimeoutError(op, 0)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		s.Stream.Close()
		<-ch
		var zero T
		return zero, ferrors.NewTimeoutError(op, timeout)
	case <-timer.C:
		s.Log.TimedOut(op)
		s.Stream.Close()
		<-ch // drain: op is the sole owner of ch until this point
		var zero T
		return zero, ferrors.NewTimeoutError(op, timeout)
	}
}
