package client

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrPending rejects a second Mutate while the first is still in flight.
var ErrPending = errors.New("client: mutation already pending")

type Callbacks[R any] struct {
	OnSuccess func(R)
	OnError   func(error)
	OnSettled func()
}

// Mutation tracks one write operation. Each Mutate is exactly one attempt:
// no retry, no rollback.
type Mutation[A, R any] struct {
	fn      func(ctx context.Context, args A) (R, error)
	pending atomic.Bool
}

func NewMutation[A, R any](fn func(ctx context.Context, args A) (R, error)) *Mutation[A, R] {
	return &Mutation[A, R]{fn: fn}
}

func (m *Mutation[A, R]) IsPending() bool { return m.pending.Load() }

// Mutate runs the operation detached from ctx's cancellation. OnSettled
// always runs last. ErrPending is returned without invoking any callback.
func (m *Mutation[A, R]) Mutate(ctx context.Context, args A, cb Callbacks[R]) (R, error) {
	var zero R
	if !m.pending.CompareAndSwap(false, true) {
		return zero, ErrPending
	}
	res, err := func() (R, error) {
		defer m.pending.Store(false)
		return m.fn(context.WithoutCancel(ctx), args)
	}()

	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
	} else if cb.OnSuccess != nil {
		cb.OnSuccess(res)
	}
	if cb.OnSettled != nil {
		cb.OnSettled()
	}
	if err != nil {
		return zero, err
	}
	return res, nil
}
