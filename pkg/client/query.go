package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Fetcher loads a query's value. found=false resolves the query to NotFound.
type Fetcher[T any] func(ctx context.Context) (value T, found bool, err error)

// Optional adapts a call that returns nil for an absent entity.
func Optional[T any](f func(ctx context.Context) (*T, error)) Fetcher[T] {
	return func(ctx context.Context) (T, bool, error) {
		var zero T
		v, err := f(ctx)
		if err != nil || v == nil {
			return zero, false, err
		}
		return *v, true, nil
	}
}

// List adapts a call returning a slice. Lists are always found.
func List[T any](f func(ctx context.Context) ([]T, error)) Fetcher[[]T] {
	return func(ctx context.Context) ([]T, bool, error) {
		v, err := f(ctx)
		if err != nil {
			return nil, false, err
		}
		if v == nil {
			v = []T{}
		}
		return v, true, nil
	}
}

// Invalidations delivers live invalidation notices per topic.
type Invalidations interface {
	Subscribe(topic string, fn func(Invalidation)) (cancel func())
}

type QueryOptions[T any] struct {
	// Skip leaves the query Loading without fetching, for incomplete
	// parameters.
	Skip     bool
	Topics   []string
	Live     Invalidations
	OnChange func(Result[T])
	// RetryFor bounds the backoff on a failing fetch. Zero means 10s.
	RetryFor time.Duration
	Log      *zap.SugaredLogger
}

// Query holds the latest Result of a fetch and refreshes it whenever one of
// its topics is invalidated. Fetch errors are logged, never surfaced; the
// previous result stays in place.
type Query[T any] struct {
	fetch Fetcher[T]
	opts  QueryOptions[T]

	mu     sync.RWMutex
	result Result[T]
}

func NewQuery[T any](fetch Fetcher[T], opts QueryOptions[T]) *Query[T] {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.RetryFor <= 0 {
		opts.RetryFor = 10 * time.Second
	}
	return &Query[T]{fetch: fetch, opts: opts, result: LoadingResult[T]()}
}

func (q *Query[T]) Result() Result[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.result
}

// Run fetches once, then re-fetches on every invalidation until ctx ends.
// A skipped query returns immediately.
func (q *Query[T]) Run(ctx context.Context) {
	if q.opts.Skip {
		return
	}
	signal := make(chan struct{}, 1)
	if q.opts.Live != nil {
		for _, topic := range q.opts.Topics {
			cancel := q.opts.Live.Subscribe(topic, func(Invalidation) {
				select {
				case signal <- struct{}{}:
				default:
				}
			})
			defer cancel()
		}
	}
	q.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			q.Refresh(ctx)
		}
	}
}

// Refresh performs one fetch with backoff and publishes the outcome.
func (q *Query[T]) Refresh(ctx context.Context) {
	if q.opts.Skip {
		return
	}
	var (
		value T
		found bool
	)
	op := func() error {
		var err error
		value, found, err = q.fetch(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = q.opts.RetryFor
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if ctx.Err() == nil {
			q.opts.Log.Warnw("query fetch failed", "topics", q.opts.Topics, "err", err)
		}
		return
	}

	next := NotFoundResult[T]()
	if found {
		next = FoundResult(value)
	}
	q.mu.Lock()
	q.result = next
	q.mu.Unlock()
	if q.opts.OnChange != nil {
		q.opts.OnChange(next)
	}
}

// retryable treats transport failures and 5xx/429 answers as transient.
func retryable(err error) bool {
	var api *APIError
	if errors.As(err, &api) {
		return api.Status >= http.StatusInternalServerError || api.Status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
