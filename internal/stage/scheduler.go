package stage

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"isoconvert/internal/services"
)

// Result is the outcome of one stage action for one item.
type Result[T any] struct {
	Value    T
	Err      error
	Duration time.Duration
}

// PanicError wraps a value recovered from a panicking action.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("stage action panicked: %v", e.Value)
}

// Run executes action for every item with at most parallelism actions active,
// and returns once all of them have finished. Items are admitted in slice
// order. A failing or panicking action only affects its own Result. If ctx is
// cancelled while items still wait for a permit, those items are recorded with
// the context error.
func Run[K comparable, T any](ctx context.Context, items []K, parallelism int, action func(ctx context.Context, item K) (T, error)) (map[K]Result[T], error) {
	if parallelism <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "run", fmt.Sprintf("parallelism must be at least 1, got %d", parallelism), nil)
	}
	if action == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "run", "nil action", nil)
	}

	results := make(map[K]Result[T], len(items))
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(parallelism))
	)
	record := func(item K, res Result[T]) {
		mu.Lock()
		results[item] = res
		mu.Unlock()
	}

	for _, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			record(item, Result[T]{Err: err})
			continue
		}
		wg.Add(1)
		go func(item K) {
			defer wg.Done()
			defer sem.Release(1)
			record(item, invoke(ctx, item, action))
		}(item)
	}

	wg.Wait()
	return results, nil
}

func invoke[K comparable, T any](ctx context.Context, item K, action func(context.Context, K) (T, error)) (res Result[T]) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			var zero T
			res.Value = zero
			res.Err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	value, err := action(ctx, item)
	return Result[T]{Value: value, Err: err}
}
