package stage_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"isoconvert/internal/services"
	"isoconvert/internal/stage"
)

func TestRunNeverExceedsParallelism(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	var active, peak int32
	results, err := stage.Run(context.Background(), items, 3, func(_ context.Context, item int) (int, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return item * 2, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak > 3 {
		t.Fatalf("peak concurrency %d exceeds 3", peak)
	}
	if peak < 2 {
		t.Fatalf("expected actions to overlap, peak %d", peak)
	}
	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for _, item := range items {
		if results[item].Value != item*2 || results[item].Err != nil {
			t.Fatalf("item %d: %+v", item, results[item])
		}
	}
}

func TestRunRecordsFailuresWithoutShortCircuit(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	results, err := stage.Run(context.Background(), []string{"a", "b", "c"}, 1, func(_ context.Context, item string) (string, error) {
		atomic.AddInt32(&calls, 1)
		if item == "a" {
			return "", boom
		}
		return "ok-" + item, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected every item to run, got %d calls", calls)
	}
	if !errors.Is(results["a"].Err, boom) {
		t.Fatalf("a: %+v", results["a"])
	}
	if results["b"].Value != "ok-b" || results["c"].Value != "ok-c" {
		t.Fatalf("siblings affected: %+v", results)
	}
}

func TestRunRecoversPanicsAndReleasesPermit(t *testing.T) {
	results, err := stage.Run(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, item int) (int, error) {
		if item == 1 {
			panic("exploded")
		}
		return item, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var panicErr *stage.PanicError
	if !errors.As(results[1].Err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", results[1].Err)
	}
	if fmt.Sprint(panicErr.Value) != "exploded" {
		t.Fatalf("panic value = %v", panicErr.Value)
	}
	if results[2].Value != 2 || results[3].Value != 3 {
		t.Fatalf("later items did not run after panic: %+v", results)
	}
}

func TestRunRejectsNonPositiveParallelism(t *testing.T) {
	for _, n := range []int{0, -1} {
		var ran bool
		_, err := stage.Run(context.Background(), []int{1}, n, func(context.Context, int) (int, error) {
			ran = true
			return 0, nil
		})
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("parallelism %d: expected ErrConfiguration, got %v", n, err)
		}
		if ran {
			t.Fatalf("parallelism %d: action should not run", n)
		}
	}
}

func TestRunEmptyWorklist(t *testing.T) {
	results, err := stage.Run(context.Background(), nil, 2, func(context.Context, string) (int, error) {
		t.Fatal("action should not run")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
}

func TestRunRecordsCancelledWaiters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan map[string]stage.Result[string])

	go func() {
		results, _ := stage.Run(ctx, []string{"first", "second", "third"}, 1, func(ctx context.Context, item string) (string, error) {
			if item == "first" {
				close(started)
				<-release
			}
			return item, ctx.Err()
		})
		done <- results
	}()

	<-started
	cancel()
	close(release)
	results := <-done

	if len(results) != 3 {
		t.Fatalf("expected a result per item, got %v", results)
	}
	for _, item := range []string{"second", "third"} {
		if !errors.Is(results[item].Err, context.Canceled) {
			t.Fatalf("%s: expected context.Canceled, got %+v", item, results[item])
		}
	}
}

func TestRunRecordsDuration(t *testing.T) {
	results, err := stage.Run(context.Background(), []int{1}, 1, func(context.Context, int) (struct{}, error) {
		time.Sleep(20 * time.Millisecond)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[1].Duration < 20*time.Millisecond {
		t.Fatalf("duration %s too short", results[1].Duration)
	}
}
