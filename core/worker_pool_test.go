package core

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	pool := NewPool[int]("test", 4, 0)
	defer pool.Shutdown()

	stats := pool.GetStats()
	if stats.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", stats.Workers)
	}
	if stats.Name != "test" {
		t.Errorf("Expected name 'test', got %s", stats.Name)
	}
}

func TestPoolSubmit(t *testing.T) {
	pool := NewPool[string]("test", 2, 10)
	defer pool.Shutdown()

	err := pool.Submit(&Task[string]{ID: 7, Fn: func(context.Context) (string, error) {
		return "done", nil
	}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case result := <-pool.Results():
		if result.Err != nil {
			t.Errorf("Task should succeed, got %v", result.Err)
		}
		if result.TaskID != 7 || result.Value != "done" {
			t.Errorf("Unexpected result %+v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for result")
	}
}

func TestPoolPanicRecovery(t *testing.T) {
	pool := NewPool[int]("test", 1, 10)
	defer pool.Shutdown()

	_ = pool.Submit(&Task[int]{ID: 1, Fn: func(context.Context) (int, error) {
		panic("boom")
	}})

	select {
	case result := <-pool.Results():
		if result.Err == nil || !strings.Contains(result.Err.Error(), "boom") {
			t.Errorf("Expected panic error, got %v", result.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for result")
	}

	if failed := pool.GetStats().Failed; failed != 1 {
		t.Errorf("Expected 1 failed task, got %d", failed)
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	pool := NewPool[int]("test", 1, 1)
	pool.Shutdown()
	pool.Shutdown()

	if pool.IsRunning() {
		t.Error("Pool should not be running")
	}
	err := pool.Submit(&Task[int]{Fn: func(context.Context) (int, error) { return 0, nil }})
	if !errors.Is(err, ErrPoolShutdown) {
		t.Errorf("Expected ErrPoolShutdown, got %v", err)
	}
}

func TestMapPreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	var calls atomic.Int64

	out, err := Map(context.Background(), "map", 3, items, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	want := []int{50, 10, 40, 20, 30}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
	if calls.Load() != int64(len(items)) {
		t.Errorf("Expected %d calls, got %d", len(items), calls.Load())
	}
}

func TestMapReturnsLowestError(t *testing.T) {
	errLow := errors.New("low")
	_, err := Map(context.Background(), "map", 2, []int{0, 1, 2}, func(_ context.Context, n int) (int, error) {
		switch n {
		case 1:
			return 0, errLow
		case 2:
			return 0, errors.New("high")
		}
		return n, nil
	})
	if !errors.Is(err, errLow) {
		t.Errorf("Expected lowest-index error, got %v", err)
	}
}

func TestMapEmpty(t *testing.T) {
	out, err := Map(context.Background(), "map", 2, nil, func(context.Context, int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	if err != nil || len(out) != 0 {
		t.Errorf("Expected empty result, got %v, %v", out, err)
	}
}
