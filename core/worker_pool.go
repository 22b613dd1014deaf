package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolShutdown is returned when submitting to a stopped pool.
	ErrPoolShutdown = errors.New("worker pool is shut down")
	// ErrQueueFull is returned when the task queue has no room.
	ErrQueueFull = errors.New("task queue is full")
)

// Task is one unit of work for a Pool.
type Task[T any] struct {
	ID  int
	Fn  func(context.Context) (T, error)
	Ctx context.Context
}

// Result is the outcome of a Task.
type Result[T any] struct {
	TaskID   int
	Value    T
	Err      error
	Duration time.Duration
	WorkerID int
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Pending   int    `json:"pending"`
}

// Pool runs tasks on a fixed set of goroutines.
type Pool[T any] struct {
	name    string
	workers int
	tasks   chan *Task[T]
	results chan *Result[T]
	wg      sync.WaitGroup

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	mu      sync.RWMutex
}

// NewPool starts a pool of workers goroutines whose queue holds up to queue
// pending tasks.
func NewPool[T any](name string, workers, queue int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if queue < workers {
		queue = workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[T]{
		name:    name,
		workers: workers,
		tasks:   make(chan *Task[T], queue),
		results: make(chan *Result[T], queue),
		ctx:     ctx,
		cancel:  cancel,
		running: true,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.send(p.run(id, task))
		}
	}
}

func (p *Pool[T]) run(workerID int, task *Task[T]) (result *Result[T]) {
	p.active.Add(1)
	defer p.active.Add(-1)

	start := time.Now()
	result = &Result[T]{TaskID: task.ID, WorkerID: workerID}

	// One panicking task must not take the pool down.
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic in task %d: %v", task.ID, r)
		}
		result.Duration = time.Since(start)
		if result.Err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
	}()

	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}
	if task.Fn == nil {
		result.Err = errors.New("no task function defined")
		return result
	}
	result.Value, result.Err = task.Fn(ctx)
	return result
}

func (p *Pool[T]) send(r *Result[T]) {
	select {
	case p.results <- r:
	case <-p.ctx.Done():
	}
}

// Submit queues a task without blocking.
func (p *Pool[T]) Submit(task *Task[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrPoolShutdown
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Results returns the channel results are delivered on.
func (p *Pool[T]) Results() <-chan *Result[T] {
	return p.results
}

// GetStats returns current worker pool statistics.
func (p *Pool[T]) GetStats() PoolStats {
	return PoolStats{
		Name:      p.name,
		Workers:   p.workers,
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Pending:   len(p.tasks),
	}
}

// Shutdown stops the workers and waits for them to exit. Pending tasks are
// discarded.
func (p *Pool[T]) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.tasks)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	close(p.results)
}

// IsRunning returns true if the pool is still accepting tasks.
func (p *Pool[T]) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Map applies fn to every item on a pool of workers goroutines and returns
// the outputs in input order. The error of the lowest failing index is
// returned.
func Map[In, Out any](ctx context.Context, name string, workers int, items []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(items))
	if len(items) == 0 {
		return out, nil
	}

	pool := NewPool[Out](name, workers, len(items))
	defer pool.Shutdown()

	for i, item := range items {
		item := item
		task := &Task[Out]{
			ID:  i,
			Ctx: ctx,
			Fn:  func(ctx context.Context) (Out, error) { return fn(ctx, item) },
		}
		if err := pool.Submit(task); err != nil {
			return nil, err
		}
	}

	errs := make([]error, len(items))
	for range items {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-pool.Results():
			out[r.TaskID] = r.Value
			errs[r.TaskID] = r.Err
		}
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
	}
	return out, nil
}
