// Package dispatch serializes metadata retrievals through one persistent
// worker. The upstream endpoint tolerates little request concurrency per
// identity, so tasks queue behind a bounded buffer and run one at a time;
// a full buffer rejects immediately instead of stacking latency.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned when the pending-task buffer is at capacity.
	ErrQueueFull = errors.New("dispatch: task queue is full")

	// ErrClosed is returned for submissions after Close.
	ErrClosed = errors.New("dispatch: dispatcher is closed")
)

// DefaultQueueDepth bounds pending tasks when no depth is configured.
const DefaultQueueDepth = 16

// Task produces one result. It runs on the worker goroutine.
type Task[T any] func(ctx context.Context) (T, error)

type outcome[T any] struct {
	value T
	err   error
}

type job[T any] struct {
	ctx    context.Context
	run    Task[T]
	result chan outcome[T]
}

// Dispatcher runs submitted tasks sequentially on a single worker.
type Dispatcher[T any] struct {
	queue  chan job[T]
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// New starts the worker. depth <= 0 selects DefaultQueueDepth.
func New[T any](depth int, logger zerolog.Logger) *Dispatcher[T] {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	d := &Dispatcher[T]{
		queue:  make(chan job[T], depth),
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.work()
	return d
}

// Submit queues the task and waits for its result. It fails fast with
// ErrQueueFull when the buffer is at capacity. A canceled ctx releases
// the caller; the task itself observes the same ctx.
func (d *Dispatcher[T]) Submit(ctx context.Context, task Task[T]) (T, error) {
	var zero T

	j := job[T]{ctx: ctx, run: task, result: make(chan outcome[T], 1)}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return zero, ErrClosed
	}
	select {
	case d.queue <- j:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.logger.Warn().Int("depth", cap(d.queue)).Msg("rejecting task, queue full")
		return zero, ErrQueueFull
	}

	select {
	case out := <-j.result:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close stops accepting tasks, lets the queued ones finish, and waits for
// the worker to exit.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher[T]) work() {
	defer close(d.done)
	for j := range d.queue {
		if err := j.ctx.Err(); err != nil {
			j.result <- outcome[T]{err: err}
			continue
		}
		value, err := j.run(j.ctx)
		j.result <- outcome[T]{value: value, err: err}
	}
}
