package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/weft/pkg/telemetry"
)

// ErrQueueUnavailable is returned when queueing work on a disposed queue.
// It is not retryable: a disposed queue never accepts work again.
var ErrQueueUnavailable = errors.New("weft: task queue unavailable")

// Option configures a TaskQueue.
type Option func(*TaskQueue)

// WithLogger sets the logger used for task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(q *TaskQueue) {
		q.logger = logger
	}
}

// WithMetrics records queue activity on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(q *TaskQueue) {
		q.metrics = m
	}
}

// TaskQueue holds deferred work until the next flush. QueueTask and Cancel
// are safe to call from any goroutine; Flush runs tasks on the caller's
// goroutine.
type TaskQueue struct {
	mu       sync.Mutex
	nextID   uint64
	preempt  []*entry
	normal   []*entry
	free     []*entry
	disposed bool
	wake     chan struct{}
	closed   chan struct{}

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New creates a TaskQueue.
func New(opts ...Option) *TaskQueue {
	q := &TaskQueue{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q
}

// QueueTask schedules work for the next flush and returns its handle.
func (q *TaskQueue) QueueTask(work func(), opts TaskOptions) (*Task, error) {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return nil, ErrQueueUnavailable
	}
	q.nextID++

	var e *entry
	if n := len(q.free); n > 0 {
		e = q.free[n-1]
		q.free = q.free[:n-1]
		e.once = sync.Once{}
	} else {
		e = &entry{queue: q}
	}
	e.id = q.nextID
	e.work = work
	e.opts = opts
	e.status = TaskPending
	e.done = make(chan struct{})

	if opts.Preempt {
		q.preempt = append(q.preempt, e)
	} else {
		q.normal = append(q.normal, e)
	}
	t := &Task{e: e, id: e.id, opts: opts, done: e.done}
	q.mu.Unlock()

	q.metrics.TaskQueued(opts.Preempt)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t, nil
}

func (q *TaskQueue) cancel(t *Task) bool {
	e := t.e
	q.mu.Lock()
	if e.id != t.id || e.status != TaskPending {
		q.mu.Unlock()
		return false
	}
	e.status = TaskCanceled
	if e.opts.Preempt {
		q.preempt = remove(q.preempt, e)
	} else {
		q.normal = remove(q.normal, e)
	}
	q.mu.Unlock()

	e.finish()
	q.metrics.TaskCanceled()
	return true
}

func remove(entries []*entry, e *entry) []*entry {
	for i, candidate := range entries {
		if candidate == e {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.preempt) + len(q.normal)
}

// Flush runs every task that was pending when Flush was called, preempting
// tasks first, and returns the number of tasks run. Tasks queued while
// flushing wait for the next flush. A task canceled by an earlier task of
// the same flush does not run, and neither does any task left in the flush
// once the queue is disposed.
func (q *TaskQueue) Flush() int {
	q.mu.Lock()
	batch := make([]*entry, 0, len(q.preempt)+len(q.normal))
	batch = append(batch, q.preempt...)
	batch = append(batch, q.normal...)
	q.preempt = nil
	q.normal = nil
	q.mu.Unlock()

	ran := 0
	for _, e := range batch {
		q.mu.Lock()
		if e.status != TaskPending {
			q.mu.Unlock()
			continue
		}
		if q.disposed {
			e.status = TaskCanceled
			q.mu.Unlock()
			e.finish()
			q.metrics.TaskCanceled()
			continue
		}
		e.status = TaskRunning
		q.mu.Unlock()

		q.run(e)
		ran++

		q.mu.Lock()
		e.status = TaskCompleted
		recycle := e.opts.Reusable && !q.disposed
		q.mu.Unlock()
		e.finish()
		q.metrics.TaskRun()

		if recycle {
			q.mu.Lock()
			e.work = nil
			q.free = append(q.free, e)
			q.mu.Unlock()
		}
	}
	return ran
}

func (q *TaskQueue) run(e *entry) {
	defer func() {
		if r := recover(); r != nil {
			q.metrics.TaskPanicked()
			q.logger.Error("task panicked", "task", e.id, "panic", r)
		}
	}()
	e.work()
}

// Run flushes the queue whenever work is queued and, if interval is
// positive, on every tick. It returns when ctx is done or the queue is
// disposed.
func (q *TaskQueue) Run(ctx context.Context, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.closed:
			return ErrQueueUnavailable
		case <-q.wake:
			q.Flush()
		case <-tick:
			q.Flush()
		}
	}
}

// Dispose tears the queue down: pending tasks are canceled and later calls
// to QueueTask fail with ErrQueueUnavailable. Dispose is idempotent.
func (q *TaskQueue) Dispose() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	pending := append(q.preempt, q.normal...)
	q.preempt = nil
	q.normal = nil
	q.free = nil
	for _, e := range pending {
		e.status = TaskCanceled
	}
	close(q.closed)
	q.mu.Unlock()

	for _, e := range pending {
		e.finish()
		q.metrics.TaskCanceled()
	}
}

// Disposed reports whether Dispose has been called.
func (q *TaskQueue) Disposed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disposed
}
