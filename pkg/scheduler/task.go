package scheduler

import "sync"

// TaskStatus is the state of a Task.
type TaskStatus uint8

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskCanceled
)

// String returns a human-readable name for the status.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TaskOptions configures a queued task.
type TaskOptions struct {
	// Reusable lets the queue recycle the task's storage after it has run.
	// Handles from earlier uses stay valid but inert: they report
	// TaskCompleted and Cancel on them is a no-op.
	Reusable bool

	// Preempt runs the task ahead of non-preempting tasks when the queue
	// flushes.
	Preempt bool
}

// Task is the handle to one queued unit of work.
type Task struct {
	e    *entry
	id   uint64
	opts TaskOptions
	done chan struct{}
}

// entry is the queue's storage for a task. Reusable entries are pooled,
// and id changes on every use, so a handle whose id no longer matches
// refers to an earlier, completed use.
type entry struct {
	queue *TaskQueue
	id    uint64
	work  func()
	opts  TaskOptions

	// status and done are guarded by queue.mu.
	status TaskStatus
	done   chan struct{}
	once   sync.Once
}

// ID returns the task's sequence number.
func (t *Task) ID() uint64 {
	return t.id
}

// Status returns the current status.
func (t *Task) Status() TaskStatus {
	q := t.e.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if t.e.id != t.id {
		return TaskCompleted
	}
	return t.e.status
}

// Options returns the options the task was queued with.
func (t *Task) Options() TaskOptions {
	return t.opts
}

// Done returns a channel closed when the task has run or was canceled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel prevents a pending task from running and reports whether it did.
// Canceling a task that already ran or was canceled is a no-op, including
// through the handle of a reusable task whose storage has since been
// queued again.
func (t *Task) Cancel() bool {
	return t.e.queue.cancel(t)
}

func (e *entry) finish() {
	e.once.Do(func() { close(e.done) })
}
