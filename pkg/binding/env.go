package binding

import (
	"log/slog"

	werrors "github.com/vango-dev/weft/internal/errors"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scheduler"
	"github.com/vango-dev/weft/pkg/scope"
	"github.com/vango-dev/weft/pkg/telemetry"
)

// Binding is the lifecycle contract controllers drive.
type Binding interface {
	// Bind connects the binding to s and performs the initial write.
	// Binding again to the same scope is a no-op; binding to a different
	// scope unbinds first.
	Bind(s, host *scope.Scope) error

	// Unbind disconnects the binding and cancels its pending write. It is
	// a no-op when the binding is not bound.
	Unbind()

	IsBound() bool
}

// Env carries the services bindings are constructed with.
type Env struct {
	Locator *observe.Locator

	// Queue receives deferred target writes. With a nil queue every write
	// is immediate.
	Queue *scheduler.TaskQueue

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) locator() *observe.Locator {
	if e.Locator != nil {
		return e.Locator
	}
	return defaultLocator
}

var defaultLocator = observe.NewLocator()

// writer performs the target writes of one binding: the first write after
// bind is immediate, later writes to layout-affecting targets are deferred
// with cancel-before-reschedule.
type writer struct {
	env  *Env
	task *scheduler.Task
	name string
}

// write applies fn now, or queues it when deferred is true. A queued write
// replaces the previous pending one.
func (w *writer) write(deferred bool, fn func() error) error {
	if !deferred || w.env.Queue == nil {
		w.env.Metrics.TargetWrite(false)
		return fn()
	}

	w.cancel()
	var task *scheduler.Task
	task, err := w.env.Queue.QueueTask(func() {
		if w.task == task {
			w.task = nil
		}
		w.env.Metrics.TargetWrite(true)
		if err := fn(); err != nil {
			werr := werrors.New("W150").WithDetail(w.name).Wrap(err)
			w.env.logger().Warn("deferred write failed", "binding", w.name, "error", werr)
		}
	}, scheduler.TaskOptions{Preempt: true})
	if err != nil {
		return err
	}
	w.task = task
	return nil
}

// cancel drops the pending write, if any.
func (w *writer) cancel() {
	if w.task != nil {
		w.task.Cancel()
		w.task = nil
	}
}

// pending reports whether a deferred write is waiting.
func (w *writer) pending() bool {
	return w.task != nil
}
