// Package scheduler provides the task queue used to defer render target
// writes.
//
// A Task is a cancellable unit of work. Work queued now runs on the next
// Flush, never inside QueueTask, so several changes made within one turn
// can be collapsed: the binding layer always cancels its previous task
// before queueing a new one, and only the most recent write runs.
//
//	q := scheduler.New()
//	t, _ := q.QueueTask(func() { node.SetText("hi") }, scheduler.TaskOptions{Preempt: true})
//	t.Cancel()   // the write never happens
//	q.Flush()
//
// Preempting tasks run before ordinary tasks within a flush. The platform
// side drives flushing, either by calling Flush directly (tests, single
// shot renders) or by running the loop returned by Run on the goroutine
// that owns the bindings.
package scheduler
