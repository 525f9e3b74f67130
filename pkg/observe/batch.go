package observe

import (
	"errors"
	"fmt"
	"sync"
)

// MaxBatchPasses bounds the number of flush passes a single batch may run.
// Entries that keep re-queueing each other past this limit are dropped and
// ErrBatchDiverged is returned.
var MaxBatchPasses = 100

// ErrBatchDiverged is returned when a batch does not settle within
// MaxBatchPasses flush passes.
var ErrBatchDiverged = errors.New("weft: batch did not settle")

// Flusher is a batch queue entry. FlushBatch is called once per pass the
// entry was queued in.
type Flusher interface {
	FlushBatch() error
}

// BatchQueue is a reentrant coalescing queue.
//
// Begin increments the nesting depth; End decrements it and, when the depth
// returns to zero, processes the queue in passes: each pass snapshots and
// clears the queue, then flushes every entry of the snapshot. Entries added
// while a pass runs go to the next pass. Processing stops when a pass adds
// nothing new.
type BatchQueue struct {
	mu     sync.Mutex
	depth  int
	queue  []Flusher
	queued map[Flusher]struct{}

	// OnPass, when set, is called after every flush pass with the number
	// of entries flushed. Used for metrics.
	OnPass func(entries int)
}

// NewBatchQueue creates an empty BatchQueue.
func NewBatchQueue() *BatchQueue {
	return &BatchQueue{queued: make(map[Flusher]struct{})}
}

var defaultBatchQueue = NewBatchQueue()

// DefaultBatchQueue returns the process-wide batch queue used by Objects
// created without an explicit queue.
func DefaultBatchQueue() *BatchQueue {
	return defaultBatchQueue
}

// Batch runs fn inside the default batch queue.
func Batch(fn func()) error {
	return defaultBatchQueue.Inline(fn)
}

// Depth returns the current nesting depth.
func (q *BatchQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Begin opens a (possibly nested) batch.
func (q *BatchQueue) Begin() {
	q.mu.Lock()
	q.depth++
	q.mu.Unlock()
}

// End closes a batch opened with Begin. When the outermost batch closes,
// the queue is processed to quiescence before End returns.
func (q *BatchQueue) End() error {
	q.mu.Lock()
	if q.depth == 0 {
		q.mu.Unlock()
		return nil
	}
	q.depth--
	if q.depth > 0 {
		q.mu.Unlock()
		return nil
	}
	// Hold the depth at one while processing so that changes made by
	// flushed entries are queued for the next pass instead of notifying
	// re-entrantly.
	q.depth = 1
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.depth = 0
		q.mu.Unlock()
	}()
	return q.process()
}

// Inline runs fn between Begin and End.
func (q *BatchQueue) Inline(fn func()) (err error) {
	q.Begin()
	defer func() {
		err = errors.Join(err, q.End())
	}()
	fn()
	return nil
}

// Add queues f for the current or next flush pass. Adding an entry that is
// already waiting for the same pass is a no-op.
func (q *BatchQueue) Add(f Flusher) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[f]; ok {
		return
	}
	q.queued[f] = struct{}{}
	q.queue = append(q.queue, f)
}

// Len returns the number of entries waiting to be flushed.
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

func (q *BatchQueue) process() error {
	var errs []error
	for pass := 0; ; pass++ {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.mu.Unlock()
			break
		}
		if pass >= MaxBatchPasses {
			dropped := len(q.queue)
			q.queue = nil
			clear(q.queued)
			q.mu.Unlock()
			errs = append(errs, fmt.Errorf("%w: %d entries still queued after %d passes", ErrBatchDiverged, dropped, pass))
			break
		}
		snapshot := q.queue
		q.queue = nil
		clear(q.queued)
		q.mu.Unlock()

		for _, f := range snapshot {
			if err := f.FlushBatch(); err != nil {
				errs = append(errs, err)
			}
		}
		if q.OnPass != nil {
			q.OnPass(len(snapshot))
		}
	}
	return errors.Join(errs...)
}
