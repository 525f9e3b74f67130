package observe

import (
	"errors"
	"testing"
)

type countingFlusher struct {
	flushes int
	onFlush func()
	err     error
}

func (c *countingFlusher) FlushBatch() error {
	c.flushes++
	if c.onFlush != nil {
		c.onFlush()
	}
	return c.err
}

func TestBatchQueueNested(t *testing.T) {
	q := NewBatchQueue()
	f := &countingFlusher{}

	q.Begin()
	q.Begin()
	q.Add(f)
	if err := q.End(); err != nil {
		t.Fatal(err)
	}
	if f.flushes != 0 {
		t.Fatal("inner End must not process")
	}
	if q.Depth() != 1 {
		t.Errorf("Depth = %d, want 1", q.Depth())
	}
	if err := q.End(); err != nil {
		t.Fatal(err)
	}
	if f.flushes != 1 {
		t.Errorf("flushes = %d, want 1", f.flushes)
	}
	if q.Depth() != 0 {
		t.Errorf("Depth after processing = %d", q.Depth())
	}
}

func TestBatchQueueDeduplicates(t *testing.T) {
	q := NewBatchQueue()
	f := &countingFlusher{}
	_ = q.Inline(func() {
		q.Add(f)
		q.Add(f)
		q.Add(f)
	})
	if f.flushes != 1 {
		t.Errorf("flushes = %d, want 1", f.flushes)
	}
}

func TestBatchQueueAddDuringFlushGoesToNextPass(t *testing.T) {
	q := NewBatchQueue()
	var passes []int
	q.OnPass = func(n int) { passes = append(passes, n) }

	second := &countingFlusher{}
	first := &countingFlusher{}
	first.onFlush = func() {
		if first.flushes == 1 {
			q.Add(second)
			if second.flushes != 0 {
				t.Error("entry added during a pass ran immediately")
			}
		}
	}

	_ = q.Inline(func() { q.Add(first) })

	if second.flushes != 1 {
		t.Errorf("second flushes = %d, want 1", second.flushes)
	}
	if len(passes) != 2 || passes[0] != 1 || passes[1] != 1 {
		t.Errorf("passes = %v, want [1 1]", passes)
	}
}

func TestBatchQueueSelfRequeueConverges(t *testing.T) {
	q := NewBatchQueue()
	f := &countingFlusher{}
	f.onFlush = func() {
		if f.flushes < 3 {
			q.Add(f)
		}
	}
	_ = q.Inline(func() { q.Add(f) })
	if f.flushes != 3 {
		t.Errorf("flushes = %d, want 3", f.flushes)
	}
}

func TestBatchQueueDiverges(t *testing.T) {
	old := MaxBatchPasses
	MaxBatchPasses = 5
	defer func() { MaxBatchPasses = old }()

	q := NewBatchQueue()
	f := &countingFlusher{}
	f.onFlush = func() { q.Add(f) }

	err := q.Inline(func() { q.Add(f) })
	if !errors.Is(err, ErrBatchDiverged) {
		t.Fatalf("error = %v, want ErrBatchDiverged", err)
	}
	if f.flushes != 5 {
		t.Errorf("flushes = %d, want 5", f.flushes)
	}
	if q.Len() != 0 {
		t.Errorf("queue should be cleared, Len = %d", q.Len())
	}
}

func TestBatchQueueJoinsErrors(t *testing.T) {
	q := NewBatchQueue()
	a := &countingFlusher{err: errTest}
	b := &countingFlusher{}
	err := q.Inline(func() {
		q.Add(a)
		q.Add(b)
	})
	if !errors.Is(err, errTest) {
		t.Errorf("error = %v", err)
	}
	if b.flushes != 1 {
		t.Error("a failing entry must not stop the pass")
	}
}

func TestBatchQueueEndWithoutBegin(t *testing.T) {
	q := NewBatchQueue()
	if err := q.End(); err != nil {
		t.Fatal(err)
	}
	if q.Depth() != 0 {
		t.Errorf("Depth = %d", q.Depth())
	}
}

func TestBatchQueueChainedObjects(t *testing.T) {
	q := NewBatchQueue()
	obj := NewObject(map[string]any{"a": 0, "b": 0}, WithBatchQueue(q))

	// a's subscriber writes b; the write lands in the next pass.
	obj.observer("a").Subscribe(&recordingSubscriber{onChange: func() {
		_ = obj.Set("b", obj.Get("a"))
	}})
	subB := &recordingSubscriber{}
	obj.observer("b").Subscribe(subB)

	if err := q.Inline(func() { _ = obj.Set("a", 7) }); err != nil {
		t.Fatal(err)
	}
	if subB.count() != 1 {
		t.Fatalf("b notifications = %d, want 1", subB.count())
	}
	if n, _ := subB.last(); n != 7 {
		t.Errorf("b = %v, want 7", n)
	}
}
