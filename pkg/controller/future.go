package controller

import "sync"

// Future is the result of a lifecycle hook. Hooks that finish synchronously
// return nil or Completed(); asynchronous hooks return a pending Future and
// settle it later.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

var completed = func() *Future {
	f := &Future{done: make(chan struct{})}
	close(f.done)
	return f
}()

// Completed returns an already settled, successful Future.
func Completed() *Future {
	return completed
}

// Failed returns an already settled Future carrying err.
func Failed(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// NewFuture returns a pending Future and the function that settles it.
// Only the first call to settle has an effect.
func NewFuture() (*Future, func(error)) {
	f := &Future{done: make(chan struct{})}
	return f, func(err error) {
		f.once.Do(func() {
			f.err = err
			close(f.done)
		})
	}
}

// Go runs fn on a new goroutine and returns a Future settled with its
// result.
func Go(fn func() error) *Future {
	f, settle := NewFuture()
	go func() { settle(fn()) }()
	return f
}

// Done returns a channel closed once the Future has settled.
func (f *Future) Done() <-chan struct{} {
	if f == nil {
		return completed.done
	}
	return f.done
}

// Settled reports whether the Future has settled.
func (f *Future) Settled() bool {
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}

// Err returns the error the Future settled with. It blocks until the
// Future has settled.
func (f *Future) Err() error {
	if f == nil {
		return nil
	}
	<-f.done
	return f.err
}

// then returns a Future settled with fn(f.Err()) once f settles.
func (f *Future) then(fn func(error) error) *Future {
	if f.Settled() {
		if err := fn(f.Err()); err != nil {
			return Failed(err)
		}
		return completed
	}
	out, settle := NewFuture()
	go func() { settle(fn(f.Err())) }()
	return out
}
