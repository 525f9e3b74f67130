package observe

import (
	"sort"
	"sync"
)

// Object is an observable property bag. It is the usual binding context
// for templates: every property read through the Locator can be observed,
// and Set notifies the property's subscribers.
type Object struct {
	mu        sync.RWMutex
	values    map[string]any
	observers map[string]*PropertyObserver
	batch     *BatchQueue
}

// ObjectOption configures an Object.
type ObjectOption func(*Object)

// WithBatchQueue makes the Object defer notifications through q instead of
// the default batch queue.
func WithBatchQueue(q *BatchQueue) ObjectOption {
	return func(o *Object) {
		o.batch = q
	}
}

// NewObject creates an Object holding a copy of values.
func NewObject(values map[string]any, opts ...ObjectOption) *Object {
	o := &Object{
		values:    make(map[string]any, len(values)),
		observers: make(map[string]*PropertyObserver),
		batch:     defaultBatchQueue,
	}
	for k, v := range values {
		o.values[k] = v
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Get returns the value of key, or nil.
func (o *Object) Get(key string) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.values[key]
}

// HasProperty reports whether key has been set on the object.
func (o *Object) HasProperty(key string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.values[key]
	return ok
}

// Keys returns the property names in sorted order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	keys := make([]string, 0, len(o.values))
	for k := range o.values {
		keys = append(keys, k)
	}
	o.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Set assigns value to key and notifies subscribers if the value changed.
// Errors returned by subscribers are joined and returned.
func (o *Object) Set(key string, value any) error {
	o.mu.Lock()
	old, existed := o.values[key]
	if existed && SameValue(old, value) {
		o.mu.Unlock()
		return nil
	}
	o.values[key] = value
	obs := o.observers[key]
	o.mu.Unlock()

	if obs == nil {
		return nil
	}
	return obs.notify(value, old)
}

// AccessorFor implements Observable. The returned observer is created on
// first use and reused afterwards.
func (o *Object) AccessorFor(key string) Accessor {
	return o.observer(key)
}

func (o *Object) observer(key string) *PropertyObserver {
	o.mu.RLock()
	obs := o.observers[key]
	o.mu.RUnlock()
	if obs != nil {
		return obs
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if obs = o.observers[key]; obs == nil {
		obs = &PropertyObserver{obj: o, key: key}
		o.observers[key] = obs
	}
	return obs
}

// PropertyObserver observes one property of an Object.
type PropertyObserver struct {
	obj  *Object
	key  string
	subs SubscriberList

	mu       sync.Mutex
	queued   bool
	batchOld any
}

// Kind implements Accessor.
func (p *PropertyObserver) Kind() AccessorKind { return AccessorObservable }

// GetValue implements Accessor.
func (p *PropertyObserver) GetValue(obj any, key string) any {
	return p.obj.Get(p.key)
}

// SetValue implements Accessor.
func (p *PropertyObserver) SetValue(value any, obj any, key string) error {
	return p.obj.Set(p.key, value)
}

// Subscribe implements Observer.
func (p *PropertyObserver) Subscribe(s Subscriber) {
	p.subs.Add(s)
}

// Unsubscribe implements Observer.
func (p *PropertyObserver) Unsubscribe(s Subscriber) {
	p.subs.Remove(s)
}

// SubscriberCount returns the number of current subscribers.
func (p *PropertyObserver) SubscriberCount() int {
	return p.subs.Count()
}

func (p *PropertyObserver) notify(newValue, oldValue any) error {
	q := p.obj.batch
	if q != nil && q.Depth() > 0 {
		p.mu.Lock()
		if !p.queued {
			p.queued = true
			p.batchOld = oldValue
		}
		p.mu.Unlock()
		q.Add(p)
		return nil
	}
	return p.subs.Notify(newValue, oldValue)
}

// FlushBatch implements Flusher: notify once with the value the property
// had when the batch first saw it change.
func (p *PropertyObserver) FlushBatch() error {
	p.mu.Lock()
	old := p.batchOld
	p.queued = false
	p.batchOld = nil
	p.mu.Unlock()

	current := p.obj.Get(p.key)
	if SameValue(current, old) {
		return nil
	}
	return p.subs.Notify(current, old)
}
