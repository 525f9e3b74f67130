package observe

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
)

// NewItem marks an IndexMap slot holding an element that did not exist
// before the mutation.
const NewItem = -2

// IndexMap describes the effect of one collection mutation. Slots has one
// entry per element of the mutated collection: the index that element had
// before the mutation, or NewItem. Deleted lists the prior indexes of
// removed elements in ascending order.
type IndexMap struct {
	Slots   []int
	Deleted []int
}

// IsIdentity reports whether the mutation left every element in place.
func (m IndexMap) IsIdentity() bool {
	if len(m.Deleted) > 0 {
		return false
	}
	for i, s := range m.Slots {
		if s != i {
			return false
		}
	}
	return true
}

// Created returns the result indexes of newly created elements.
func (m IndexMap) Created() []int {
	var out []int
	for i, s := range m.Slots {
		if s == NewItem {
			out = append(out, i)
		}
	}
	return out
}

// ApplyIndexMap rebuilds the new order from the prior slots. Retained slots
// are moved, new slots are produced by create(resultIndex).
func ApplyIndexMap[T any](m IndexMap, prior []T, create func(index int) T) []T {
	out := make([]T, len(m.Slots))
	for i, s := range m.Slots {
		if s == NewItem {
			out[i] = create(i)
			continue
		}
		out[i] = prior[s]
	}
	return out
}

var collectionObservation atomic.Bool

func init() {
	collectionObservation.Store(true)
}

// EnableCollectionObservation makes Slice mutations visible to collection
// subscribers. Observation is enabled by default.
func EnableCollectionObservation() {
	collectionObservation.Store(true)
}

// DisableCollectionObservation makes Slice mutations invisible to
// collection subscribers. No IndexMap is computed while disabled.
func DisableCollectionObservation() {
	collectionObservation.Store(false)
}

// CollectionObservationEnabled reports the global observation flag.
func CollectionObservationEnabled() bool {
	return collectionObservation.Load()
}

// Slice is an observable ordered container. Mutations go through its
// methods so that each one can be described by an IndexMap.
type Slice struct {
	mu    sync.RWMutex
	items []any
	subs  collectionSubscriberList

	lengthOnce sync.Once
	length     *lengthObserver
}

// NewSlice creates a Slice holding items.
func NewSlice(items ...any) *Slice {
	return &Slice{items: append([]any(nil), items...)}
}

// Len returns the number of elements.
func (s *Slice) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// At returns the element at i, or nil when out of range.
func (s *Slice) At(i int) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.items) {
		return nil
	}
	return s.items[i]
}

// Items returns a copy of the elements. The result is never nil.
func (s *Slice) Items() []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// String joins the elements with commas.
func (s *Slice) String() string {
	return joinValues(s.Items())
}

// SubscribeCollection implements CollectionObserver.
func (s *Slice) SubscribeCollection(sub CollectionSubscriber) {
	s.subs.add(sub)
}

// UnsubscribeCollection implements CollectionObserver.
func (s *Slice) UnsubscribeCollection(sub CollectionSubscriber) {
	s.subs.remove(sub)
}

// Push appends items and returns the new length.
func (s *Slice) Push(items ...any) (int, error) {
	s.mu.Lock()
	n := len(s.items)
	s.items = append(s.items, items...)
	length := len(s.items)
	s.mu.Unlock()

	return length, s.emit(func() IndexMap {
		slots := identity(n, len(items))
		for i := 0; i < len(items); i++ {
			slots = append(slots, NewItem)
		}
		return IndexMap{Slots: slots}
	})
}

// Unshift prepends items and returns the new length.
func (s *Slice) Unshift(items ...any) (int, error) {
	s.mu.Lock()
	n := len(s.items)
	next := make([]any, 0, n+len(items))
	next = append(next, items...)
	s.items = append(next, s.items...)
	length := len(s.items)
	s.mu.Unlock()

	return length, s.emit(func() IndexMap {
		slots := make([]int, 0, n+len(items))
		for i := 0; i < len(items); i++ {
			slots = append(slots, NewItem)
		}
		for i := 0; i < n; i++ {
			slots = append(slots, i)
		}
		return IndexMap{Slots: slots}
	})
}

// Pop removes and returns the last element. Popping an empty Slice
// returns nil and emits nothing.
func (s *Slice) Pop() (any, error) {
	s.mu.Lock()
	n := len(s.items)
	if n == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	last := s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	s.mu.Unlock()

	return last, s.emit(func() IndexMap {
		return IndexMap{Slots: identity(n-1, 0), Deleted: []int{n - 1}}
	})
}

// Shift removes and returns the first element. Shifting an empty Slice
// returns nil and emits nothing.
func (s *Slice) Shift() (any, error) {
	s.mu.Lock()
	n := len(s.items)
	if n == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	first := s.items[0]
	s.items = append([]any(nil), s.items[1:]...)
	s.mu.Unlock()

	return first, s.emit(func() IndexMap {
		slots := make([]int, n-1)
		for i := range slots {
			slots[i] = i + 1
		}
		return IndexMap{Slots: slots, Deleted: []int{0}}
	})
}

// Splice removes deleteCount elements starting at start, inserts items in
// their place and returns the removed elements. A negative start counts
// from the end; start and deleteCount are clamped to the Slice bounds.
func (s *Slice) Splice(start, deleteCount int, items ...any) ([]any, error) {
	s.mu.Lock()
	n := len(s.items)
	if start < 0 {
		start = max(n+start, 0)
	}
	start = min(start, n)
	deleteCount = min(max(deleteCount, 0), n-start)

	removed := append([]any(nil), s.items[start:start+deleteCount]...)
	next := make([]any, 0, n-deleteCount+len(items))
	next = append(next, s.items[:start]...)
	next = append(next, items...)
	next = append(next, s.items[start+deleteCount:]...)
	s.items = next
	s.mu.Unlock()

	if deleteCount == 0 && len(items) == 0 {
		return removed, nil
	}
	return removed, s.emit(func() IndexMap {
		slots := identity(start, n-deleteCount+len(items))
		for i := 0; i < len(items); i++ {
			slots = append(slots, NewItem)
		}
		for i := start + deleteCount; i < n; i++ {
			slots = append(slots, i)
		}
		var deleted []int
		for i := start; i < start+deleteCount; i++ {
			deleted = append(deleted, i)
		}
		return IndexMap{Slots: slots, Deleted: deleted}
	})
}

// Reverse reverses the elements in place.
func (s *Slice) Reverse() error {
	s.mu.Lock()
	n := len(s.items)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		s.items[i], s.items[j] = s.items[j], s.items[i]
	}
	s.mu.Unlock()

	return s.emit(func() IndexMap {
		slots := make([]int, n)
		for i := range slots {
			slots[i] = n - 1 - i
		}
		return IndexMap{Slots: slots}
	})
}

// Sort reorders the elements by less. The sort is stable.
func (s *Slice) Sort(less func(a, b any) bool) error {
	s.mu.Lock()
	n := len(s.items)
	order := identity(n, 0)
	items := s.items
	sort.SliceStable(order, func(i, j int) bool {
		return less(items[order[i]], items[order[j]])
	})
	next := make([]any, n)
	for i, from := range order {
		next[i] = items[from]
	}
	s.items = next
	s.mu.Unlock()

	return s.emit(func() IndexMap {
		return IndexMap{Slots: order}
	})
}

// emit builds the IndexMap lazily and delivers it, unless observation is
// disabled or nobody listens.
func (s *Slice) emit(build func() IndexMap) error {
	if !collectionObservation.Load() || s.subs.count() == 0 {
		return nil
	}
	return s.subs.notify(build())
}

func identity(n, capacity int) []int {
	slots := make([]int, n, max(n, capacity))
	for i := range slots {
		slots[i] = i
	}
	return slots
}

// AccessorFor implements Observable: "length" is observable, numeric keys
// read elements.
func (s *Slice) AccessorFor(key string) Accessor {
	if key == "length" {
		s.lengthOnce.Do(func() {
			s.length = &lengthObserver{slice: s}
		})
		return s.length
	}
	return sliceIndexAccessor{slice: s}
}

// HasProperty implements PropertyHolder.
func (s *Slice) HasProperty(key string) bool {
	if key == "length" {
		return true
	}
	i, err := strconv.Atoi(key)
	return err == nil && i >= 0 && i < s.Len()
}

type sliceIndexAccessor struct {
	slice *Slice
}

func (a sliceIndexAccessor) Kind() AccessorKind { return 0 }

func (a sliceIndexAccessor) GetValue(obj any, key string) any {
	i, err := strconv.Atoi(key)
	if err != nil {
		return nil
	}
	return a.slice.At(i)
}

func (a sliceIndexAccessor) SetValue(value any, obj any, key string) error {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= a.slice.Len() {
		return ErrNoProperty
	}
	_, err = a.slice.Splice(i, 1, value)
	return err
}

// lengthObserver exposes the Slice length as an observable property. It
// subscribes to the Slice only while it has subscribers of its own.
type lengthObserver struct {
	slice *Slice
	subs  SubscriberList

	mu   sync.Mutex
	last int
}

func (l *lengthObserver) Kind() AccessorKind { return AccessorObservable }

func (l *lengthObserver) GetValue(obj any, key string) any {
	return l.slice.Len()
}

func (l *lengthObserver) SetValue(value any, obj any, key string) error {
	return ErrReadOnly
}

func (l *lengthObserver) Subscribe(s Subscriber) {
	if l.subs.Add(s) && l.subs.Count() == 1 {
		l.mu.Lock()
		l.last = l.slice.Len()
		l.mu.Unlock()
		l.slice.SubscribeCollection(l)
	}
}

func (l *lengthObserver) Unsubscribe(s Subscriber) {
	if l.subs.Remove(s) && l.subs.Count() == 0 {
		l.slice.UnsubscribeCollection(l)
	}
}

func (l *lengthObserver) HandleCollectionChange(im IndexMap) error {
	now := len(im.Slots)
	l.mu.Lock()
	old := l.last
	l.last = now
	l.mu.Unlock()
	if old == now {
		return nil
	}
	return l.subs.Notify(now, old)
}
