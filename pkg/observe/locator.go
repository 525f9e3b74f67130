package observe

import (
	"reflect"
	"sync"
)

type accessorKey struct {
	typ reflect.Type
	key string
}

// Locator resolves accessors and observers for (target, property) pairs.
//
// Resolution is deterministic. Observable targets own and cache their
// accessors themselves; accessors for plain Go values are stateless and
// cached per (type, property), so repeated resolution is O(1) and never
// retains the targets.
type Locator struct {
	plain sync.Map // accessorKey -> Accessor
}

// NewLocator creates an empty Locator.
func NewLocator() *Locator {
	return &Locator{}
}

// Resolve returns the accessor for target.key. Targets that cannot be
// observed get an accessor that reads and writes but never notifies.
func (l *Locator) Resolve(target any, key string) Accessor {
	if target == nil {
		return nilAccessor{}
	}
	if o, ok := target.(Observable); ok {
		if acc := o.AccessorFor(key); acc != nil {
			return acc
		}
	}

	t := reflect.TypeOf(target)
	k := accessorKey{typ: t, key: key}
	if acc, ok := l.plain.Load(k); ok {
		return acc.(Accessor)
	}
	acc, _ := l.plain.LoadOrStore(k, plainAccessor(t, key))
	return acc.(Accessor)
}

// Observer returns the observer for target.key when the property can
// notify, and false otherwise.
func (l *Locator) Observer(target any, key string) (Observer, bool) {
	obs, ok := l.Resolve(target, key).(Observer)
	return obs, ok
}

// CollectionObserver returns the collection observer for v, if v is an
// observable collection.
func (l *Locator) CollectionObserver(v any) (CollectionObserver, bool) {
	co, ok := v.(CollectionObserver)
	return co, ok
}

// GetValue is shorthand for Resolve(target, key).GetValue(target, key).
func (l *Locator) GetValue(target any, key string) any {
	return l.Resolve(target, key).GetValue(target, key)
}

// SetValue is shorthand for Resolve(target, key).SetValue(value, target, key).
func (l *Locator) SetValue(target any, key string, value any) error {
	return l.Resolve(target, key).SetValue(value, target, key)
}

func plainAccessor(t reflect.Type, key string) Accessor {
	switch t.Kind() {
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return mapAccessor{}
		}
	case reflect.Slice, reflect.Array:
		return sequenceAccessor{}
	case reflect.Pointer:
		if index, ok := findField(t.Elem(), key); ok {
			return fieldAccessor{index: index}
		}
	case reflect.Struct:
		if index, ok := findField(t, key); ok {
			return fieldAccessor{index: index}
		}
	}
	return missingAccessor{}
}
