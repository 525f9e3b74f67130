package observe

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrReadOnly is returned when writing to a property that cannot be set.
var ErrReadOnly = errors.New("weft: property is read-only")

// ErrNoProperty is returned when writing to a property that does not exist
// and cannot be created on the target.
var ErrNoProperty = errors.New("weft: no such property")

// AccessorKind describes properties of an accessor that writers care about.
type AccessorKind uint8

const (
	// AccessorObservable marks accessors that notify subscribers.
	AccessorObservable AccessorKind = 1 << iota

	// AccessorLayout marks accessors whose writes affect layout (text
	// content, node attributes). Writes to such targets are deferred
	// through the task queue after the initial bind.
	AccessorLayout

	// AccessorNode marks accessors whose target is a render node.
	AccessorNode
)

// Has reports whether all bits of flag are set.
func (k AccessorKind) Has(flag AccessorKind) bool {
	return k&flag == flag
}

// Accessor gets and sets one named property of a target.
// Accessors bound to a specific target ignore the obj argument.
type Accessor interface {
	Kind() AccessorKind
	GetValue(obj any, key string) any
	SetValue(value any, obj any, key string) error
}

// Subscriber is notified when an observed property changes.
type Subscriber interface {
	HandleChange(newValue, oldValue any) error
}

// CollectionSubscriber is notified when an observed collection mutates.
type CollectionSubscriber interface {
	HandleCollectionChange(indexMap IndexMap) error
}

// Observer is an Accessor that can notify subscribers.
type Observer interface {
	Accessor
	Subscribe(s Subscriber)
	Unsubscribe(s Subscriber)
}

// CollectionObserver notifies subscribers about structural mutations.
type CollectionObserver interface {
	SubscribeCollection(s CollectionSubscriber)
	UnsubscribeCollection(s CollectionSubscriber)
}

// Observable is implemented by targets that own their accessors, such as
// Object, Slice and render nodes. The returned accessor must be stable for
// a given key so the Locator never has to cache it.
type Observable interface {
	AccessorFor(key string) Accessor
}

// PropertyHolder is implemented by targets that can report property
// existence without reflection.
type PropertyHolder interface {
	HasProperty(key string) bool
}

// nilAccessor is used for nil targets: reads yield nil, writes fail.
type nilAccessor struct{}

func (nilAccessor) Kind() AccessorKind             { return 0 }
func (nilAccessor) GetValue(obj any, key string) any { return nil }
func (nilAccessor) SetValue(value any, obj any, key string) error {
	return fmt.Errorf("set %q on nil: %w", key, ErrNoProperty)
}

// mapAccessor reads and writes string-keyed Go maps.
type mapAccessor struct{}

func (mapAccessor) Kind() AccessorKind { return 0 }

func (mapAccessor) GetValue(obj any, key string) any {
	m := reflect.ValueOf(obj)
	if m.Kind() != reflect.Map || m.IsNil() {
		return nil
	}
	v := m.MapIndex(reflect.ValueOf(key).Convert(m.Type().Key()))
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

func (mapAccessor) SetValue(value any, obj any, key string) error {
	m := reflect.ValueOf(obj)
	if m.Kind() != reflect.Map || m.IsNil() {
		return fmt.Errorf("set %q: %w", key, ErrReadOnly)
	}
	v, err := convertValue(value, m.Type().Elem())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	m.SetMapIndex(reflect.ValueOf(key).Convert(m.Type().Key()), v)
	return nil
}

// fieldAccessor reads and writes one struct field, through a pointer when
// the field must be set.
type fieldAccessor struct {
	index []int
}

func (a fieldAccessor) Kind() AccessorKind { return 0 }

func (a fieldAccessor) GetValue(obj any, key string) any {
	v := reflect.Indirect(reflect.ValueOf(obj))
	if v.Kind() != reflect.Struct {
		return nil
	}
	f, err := v.FieldByIndexErr(a.index)
	if err != nil {
		return nil
	}
	return f.Interface()
}

func (a fieldAccessor) SetValue(value any, obj any, key string) error {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("set %q on %T: %w", key, obj, ErrReadOnly)
	}
	f, err := rv.Elem().FieldByIndexErr(a.index)
	if err != nil || !f.CanSet() {
		return fmt.Errorf("set %q on %T: %w", key, obj, ErrReadOnly)
	}
	v, err := convertValue(value, f.Type())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	f.Set(v)
	return nil
}

// missingAccessor is returned for properties a plain target does not have.
type missingAccessor struct{}

func (missingAccessor) Kind() AccessorKind             { return 0 }
func (missingAccessor) GetValue(obj any, key string) any { return nil }
func (missingAccessor) SetValue(value any, obj any, key string) error {
	return fmt.Errorf("set %q on %T: %w", key, obj, ErrNoProperty)
}

// sequenceAccessor reads "length" and numeric indexes of Go slices and arrays.
type sequenceAccessor struct{}

func (sequenceAccessor) Kind() AccessorKind { return 0 }

func (sequenceAccessor) GetValue(obj any, key string) any {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil
	}
	if key == "length" {
		return v.Len()
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= v.Len() {
		return nil
	}
	return v.Index(i).Interface()
}

func (sequenceAccessor) SetValue(value any, obj any, key string) error {
	v := reflect.ValueOf(obj)
	i, err := strconv.Atoi(key)
	if v.Kind() != reflect.Slice || err != nil || i < 0 || i >= v.Len() {
		return fmt.Errorf("set %q on %T: %w", key, obj, ErrReadOnly)
	}
	ev, err := convertValue(value, v.Type().Elem())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	v.Index(i).Set(ev)
	return nil
}

// convertValue converts value to a reflect.Value assignable to t.
func convertValue(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) && v.Kind() != reflect.String && t.Kind() != reflect.String {
		return v.Convert(t), nil
	}
	if t.Kind() == reflect.String {
		return reflect.ValueOf(Stringify(value)).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", value, t)
}

// findField locates a struct field by template name: exact match first,
// then the exported spelling, then a json tag.
func findField(t reflect.Type, key string) ([]int, bool) {
	if t.Kind() != reflect.Struct || key == "" {
		return nil, false
	}
	if f, ok := t.FieldByName(key); ok && f.IsExported() {
		return f.Index, true
	}
	r, size := utf8.DecodeRuneInString(key)
	exported := string(unicode.ToUpper(r)) + key[size:]
	if f, ok := t.FieldByName(exported); ok && f.IsExported() {
		return f.Index, true
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == key {
			return f.Index, true
		}
	}
	return nil, false
}

// HasProperty reports whether obj has a property named key. It is used by
// scope lookup to decide which context in a chain owns an identifier.
func HasProperty(obj any, key string) bool {
	if obj == nil {
		return false
	}
	if h, ok := obj.(PropertyHolder); ok {
		return h.HasProperty(key)
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			return false
		}
		return v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key())).IsValid()
	case reflect.Pointer:
		if v.IsNil() {
			return false
		}
		_, ok := findField(v.Elem().Type(), key)
		return ok
	case reflect.Struct:
		_, ok := findField(v.Type(), key)
		return ok
	}
	return false
}
