// Package expr defines the expression contract bindings evaluate, and a
// small built-in expression language for ${...} templates: scope and member
// access, keyed access, literals, negation, conditionals and behaviors.
//
// Expressions are immutable and may be shared by any number of bindings.
package expr

import (
	"errors"
	"math"
	"reflect"

	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

var (
	// ErrNotAssignable is returned by Assign on expressions that cannot be
	// written to, such as literals.
	ErrNotAssignable = errors.New("weft: expression is not assignable")

	// ErrUnknownProperty is returned when an identifier refers to a scope
	// that does not exist, for example $parent on a root scope.
	ErrUnknownProperty = errors.New("weft: unknown property")

	// ErrSyntax is returned by the parser for malformed source.
	ErrSyntax = errors.New("weft: expression syntax error")
)

// Kind tags an expression node.
type Kind uint8

const (
	KindAccessScope Kind = iota + 1
	KindAccessThis
	KindAccessMember
	KindAccessKeyed
	KindLiteral
	KindUnary
	KindConditional
	KindBehavior
)

// Connectable receives the observable reads made during a tracked
// evaluation.
type Connectable interface {
	// Observe records a read of obj.key.
	Observe(obj any, key string)

	// ObserveCollection records a read that depends on the structure of
	// collection v.
	ObserveCollection(v any)
}

// Expression is an evaluatable AST node.
type Expression interface {
	Kind() Kind

	// Evaluate computes the value of the expression against s. When
	// tracking is true and c is non-nil, every observable read is reported
	// to c. host is the scope of the component hosting the binding and may
	// be nil.
	Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, error)

	// Assign writes value to the location the expression reads from.
	Assign(s, host *scope.Scope, loc *observe.Locator, value any) error
}

// Binder is implemented by expressions with bind-time hooks. Bindings call
// Bind only when HasBind reports true.
type Binder interface {
	HasBind() bool
	Bind(s, host *scope.Scope, target any) error
}

// Unbinder is implemented by expressions with unbind-time hooks. Bindings
// call Unbind only when HasUnbind reports true.
type Unbinder interface {
	HasUnbind() bool
	Unbind(s, host *scope.Scope, target any)
}

// IsPropertyAccess reports whether e reads a single named property straight
// off a scope, the case bindings can track without re-walking dependencies.
func IsPropertyAccess(e Expression) bool {
	return e != nil && e.Kind() == KindAccessScope
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}
