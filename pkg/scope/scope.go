// Package scope implements the chain of binding contexts that expressions
// resolve identifiers against.
package scope

import (
	"github.com/vango-dev/weft/pkg/observe"
)

// Scope is one link of a binding context chain. A binding context is any
// value holding named properties (usually an *observe.Object); the override
// context holds values that shadow it, such as loop locals.
//
// Scopes are shared by reference. Bindings never own the Scope they are
// bound to, and Parent is only followed for lookup.
type Scope struct {
	Parent          *Scope
	BindingContext  any
	OverrideContext *observe.Object

	// IsBoundary stops ancestor lookup from walking past this scope. Custom
	// element scopes are boundaries so a component never reads its
	// parent's state by accident.
	IsBoundary bool
}

// New creates a root scope for ctx with an empty override context.
func New(ctx any) *Scope {
	return &Scope{
		BindingContext:  ctx,
		OverrideContext: observe.NewObject(nil),
	}
}

// NewBoundary creates a root scope that lookups never walk past.
func NewBoundary(ctx any) *Scope {
	s := New(ctx)
	s.IsBoundary = true
	return s
}

// Child creates a scope for ctx whose lookups fall back to s.
func (s *Scope) Child(ctx any) *Scope {
	return &Scope{
		Parent:          s,
		BindingContext:  ctx,
		OverrideContext: observe.NewObject(nil),
	}
}

// WithOverrides creates a child scope sharing s's binding context and
// holding values in its override context.
func (s *Scope) WithOverrides(values map[string]any) *Scope {
	return &Scope{
		Parent:          s,
		BindingContext:  s.BindingContext,
		OverrideContext: observe.NewObject(values),
	}
}

// Ancestor returns the scope n levels up, or nil if the chain is shorter.
func (s *Scope) Ancestor(n int) *Scope {
	cur := s
	for ; n > 0 && cur != nil; n-- {
		cur = cur.Parent
	}
	return cur
}

// Lookup returns the context object that holds name: the nearest override
// context or binding context that has the property, starting at the scope
// `ancestor` levels up. When no scope in reach has the property, the
// binding context of the starting scope is returned so that assignments
// create the property there.
//
// A nil result means the starting scope does not exist.
func (s *Scope) Lookup(name string, ancestor int) any {
	start := s.Ancestor(ancestor)
	if start == nil {
		return nil
	}
	if ancestor > 0 {
		if start.OverrideContext != nil && start.OverrideContext.HasProperty(name) {
			return start.OverrideContext
		}
		return start.BindingContext
	}

	for cur := start; cur != nil; cur = cur.Parent {
		if cur.OverrideContext != nil && cur.OverrideContext.HasProperty(name) {
			return cur.OverrideContext
		}
		if cur.BindingContext != nil && observe.HasProperty(cur.BindingContext, name) {
			return cur.BindingContext
		}
		if cur.IsBoundary {
			break
		}
	}
	return start.BindingContext
}
