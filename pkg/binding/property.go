package binding

import (
	"fmt"

	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

// PropertyBinding binds an expression to one property of a target.
//
// In to-view modes the expression is observed and its value written to the
// target; values are compared with observe.SameValue. In from-view modes
// the target property is observed and changes are assigned back through
// the expression.
type PropertyBinding struct {
	Connectable
	modeState

	Expression     expr.Expression
	Target         any
	TargetProperty string

	env      *Env
	accessor observe.Accessor
	w        writer
	scope    *scope.Scope
	host     *scope.Scope
	bound    bool
	value    any

	targetObserver observe.Observer
	fromTarget     *targetSubscriber
}

// NewProperty creates a binding from e to target.property.
func NewProperty(env *Env, e expr.Expression, target any, property string, mode Mode) *PropertyBinding {
	if mode == 0 {
		mode = ToView
	}
	b := &PropertyBinding{
		modeState:      newModeState(mode),
		Expression:     e,
		Target:         target,
		TargetProperty: property,
		env:            env,
		accessor:       env.locator().Resolve(target, property),
	}
	b.fromTarget = &targetSubscriber{b: b}
	b.w = writer{env: env, name: fmt.Sprintf("property %s -> %s", e, property)}
	b.connect(env.locator(), b, b)
	return b
}

// IsBound implements Binding.
func (b *PropertyBinding) IsBound() bool {
	return b.bound
}

// Bind implements Binding.
func (b *PropertyBinding) Bind(s, host *scope.Scope) error {
	if b.bound {
		if b.scope == s {
			return nil
		}
		b.Unbind()
	}
	b.scope, b.host = s, host
	if err := bindHooks(b.Expression, s, host, b); err != nil {
		b.restoreMode()
		b.scope, b.host = nil, nil
		return err
	}
	b.bound = true

	if b.effective&(OneTime|ToView) != 0 {
		v, err := b.evaluate()
		if err != nil {
			b.Unbind()
			return err
		}
		b.value = v
		if err := b.writeTarget(false); err != nil {
			b.Unbind()
			return err
		}
	}
	if b.effective&FromView != 0 {
		if obs, ok := b.accessor.(observe.Observer); ok {
			b.targetObserver = obs
			obs.Subscribe(b.fromTarget)
		}
		if b.effective&ToView == 0 {
			if err := b.updateSource(b.accessor.GetValue(b.Target, b.TargetProperty)); err != nil {
				b.Unbind()
				return err
			}
		}
	}
	return nil
}

// Unbind implements Binding.
func (b *PropertyBinding) Unbind() {
	if !b.bound {
		return
	}
	b.bound = false
	unbindHooks(b.Expression, b.scope, b.host, b)
	b.restoreMode()
	b.unobserveAll()
	if b.targetObserver != nil {
		b.targetObserver.Unsubscribe(b.fromTarget)
		b.targetObserver = nil
	}
	b.w.cancel()
	b.scope, b.host = nil, nil
	b.value = nil
}

// Pending reports whether a deferred write is waiting for the task queue.
func (b *PropertyBinding) Pending() bool {
	return b.w.pending()
}

func (b *PropertyBinding) evaluate() (any, error) {
	loc := b.env.locator()
	if !b.effective.observesSource() {
		return b.Expression.Evaluate(false, b.scope, b.host, loc, nil)
	}
	var v any
	err := b.track(func() error {
		var err error
		v, err = b.Expression.Evaluate(true, b.scope, b.host, loc, b)
		if err == nil {
			b.ObserveCollection(v)
		}
		return err
	})
	return v, err
}

// HandleChange implements observe.Subscriber for source changes.
func (b *PropertyBinding) HandleChange(newValue, oldValue any) error {
	if !b.bound || !b.effective.observesSource() {
		return nil
	}
	v := newValue
	if !expr.IsPropertyAccess(b.Expression) || b.record.Count() != 1 {
		var err error
		if v, err = b.evaluate(); err != nil {
			return err
		}
	} else {
		b.ObserveCollection(v)
	}
	if observe.SameValue(v, b.value) {
		return nil
	}
	b.value = v
	return b.writeTarget(true)
}

// HandleCollectionChange implements observe.CollectionSubscriber. The
// target is rewritten because its rendering of the collection changed.
func (b *PropertyBinding) HandleCollectionChange(observe.IndexMap) error {
	if !b.bound {
		return nil
	}
	v, err := b.evaluate()
	if err != nil {
		return err
	}
	b.value = v
	return b.writeTarget(true)
}

func (b *PropertyBinding) writeTarget(later bool) error {
	v := b.value
	deferred := later && b.accessor.Kind().Has(observe.AccessorLayout)
	return b.w.write(deferred, func() error {
		return b.accessor.SetValue(v, b.Target, b.TargetProperty)
	})
}

// updateSource assigns a target value back through the expression.
func (b *PropertyBinding) updateSource(v any) error {
	if !b.bound {
		return nil
	}
	b.value = v
	return b.Expression.Assign(b.scope, b.host, b.env.locator(), v)
}

// targetSubscriber receives target changes for from-view bindings. It is a
// separate subscriber so target and source notifications never mix.
type targetSubscriber struct {
	b *PropertyBinding
}

func (t *targetSubscriber) HandleChange(newValue, oldValue any) error {
	return t.b.updateSource(newValue)
}
