package binding

import (
	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

// contentOwner re-derives its output when one of its segments changes.
type contentOwner interface {
	contentChanged() error
}

// ContentBinding is one ${...} segment. It caches the segment's value and
// tells its owner when the value changes. Values are compared with
// observe.LooseEqual, so a change from 1 to "1" is not a change.
type ContentBinding struct {
	Connectable
	modeState

	Expression expr.Expression

	env   *Env
	owner contentOwner
	scope *scope.Scope
	host  *scope.Scope
	bound bool
	value any
}

func newContentBinding(env *Env, e expr.Expression, mode Mode, owner contentOwner) *ContentBinding {
	b := &ContentBinding{
		modeState:  newModeState(mode),
		Expression: e,
		env:        env,
		owner:      owner,
	}
	b.connect(env.locator(), b, b)
	return b
}

// Value returns the cached value of the last evaluation.
func (b *ContentBinding) Value() any {
	return b.value
}

// IsBound reports whether the segment is bound.
func (b *ContentBinding) IsBound() bool {
	return b.bound
}

// Bind runs the expression's bind hooks, evaluates it and caches the value.
// The owner is not notified.
func (b *ContentBinding) Bind(s, host *scope.Scope) error {
	if b.bound {
		if b.scope == s {
			return nil
		}
		b.Unbind()
	}
	b.scope, b.host = s, host
	if err := bindHooks(b.Expression, s, host, b); err != nil {
		b.restoreMode()
		return err
	}

	v, err := b.evaluate()
	if err != nil {
		unbindHooks(b.Expression, s, host, b)
		b.restoreMode()
		b.scope, b.host = nil, nil
		return err
	}
	b.value = v
	b.bound = true
	return nil
}

// Unbind drops all subscriptions.
func (b *ContentBinding) Unbind() {
	if !b.bound {
		return
	}
	b.bound = false
	unbindHooks(b.Expression, b.scope, b.host, b)
	b.restoreMode()
	b.unobserveAll()
	b.scope, b.host = nil, nil
	b.value = nil
}

// evaluate evaluates the expression, connecting to what it reads when the
// mode observes the source.
func (b *ContentBinding) evaluate() (any, error) {
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

// HandleChange implements observe.Subscriber. A bare property access whose
// record holds a single subscription takes the notified value as is;
// anything else is re-evaluated under tracking.
func (b *ContentBinding) HandleChange(newValue, oldValue any) error {
	if !b.bound {
		return nil
	}
	v := newValue
	if !expr.IsPropertyAccess(b.Expression) || b.record.Count() != 1 {
		var err error
		if v, err = b.evaluate(); err != nil {
			return err
		}
	} else if b.effective.observesSource() {
		b.ObserveCollection(v)
	}
	if observe.LooseEqual(v, b.value) {
		return nil
	}
	b.value = v
	return b.owner.contentChanged()
}

// HandleCollectionChange implements observe.CollectionSubscriber. The
// segment renders collections as text, so it re-evaluates and has the
// owner re-derive its output without looking at the index map.
func (b *ContentBinding) HandleCollectionChange(observe.IndexMap) error {
	if !b.bound {
		return nil
	}
	v, err := b.evaluate()
	if err != nil {
		return err
	}
	b.value = v
	return b.owner.contentChanged()
}
