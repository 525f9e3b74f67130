package binding

import (
	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/scope"
)

// Mode controls the direction of data flow of a binding.
type Mode uint8

const (
	// OneTime evaluates once at bind time and never observes.
	OneTime Mode = 1 << iota
	// ToView observes the source and writes changes to the target.
	ToView
	// FromView observes the target and assigns changes to the source.
	FromView

	TwoWay = ToView | FromView
)

func (m Mode) String() string {
	switch m {
	case OneTime:
		return "one-time"
	case ToView:
		return "to-view"
	case FromView:
		return "from-view"
	case TwoWay:
		return "two-way"
	default:
		return "unknown"
	}
}

// observesSource reports whether evaluation should connect to the source.
func (m Mode) observesSource() bool {
	return m&ToView != 0
}

// modeOverrider is implemented by bindings whose mode a behavior can
// change for the duration of one bind.
type modeOverrider interface {
	overrideMode(m Mode)
	restoreMode()
}

// modeState holds a binding's configured mode and any override applied by
// a behavior while bound.
type modeState struct {
	configured Mode
	effective  Mode
}

func newModeState(m Mode) modeState {
	return modeState{configured: m, effective: m}
}

func (s *modeState) overrideMode(m Mode) { s.effective = m }
func (s *modeState) restoreMode()        { s.effective = s.configured }

// ModeBehavior returns a behavior factory that forces bindings using the
// wrapped expression into mode m while they are bound.
func ModeBehavior(m Mode) func(expr.Expression) *expr.Behavior {
	return func(e expr.Expression) *expr.Behavior {
		return &expr.Behavior{
			Expression: e,
			OnBind: func(s, host *scope.Scope, target any) error {
				if o, ok := target.(modeOverrider); ok {
					o.overrideMode(m)
				}
				return nil
			},
			OnUnbind: func(s, host *scope.Scope, target any) {
				if o, ok := target.(modeOverrider); ok {
					o.restoreMode()
				}
			},
		}
	}
}

// Behaviors returns the built-in mode behaviors keyed by the names used in
// templates: `${name & oneTime}`.
func Behaviors() map[string]func(expr.Expression) *expr.Behavior {
	return map[string]func(expr.Expression) *expr.Behavior{
		"oneTime":  ModeBehavior(OneTime),
		"toView":   ModeBehavior(ToView),
		"fromView": ModeBehavior(FromView),
		"twoWay":   ModeBehavior(TwoWay),
	}
}

// bindHooks runs the expression's bind hook, if it declares one.
func bindHooks(e expr.Expression, s, host *scope.Scope, target any) error {
	if b, ok := e.(expr.Binder); ok && b.HasBind() {
		return b.Bind(s, host, target)
	}
	return nil
}

// unbindHooks runs the expression's unbind hook, if it declares one.
func unbindHooks(e expr.Expression, s, host *scope.Scope, target any) {
	if u, ok := e.(expr.Unbinder); ok && u.HasUnbind() {
		u.Unbind(s, host, target)
	}
}
