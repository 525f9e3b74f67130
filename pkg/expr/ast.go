package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

// AccessScope reads a named identifier from the scope chain: `name`,
// `$parent.name` (Ancestor 1) or `$host.name`.
type AccessScope struct {
	Name     string
	Ancestor int
	Host     bool
}

func (a *AccessScope) Kind() Kind { return KindAccessScope }

func (a *AccessScope) context(s, host *scope.Scope) (any, error) {
	src := s
	if a.Host {
		src = host
	}
	if src == nil || src.Ancestor(a.Ancestor) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, a)
	}
	return src.Lookup(a.Name, a.Ancestor), nil
}

func (a *AccessScope) Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, error) {
	obj, err := a.context(s, host)
	if err != nil {
		return nil, err
	}
	if tracking && c != nil && obj != nil {
		c.Observe(obj, a.Name)
	}
	return loc.GetValue(obj, a.Name), nil
}

func (a *AccessScope) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	obj, err := a.context(s, host)
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("%w: %s has no binding context", ErrNotAssignable, a)
	}
	return loc.SetValue(obj, a.Name, value)
}

func (a *AccessScope) String() string {
	var b strings.Builder
	if a.Host {
		b.WriteString("$host.")
	}
	for i := 0; i < a.Ancestor; i++ {
		b.WriteString("$parent.")
	}
	b.WriteString(a.Name)
	return b.String()
}

// AccessThis evaluates to the binding context itself: `$this`, or
// `$parent` when Ancestor is 1.
type AccessThis struct {
	Ancestor int
}

func (a *AccessThis) Kind() Kind { return KindAccessThis }

func (a *AccessThis) Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, error) {
	target := s.Ancestor(a.Ancestor)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, a)
	}
	return target.BindingContext, nil
}

func (a *AccessThis) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	return fmt.Errorf("%w: %s", ErrNotAssignable, a)
}

func (a *AccessThis) String() string {
	if a.Ancestor == 0 {
		return "$this"
	}
	return strings.TrimSuffix(strings.Repeat("$parent.", a.Ancestor), ".")
}

// AccessMember reads a named property of another expression's value:
// `object.name`. Reading a member of nil yields nil.
type AccessMember struct {
	Object Expression
	Name   string
}

func (a *AccessMember) Kind() Kind { return KindAccessMember }

func (a *AccessMember) Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, error) {
	obj, err := a.Object.Evaluate(tracking, s, host, loc, c)
	if err != nil || obj == nil {
		return nil, err
	}
	if tracking && c != nil {
		c.Observe(obj, a.Name)
	}
	return loc.GetValue(obj, a.Name), nil
}

func (a *AccessMember) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	obj, err := a.Object.Evaluate(false, s, host, loc, nil)
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("%w: %s is nil", ErrNotAssignable, a.Object)
	}
	return loc.SetValue(obj, a.Name, value)
}

func (a *AccessMember) String() string {
	return fmt.Sprintf("%s.%s", a.Object, a.Name)
}

// AccessKeyed reads an indexed element: `object[key]`. Keyed reads of an
// observable collection depend on its structure, so they observe the
// collection rather than a single property.
type AccessKeyed struct {
	Object Expression
	Key    Expression
}

func (a *AccessKeyed) Kind() Kind { return KindAccessKeyed }

func (a *AccessKeyed) operands(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, string, error) {
	obj, err := a.Object.Evaluate(tracking, s, host, loc, c)
	if err != nil {
		return nil, "", err
	}
	key, err := a.Key.Evaluate(tracking, s, host, loc, c)
	if err != nil {
		return nil, "", err
	}
	return obj, observe.Stringify(key), nil
}

func (a *AccessKeyed) Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, error) {
	obj, key, err := a.operands(tracking, s, host, loc, c)
	if err != nil || obj == nil {
		return nil, err
	}
	if tracking && c != nil {
		if _, ok := loc.CollectionObserver(obj); ok {
			c.ObserveCollection(obj)
		} else {
			c.Observe(obj, key)
		}
	}
	return loc.GetValue(obj, key), nil
}

func (a *AccessKeyed) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	obj, key, err := a.operands(false, s, host, loc, nil)
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("%w: %s is nil", ErrNotAssignable, a.Object)
	}
	return loc.SetValue(obj, key, value)
}

func (a *AccessKeyed) String() string {
	return fmt.Sprintf("%s[%s]", a.Object, a.Key)
}

// Literal is a constant value.
type Literal struct {
	Value any
}

func (l *Literal) Kind() Kind { return KindLiteral }

func (l *Literal) Evaluate(bool, *scope.Scope, *scope.Scope, *observe.Locator, Connectable) (any, error) {
	return l.Value, nil
}

func (l *Literal) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	return fmt.Errorf("%w: literal %s", ErrNotAssignable, l)
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	}
	return observe.Stringify(l.Value)
}

// Not negates the truthiness of its operand: `!operand`.
type Not struct {
	Operand Expression
}

func (n *Not) Kind() Kind { return KindUnary }

func (n *Not) Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, error) {
	v, err := n.Operand.Evaluate(tracking, s, host, loc, c)
	if err != nil {
		return nil, err
	}
	return !Truthy(v), nil
}

func (n *Not) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	return fmt.Errorf("%w: %s", ErrNotAssignable, n)
}

func (n *Not) String() string { return "!" + fmt.Sprint(n.Operand) }

// Conditional evaluates Yes or No depending on Test: `test ? yes : no`.
// Only the branch taken is evaluated, so a tracked evaluation observes the
// dependencies of that branch alone.
type Conditional struct {
	Test Expression
	Yes  Expression
	No   Expression
}

func (c *Conditional) Kind() Kind { return KindConditional }

func (c *Conditional) Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, conn Connectable) (any, error) {
	t, err := c.Test.Evaluate(tracking, s, host, loc, conn)
	if err != nil {
		return nil, err
	}
	if Truthy(t) {
		return c.Yes.Evaluate(tracking, s, host, loc, conn)
	}
	return c.No.Evaluate(tracking, s, host, loc, conn)
}

func (c *Conditional) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	return fmt.Errorf("%w: %s", ErrNotAssignable, c)
}

func (c *Conditional) String() string {
	return fmt.Sprintf("%s ? %s : %s", c.Test, c.Yes, c.No)
}

// Behavior wraps an expression with hooks that run when a binding using
// it binds and unbinds: `expression & name`. The hooks receive the binding
// as target and may reconfigure it.
type Behavior struct {
	Expression Expression
	Name       string
	OnBind     func(s, host *scope.Scope, target any) error
	OnUnbind   func(s, host *scope.Scope, target any)
}

func (b *Behavior) Kind() Kind { return KindBehavior }

func (b *Behavior) Evaluate(tracking bool, s, host *scope.Scope, loc *observe.Locator, c Connectable) (any, error) {
	return b.Expression.Evaluate(tracking, s, host, loc, c)
}

func (b *Behavior) Assign(s, host *scope.Scope, loc *observe.Locator, value any) error {
	return b.Expression.Assign(s, host, loc, value)
}

// HasBind implements Binder.
func (b *Behavior) HasBind() bool {
	if b.OnBind != nil {
		return true
	}
	inner, ok := b.Expression.(Binder)
	return ok && inner.HasBind()
}

// Bind runs the wrapped expression's bind hook, then this behavior's.
func (b *Behavior) Bind(s, host *scope.Scope, target any) error {
	if inner, ok := b.Expression.(Binder); ok && inner.HasBind() {
		if err := inner.Bind(s, host, target); err != nil {
			return err
		}
	}
	if b.OnBind != nil {
		return b.OnBind(s, host, target)
	}
	return nil
}

// HasUnbind implements Unbinder.
func (b *Behavior) HasUnbind() bool {
	if b.OnUnbind != nil {
		return true
	}
	inner, ok := b.Expression.(Unbinder)
	return ok && inner.HasUnbind()
}

// Unbind runs this behavior's unbind hook, then the wrapped expression's.
func (b *Behavior) Unbind(s, host *scope.Scope, target any) {
	if b.OnUnbind != nil {
		b.OnUnbind(s, host, target)
	}
	if inner, ok := b.Expression.(Unbinder); ok && inner.HasUnbind() {
		inner.Unbind(s, host, target)
	}
}

func (b *Behavior) String() string {
	return fmt.Sprintf("%s & %s", b.Expression, b.Name)
}
