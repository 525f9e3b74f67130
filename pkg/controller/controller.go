package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/weft/pkg/binding"
	"github.com/vango-dev/weft/pkg/dom"
	"github.com/vango-dev/weft/pkg/scope"
	"github.com/vango-dev/weft/pkg/telemetry"
)

var (
	// ErrActivationCanceled is returned by Activate when a deactivation
	// interrupted it. The controller ends up deactivated.
	ErrActivationCanceled = errors.New("weft: activation canceled")

	// ErrActive is returned when changing the bindings or children of a
	// controller that is not inactive.
	ErrActive = errors.New("weft: controller is active")
)

// Kind distinguishes custom element controllers from synthetic views.
type Kind uint8

const (
	// CustomElement controllers own a view model and build their scope
	// from it.
	CustomElement Kind = iota
	// Synthetic controllers back template-generated views and are bound
	// to the scope handed to Activate.
	Synthetic
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if k == Synthetic {
		return "synthetic"
	}
	return "custom-element"
}

// Config describes a controller.
type Config struct {
	// Name identifies the controller in logs and spans.
	Name string

	// ViewModel is the binding context of a custom element. Lifecycle
	// hooks are looked up on it.
	ViewModel any

	// Hooks holds lifecycle hooks for synthetic views, or overrides the
	// view model as hook receiver.
	Hooks any

	Bindings []binding.Binding

	// Nodes is the element or fragment mounted while the controller is
	// active. A fragment's children are mounted in order.
	Nodes *dom.Node

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics

	// Post hands a continuation to the goroutine that owns the bindings,
	// usually by queueing it on the task queue that goroutine flushes.
	// When Post is nil, a pending hook blocks the lifecycle call that
	// reached it until the hook settles.
	Post func(fn func()) error

	// OnTransition, when set, is called after every state change. It must
	// not call back into the controller's lifecycle methods.
	OnTransition func(c *Controller, from, to State)
}

// Controller drives one component through its lifecycle: it binds its
// bindings, mounts its nodes and activates its children, and undoes all of
// it on deactivation.
//
// Activate and Deactivate return a *Future. A pending hook suspends the
// lifecycle call: with Config.Post set the call returns at once and the
// remaining steps run as a task posted once the hook settles, so the
// owning goroutine keeps serving other work meanwhile. A Deactivate made
// while an activation is suspended cancels it; the activation observes the
// cancellation when it resumes and unwinds to StateDeactivated without
// ever reaching StateActivated.
type Controller struct {
	ID        string
	Name      string
	Kind      Kind
	ViewModel any

	hooks     any
	bindings  []binding.Binding
	roots     []*dom.Node
	anchor    *dom.Node
	container *dom.Node
	parent    *Controller
	children  []*Controller
	factory   *ViewFactory

	ownScope *scope.Scope
	scope    *scope.Scope
	host     *scope.Scope

	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      *telemetry.Metrics
	onTransition func(c *Controller, from, to State)
	post         func(fn func()) error

	mu           sync.Mutex
	state        State
	released     bool
	current      *activation // the activation in flight, if any
	deactivation *Future     // settles when the latest deactivation ends
}

// NewCustomElement creates a controller for a custom element. Its scope is
// a boundary scope over cfg.ViewModel.
func NewCustomElement(cfg Config) *Controller {
	c := newController(CustomElement, cfg)
	c.ownScope = scope.NewBoundary(cfg.ViewModel)
	return c
}

// NewSynthetic creates a controller for a template-generated view.
func NewSynthetic(cfg Config) *Controller {
	return newController(Synthetic, cfg)
}

func newController(kind Kind, cfg Config) *Controller {
	c := &Controller{
		ID:           xid.New().String(),
		Name:         cfg.Name,
		Kind:         kind,
		ViewModel:    cfg.ViewModel,
		hooks:        cfg.Hooks,
		bindings:     append([]binding.Binding(nil), cfg.Bindings...),
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
		metrics:      cfg.Metrics,
		onTransition: cfg.OnTransition,
		post:         cfg.Post,
	}
	if c.hooks == nil {
		c.hooks = cfg.ViewModel
	}
	if c.Name == "" {
		c.Name = kind.String()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if n := cfg.Nodes; n != nil {
		if n.Kind == dom.KindFragment {
			c.roots = n.Children()
		} else {
			c.roots = []*dom.Node{n}
		}
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Scope returns the scope the controller's bindings are bound to, or nil
// before the first activation.
func (c *Controller) Scope() *scope.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Parent returns the controller this one was added to, if any.
func (c *Controller) Parent() *Controller {
	return c.parent
}

// Children returns the child controllers in activation order.
func (c *Controller) Children() []*Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Controller(nil), c.children...)
}

// Bindings returns the controller's bindings.
func (c *Controller) Bindings() []binding.Binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]binding.Binding(nil), c.bindings...)
}

// AddChild appends child to the children activated after this
// controller's own bindings. It fails with ErrActive unless the controller
// is inactive.
func (c *Controller) AddChild(child *Controller) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.active() {
		return ErrActive
	}
	child.parent = c
	c.children = append(c.children, child)
	return nil
}

// RemoveChild removes child. It fails with ErrActive unless the controller
// is inactive.
func (c *Controller) RemoveChild(child *Controller) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.active() {
		return ErrActive
	}
	for i, existing := range c.children {
		if existing == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			child.parent = nil
			break
		}
	}
	return nil
}

// AddBinding appends b to the controller's bindings. It fails with
// ErrActive unless the controller is inactive.
func (c *Controller) AddBinding(b binding.Binding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.active() {
		return ErrActive
	}
	c.bindings = append(c.bindings, b)
	return nil
}

// MountBefore makes the controller mount its nodes ahead of anchor.
func (c *Controller) MountBefore(anchor *dom.Node) {
	c.anchor, c.container = anchor, nil
}

// MountInto makes the controller append its nodes to container.
func (c *Controller) MountInto(container *dom.Node) {
	c.anchor, c.container = nil, container
}

// IsReleased reports whether the view was released.
func (c *Controller) IsReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Release marks the view as no longer in use. Once it is deactivated, a
// view created by a ViewFactory goes back to the factory's cache, or is
// disposed if the cache is full. A view that is never released is neither
// cached nor disposed.
func (c *Controller) Release() {
	c.mu.Lock()
	c.released = true
	state := c.state
	c.mu.Unlock()
	if state == StateDeactivated {
		c.recycle()
	}
}

func (c *Controller) transitionLocked(to State) State {
	from := c.state
	if !CanTransition(from, to) {
		panic(assertion("W103", c, from).WithDetailf("controller %s (%s): %s -> %s", c.Name, c.ID, from, to))
	}
	c.state = to
	return from
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.transitionLocked(to)
	c.mu.Unlock()
	c.notify(from, to)
}

func (c *Controller) notify(from, to State) {
	c.logger.Debug("controller state", "controller", c.Name, "id", c.ID, "from", from, "to", to)
	if c.onTransition != nil {
		c.onTransition(c, from, to)
	}
}

func (c *Controller) spanAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("weft.controller.name", c.Name),
		attribute.String("weft.controller.id", c.ID),
		attribute.String("weft.controller.kind", c.Kind.String()),
	}
}

// Activate binds the controller to parent and activates it. Custom
// elements use their own scope, whose parent becomes parent; synthetic
// views bind to parent directly. The returned Future settles once the
// controller is activated, or deactivated again after a failure or
// cancellation.
//
// Activating a controller that is deactivating starts once the
// deactivation has finished. Activating from any state other than
// StateNone or StateDeactivated panics.
func (c *Controller) Activate(ctx context.Context, parent *scope.Scope) *Future {
	c.mu.Lock()
	if c.state == StateDeactivating || c.state == StateUnbinding {
		pending := c.deactivation
		c.mu.Unlock()
		f, settle := NewFuture()
		c.resume("deactivation", pending, func() {
			if err := ctx.Err(); err != nil {
				settle(err)
				return
			}
			next := c.Activate(ctx, parent)
			c.resume("activation", next, func() { settle(next.Err()) })
		})
		return f
	}
	switch c.state {
	case StateNone, StateDeactivated:
	case StateDisposed:
		c.mu.Unlock()
		panic(assertion("W104", c, StateDisposed))
	default:
		state := c.state
		c.mu.Unlock()
		panic(assertion("W101", c, state))
	}
	a := &activation{c: c, parent: parent, start: time.Now()}
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.future, a.settle = NewFuture()
	c.current = a
	from := c.transitionLocked(StateActivating)
	c.mu.Unlock()
	c.notify(from, StateActivating)

	a.ctx, a.span = telemetry.StartSpan(a.ctx, c.tracer, "controller.activate", c.spanAttrs()...)
	a.beforeBind()
	return a.future
}

// activation is one run of Activate. Each step calls the next one, either
// directly or as the continuation of a pending hook.
type activation struct {
	c      *Controller
	ctx    context.Context
	cancel context.CancelFunc
	parent *scope.Scope
	span   trace.Span
	start  time.Time
	future *Future
	settle func(error)
}

func (a *activation) beforeBind() {
	c := a.c
	c.resolveScopes(a.parent)
	if h, ok := c.hooks.(BeforeBindHook); ok {
		a.hook("beforeBind", h.BeforeBind(a.ctx, c), a.bind)
		return
	}
	a.bind()
}

func (a *activation) bind() {
	c := a.c
	c.transition(StateBinding)
	for _, b := range c.bindings {
		if err := b.Bind(c.scope, c.host); err != nil {
			a.fail(err)
			return
		}
	}
	if err := c.mount(); err != nil {
		a.fail(err)
		return
	}
	children := c.Children()
	if h, ok := c.hooks.(AfterAttachHook); ok {
		a.hook("afterAttach", h.AfterAttach(a.ctx, c), func() { a.activateChildren(children, 0) })
		return
	}
	a.activateChildren(children, 0)
}

// activateChildren activates children[i:] one after another.
func (a *activation) activateChildren(children []*Controller, i int) {
	c := a.c
	if i == len(children) {
		a.attached()
		return
	}
	if a.ctx.Err() != nil {
		a.fail(ErrActivationCanceled)
		return
	}
	child := children[i]
	f := child.Activate(a.ctx, c.scope)
	c.resume("child "+child.Name, f, func() {
		if err := f.Err(); err != nil {
			a.fail(err)
			return
		}
		a.activateChildren(children, i+1)
	})
}

func (a *activation) attached() {
	c := a.c
	if h, ok := c.hooks.(AfterAttachChildrenHook); ok {
		a.hook("afterAttachChildren", h.AfterAttachChildren(a.ctx, c), a.complete)
		return
	}
	a.complete()
}

func (a *activation) complete() {
	c := a.c
	c.mu.Lock()
	if a.ctx.Err() != nil {
		c.mu.Unlock()
		a.fail(ErrActivationCanceled)
		return
	}
	from := c.transitionLocked(StateActivated)
	c.mu.Unlock()
	c.notify(from, StateActivated)
	a.finish(nil)
}

// hook continues with next once f has settled successfully and the
// activation was not canceled meanwhile.
func (a *activation) hook(name string, f *Future, next func()) {
	c := a.c
	c.resume(name+" hook", f, func() {
		if err := f.Err(); err != nil {
			a.fail(fmt.Errorf("%s hook of %s: %w", name, c.Name, err))
			return
		}
		if a.ctx.Err() != nil {
			a.fail(ErrActivationCanceled)
			return
		}
		next()
	})
}

func (a *activation) fail(cause error) {
	a.c.unwind(cause, func() { a.finish(cause) })
}

func (a *activation) finish(err error) {
	c := a.c
	telemetry.EndSpan(a.span, err)
	result := telemetry.ResultOK
	switch {
	case errors.Is(err, ErrActivationCanceled):
		result = telemetry.ResultCanceled
	case err != nil:
		result = telemetry.ResultError
	}
	c.metrics.Activation(result, time.Since(a.start).Seconds())

	c.mu.Lock()
	if c.current == a {
		c.current = nil
	}
	c.mu.Unlock()
	a.cancel()
	a.settle(err)
}

func (c *Controller) resolveScopes(parent *scope.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Kind == CustomElement {
		c.ownScope.Parent = parent
		c.scope = c.ownScope
		c.host = c.ownScope
		return
	}
	if parent == nil {
		parent = scope.New(nil)
	}
	c.scope = parent
	c.host = nil
	for p := c.parent; p != nil; p = p.parent {
		if p.Kind == CustomElement {
			c.host = p.ownScope
			break
		}
	}
}

// resume runs next once f has settled. A settled f continues inline. With
// a Post function the continuation is posted to the owning goroutine, or
// run where f settled if posting fails; without one the caller blocks.
func (c *Controller) resume(what string, f *Future, next func()) {
	if f.Settled() {
		next()
		return
	}
	c.logger.Debug("controller waiting", "controller", c.Name, "id", c.ID, "on", what)
	if c.post == nil {
		<-f.Done()
		next()
		return
	}
	go func() {
		<-f.Done()
		if err := c.post(next); err != nil {
			c.logger.Warn("controller continuation not posted", "controller", c.Name, "id", c.ID, "on", what, "error", err)
			next()
		}
	}()
}

// unwind takes a failed or canceled activation down to StateDeactivated
// and then calls done. Detach hooks do not run because the controller
// never became active.
func (c *Controller) unwind(cause error, done func()) {
	c.mu.Lock()
	deactivation, settle := NewFuture()
	c.deactivation = deactivation
	from := c.transitionLocked(StateDeactivating)
	c.mu.Unlock()
	c.notify(from, StateDeactivating)

	if errors.Is(cause, ErrActivationCanceled) {
		c.logger.Debug("controller activation canceled", "controller", c.Name, "id", c.ID, "state", from)
	} else {
		c.logger.Warn("controller activation failed", "controller", c.Name, "id", c.ID, "state", from, "error", cause)
	}

	c.transition(StateUnbinding)
	c.teardown(context.Background(), func(error) {
		c.finishDeactivation(settle, nil)
		done()
	})
}

// Deactivate deactivates the controller. The returned Future settles once
// it is deactivated, with the joined errors of its detach hooks and
// children.
//
// During an activation Deactivate cancels it and returns a Future that
// settles, with a nil error, once the activation has unwound. It never
// waits itself, so a hook of that activation may call it. Deactivating
// from any other state than activating or activated panics.
func (c *Controller) Deactivate(ctx context.Context) *Future {
	c.mu.Lock()
	switch c.state {
	case StateActivating, StateBinding:
		// Canceling under the lock keeps the activation from slipping
		// into StateActivated after this check.
		a := c.current
		a.cancel()
		c.mu.Unlock()
		c.logger.Debug("controller deactivation cancels activation", "controller", c.Name, "id", c.ID)
		return a.future.then(func(error) error { return nil })
	case StateActivated:
	case StateDisposed:
		c.mu.Unlock()
		panic(assertion("W104", c, StateDisposed))
	default:
		state := c.state
		c.mu.Unlock()
		panic(assertion("W102", c, state))
	}
	f, settle := NewFuture()
	c.deactivation = f
	from := c.transitionLocked(StateDeactivating)
	c.mu.Unlock()
	c.notify(from, StateDeactivating)

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "controller.deactivate", c.spanAttrs()...)
	var errs []error
	finish := func() {
		err := errors.Join(errs...)
		if err != nil {
			c.logger.Warn("controller deactivation hooks failed", "controller", c.Name, "id", c.ID, "error", err)
		}
		telemetry.EndSpan(span, err)
		result := telemetry.ResultOK
		if err != nil {
			result = telemetry.ResultError
		}
		c.metrics.Deactivation(result, time.Since(start).Seconds())
		c.finishDeactivation(settle, err)
	}
	afterUnbind := func() {
		h, ok := c.hooks.(AfterUnbindHook)
		if !ok {
			finish()
			return
		}
		hf := h.AfterUnbind(ctx, c)
		c.resume("afterUnbind hook", hf, func() {
			if err := hf.Err(); err != nil {
				errs = append(errs, fmt.Errorf("afterUnbind hook of %s: %w", c.Name, err))
			}
			finish()
		})
	}
	unbind := func() {
		c.transition(StateUnbinding)
		c.teardown(ctx, func(err error) {
			if err != nil {
				errs = append(errs, err)
			}
			afterUnbind()
		})
	}

	if h, ok := c.hooks.(BeforeDetachHook); ok {
		hf := h.BeforeDetach(ctx, c)
		c.resume("beforeDetach hook", hf, func() {
			if err := hf.Err(); err != nil {
				errs = append(errs, fmt.Errorf("beforeDetach hook of %s: %w", c.Name, err))
			}
			unbind()
		})
	} else {
		unbind()
	}
	return f
}

// teardown unmounts, unbinds and deactivates active children, in that
// order, then calls done with the children's joined errors.
func (c *Controller) teardown(ctx context.Context, done func(error)) {
	c.unmount()
	for i := len(c.bindings) - 1; i >= 0; i-- {
		c.bindings[i].Unbind()
	}
	children := c.Children()
	var errs []error
	var next func(i int)
	next = func(i int) {
		for ; i >= 0; i-- {
			child := children[i]
			if child.State() != StateActivated {
				continue
			}
			f := child.Deactivate(ctx)
			c.resume("child "+child.Name, f, func() {
				if err := f.Err(); err != nil {
					errs = append(errs, err)
				}
				next(i - 1)
			})
			return
		}
		done(errors.Join(errs...))
	}
	next(len(children) - 1)
}

func (c *Controller) finishDeactivation(settle func(error), err error) {
	c.mu.Lock()
	from := c.transitionLocked(StateDeactivated)
	released := c.released
	c.mu.Unlock()
	c.notify(from, StateDeactivated)
	settle(err)
	if released {
		c.recycle()
	}
}

// recycle returns a released, deactivated view to its factory, disposing
// it when the factory does not take it back.
func (c *Controller) recycle() {
	if c.factory == nil {
		return
	}
	if !c.factory.tryReturn(c) {
		c.Dispose()
	}
}

func (c *Controller) mount() error {
	if len(c.roots) == 0 {
		return nil
	}
	switch {
	case c.anchor != nil:
		parent := c.anchor.ParentNode()
		if parent == nil {
			return fmt.Errorf("mount %s: %w: anchor is detached", c.Name, dom.ErrHierarchy)
		}
		for _, n := range c.roots {
			if err := parent.InsertBefore(n, c.anchor); err != nil {
				return fmt.Errorf("mount %s: %w", c.Name, err)
			}
		}
	case c.container != nil:
		for _, n := range c.roots {
			if err := c.container.AppendChild(n); err != nil {
				return fmt.Errorf("mount %s: %w", c.Name, err)
			}
		}
	}
	return nil
}

func (c *Controller) unmount() {
	for _, n := range c.roots {
		n.Remove()
	}
}

// Dispose tears the controller and its children down for good. Disposing
// an active controller, or disposing twice, panics.
func (c *Controller) Dispose() {
	c.mu.Lock()
	switch c.state {
	case StateNone, StateDeactivated:
	case StateDisposed:
		c.mu.Unlock()
		panic(assertion("W104", c, StateDisposed))
	default:
		state := c.state
		c.mu.Unlock()
		panic(assertion("W105", c, state))
	}
	from := c.transitionLocked(StateDisposed)
	children := c.children
	factory := c.factory
	c.mu.Unlock()
	c.notify(from, StateDisposed)

	for _, child := range children {
		if child.State() != StateDisposed {
			child.Dispose()
		}
	}
	for _, b := range c.bindings {
		b.Unbind()
	}
	c.unmount()
	if factory != nil {
		factory.forget(c)
	}
}
