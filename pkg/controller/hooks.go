package controller

import "context"

// Lifecycle hooks are optional interfaces implemented by a custom
// element's view model, or by the Hooks value of a synthetic view. Each
// hook may finish asynchronously by returning a pending Future; the
// controller waits for it to settle before moving on. Hooks receive a
// context that is canceled when a deactivation interrupts the activation.

// BeforeBindHook runs before the controller's bindings are bound.
type BeforeBindHook interface {
	BeforeBind(ctx context.Context, c *Controller) *Future
}

// AfterAttachHook runs once bindings are bound and nodes are mounted,
// before children activate.
type AfterAttachHook interface {
	AfterAttach(ctx context.Context, c *Controller) *Future
}

// AfterAttachChildrenHook runs once every child has activated.
type AfterAttachChildrenHook interface {
	AfterAttachChildren(ctx context.Context, c *Controller) *Future
}

// BeforeDetachHook runs before a fully activated controller unbinds.
type BeforeDetachHook interface {
	BeforeDetach(ctx context.Context, c *Controller) *Future
}

// AfterUnbindHook runs after bindings are unbound and children are
// deactivated.
type AfterUnbindHook interface {
	AfterUnbind(ctx context.Context, c *Controller) *Future
}
