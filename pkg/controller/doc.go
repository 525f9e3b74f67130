// Package controller drives the lifecycle of view components.
//
// A Controller owns bindings, child controllers and, when attachable, the
// nodes it mounts. Activate and Deactivate walk it through an explicit
// state table:
//
//	none/deactivated -> activating -> binding -> activated
//	activated -> deactivating -> unbinding -> deactivated
//
// Lifecycle hooks are the only suspension points: each returns a *Future
// and the state machine continues once it settles. Binding, mounting and
// state changes are synchronous. Activate and Deactivate return a *Future
// too. When Config.Post is set, a pending hook makes them return at once
// and the rest of the lifecycle runs as a task posted after the hook
// settles; without it, the call blocks until the hook settles.
//
// Deactivate may be called while an activation is suspended, including
// from one of its own hooks. The activation is canceled at its next
// suspension point and unwinds straight to deactivated without running the
// detach hooks; its Future settles with ErrActivationCanceled. An Activate
// that arrives while a deactivation is in flight starts once it finishes.
//
// Any other out-of-order request is a programming error and panics with a
// coded lifecycle error.
//
// # Reusable Views
//
// A ViewFactory builds synthetic controllers and keeps released ones in a
// bounded cache:
//
//	rows := controller.NewViewFactory("row", 16, buildRow)
//	view := rows.Create()
//	if err := view.Activate(ctx, parent).Err(); err != nil {
//		return err
//	}
//	view.Release()
//	_ = view.Deactivate(ctx).Err() // returned to the cache
package controller
