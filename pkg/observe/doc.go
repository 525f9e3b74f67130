// Package observe provides the observation layer of the Weft runtime.
//
// It answers one question for the binding engine: given a target value and
// a property name, how do I read it, write it, and (if possible) find out
// when it changes?
//
// # Accessors and Observers
//
// An Accessor reads and writes one property. An Observer is an Accessor
// that additionally accepts Subscribers and notifies them on change:
//
//	loc := observe.NewLocator()
//	user := observe.NewObject(map[string]any{"name": "Ada"})
//
//	acc := loc.Resolve(user, "name")
//	if obs, ok := acc.(observe.Observer); ok {
//	    obs.Subscribe(mySubscriber)
//	}
//	_ = user.Set("name", "Grace") // mySubscriber.HandleChange("Grace", "Ada")
//
// Plain Go maps and struct pointers resolve to accessors that read and
// write but never notify. That is a valid state, not an error.
//
// # Collections
//
// Slice is an observable ordered container. Each mutation computes an
// IndexMap describing, per result slot, the index the element had before
// the mutation (or NewItem), and delivers it to collection subscribers.
//
// # Batching
//
// BatchQueue coalesces notifications. Property observers that change while
// a batch is open notify once, when the outermost batch ends:
//
//	_ = observe.Batch(func() {
//	    _ = user.Set("first", "Ada")
//	    _ = user.Set("last", "Lovelace")
//	})
//
// # Thread Safety
//
// Objects, Slices and the BatchQueue are safe for concurrent use. The
// binding engine built on top of them expects to be driven from a single
// goroutine at a time.
package observe
