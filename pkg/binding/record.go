package binding

import (
	"github.com/vango-dev/weft/pkg/observe"
)

// ObserverRecord holds the subscriptions of one binding, each stamped with
// the version of the evaluation that last read it.
type ObserverRecord struct {
	version     uint64
	props       map[observe.Observer]uint64
	collections map[observe.CollectionObserver]uint64
}

// Version returns the current evaluation version.
func (r *ObserverRecord) Version() uint64 {
	return r.version
}

// Count returns the number of live subscriptions.
func (r *ObserverRecord) Count() int {
	return len(r.props) + len(r.collections)
}

// observe subscribes sub to obs if needed and stamps the entry with the
// current version.
func (r *ObserverRecord) observe(obs observe.Observer, sub observe.Subscriber) {
	if r.props == nil {
		r.props = make(map[observe.Observer]uint64)
	}
	if _, ok := r.props[obs]; !ok {
		obs.Subscribe(sub)
	}
	r.props[obs] = r.version
}

func (r *ObserverRecord) observeCollection(obs observe.CollectionObserver, sub observe.CollectionSubscriber) {
	if r.collections == nil {
		r.collections = make(map[observe.CollectionObserver]uint64)
	}
	if _, ok := r.collections[obs]; !ok {
		obs.SubscribeCollection(sub)
	}
	r.collections[obs] = r.version
}

// sweep removes entries not stamped with the current version, or every
// entry when all is true.
func (r *ObserverRecord) sweep(sub observe.Subscriber, csub observe.CollectionSubscriber, all bool) {
	for obs, v := range r.props {
		if all || v != r.version {
			obs.Unsubscribe(sub)
			delete(r.props, obs)
		}
	}
	for obs, v := range r.collections {
		if all || v != r.version {
			obs.UnsubscribeCollection(csub)
			delete(r.collections, obs)
		}
	}
}

// Connectable is the dependency tracking component bindings embed. It
// implements expr.Connectable: reads reported during a tracked evaluation
// are recorded in the ObserverRecord and subscribed on behalf of the
// owning binding.
type Connectable struct {
	loc    *observe.Locator
	record ObserverRecord
	sub    observe.Subscriber
	csub   observe.CollectionSubscriber
}

func (c *Connectable) connect(loc *observe.Locator, sub observe.Subscriber, csub observe.CollectionSubscriber) {
	c.loc = loc
	c.sub = sub
	c.csub = csub
}

// Record returns the binding's observer record.
func (c *Connectable) Record() *ObserverRecord {
	return &c.record
}

// Observe implements expr.Connectable. Properties that cannot notify are
// ignored.
func (c *Connectable) Observe(obj any, key string) {
	if obs, ok := c.loc.Observer(obj, key); ok {
		c.record.observe(obs, c.sub)
	}
}

// ObserveCollection implements expr.Connectable. Values that are not
// observable collections are ignored.
func (c *Connectable) ObserveCollection(v any) {
	if obs, ok := c.loc.CollectionObserver(v); ok && c.csub != nil {
		c.record.observeCollection(obs, c.csub)
	}
}

// track runs a tracked evaluation: the version is bumped before fn and
// stale entries are swept after it, on every exit path.
func (c *Connectable) track(fn func() error) error {
	c.record.version++
	defer c.record.sweep(c.sub, c.csub, false)
	return fn()
}

// unobserveAll drops every subscription.
func (c *Connectable) unobserveAll() {
	c.record.sweep(c.sub, c.csub, true)
}
