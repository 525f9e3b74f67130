package observe

import (
	"errors"
	"sync"
)

// SubscriberList manages the subscribers of one observable property. It is
// exported so that render targets outside this package can implement
// Observer. Subscribers must be comparable (pointer types); duplicates are
// ignored. The zero value is ready to use.
type SubscriberList struct {
	subs []Subscriber
	mu   sync.RWMutex
}

// Add subscribes s and reports whether it was not already subscribed.
func (l *SubscriberList) Add(s Subscriber) bool {
	if s == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.subs {
		if existing == s {
			return false
		}
	}
	l.subs = append(l.subs, s)
	return true
}

// Remove unsubscribes s and reports whether it was subscribed.
func (l *SubscriberList) Remove(s Subscriber) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.subs {
		if existing == s {
			// Keep order: notification order is subscription order.
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of subscribers.
func (l *SubscriberList) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Notify calls every subscriber with a copy of the list taken up front, so
// subscribers may unsubscribe themselves while being notified. Subscriber
// errors are joined.
func (l *SubscriberList) Notify(newValue, oldValue any) error {
	l.mu.RLock()
	subs := make([]Subscriber, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.HandleChange(newValue, oldValue); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// collectionSubscriberList is the collection counterpart of SubscriberList.
type collectionSubscriberList struct {
	subs []CollectionSubscriber
	mu   sync.RWMutex
}

func (l *collectionSubscriberList) add(s CollectionSubscriber) bool {
	if s == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.subs {
		if existing == s {
			return false
		}
	}
	l.subs = append(l.subs, s)
	return true
}

func (l *collectionSubscriberList) remove(s CollectionSubscriber) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.subs {
		if existing == s {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (l *collectionSubscriberList) count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

func (l *collectionSubscriberList) notify(im IndexMap) error {
	l.mu.RLock()
	subs := make([]CollectionSubscriber, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.HandleCollectionChange(im); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
