package observe

import (
	"errors"
	"testing"
)

func TestObjectSetNotifies(t *testing.T) {
	obj := NewObject(map[string]any{"name": "Ada"})
	sub := &recordingSubscriber{}
	obj.observer("name").Subscribe(sub)

	if err := obj.Set("name", "Grace"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", sub.count())
	}
	if n, o := sub.last(); n != "Grace" || o != "Ada" {
		t.Errorf("notification = (%v, %v), want (Grace, Ada)", n, o)
	}

	// Same value: no notification.
	_ = obj.Set("name", "Grace")
	if sub.count() != 1 {
		t.Errorf("same value should not notify, got %d", sub.count())
	}
}

func TestObjectUnsubscribe(t *testing.T) {
	obj := NewObject(nil)
	sub := &recordingSubscriber{}
	obs := obj.observer("x")
	obs.Subscribe(sub)
	obs.Subscribe(sub)
	if obs.SubscriberCount() != 1 {
		t.Errorf("duplicate subscribe should be ignored, got %d", obs.SubscriberCount())
	}

	obs.Unsubscribe(sub)
	_ = obj.Set("x", 1)
	if sub.count() != 0 {
		t.Errorf("unsubscribed subscriber notified %d times", sub.count())
	}
}

func TestObjectSetReturnsSubscriberErrors(t *testing.T) {
	obj := NewObject(nil)
	obj.observer("x").Subscribe(&recordingSubscriber{err: errTest})

	if err := obj.Set("x", 1); !errors.Is(err, errTest) {
		t.Errorf("Set error = %v, want errTest", err)
	}
	if obj.Get("x") != 1 {
		t.Error("value should be stored even when a subscriber fails")
	}
}

func TestObjectKeys(t *testing.T) {
	obj := NewObject(map[string]any{"b": 1, "a": 2})
	keys := obj.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestObjectBatchCoalesces(t *testing.T) {
	q := NewBatchQueue()
	obj := NewObject(map[string]any{"n": 0}, WithBatchQueue(q))
	sub := &recordingSubscriber{}
	obj.observer("n").Subscribe(sub)

	err := q.Inline(func() {
		_ = obj.Set("n", 1)
		_ = obj.Set("n", 2)
		_ = obj.Set("n", 3)
		if sub.count() != 0 {
			t.Errorf("notified inside batch")
		}
	})
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("expected 1 coalesced notification, got %d", sub.count())
	}
	if n, o := sub.last(); n != 3 || o != 0 {
		t.Errorf("notification = (%v, %v), want (3, 0)", n, o)
	}
}

func TestObjectBatchRevertIsSilent(t *testing.T) {
	q := NewBatchQueue()
	obj := NewObject(map[string]any{"n": 0}, WithBatchQueue(q))
	sub := &recordingSubscriber{}
	obj.observer("n").Subscribe(sub)

	_ = q.Inline(func() {
		_ = obj.Set("n", 5)
		_ = obj.Set("n", 0)
	})
	if sub.count() != 0 {
		t.Errorf("value returned to original; expected no notification, got %d", sub.count())
	}
}
