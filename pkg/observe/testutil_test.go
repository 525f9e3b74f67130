package observe

import "errors"

// recordingSubscriber records every change notification it receives.
type recordingSubscriber struct {
	changes  [][2]any
	err      error
	onChange func()
}

func (r *recordingSubscriber) HandleChange(newValue, oldValue any) error {
	r.changes = append(r.changes, [2]any{newValue, oldValue})
	if r.onChange != nil {
		r.onChange()
	}
	return r.err
}

func (r *recordingSubscriber) count() int {
	return len(r.changes)
}

func (r *recordingSubscriber) last() (any, any) {
	if len(r.changes) == 0 {
		return nil, nil
	}
	c := r.changes[len(r.changes)-1]
	return c[0], c[1]
}

// recordingCollectionSubscriber records index maps.
type recordingCollectionSubscriber struct {
	maps []IndexMap
}

func (r *recordingCollectionSubscriber) HandleCollectionChange(im IndexMap) error {
	r.maps = append(r.maps, im)
	return nil
}

var errTest = errors.New("test failure")
