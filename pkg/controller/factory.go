package controller

import "sync"

// ViewFactory creates synthetic views from a template and caches released
// views for reuse.
type ViewFactory struct {
	Name string

	build     func() Config
	cacheSize int

	mu    sync.Mutex
	cache []*Controller
}

// NewViewFactory returns a factory that builds views with build and keeps
// up to cacheSize released views. A cacheSize of zero disables caching.
func NewViewFactory(name string, cacheSize int, build func() Config) *ViewFactory {
	if cacheSize < 0 {
		cacheSize = 0
	}
	return &ViewFactory{Name: name, build: build, cacheSize: cacheSize}
}

// Create returns a cached view if one is available, otherwise a new one.
// Cached views come back in StateDeactivated with their release flag
// cleared.
func (f *ViewFactory) Create() *Controller {
	f.mu.Lock()
	if n := len(f.cache); n > 0 {
		c := f.cache[n-1]
		f.cache = f.cache[:n-1]
		f.mu.Unlock()

		c.mu.Lock()
		c.released = false
		c.mu.Unlock()
		return c
	}
	f.mu.Unlock()

	cfg := f.build()
	if cfg.Name == "" {
		cfg.Name = f.Name
	}
	c := NewSynthetic(cfg)
	c.factory = f
	return c
}

// Len returns the number of cached views.
func (f *ViewFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}

// SetCacheSize changes the cache capacity, dropping cached views beyond
// it. Dropped views are disposed.
func (f *ViewFactory) SetCacheSize(size int) {
	if size < 0 {
		size = 0
	}
	f.mu.Lock()
	f.cacheSize = size
	var dropped []*Controller
	if len(f.cache) > size {
		dropped = append(dropped, f.cache[size:]...)
		f.cache = f.cache[:size]
	}
	f.mu.Unlock()
	for _, c := range dropped {
		c.Dispose()
	}
}

func (f *ViewFactory) tryReturn(c *Controller) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cached := range f.cache {
		if cached == c {
			return true
		}
	}
	if len(f.cache) >= f.cacheSize {
		return false
	}
	f.cache = append(f.cache, c)
	return true
}

func (f *ViewFactory) forget(c *Controller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cached := range f.cache {
		if cached == c {
			f.cache = append(f.cache[:i], f.cache[i+1:]...)
			return
		}
	}
}
