package page

import (
	"slices"
	"sync"
)

// Registry maps a page's conventional name ("clientsPage") to the mounted
// instance, so browser actions addressed by name reach the live page.
// A shell owns one Registry; nothing is process-global.
type Registry struct {
	mu    sync.RWMutex
	pages map[string]Page
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]Page)}
}

// Register points name at p, replacing any previous entry.
func (r *Registry) Register(name string, p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[name] = p
}

// Unregister removes name only if it still points at p. An unmount of a
// stale instance never clears a newer registration.
func (r *Registry) Unregister(name string, p Page) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pages[name]; ok && cur == p {
		delete(r.pages, name)
		return true
	}
	return false
}

// Lookup returns the page registered under name.
func (r *Registry) Lookup(name string) (Page, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pages[name]
	return p, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pages))
	for name := range r.pages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered pages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}
