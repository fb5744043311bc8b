package book

import (
	"sort"
	"sync"
)

// Registry owns every instrument's book. Books are created lazily on
// first reference and live for the registry's lifetime; nothing evicts
// them. Each Registry is independent, so tests and embedded engines can
// run side by side without shared state.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*OrderBook)}
}

// GetOrCreate returns the instrument's book, creating an empty one on
// first use. Subsequent calls return the same instance.
func (r *Registry) GetOrCreate(instrument string) *OrderBook {
	r.mu.RLock()
	b, ok := r.books[instrument]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[instrument]; ok {
		return b
	}
	b = NewOrderBook(instrument)
	r.books[instrument] = b
	return b
}

// Get returns the instrument's book or nil if it was never referenced.
func (r *Registry) Get(instrument string) *OrderBook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.books[instrument]
}

// Instruments returns every known instrument in sorted order.
func (r *Registry) Instruments() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.books))
	for k := range r.books {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
