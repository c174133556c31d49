package index

import "sync"

// Holder is the single mutable slot pointing at the active index.
// Set replaces the reference atomically under an exclusive lock; readers
// never observe a half-updated index because the index itself is
// immutable once built. In-flight searches keep the reference they read.
type Holder struct {
	mu  sync.RWMutex
	idx *Index
}

// NewHolder creates an empty holder (not ready).
func NewHolder() *Holder {
	return &Holder{}
}

// Get returns the current index, or nil when none has been set.
func (h *Holder) Get() *Index {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idx
}

// Set replaces the active index. A nil index is ignored.
func (h *Holder) Set(idx *Index) {
	if idx == nil {
		return
	}
	h.mu.Lock()
	h.idx = idx
	h.mu.Unlock()
}

// IsReady reports whether an index has been set.
func (h *Holder) IsReady() bool {
	return h.Get() != nil
}

// Len returns the size of the current index, 0 when not ready.
func (h *Holder) Len() int {
	return h.Get().Len()
}
