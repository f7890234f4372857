package unread

import "sync"

// DefaultWindow is the processed-message capacity used when none is given.
const DefaultWindow = 1000

// Window remembers recently processed message ids. Once it grows past its
// capacity the oldest half is dropped in one pass, so it only suppresses
// duplicates that arrive within a short horizon.
type Window struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

// NewWindow returns a window holding roughly capacity ids.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Window{capacity: capacity, seen: make(map[string]struct{}, capacity)}
}

// Observe records id and reports whether it is new. Empty ids are never
// deduplicated.
func (w *Window) Observe(id string) bool {
	if id == "" {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)
	if len(w.order) > w.capacity {
		w.evictLocked(len(w.order) / 2)
	}
	return true
}

// Contains reports whether id is in the window.
func (w *Window) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[id]
	return ok
}

// Len returns the number of remembered ids.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *Window) evictLocked(n int) {
	for _, id := range w.order[:n] {
		delete(w.seen, id)
	}
	w.order = append(w.order[:0:0], w.order[n:]...)
}
