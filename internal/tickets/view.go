package tickets

import "sync"

// FilteredView is an independently indexed projection constrained by the
// active predicate. It is empty and inactive until Activate is called.
type FilteredView struct {
	*Projection

	mu   sync.RWMutex
	pred *Predicate
}

// NewFilteredView returns an inactive view.
func NewFilteredView() *FilteredView {
	return &FilteredView{Projection: NewProjection()}
}

// Activate installs pred and clears the view; the caller is expected to
// repopulate it with a fetch.
func (v *FilteredView) Activate(pred *Predicate) {
	v.mu.Lock()
	v.pred = pred
	v.mu.Unlock()
	v.Reset()
}

// Deactivate drops the predicate and empties the view.
func (v *FilteredView) Deactivate() {
	v.mu.Lock()
	v.pred = nil
	v.mu.Unlock()
	v.Reset()
}

// Active reports whether a predicate is installed.
func (v *FilteredView) Active() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pred != nil
}

// Filter returns the active filter, if any.
func (v *FilteredView) Filter() (Filter, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.pred == nil {
		return Filter{}, false
	}
	return v.pred.Filter(), true
}

// Matches reports whether t passes the active predicate. An inactive view
// matches nothing.
func (v *FilteredView) Matches(t Ticket) bool {
	v.mu.RLock()
	pred := v.pred
	v.mu.RUnlock()
	return pred != nil && pred.Match(t)
}

// Reconcile re-evaluates t against the predicate: a match is upserted, a
// miss is evicted. It reports whether the view's membership of t changed.
func (v *FilteredView) Reconcile(t Ticket) (inserted, evicted bool) {
	if v.Matches(t) {
		_, existed := v.Upsert(t)
		return !existed, false
	}
	_, removed := v.Remove(t.ID)
	return false, removed
}
