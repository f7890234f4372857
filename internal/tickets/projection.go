package tickets

import (
	"fmt"
	"sync"
)

// Projection is an insertion-ordered ticket collection with an id index.
//
// Every mutation updates the slice and the index together under one lock,
// so readers never observe them disagreeing. Callers get copies; nothing
// outside the Projection holds a pointer into its storage.
type Projection struct {
	mu    sync.RWMutex
	order []Ticket
	index map[int]int // ticket id -> position in order
}

// NewProjection returns an empty Projection.
func NewProjection() *Projection {
	return &Projection{index: make(map[int]int)}
}

// Upsert replaces the ticket with the same id in place, or appends it.
// It returns the previous value when one existed.
func (p *Projection) Upsert(t Ticket) (prev Ticket, existed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.upsertLocked(t)
}

func (p *Projection) upsertLocked(t Ticket) (Ticket, bool) {
	if t.UnseenCount < 0 {
		t.UnseenCount = 0
	}
	if pos, ok := p.index[t.ID]; ok {
		prev := p.order[pos]
		p.order[pos] = t
		return prev, true
	}
	p.index[t.ID] = len(p.order)
	p.order = append(p.order, t)
	return Ticket{}, false
}

// Append upserts a page of tickets and returns how many were new.
func (p *Projection) Append(ts []Ticket) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	added := 0
	for _, t := range ts {
		if _, existed := p.upsertLocked(t); !existed {
			added++
		}
	}
	return added
}

// Remove deletes the ticket and reports whether it was present.
func (p *Projection) Remove(id int) (Ticket, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.index[id]
	if !ok {
		return Ticket{}, false
	}
	removed := p.order[pos]
	p.order = append(p.order[:pos], p.order[pos+1:]...)
	delete(p.index, id)
	for i := pos; i < len(p.order); i++ {
		p.index[p.order[i].ID] = i
	}
	return removed, true
}

// Get looks a ticket up by id.
func (p *Projection) Get(id int) (Ticket, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.index[id]
	if !ok {
		return Ticket{}, false
	}
	return p.order[pos], true
}

// Has reports whether id is present.
func (p *Projection) Has(id int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.index[id]
	return ok
}

// Update applies fn to the stored ticket. The id cannot be changed and the
// unseen count is clamped at zero.
func (p *Projection) Update(id int, fn func(*Ticket)) (Ticket, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.index[id]
	if !ok {
		return Ticket{}, false
	}
	t := p.order[pos]
	fn(&t)
	t.ID = id
	if t.UnseenCount < 0 {
		t.UnseenCount = 0
	}
	p.order[pos] = t
	return t, true
}

// UnseenCount returns the ticket's unseen count.
func (p *Projection) UnseenCount(id int) (int, bool) {
	t, ok := p.Get(id)
	return t.UnseenCount, ok
}

// SetUnseen sets the ticket's unseen count and returns the prior value.
func (p *Projection) SetUnseen(id, n int) (prior int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.index[id]
	if !ok {
		return 0, false
	}
	prior = p.order[pos].UnseenCount
	p.order[pos].UnseenCount = max(n, 0)
	return prior, true
}

// AddUnseen adjusts the ticket's unseen count by delta, clamped at zero,
// and returns the new value.
func (p *Projection) AddUnseen(id, delta int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.index[id]
	if !ok {
		return 0, false
	}
	n := max(p.order[pos].UnseenCount+delta, 0)
	p.order[pos].UnseenCount = n
	return n, true
}

// TotalUnseen sums unseen counts across the projection.
func (p *Projection) TotalUnseen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := 0
	for _, t := range p.order {
		total += t.UnseenCount
	}
	return total
}

// List returns a copy of the tickets in insertion order.
func (p *Projection) List() []Ticket {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Ticket, len(p.order))
	copy(out, p.order)
	return out
}

// IDs returns ticket ids in insertion order.
func (p *Projection) IDs() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int, len(p.order))
	for i, t := range p.order {
		out[i] = t.ID
	}
	return out
}

// Len returns the number of tickets.
func (p *Projection) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// Reset empties the projection.
func (p *Projection) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = nil
	p.index = make(map[int]int)
}

// checkConsistency verifies the index and the ordered slice agree.
func (p *Projection) checkConsistency() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.index) != len(p.order) {
		return fmt.Errorf("index has %d entries, order has %d", len(p.index), len(p.order))
	}
	for i, t := range p.order {
		pos, ok := p.index[t.ID]
		if !ok {
			return fmt.Errorf("ticket %d missing from index", t.ID)
		}
		if pos != i {
			return fmt.Errorf("ticket %d indexed at %d, stored at %d", t.ID, pos, i)
		}
	}
	return nil
}
