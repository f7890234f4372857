package ticketsync

import (
	"context"
	"fmt"

	"github.com/chatwoot/ticketsync/internal/tickets"
	"github.com/chatwoot/ticketsync/internal/unread"
)

// evictLocked removes id from both projections and unwinds its unseen
// contribution. It reports whether the ticket was present in either.
func (o *Orchestrator) evictLocked(id int) bool {
	removed, inGlobal := o.global.Remove(id)
	if inGlobal {
		o.unread.ApplyDelta(-removed.UnseenCount)
	}
	_, inFiltered := o.filtered.Remove(id)
	return inGlobal || inFiltered
}

// Evict drops tickets that left the viewer's scope from both projections.
// Pending refreshes of those tickets are superseded. It returns the ids
// that were present.
func (o *Orchestrator) Evict(ids ...int) []int {
	for _, id := range ids {
		tok := o.ticketGen.Begin(id)
		o.ticketGen.Done(id, tok)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	var evicted []int
	for _, id := range ids {
		if o.evictLocked(id) {
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// MarkSeen zeroes the ticket's unseen count in both projections and
// subtracts it from unread. action_needed is left alone.
func (o *Orchestrator) MarkSeen(id int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.unread.MarkSeen(id)
}

// Delivery is one inbound message as the accounting sees it.
type Delivery struct {
	TicketID  int
	MessageID string
	Text      string
	TimeSent  string
	// FromOtherParty is true when the sender is neither the viewer nor the
	// system identity.
	FromOtherParty bool
	// FromClient is true when the sender is the client side of the
	// conversation. Only client messages raise action_needed.
	FromClient bool
}

// NoteMessage accounts for a delivered message: unread moves at most once
// per message id, the ticket's preview is updated, and client messages set
// the sticky action_needed flag. An Unknown outcome means the ticket is not
// in the global projection and should be refreshed.
func (o *Orchestrator) NoteMessage(d Delivery) unread.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()

	outcome := o.unread.NoteMessage(d.TicketID, d.MessageID, d.FromOtherParty)
	if outcome == unread.Duplicate {
		return outcome
	}
	touch := func(t *tickets.Ticket) {
		if d.Text != "" {
			t.LastMessage = d.Text
		}
		if d.TimeSent != "" {
			t.TimeSent = d.TimeSent
		}
		if d.FromClient {
			t.ActionNeeded = true
		}
	}
	updated, ok := o.global.Update(d.TicketID, touch)
	o.filtered.Update(d.TicketID, touch)
	if ok && o.filtered.Active() {
		o.reconcileFilteredLocked(updated)
	}
	return outcome
}

// reconcileFilteredLocked re-evaluates a global ticket against the active
// predicate. A newly matching ticket is copied into the view with the
// global unseen count; a ticket that stopped matching is evicted. The
// global unread counter is unaffected either way.
func (o *Orchestrator) reconcileFilteredLocked(t tickets.Ticket) {
	o.filtered.Reconcile(t)
}

// ApplyTicketUpdate applies owner/workflow changes carried by a push event
// to the cached ticket. It reports false when the ticket is unknown or
// when the change took it out of scope (in which case it was evicted).
func (o *Orchestrator) ApplyTicketUpdate(id, technicianID int, workflow string) (inScope bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	updated, ok := o.global.Update(id, func(t *tickets.Ticket) {
		if technicianID != 0 {
			t.TechnicianID = technicianID
		}
		if workflow != "" {
			t.Workflow = workflow
		}
	})
	if !ok {
		return false
	}
	if !o.opts.Scope.Allows(updated) {
		o.evictLocked(id)
		return false
	}
	if o.filtered.Active() {
		o.reconcileFilteredLocked(updated)
	}
	return true
}

// ClearActionNeeded records a human resolution of the ticket through the
// backend and applies it locally.
func (o *Orchestrator) ClearActionNeeded(ctx context.Context, id int) error {
	t, err := o.backend.ClearActionNeeded(ctx, id)
	if err != nil {
		return fmt.Errorf("clear action needed on ticket %d: %w", id, err)
	}
	tok := o.ticketGen.Begin(id)
	defer o.ticketGen.Done(id, tok)
	var added bool
	o.ticketGen.Do(id, tok, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if t.ID == id {
			t.ActionNeeded = false
			added = o.applyFetchedLocked(t)
			return
		}
		resolve := func(t *tickets.Ticket) { t.ActionNeeded = false }
		o.filtered.Update(id, resolve)
		if updated, ok := o.global.Update(id, resolve); ok && o.filtered.Active() {
			o.reconcileFilteredLocked(updated)
		}
	})
	if added {
		o.added([]int{id})
	}
	return nil
}

// BulkDelete deletes tickets through the backend and evicts them locally.
func (o *Orchestrator) BulkDelete(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := o.backend.DeleteTickets(ctx, ids); err != nil {
		return fmt.Errorf("delete %d tickets: %w", len(ids), err)
	}
	o.Evict(ids...)
	return nil
}
