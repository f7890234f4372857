// Package ticketsync keeps the global and filtered ticket projections and
// the unread counter in step with REST fetches and push-driven updates.
//
// Every composite mutation runs under one coordinator lock, so readers never
// see a ticket upserted without its unread contribution (or the reverse).
// Fetch sequences are guarded by generation tokens: results that arrive
// after a newer sequence began are dropped without side effects. Lock order
// is generation guard first, coordinator second.
package ticketsync

import (
	"context"
	"sync"

	"github.com/chatwoot/ticketsync/internal/api"
	"github.com/chatwoot/ticketsync/internal/generation"
	"github.com/chatwoot/ticketsync/internal/tickets"
	"github.com/chatwoot/ticketsync/internal/unread"
)

// DefaultConcurrency bounds parallel single-ticket refreshes.
const DefaultConcurrency = 4

// Backend is the REST collaborator. *api.Client satisfies it.
type Backend interface {
	ListTickets(ctx context.Context, params api.ListTicketsParams) (*api.TicketPage, error)
	GetTicket(ctx context.Context, id int) (tickets.Ticket, error)
	ClearActionNeeded(ctx context.Context, id int) (tickets.Ticket, error)
	DeleteTickets(ctx context.Context, ids []int) error
}

// Options configures an Orchestrator.
type Options struct {
	Scope tickets.Scope
	// ListType and GroupTitle are passed through to the ticket listing.
	ListType    string
	GroupTitle  string
	Concurrency int
	DedupWindow int
	Notifier    Notifier
	// OnAdded is called with ticket ids newly added to the global
	// projection, outside any lock. The engine uses it to join rooms.
	OnAdded func(ids []int)
}

// Orchestrator owns the ticket projections and the unread counter.
type Orchestrator struct {
	backend  Backend
	opts     Options
	notifier Notifier

	mu       sync.Mutex
	global   *tickets.Projection
	filtered *tickets.FilteredView
	unread   *unread.Accounting

	globalGen   generation.Guard
	filteredGen generation.Guard
	ticketGen   generation.Keyed[int]

	loadingMu sync.Mutex
	loading   map[View]bool
}

// New returns an Orchestrator with empty projections.
func New(backend Backend, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.ListType == "" {
		opts.ListType = api.ListLight
	}
	global := tickets.NewProjection()
	filtered := tickets.NewFilteredView()
	return &Orchestrator{
		backend:  backend,
		opts:     opts,
		notifier: opts.Notifier,
		global:   global,
		filtered: filtered,
		unread:   unread.New(unread.NewWindow(opts.DedupWindow), global, filtered),
		loading:  make(map[View]bool),
	}
}

// Scope returns the viewer scope.
func (o *Orchestrator) Scope() tickets.Scope { return o.opts.Scope }

// Tickets returns the global projection in order.
func (o *Orchestrator) Tickets() []tickets.Ticket { return o.global.List() }

// TicketIDs returns the ids in the global projection.
func (o *Orchestrator) TicketIDs() []int { return o.global.IDs() }

// Ticket looks a ticket up in the global projection.
func (o *Orchestrator) Ticket(id int) (tickets.Ticket, bool) { return o.global.Get(id) }

// FilteredTickets returns the filtered view, or nil when no filter is active.
func (o *Orchestrator) FilteredTickets() []tickets.Ticket {
	if !o.filtered.Active() {
		return nil
	}
	return o.filtered.List()
}

// ActiveFilter returns the filter behind the filtered view, if any.
func (o *Orchestrator) ActiveFilter() (tickets.Filter, bool) { return o.filtered.Filter() }

// Unread returns the global unread count.
func (o *Orchestrator) Unread() int { return o.unread.Unread() }

// Loading reports whether a refresh of view is in progress.
func (o *Orchestrator) Loading(view View) bool {
	o.loadingMu.Lock()
	defer o.loadingMu.Unlock()
	return o.loading[view]
}

// setLoading records the flag and reports whether it changed.
func (o *Orchestrator) setLoading(view View, v bool) bool {
	o.loadingMu.Lock()
	defer o.loadingMu.Unlock()
	if o.loading[view] == v {
		return false
	}
	o.loading[view] = v
	return true
}

func (o *Orchestrator) added(ids []int) {
	if len(ids) > 0 && o.opts.OnAdded != nil {
		o.opts.OnAdded(ids)
	}
}
