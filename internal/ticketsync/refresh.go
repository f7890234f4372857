package ticketsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/chatwoot/ticketsync/internal/api"
	"github.com/chatwoot/ticketsync/internal/generation"
	"github.com/chatwoot/ticketsync/internal/tickets"
)

// RefreshAll rebuilds the global projection from page 1 onward and
// recomputes the unread counter from it. A newer RefreshAll supersedes
// this one; superseded pages and errors are dropped silently.
func (o *Orchestrator) RefreshAll(ctx context.Context) error {
	tok := o.globalGen.Begin()
	started := o.globalGen.Do(tok, func() {
		o.mu.Lock()
		o.global.Reset()
		o.unread.Reset()
		o.mu.Unlock()
	})
	if !started {
		return nil
	}
	return o.paginate(ctx, Global, &o.globalGen, tok, nil, o.applyGlobalPage)
}

// ApplyFilter activates f on the filtered view and fills the view with
// its own paginated fetch.
func (o *Orchestrator) ApplyFilter(ctx context.Context, f tickets.Filter) error {
	pred, err := f.Compile()
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	tok := o.filteredGen.Begin()
	started := o.filteredGen.Do(tok, func() {
		o.mu.Lock()
		o.filtered.Activate(pred)
		o.mu.Unlock()
	})
	if !started {
		return nil
	}
	return o.paginate(ctx, Filtered, &o.filteredGen, tok, f.Attributes(), o.applyFilteredPage)
}

// ClearFilter deactivates the filtered view and supersedes any filter
// fetch still in flight.
func (o *Orchestrator) ClearFilter() {
	tok := o.filteredGen.Begin()
	var changed bool
	o.filteredGen.Do(tok, func() {
		o.mu.Lock()
		o.filtered.Deactivate()
		o.mu.Unlock()
		changed = o.setLoading(Filtered, false)
	})
	if changed {
		o.notifier.LoadingChanged(Filtered, false)
	}
}

// paginate fetches pages until the reported total is reached or tok is
// superseded. apply runs under the guard and the coordinator lock and
// returns the ids it newly added to the global projection.
func (o *Orchestrator) paginate(
	ctx context.Context,
	view View,
	guard *generation.Guard,
	tok generation.Token,
	attrs map[string]any,
	apply func([]tickets.Ticket) []int,
) error {
	if o.setLoading(view, true) {
		o.notifier.LoadingChanged(view, true)
	}

	total := 1
	for page := 1; page <= total; page++ {
		resp, err := o.backend.ListTickets(ctx, api.ListTicketsParams{
			Page:       page,
			Type:       o.opts.ListType,
			GroupTitle: o.opts.GroupTitle,
			Attributes: attrs,
		})
		if err != nil {
			return o.finishFailed(ctx, view, guard, tok, fmt.Errorf("list tickets page %d: %w", page, err))
		}

		var added []int
		applied := guard.Do(tok, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			added = apply(resp.Tickets)
		})
		if !applied {
			slog.Debug("discarding superseded page", "view", view, "page", page)
			return nil
		}
		o.added(added)
		total = max(int(resp.Pagination.TotalPages), 1)
	}

	var changed bool
	guard.Do(tok, func() { changed = o.setLoading(view, false) })
	if changed {
		o.notifier.LoadingChanged(view, false)
	}
	return nil
}

// finishFailed clears loading and surfaces err when tok is still current.
// A superseded sequence's error is swallowed.
func (o *Orchestrator) finishFailed(ctx context.Context, view View, guard *generation.Guard, tok generation.Token, err error) error {
	var current, changed bool
	guard.Do(tok, func() {
		current = true
		changed = o.setLoading(view, false)
	})
	if !current {
		slog.Debug("dropping superseded fetch error", "view", view, "error", err)
		return nil
	}
	if changed {
		o.notifier.LoadingChanged(view, false)
	}
	if ctx.Err() == nil {
		o.notifier.FetchFailed(view, err)
	}
	return err
}

// applyGlobalPage upserts in-scope tickets and adjusts unread by the change
// in each ticket's unseen count, so a ticket repeated across pages is not
// counted twice.
func (o *Orchestrator) applyGlobalPage(page []tickets.Ticket) []int {
	var added []int
	for _, t := range page {
		if !o.opts.Scope.Allows(t) {
			continue
		}
		if o.upsertGlobalLocked(t) {
			added = append(added, t.ID)
		}
	}
	return added
}

func (o *Orchestrator) applyFilteredPage(page []tickets.Ticket) []int {
	for _, t := range page {
		if o.opts.Scope.Allows(t) && o.filtered.Matches(t) {
			o.filtered.Upsert(t)
		}
	}
	return nil
}

// upsertGlobalLocked reports whether t was new to the global projection.
func (o *Orchestrator) upsertGlobalLocked(t tickets.Ticket) bool {
	fresh := max(t.UnseenCount, 0)
	prev, existed := o.global.Upsert(t)
	o.unread.ApplyDelta(fresh - prev.UnseenCount)
	return !existed
}

// RefreshSingle refetches one ticket and either upserts it into both
// projections or evicts it when it left the viewer's scope. The unread
// counter moves by the difference between the cached and fetched unseen
// counts.
func (o *Orchestrator) RefreshSingle(ctx context.Context, id int) error {
	tok := o.ticketGen.Begin(id)
	defer o.ticketGen.Done(id, tok)

	t, err := o.backend.GetTicket(ctx, id)
	if err != nil {
		if api.IsNotFoundError(err) {
			o.ticketGen.Do(id, tok, func() {
				o.mu.Lock()
				o.evictLocked(id)
				o.mu.Unlock()
			})
			return nil
		}
		if !o.ticketGen.IsCurrent(id, tok) {
			return nil
		}
		err = fmt.Errorf("get ticket %d: %w", id, err)
		if ctx.Err() == nil {
			o.notifier.FetchFailed(Single, err)
		}
		return err
	}
	if t.ID == 0 {
		t.ID = id
	}

	var added bool
	applied := o.ticketGen.Do(id, tok, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		added = o.applyFetchedLocked(t)
	})
	if !applied {
		slog.Debug("discarding superseded ticket refresh", "ticket_id", id)
		return nil
	}
	if added {
		o.added([]int{t.ID})
	}
	return nil
}

// applyFetchedLocked places a freshly fetched ticket and reports whether it
// was new to the global projection.
func (o *Orchestrator) applyFetchedLocked(t tickets.Ticket) bool {
	if !o.opts.Scope.Allows(t) {
		o.evictLocked(t.ID)
		return false
	}
	added := o.upsertGlobalLocked(t)
	if o.filtered.Active() {
		o.filtered.Reconcile(t)
	}
	return added
}

// RefreshMany refreshes ids concurrently, bounded by Options.Concurrency.
// Individual failures do not stop the others; they are joined.
func (o *Orchestrator) RefreshMany(ctx context.Context, ids []int) error {
	sem := semaphore.NewWeighted(int64(o.opts.Concurrency))
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)
			if err := o.RefreshSingle(gctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
