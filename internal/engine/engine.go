// Package engine wires the push connection, the event router, the ticket
// orchestrator and the message store into one running sync core.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chatwoot/ticketsync/internal/events"
	"github.com/chatwoot/ticketsync/internal/generation"
	"github.com/chatwoot/ticketsync/internal/messages"
	"github.com/chatwoot/ticketsync/internal/socket"
	"github.com/chatwoot/ticketsync/internal/tickets"
	"github.com/chatwoot/ticketsync/internal/ticketsync"
)

// TypeSeen is the outbound frame acknowledging that the viewer read a ticket.
const TypeSeen = "seen"

// Backend is the REST surface the engine needs. *api.Client satisfies it.
type Backend interface {
	ticketsync.Backend
	ListMessages(ctx context.Context, ticketID int) ([]messages.Message, error)
}

// Options configures an Engine.
type Options struct {
	Socket socket.Config
	Sync   ticketsync.Options
	Policy SenderPolicy
	// Directory is refreshed on Start when set; its errors are logged only.
	Directory interface {
		Refresh(ctx context.Context) error
	}
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine is the running sync core.
type Engine struct {
	backend  Backend
	policy   SenderPolicy
	notifier ticketsync.Notifier
	dir      interface{ Refresh(context.Context) error }
	now      func() time.Time

	router *events.Router
	sock   *socket.Manager
	orch   *ticketsync.Orchestrator
	msgs   *messages.Store
	opens  generation.Keyed[int]

	mu      sync.Mutex
	ctx     context.Context
	started bool
	runErr  error
	wg      sync.WaitGroup
}

// New builds an Engine. Nothing connects until Start.
func New(backend Backend, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sync.Notifier == nil {
		opts.Sync.Notifier = ticketsync.LogNotifier{}
	}
	e := &Engine{
		backend:  backend,
		policy:   opts.Policy,
		notifier: opts.Sync.Notifier,
		dir:      opts.Directory,
		now:      opts.Now,
		router:   events.NewRouter(),
		msgs:     messages.NewStore(),
		ctx:      context.Background(),
	}
	syncOpts := opts.Sync
	onAdded := syncOpts.OnAdded
	syncOpts.OnAdded = func(ids []int) {
		e.joinRooms(e.baseContext(), ids)
		if onAdded != nil {
			onAdded(ids)
		}
	}
	e.orch = ticketsync.New(backend, syncOpts)
	e.sock = socket.New(opts.Socket, e.router)
	e.sock.OnOpen(e.rejoin)
	e.sock.OnTerminal(e.notifier.ConnectionFailed)
	e.registerHandlers()
	return e
}

// Start connects the socket and runs the initial ticket fetch in the
// background. It returns an error only when called twice.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.started = true
	e.ctx = ctx
	e.mu.Unlock()

	if e.dir != nil {
		if err := e.dir.Refresh(ctx); err != nil {
			slog.Warn("technician directory unavailable", "error", err)
		}
	}

	e.wg.Go(func() {
		err := e.sock.Run(ctx)
		e.mu.Lock()
		e.runErr = err
		e.mu.Unlock()
	})
	e.goRefresh(func(ctx context.Context) error { return e.orch.RefreshAll(ctx) })
	return nil
}

// Wait blocks until the socket loop and every background refresh have
// returned, then reports the socket's terminal error, if any.
func (e *Engine) Wait() error {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

func (e *Engine) baseContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// goRefresh runs fn on its own goroutine so the socket reader never waits
// on REST. Errors are surfaced by the orchestrator's notifier.
func (e *Engine) goRefresh(fn func(ctx context.Context) error) {
	ctx := e.baseContext()
	e.wg.Go(func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			slog.Debug("background refresh failed", "error", err)
		}
	})
}

func (e *Engine) joinRooms(ctx context.Context, ids []int) {
	if len(ids) == 0 {
		return
	}
	if err := e.sock.JoinRooms(ctx, ids); err != nil {
		// Rooms are joined again on the next open.
		slog.Debug("join rooms deferred", "count", len(ids), "error", err)
	}
}

// rejoin subscribes to every known ticket after each open.
func (e *Engine) rejoin(ctx context.Context) {
	ids := e.orch.TicketIDs()
	for _, id := range e.msgs.Open() {
		if _, ok := e.orch.Ticket(id); !ok {
			ids = append(ids, id)
		}
	}
	e.joinRooms(ctx, ids)
}

// Socket exposes the connection manager, mainly for its state.
func (e *Engine) Socket() *socket.Manager { return e.sock }

// Router exposes the event router so callers can add their own handlers.
func (e *Engine) Router() *events.Router { return e.router }

// Orchestrator exposes the ticket orchestrator.
func (e *Engine) Orchestrator() *ticketsync.Orchestrator { return e.orch }

// Tickets returns the global projection.
func (e *Engine) Tickets() []tickets.Ticket { return e.orch.Tickets() }

// FilteredTickets returns the filtered view, nil when no filter is active.
func (e *Engine) FilteredTickets() []tickets.Ticket { return e.orch.FilteredTickets() }

// Unread returns the global unread counter.
func (e *Engine) Unread() int { return e.orch.Unread() }

// Messages returns a snapshot of an open ticket's timeline.
func (e *Engine) Messages(ticketID int) []messages.Message { return e.msgs.ForTicket(ticketID) }

// Media returns the media messages of an open ticket.
func (e *Engine) Media(ticketID int) []messages.Message {
	var out []messages.Message
	for m := range e.msgs.Media(ticketID) {
		out = append(out, m)
	}
	return out
}

// ApplyFilter activates f and fetches the filtered view.
func (e *Engine) ApplyFilter(ctx context.Context, f tickets.Filter) error {
	return e.orch.ApplyFilter(ctx, f)
}

// ClearFilter deactivates the filtered view.
func (e *Engine) ClearFilter() { e.orch.ClearFilter() }

// Refresh refetches the global projection.
func (e *Engine) Refresh(ctx context.Context) error { return e.orch.RefreshAll(ctx) }

// OpenTicket loads a ticket's messages, joins its room and marks it seen.
// Messages pushed while the history is in flight are kept. A later
// OpenTicket or CloseTicket for the same ticket supersedes this one.
func (e *Engine) OpenTicket(ctx context.Context, ticketID int) error {
	tok := e.opens.Begin(ticketID)
	defer e.opens.Done(ticketID, tok)
	e.opens.Do(ticketID, tok, func() { e.msgs.Prepare(ticketID) })

	msgs, err := e.backend.ListMessages(ctx, ticketID)
	if err != nil {
		e.opens.Do(ticketID, tok, func() { e.msgs.Discard(ticketID) })
		return fmt.Errorf("open ticket %d: %w", ticketID, err)
	}
	if !e.opens.Do(ticketID, tok, func() { e.msgs.Load(ticketID, msgs) }) {
		slog.Debug("superseded ticket open", "ticket_id", ticketID)
		return nil
	}
	e.joinRooms(ctx, []int{ticketID})
	e.MarkSeen(ctx, ticketID)
	return nil
}

// CloseTicket discards the ticket's timeline and cancels an open in flight.
func (e *Engine) CloseTicket(ticketID int) {
	tok := e.opens.Begin(ticketID)
	e.opens.Do(ticketID, tok, func() { e.msgs.Discard(ticketID) })
	e.opens.Done(ticketID, tok)
}

// MarkSeen acknowledges everything on the ticket as read by the viewer:
// unread drops by the ticket's unseen count, open messages are stamped and
// the server is told on a best-effort basis.
func (e *Engine) MarkSeen(ctx context.Context, ticketID int) int {
	n := e.orch.MarkSeen(ticketID)
	e.msgs.MarkSeen(ticketID, e.policy.ViewerID, e.now())
	if err := e.sock.Send(ctx, TypeSeen, seenAck{TicketID: ticketID}); err != nil {
		slog.Debug("seen acknowledgement not sent", "ticket_id", ticketID, "error", err)
	}
	return n
}

// ClearActionNeeded resolves the ticket's action_needed flag.
func (e *Engine) ClearActionNeeded(ctx context.Context, ticketID int) error {
	return e.orch.ClearActionNeeded(ctx, ticketID)
}

// BulkDelete deletes tickets and closes their timelines.
func (e *Engine) BulkDelete(ctx context.Context, ids []int) error {
	if err := e.orch.BulkDelete(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		e.msgs.Discard(id)
	}
	return nil
}
