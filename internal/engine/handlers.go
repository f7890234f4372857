package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/chatwoot/ticketsync/internal/events"
	"github.com/chatwoot/ticketsync/internal/messages"
	"github.com/chatwoot/ticketsync/internal/tickets"
	"github.com/chatwoot/ticketsync/internal/ticketsync"
	"github.com/chatwoot/ticketsync/internal/unread"
)

func (e *Engine) registerHandlers() {
	events.On(e.router, events.TypeMessage, e.handleMessage)
	events.On(e.router, events.TypeSeen, e.handleSeen)
	events.On(e.router, events.TypeTicket, e.handleTicket)
	events.On(e.router, events.TypeTicketUpdate, e.handleTicketUpdate)
	e.router.Subscribe(events.TypePong, func(context.Context, json.RawMessage) error { return nil })
}

func (e *Engine) handleMessage(_ context.Context, m messages.Message) error {
	if m.TicketID <= 0 {
		slog.Debug("message without ticket_id", "message_id", m.MessageID)
		return nil
	}
	e.msgs.Upsert(m)

	outcome := e.orch.NoteMessage(ticketsync.Delivery{
		TicketID:       m.TicketID,
		MessageID:      m.MessageID,
		Text:           m.Message,
		TimeSent:       m.TimeSent,
		FromOtherParty: e.policy.FromOtherParty(m.SenderID),
		FromClient:     e.policy.FromClient(m.SenderID),
	})
	if outcome == unread.Unknown {
		id := m.TicketID
		e.goRefresh(func(ctx context.Context) error { return e.orch.RefreshSingle(ctx, id) })
	}
	return nil
}

func (e *Engine) handleSeen(_ context.Context, p seenPayload) error {
	id := int(p.TicketID)
	if id <= 0 {
		return nil
	}
	e.orch.MarkSeen(id)

	viewer, at := e.policy.ViewerID, e.now()
	if p.ClientID > 0 {
		viewer = int(p.ClientID)
	}
	if ts, ok := tickets.ParseTime(p.SeenAt); ok {
		at = ts
	}
	e.msgs.MarkSeen(id, viewer, at)
	return nil
}

func (e *Engine) handleTicket(_ context.Context, p ticketPayload) error {
	refs := ids(p.TicketID, p.TicketIDs)
	if len(refs) == 0 {
		return nil
	}
	if !e.orch.Scope().AllowsEvent(p.GroupTitle, p.Workflow) {
		e.evict(refs)
		return nil
	}
	e.goRefresh(func(ctx context.Context) error { return e.orch.RefreshMany(ctx, refs) })
	return nil
}

func (e *Engine) handleTicketUpdate(_ context.Context, p ticketUpdatePayload) error {
	refresh := ids(p.TicketID, p.TicketIDs)
	for _, c := range p.Tickets {
		id := int(c.ID)
		if id <= 0 {
			continue
		}
		if _, known := e.orch.Ticket(id); !known {
			// The fetch decides scope for tickets we have never seen.
			if e.orch.Scope().AllowsEvent("", c.Workflow) {
				refresh = append(refresh, id)
			}
			continue
		}
		if e.orch.ApplyTicketUpdate(id, int(c.TechnicianID), c.Workflow) {
			refresh = append(refresh, id)
		} else {
			e.msgs.Discard(id)
			slog.Debug("ticket left scope", "ticket_id", id)
		}
	}
	if len(refresh) > 0 {
		e.goRefresh(func(ctx context.Context) error { return e.orch.RefreshMany(ctx, refresh) })
	}
	return nil
}

func (e *Engine) evict(ids []int) {
	for _, id := range e.orch.Evict(ids...) {
		e.msgs.Discard(id)
		slog.Debug("ticket left scope", "ticket_id", id)
	}
}
