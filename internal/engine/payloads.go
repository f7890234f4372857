package engine

import "github.com/chatwoot/ticketsync/internal/tickets"

type seenPayload struct {
	TicketID tickets.FlexInt `json:"ticket_id"`
	ClientID tickets.FlexInt `json:"client_id"`
	SeenAt   string          `json:"seen_at"`
}

type ticketPayload struct {
	TicketID   tickets.FlexInt   `json:"ticket_id"`
	TicketIDs  []tickets.FlexInt `json:"ticket_ids"`
	GroupTitle string            `json:"group_title"`
	Workflow   string            `json:"workflow"`
}

type ticketChange struct {
	ID           tickets.FlexInt `json:"id"`
	TechnicianID tickets.FlexInt `json:"technician_id"`
	Workflow     string          `json:"workflow"`
}

type ticketUpdatePayload struct {
	TicketID  tickets.FlexInt   `json:"ticket_id"`
	TicketIDs []tickets.FlexInt `json:"ticket_ids"`
	Tickets   []ticketChange    `json:"tickets"`
}

// ids collects ticket_id and ticket_ids, skipping zeros.
func ids(single tickets.FlexInt, many []tickets.FlexInt) []int {
	out := make([]int, 0, len(many)+1)
	if single > 0 {
		out = append(out, int(single))
	}
	for _, id := range many {
		if id > 0 {
			out = append(out, int(id))
		}
	}
	return out
}

// outbound seen acknowledgement.
type seenAck struct {
	TicketID int `json:"ticket_id"`
}
