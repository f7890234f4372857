package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/chatwoot/ticketsync/internal/messages"
	"github.com/chatwoot/ticketsync/internal/tickets"
)

// Listing types: a light listing returns summaries, a hard one full records.
const (
	ListLight = "light"
	ListHard  = "hard"
)

// ListTicketsParams selects one page of the ticket listing.
type ListTicketsParams struct {
	Page       int
	Type       string
	GroupTitle string
	Attributes map[string]any
}

func (p ListTicketsParams) query() (url.Values, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(p.Page, 1)))
	if p.Type != "" {
		q.Set("type", p.Type)
	}
	if p.GroupTitle != "" {
		q.Set("group_title", p.GroupTitle)
	}
	if len(p.Attributes) > 0 {
		raw, err := json.Marshal(p.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attributes: %w", err)
		}
		q.Set("attributes", string(raw))
	}
	return q, nil
}

// Pagination is the listing's paging metadata.
type Pagination struct {
	CurrentPage tickets.FlexInt `json:"current_page"`
	TotalPages  tickets.FlexInt `json:"total_pages"`
	TotalCount  tickets.FlexInt `json:"total_count"`
}

// TicketPage is one page of the ticket listing.
type TicketPage struct {
	Tickets    []tickets.Ticket `json:"tickets"`
	Pagination Pagination       `json:"pagination"`
}

// Technician is an operator account.
type Technician struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ListTickets fetches one page of tickets.
func (c *Client) ListTickets(ctx context.Context, params ListTicketsParams) (*TicketPage, error) {
	q, err := params.query()
	if err != nil {
		return nil, err
	}
	var page TicketPage
	if err := c.do(ctx, http.MethodGet, "/tickets?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTicket fetches one ticket. The backend may wrap it in {"ticket": ...}.
func (c *Client) GetTicket(ctx context.Context, id int) (tickets.Ticket, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, &raw); err != nil {
		return tickets.Ticket{}, err
	}
	return decodeTicket(raw)
}

func decodeTicket(raw json.RawMessage) (tickets.Ticket, error) {
	var wrapped struct {
		Ticket *tickets.Ticket `json:"ticket"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Ticket != nil {
		return *wrapped.Ticket, nil
	}
	var t tickets.Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return tickets.Ticket{}, fmt.Errorf("unexpected ticket payload: %w", err)
	}
	return t, nil
}

// ListMessages fetches the message history of a ticket.
func (c *Client) ListMessages(ctx context.Context, ticketID int) ([]messages.Message, error) {
	var resp struct {
		Messages []messages.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d/messages", ticketID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ClearActionNeeded resolves the ticket's action-needed flag and returns
// the updated ticket.
func (c *Client) ClearActionNeeded(ctx context.Context, id int) (tickets.Ticket, error) {
	var raw json.RawMessage
	body := map[string]any{"action_needed": false}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tickets/%d", id), body, &raw); err != nil {
		return tickets.Ticket{}, err
	}
	return decodeTicket(raw)
}

// DeleteTickets deletes tickets in bulk.
func (c *Client) DeleteTickets(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/tickets", map[string]any{"ticket_ids": ids}, nil)
}

// ListTechnicians fetches the operator directory.
func (c *Client) ListTechnicians(ctx context.Context) ([]Technician, error) {
	var resp struct {
		Technicians []Technician `json:"technicians"`
	}
	if err := c.do(ctx, http.MethodGet, "/technicians", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Technicians, nil
}
