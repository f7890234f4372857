package tickets

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/chatwoot/ticketsync/internal/filter"
)

// Filter is the user-chosen predicate behind the filtered view. Empty fields
// match everything; set fields are ANDed.
type Filter struct {
	Workflows     []string
	TechnicianIDs []int
	Groups        []string
	ActionNeeded  *bool
	CreatedFrom   time.Time
	CreatedTo     time.Time
	SentFrom      time.Time
	SentTo        time.Time
	// Expr is an optional jq expression evaluated against the ticket's JSON.
	Expr string
}

// IsZero reports whether the filter has no terms.
func (f Filter) IsZero() bool {
	return len(f.Workflows) == 0 && len(f.TechnicianIDs) == 0 && len(f.Groups) == 0 &&
		f.ActionNeeded == nil && f.CreatedFrom.IsZero() && f.CreatedTo.IsZero() &&
		f.SentFrom.IsZero() && f.SentTo.IsZero() && strings.TrimSpace(f.Expr) == ""
}

// Attributes renders the filter as the attributes object sent to the
// ticket-list endpoint. The jq expression is client-side only.
func (f Filter) Attributes() map[string]any {
	attrs := map[string]any{}
	if len(f.Workflows) > 0 {
		attrs["workflow"] = f.Workflows
	}
	if len(f.TechnicianIDs) > 0 {
		attrs["technician_id"] = f.TechnicianIDs
	}
	if len(f.Groups) > 0 {
		attrs["group_title"] = f.Groups
	}
	if f.ActionNeeded != nil {
		attrs["action_needed"] = *f.ActionNeeded
	}
	if r := dateRange(f.CreatedFrom, f.CreatedTo); r != nil {
		attrs["creation_date"] = r
	}
	if r := dateRange(f.SentFrom, f.SentTo); r != nil {
		attrs["last_interaction_date"] = r
	}
	return attrs
}

func dateRange(from, to time.Time) map[string]string {
	if from.IsZero() && to.IsZero() {
		return nil
	}
	r := map[string]string{}
	if !from.IsZero() {
		r["from"] = from.Format("2006-01-02")
	}
	if !to.IsZero() {
		r["to"] = to.Format("2006-01-02")
	}
	return r
}

// Compile validates the filter and prepares it for matching.
func (f Filter) Compile() (*Predicate, error) {
	p := &Predicate{filter: f}
	if expr := strings.TrimSpace(f.Expr); expr != "" {
		q, err := filter.Compile(expr)
		if err != nil {
			return nil, err
		}
		p.query = q
	}
	if !f.CreatedFrom.IsZero() && !f.CreatedTo.IsZero() && f.CreatedTo.Before(f.CreatedFrom) {
		return nil, fmt.Errorf("created range is inverted: %s > %s", f.CreatedFrom.Format(time.DateOnly), f.CreatedTo.Format(time.DateOnly))
	}
	if !f.SentFrom.IsZero() && !f.SentTo.IsZero() && f.SentTo.Before(f.SentFrom) {
		return nil, fmt.Errorf("sent range is inverted: %s > %s", f.SentFrom.Format(time.DateOnly), f.SentTo.Format(time.DateOnly))
	}
	return p, nil
}

// Predicate is a compiled Filter.
type Predicate struct {
	filter Filter
	query  *filter.Query
}

// Filter returns the filter the predicate was compiled from.
func (p *Predicate) Filter() Filter { return p.filter }

// Match reports whether t satisfies every term of the filter.
func (p *Predicate) Match(t Ticket) bool {
	f := p.filter
	if len(f.Workflows) > 0 && !containsFold(f.Workflows, t.Workflow) {
		return false
	}
	if len(f.TechnicianIDs) > 0 && !slices.Contains(f.TechnicianIDs, t.TechnicianID) {
		return false
	}
	if len(f.Groups) > 0 && !containsFold(f.Groups, t.GroupTitle) {
		return false
	}
	if f.ActionNeeded != nil && t.ActionNeeded != *f.ActionNeeded {
		return false
	}
	if !inRange(t.CreationDate, f.CreatedFrom, f.CreatedTo) {
		return false
	}
	if !inRange(t.TimeSent, f.SentFrom, f.SentTo) {
		return false
	}
	if p.query != nil {
		ok, err := p.query.MatchValue(t)
		if err != nil {
			slog.Debug("ticket filter expression failed", "ticket_id", t.ID, "error", err)
			return false
		}
		return ok
	}
	return true
}

// inRange treats to as inclusive of the whole day. A ticket without a
// parseable timestamp fails any range that is set.
func inRange(value string, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	ts, ok := ParseTime(value)
	if !ok {
		return false
	}
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && !ts.Before(to.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}
