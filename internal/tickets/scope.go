package tickets

import "strings"

// Scope describes which tickets the viewer may see at all. It is distinct
// from Filter: a ticket that leaves the scope is dropped from every
// projection, while a filter only narrows the filtered view.
type Scope struct {
	// Groups and Workflows list the accessible values; empty allows all.
	Groups    []string
	Workflows []string
	// OnlyOwn restricts the viewer to tickets assigned to ViewerID.
	OnlyOwn  bool
	ViewerID int
}

// AllowsGroup reports whether group is accessible.
func (s Scope) AllowsGroup(group string) bool {
	return len(s.Groups) == 0 || containsFold(s.Groups, group)
}

// AllowsWorkflow reports whether workflow is accessible.
func (s Scope) AllowsWorkflow(workflow string) bool {
	return len(s.Workflows) == 0 || containsFold(s.Workflows, workflow)
}

// AllowsOwner reports whether a ticket owned by technicianID is accessible.
func (s Scope) AllowsOwner(technicianID int) bool {
	return !s.OnlyOwn || technicianID == s.ViewerID
}

// Allows reports whether t belongs in the viewer's projections.
func (s Scope) Allows(t Ticket) bool {
	return s.AllowsGroup(t.GroupTitle) && s.AllowsWorkflow(t.Workflow) && s.AllowsOwner(t.TechnicianID)
}

// AllowsEvent checks the group/workflow hints carried by a push event.
// Missing hints do not exclude anything; the refetch decides.
func (s Scope) AllowsEvent(group, workflow string) bool {
	if strings.TrimSpace(group) != "" && !s.AllowsGroup(group) {
		return false
	}
	if strings.TrimSpace(workflow) != "" && !s.AllowsWorkflow(workflow) {
		return false
	}
	return true
}
