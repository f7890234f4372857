// Package unread maintains the global unread counter derived from the
// per-ticket unseen counts of the global projection.
package unread

import (
	"log/slog"
	"sync"
)

// Counter is the per-ticket unseen storage the accounting writes through.
// *tickets.Projection and *tickets.FilteredView satisfy it.
type Counter interface {
	SetUnseen(id, n int) (prior int, ok bool)
	AddUnseen(id, delta int) (int, bool)
}

// Accounting owns the global unread counter. The counter is never negative.
//
// Only the global projection contributes to the counter. Mirrors (the
// filtered view) are kept in step but never change the total.
type Accounting struct {
	mu      sync.Mutex
	unread  int
	window  *Window
	global  Counter
	mirrors []Counter
}

// New returns an Accounting writing through global, with mirrors updated
// alongside it.
func New(window *Window, global Counter, mirrors ...Counter) *Accounting {
	if window == nil {
		window = NewWindow(DefaultWindow)
	}
	return &Accounting{window: window, global: global, mirrors: mirrors}
}

// Unread returns the current global unread count.
func (a *Accounting) Unread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unread
}

// ApplyDelta adjusts the counter by n, clamped at zero, and returns the
// new value.
func (a *Accounting) ApplyDelta(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unread = max(a.unread+n, 0)
	return a.unread
}

// Reset sets the counter to zero.
func (a *Accounting) Reset() {
	a.mu.Lock()
	a.unread = 0
	a.mu.Unlock()
}

// MarkSeen zeroes the ticket's unseen count and subtracts the same amount
// from the counter. It returns the amount that was cleared.
func (a *Accounting) MarkSeen(ticketID int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.mirrors {
		m.SetUnseen(ticketID, 0)
	}
	prior, ok := a.global.SetUnseen(ticketID, 0)
	if !ok || prior == 0 {
		return 0
	}
	a.unread = max(a.unread-prior, 0)
	return prior
}

// Outcome says what NoteMessage did with a delivery.
type Outcome int

const (
	// Duplicate means the message id was already processed.
	Duplicate Outcome = iota
	// Ignored means the message was new but not from the other party.
	Ignored
	// Counted means the ticket and the global counter were incremented.
	Counted
	// Unknown means the message counts but the ticket is not in the
	// global projection; the caller should fetch it.
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Duplicate:
		return "duplicate"
	case Ignored:
		return "ignored"
	case Counted:
		return "counted"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// NoteMessage accounts for one delivered message. A repeated messageID is
// absorbed without touching any count.
func (a *Accounting) NoteMessage(ticketID int, messageID string, fromOtherParty bool) Outcome {
	if !a.window.Observe(messageID) {
		slog.Debug("duplicate message delivery", "ticket_id", ticketID, "message_id", messageID)
		return Duplicate
	}
	if !fromOtherParty {
		return Ignored
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.global.AddUnseen(ticketID, 1); !ok {
		return Unknown
	}
	for _, m := range a.mirrors {
		m.AddUnseen(ticketID, 1)
	}
	a.unread++
	return Counted
}
