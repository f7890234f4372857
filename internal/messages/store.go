package messages

import (
	"iter"
	"sync"
	"time"
)

// Change describes what Upsert did.
type Change int

const (
	// Dropped means the ticket's timeline is not open.
	Dropped Change = iota
	Appended
	Merged
)

type timeline struct {
	entries []Message
	byID    map[string]int // message_id -> position in entries
}

func (tl *timeline) upsert(m Message) (Message, Change) {
	if m.MessageID != "" {
		if pos, ok := tl.byID[m.MessageID]; ok {
			tl.entries[pos] = tl.entries[pos].merge(m)
			return tl.entries[pos], Merged
		}
		tl.byID[m.MessageID] = len(tl.entries)
	}
	tl.entries = append(tl.entries, m)
	return m, Appended
}

func newTimeline(size int) *timeline {
	return &timeline{byID: make(map[string]int, size)}
}

// Store holds one timeline per open ticket. Timelines exist between
// Prepare (or Load) and Discard; they are never persisted.
type Store struct {
	mu        sync.RWMutex
	timelines map[int]*timeline
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{timelines: make(map[int]*timeline)}
}

// Prepare opens an empty timeline for the ticket, dropping any previous
// contents, so pushes that arrive while its history is being fetched are
// kept instead of dropped.
func (s *Store) Prepare(ticketID int) {
	s.mu.Lock()
	s.timelines[ticketID] = newTimeline(0)
	s.mu.Unlock()
}

// Load installs the fetched history of the ticket. Entries already in an
// open timeline arrived after the fetch started: they are merged over the
// history by message_id, or appended after it. Entries repeating a
// message_id are merged.
func (s *Store) Load(ticketID int, msgs []Message) {
	tl := newTimeline(len(msgs))
	for _, m := range msgs {
		m.TicketID = ticketID
		tl.upsert(m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pending, ok := s.timelines[ticketID]; ok {
		for _, m := range pending.entries {
			tl.upsert(m)
		}
	}
	s.timelines[ticketID] = tl
}

// Discard closes the ticket's timeline.
func (s *Store) Discard(ticketID int) {
	s.mu.Lock()
	delete(s.timelines, ticketID)
	s.mu.Unlock()
}

// IsOpen reports whether the ticket's timeline is loaded.
func (s *Store) IsOpen(ticketID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.timelines[ticketID]
	return ok
}

// Open returns the ids of the open timelines.
func (s *Store) Open() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.timelines))
	for id := range s.timelines {
		ids = append(ids, id)
	}
	return ids
}

// Upsert merges m into its ticket's timeline by message_id, keeping the
// entry's position, or appends it. Messages for tickets that are not open
// are dropped.
func (s *Store) Upsert(m Message) (Message, Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tl, ok := s.timelines[m.TicketID]
	if !ok {
		return m, Dropped
	}
	return tl.upsert(m)
}

// ForTicket returns a copy of the ticket's timeline.
func (s *Store) ForTicket(ticketID int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tl, ok := s.timelines[ticketID]
	if !ok {
		return nil
	}
	out := make([]Message, len(tl.entries))
	copy(out, tl.entries)
	return out
}

// List iterates the ticket's timeline. Each iteration works on a snapshot
// taken when it starts, so the sequence can be restarted.
func (s *Store) List(ticketID int) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for _, m := range s.ForTicket(ticketID) {
			if !yield(m) {
				return
			}
		}
	}
}

// Media iterates the ticket's image, audio, video and file messages.
func (s *Store) Media(ticketID int) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for m := range s.List(ticketID) {
			if m.IsMedia() && !yield(m) {
				return
			}
		}
	}
}

// MarkSeen stamps every message of the ticket lacking a seen marker with
// viewer and at. It returns how many messages were stamped.
func (s *Store) MarkSeen(ticketID, viewer int, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	tl, ok := s.timelines[ticketID]
	if !ok {
		return 0
	}
	stamp := at.UTC().Format(time.RFC3339)
	n := 0
	for i := range tl.entries {
		if tl.entries[i].Seen() {
			continue
		}
		tl.entries[i].SeenBy = viewer
		tl.entries[i].SeenAt = stamp
		n++
	}
	return n
}
