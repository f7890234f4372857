package unread

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwoot/ticketsync/internal/tickets"
)

func TestNoteMessageDuplicateDelivery(t *testing.T) {
	global := tickets.NewProjection()
	global.Upsert(tickets.Ticket{ID: 5})
	a := New(NewWindow(10), global)
	a.ApplyDelta(3)

	assert.Equal(t, Counted, a.NoteMessage(5, "42", true))
	unseen, _ := global.UnseenCount(5)
	assert.Equal(t, 1, unseen)
	assert.Equal(t, 4, a.Unread())

	assert.Equal(t, Duplicate, a.NoteMessage(5, "42", true))
	unseen, _ = global.UnseenCount(5)
	assert.Equal(t, 1, unseen)
	assert.Equal(t, 4, a.Unread())
}

func TestNoteMessageFromViewerIsIgnored(t *testing.T) {
	global := tickets.NewProjection()
	global.Upsert(tickets.Ticket{ID: 1})
	a := New(nil, global)

	assert.Equal(t, Ignored, a.NoteMessage(1, "a", false))
	assert.Equal(t, 0, a.Unread())
	assert.Equal(t, Duplicate, a.NoteMessage(1, "a", true), "id is remembered even when not counted")
}

func TestNoteMessageUnknownTicket(t *testing.T) {
	a := New(nil, tickets.NewProjection())
	assert.Equal(t, Unknown, a.NoteMessage(9, "x", true))
	assert.Equal(t, 0, a.Unread())
}

func TestNoteMessageWithoutIDIsNeverDeduplicated(t *testing.T) {
	global := tickets.NewProjection()
	global.Upsert(tickets.Ticket{ID: 1})
	a := New(nil, global)
	a.NoteMessage(1, "", true)
	a.NoteMessage(1, "", true)
	assert.Equal(t, 2, a.Unread())
}

func TestMarkSeen(t *testing.T) {
	global := tickets.NewProjection()
	filtered := tickets.NewFilteredView()
	global.Upsert(tickets.Ticket{ID: 1, UnseenCount: 3})
	global.Upsert(tickets.Ticket{ID: 2, UnseenCount: 2})
	filtered.Upsert(tickets.Ticket{ID: 1, UnseenCount: 3})
	a := New(nil, global, filtered)
	a.ApplyDelta(global.TotalUnseen())

	assert.Equal(t, 3, a.MarkSeen(1))
	assert.Equal(t, 2, a.Unread())
	n, _ := global.UnseenCount(1)
	assert.Equal(t, 0, n)
	n, _ = filtered.UnseenCount(1)
	assert.Equal(t, 0, n)

	assert.Equal(t, 0, a.MarkSeen(1))
	assert.Equal(t, 0, a.MarkSeen(404))
	assert.Equal(t, 2, a.Unread())
}

func TestMirrorFollowsCountedMessages(t *testing.T) {
	global := tickets.NewProjection()
	filtered := tickets.NewFilteredView()
	global.Upsert(tickets.Ticket{ID: 1})
	filtered.Upsert(tickets.Ticket{ID: 1})
	a := New(nil, global, filtered)

	a.NoteMessage(1, "m1", true)
	n, _ := filtered.UnseenCount(1)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, a.Unread(), "mirror does not add to the total")
}

func TestUnreadNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	global := tickets.NewProjection()
	for id := 0; id < 10; id++ {
		global.Upsert(tickets.Ticket{ID: id})
	}
	a := New(NewWindow(16), global)
	for i := 0; i < 5000; i++ {
		id := rng.Intn(12)
		switch rng.Intn(3) {
		case 0:
			a.NoteMessage(id, fmt.Sprint(rng.Intn(40)), rng.Intn(2) == 0)
		case 1:
			a.MarkSeen(id)
		case 2:
			a.ApplyDelta(rng.Intn(7) - 4)
		}
		require.GreaterOrEqual(t, a.Unread(), 0)
	}
}

func TestWindowEvictsOldestHalf(t *testing.T) {
	w := NewWindow(4)
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.True(t, w.Observe(id))
	}
	assert.Equal(t, 4, w.Len())

	assert.True(t, w.Observe("e"))
	assert.LessOrEqual(t, w.Len(), 4)
	assert.False(t, w.Contains("a"))
	assert.False(t, w.Contains("b"))
	assert.True(t, w.Contains("e"))
	assert.False(t, w.Observe("d"), "recent ids survive eviction")
	assert.True(t, w.Observe("a"), "evicted ids count as new again")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "counted", Counted.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "invalid", Outcome(99).String())
}
