package messages

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageUnmarshalNumericMessageID(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"ticket_id":"5","message_id":42,"sender_id":999,"mtype":"text","message":"hi"}`), &m)
	require.NoError(t, err)
	assert.Equal(t, 5, m.TicketID)
	assert.Equal(t, "42", m.MessageID)
	assert.Equal(t, 999, m.SenderID)
	assert.Equal(t, "hi", m.Message)
}

func TestMessageUnmarshalKeepsLargeNumericIDs(t *testing.T) {
	var a, b Message
	require.NoError(t, json.Unmarshal([]byte(`{"ticket_id":1,"message_id":9007199254740993}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"ticket_id":1,"message_id":9007199254740992}`), &b))
	assert.Equal(t, "9007199254740993", a.MessageID)
	assert.Equal(t, "9007199254740992", b.MessageID)

	s := NewStore()
	s.Load(1, nil)
	s.Upsert(a)
	_, change := s.Upsert(b)
	assert.Equal(t, Appended, change)
	assert.Len(t, s.ForTicket(1), 2)
}

func TestUpsertDropsClosedTickets(t *testing.T) {
	s := NewStore()
	_, change := s.Upsert(Message{TicketID: 1, MessageID: "a"})
	assert.Equal(t, Dropped, change)
	assert.Nil(t, s.ForTicket(1))
}

func TestUpsertMergesTwoPhaseCall(t *testing.T) {
	s := NewStore()
	s.Load(1, []Message{{MessageID: "first", MType: TypeText}})

	_, change := s.Upsert(Message{TicketID: 1, MessageID: "call-1", MType: TypeCall, CallStatus: "ringing"})
	assert.Equal(t, Appended, change)
	s.Upsert(Message{TicketID: 1, MessageID: "later", MType: TypeText})

	merged, change := s.Upsert(Message{TicketID: 1, MessageID: "call-1", RecordingURL: "https://rec/1.mp3", Duration: 30})
	assert.Equal(t, Merged, change)
	assert.Equal(t, "ringing", merged.CallStatus, "status survives a recording-only update")
	assert.Equal(t, "https://rec/1.mp3", merged.RecordingURL)

	merged, _ = s.Upsert(Message{TicketID: 1, MessageID: "call-1", CallStatus: "completed"})
	assert.Equal(t, "https://rec/1.mp3", merged.RecordingURL, "recording survives a status-only update")
	assert.Equal(t, "completed", merged.CallStatus)
	assert.Equal(t, TypeCall, merged.MType)

	timeline := s.ForTicket(1)
	require.Len(t, timeline, 3)
	assert.Equal(t, "call-1", timeline[1].MessageID, "merge keeps position")
	assert.Equal(t, 30, timeline[1].Duration)
}

func TestUpsertWithoutMessageIDAppends(t *testing.T) {
	s := NewStore()
	s.Load(1, nil)
	s.Upsert(Message{TicketID: 1, Message: "a"})
	s.Upsert(Message{TicketID: 1, Message: "a"})
	assert.Len(t, s.ForTicket(1), 2)
}

func TestLoadMergesRepeatedIDsAndDiscard(t *testing.T) {
	s := NewStore()
	s.Load(7, []Message{{MessageID: "x", Message: "v1"}, {MessageID: "x", Message: "v2"}})
	timeline := s.ForTicket(7)
	require.Len(t, timeline, 1)
	assert.Equal(t, "v2", timeline[0].Message)
	assert.Equal(t, 7, timeline[0].TicketID)
	assert.True(t, s.IsOpen(7))
	assert.Equal(t, []int{7}, s.Open())

	s.Discard(7)
	assert.False(t, s.IsOpen(7))
	assert.Empty(t, s.ForTicket(7))
}

func TestLoadKeepsMessagesReceivedSincePrepare(t *testing.T) {
	s := NewStore()
	s.Load(3, []Message{{MessageID: "stale"}})
	s.Prepare(3)
	assert.True(t, s.IsOpen(3))
	assert.Empty(t, s.ForTicket(3), "prepare starts from an empty timeline")

	_, change := s.Upsert(Message{TicketID: 3, MessageID: "pushed", Message: "live"})
	assert.Equal(t, Appended, change)
	s.Upsert(Message{TicketID: 3, MessageID: "call", RecordingURL: "https://rec/c.mp3"})

	s.Load(3, []Message{
		{MessageID: "old", Message: "history"},
		{MessageID: "call", MType: TypeCall, CallStatus: "completed"},
	})

	timeline := s.ForTicket(3)
	ids := make([]string, 0, len(timeline))
	for _, m := range timeline {
		ids = append(ids, m.MessageID)
	}
	assert.Equal(t, []string{"old", "call", "pushed"}, ids)
	assert.Equal(t, "completed", timeline[1].CallStatus)
	assert.Equal(t, "https://rec/c.mp3", timeline[1].RecordingURL)
	assert.Equal(t, 3, timeline[0].TicketID)
}

func TestMediaIsLazyAndRestartable(t *testing.T) {
	s := NewStore()
	s.Load(1, []Message{
		{MessageID: "1", MType: TypeText},
		{MessageID: "2", MType: TypeImage},
		{MessageID: "3", MType: TypeCall},
		{MessageID: "4", MType: TypeAudio},
		{MessageID: "5", MType: TypeFile},
	})

	ids := func() []string {
		var out []string
		for m := range s.Media(1) {
			out = append(out, m.MessageID)
		}
		return out
	}
	assert.Equal(t, []string{"2", "4", "5"}, ids())
	assert.Equal(t, []string{"2", "4", "5"}, ids())

	s.Upsert(Message{TicketID: 1, MessageID: "6", MType: TypeVideo})
	assert.Equal(t, []string{"2", "4", "5", "6"}, ids())

	var first []Message
	for m := range s.Media(1) {
		first = append(first, m)
		break
	}
	assert.Len(t, first, 1)

	assert.Empty(t, slices.Collect(s.Media(404)))
}

func TestMarkSeenStampsUnseenOnly(t *testing.T) {
	s := NewStore()
	s.Load(1, []Message{
		{MessageID: "1", SeenBy: 3, SeenAt: "2024-01-01T00:00:00Z"},
		{MessageID: "2"},
		{MessageID: "3"},
	})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, s.MarkSeen(1, 8, at))
	timeline := s.ForTicket(1)
	assert.Equal(t, 3, timeline[0].SeenBy)
	assert.Equal(t, 8, timeline[1].SeenBy)
	assert.Equal(t, "2024-05-01T12:00:00Z", timeline[2].SeenAt)

	assert.Equal(t, 0, s.MarkSeen(1, 8, at))
	assert.Equal(t, 0, s.MarkSeen(2, 8, at))
}
