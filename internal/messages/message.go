// Package messages keeps the timelines of the conversations the viewer has
// open.
package messages

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/chatwoot/ticketsync/internal/tickets"
)

// Message types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
	TypeVideo = "video"
	TypeFile  = "file"
	TypeCall  = "call"
	TypeEmail = "email"
)

// FlexString handles JSON values that may come as strings or numbers and
// stores them as strings. Numbers keep their literal digits so large ids
// stay distinct.
type FlexString string

func (fs *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*fs = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fs = FlexString(s)
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil {
		if n, ok := v.(json.Number); ok {
			*fs = FlexString(n.String())
			return nil
		}
	}
	return fmt.Errorf("cannot unmarshal %s into FlexString", data)
}

// Message is one timeline entry of a ticket.
type Message struct {
	ID           int    `json:"id,omitempty"`
	TicketID     int    `json:"ticket_id"`
	ClientID     int    `json:"client_id,omitempty"`
	SenderID     int    `json:"sender_id"`
	Platform     string `json:"platform,omitempty"`
	Message      string `json:"message,omitempty"`
	MType        string `json:"mtype,omitempty"`
	TimeSent     string `json:"time_sent,omitempty"`
	MessageID    string `json:"message_id,omitempty"`
	CallStatus   string `json:"call_status,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	SeenBy       int    `json:"seen_by,omitempty"`
	SeenAt       string `json:"seen_at,omitempty"`
}

// UnmarshalJSON accepts string-encoded numbers and numeric message ids.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		ID        tickets.FlexInt `json:"id"`
		TicketID  tickets.FlexInt `json:"ticket_id"`
		ClientID  tickets.FlexInt `json:"client_id"`
		SenderID  tickets.FlexInt `json:"sender_id"`
		Duration  tickets.FlexInt `json:"duration"`
		SeenBy    tickets.FlexInt `json:"seen_by"`
		MessageID FlexString      `json:"message_id"`
		*alias
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.ID = int(aux.ID)
	m.TicketID = int(aux.TicketID)
	m.ClientID = int(aux.ClientID)
	m.SenderID = int(aux.SenderID)
	m.Duration = int(aux.Duration)
	m.SeenBy = int(aux.SeenBy)
	m.MessageID = string(aux.MessageID)
	return nil
}

// IsMedia reports whether the message carries an attachment kind.
func (m Message) IsMedia() bool {
	switch m.MType {
	case TypeImage, TypeAudio, TypeVideo, TypeFile:
		return true
	}
	return false
}

// Seen reports whether the message carries a seen marker.
func (m Message) Seen() bool {
	return m.SeenBy != 0 || m.SeenAt != ""
}

// merge overlays the fields set in next onto m. Empty strings and zero
// numbers count as absent, so a status-only update keeps the recording URL
// and a late recording keeps the status.
func (m Message) merge(next Message) Message {
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt(&m.ID, next.ID)
	setInt(&m.TicketID, next.TicketID)
	setInt(&m.ClientID, next.ClientID)
	setInt(&m.SenderID, next.SenderID)
	setInt(&m.Duration, next.Duration)
	setInt(&m.SeenBy, next.SeenBy)
	setStr(&m.Platform, next.Platform)
	setStr(&m.Message, next.Message)
	setStr(&m.MType, next.MType)
	setStr(&m.TimeSent, next.TimeSent)
	setStr(&m.CallStatus, next.CallStatus)
	setStr(&m.RecordingURL, next.RecordingURL)
	setStr(&m.SeenAt, next.SeenAt)
	return m
}
