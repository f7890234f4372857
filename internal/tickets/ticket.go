// Package tickets holds the canonical in-memory projection of tickets and
// the predicates used to scope and filter it.
package tickets

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexInt handles JSON numbers that may come as strings or integers.
type FlexInt int

func (fi *FlexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*fi = 0
		return nil
	}
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*fi = FlexInt(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			*fi = 0
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*fi = FlexInt(i)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into FlexInt", data)
}

// Ticket is a conversation/lead record as the console sees it.
type Ticket struct {
	ID           int    `json:"id"`
	ClientID     int    `json:"client_id,omitempty"`
	TechnicianID int    `json:"technician_id"`
	Workflow     string `json:"workflow"`
	GroupTitle   string `json:"group_title"`
	UnseenCount  int    `json:"unseen_count"`
	ActionNeeded bool   `json:"action_needed"`
	LastMessage  string `json:"last_message,omitempty"`
	TimeSent     string `json:"time_sent,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
}

// UnmarshalJSON accepts string-encoded numbers and clamps unseen_count at zero.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	type alias Ticket
	aux := struct {
		ID           FlexInt `json:"id"`
		ClientID     FlexInt `json:"client_id"`
		TechnicianID FlexInt `json:"technician_id"`
		UnseenCount  FlexInt `json:"unseen_count"`
		*alias
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.ID = int(aux.ID)
	t.ClientID = int(aux.ClientID)
	t.TechnicianID = int(aux.TechnicianID)
	t.UnseenCount = max(int(aux.UnseenCount), 0)
	return nil
}

// Created parses CreationDate.
func (t Ticket) Created() (time.Time, bool) {
	return ParseTime(t.CreationDate)
}

// Sent parses TimeSent.
func (t Ticket) Sent() (time.Time, bool) {
	return ParseTime(t.TimeSent)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the backend is known to emit.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
