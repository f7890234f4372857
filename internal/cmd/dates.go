package cmd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matches: "3d ago", "2w", "1mo ago"
var relativeDaysRegex = regexp.MustCompile(`^(\d+)(mo|w|d)(\s*ago)?$`)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// parseDay turns a date flag into the start of a calendar day. It accepts
// YYYY-MM-DD, "today", "yesterday", a weekday name (the most recent one,
// today included) and "<n>d|w|mo [ago]". Ticket filters look backwards,
// so relative forms always count into the past.
func parseDay(s string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(s)
	input := strings.ToLower(raw)
	today := startOfDay(now)

	switch input {
	case "":
		return time.Time{}, fmt.Errorf("empty date")
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	if wd, ok := weekdays[strings.TrimPrefix(input, "last ")]; ok {
		delta := (int(today.Weekday()) - int(wd) + 7) % 7
		if strings.HasPrefix(input, "last ") && delta == 0 {
			delta = 7
		}
		return today.AddDate(0, 0, -delta), nil
	}
	if m := relativeDaysRegex.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return time.Time{}, fmt.Errorf("invalid relative date %q", raw)
		}
		switch m[2] {
		case "mo":
			return today.AddDate(0, -n, 0), nil
		case "w":
			return today.AddDate(0, 0, -7*n), nil
		default:
			return today.AddDate(0, 0, -n), nil
		}
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
