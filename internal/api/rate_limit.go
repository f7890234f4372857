package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Reset values above this are Unix timestamps; below it they are seconds
// from now.
const unixTimestampThreshold = 1_000_000_000

// RateLimitInfo holds the rate limit headers of the last response.
type RateLimitInfo struct {
	Limit     *int
	Remaining *int
	ResetAt   *time.Time
}

// LogValue implements slog.LogValuer.
func (r *RateLimitInfo) LogValue() slog.Value {
	if r == nil {
		return slog.Value{}
	}
	var attrs []slog.Attr
	if r.Limit != nil {
		attrs = append(attrs, slog.Int("limit", *r.Limit))
	}
	if r.Remaining != nil {
		attrs = append(attrs, slog.Int("remaining", *r.Remaining))
	}
	if r.ResetAt != nil {
		attrs = append(attrs, slog.Time("reset_at", *r.ResetAt))
	}
	return slog.GroupValue(attrs...)
}

// LastRateLimit returns a copy of the most recent rate limit info.
func (c *Client) LastRateLimit() *RateLimitInfo {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()
	if c.lastRateLimit == nil {
		return nil
	}
	info := *c.lastRateLimit
	return &info
}

func (c *Client) recordRateLimit(h http.Header) {
	info := parseRateLimitInfo(h, time.Now())
	if info == nil {
		return
	}
	c.rateLimitMu.Lock()
	c.lastRateLimit = info
	c.rateLimitMu.Unlock()
}

func parseRateLimitInfo(h http.Header, now time.Time) *RateLimitInfo {
	info := &RateLimitInfo{}
	if v, err := strconv.Atoi(firstHeader(h, "X-RateLimit-Limit", "RateLimit-Limit")); err == nil {
		info.Limit = &v
	}
	if v, err := strconv.Atoi(firstHeader(h, "X-RateLimit-Remaining", "RateLimit-Remaining")); err == nil {
		info.Remaining = &v
	}
	if t, ok := parseRateLimitReset(firstHeader(h, "X-RateLimit-Reset", "RateLimit-Reset"), now); ok {
		info.ResetAt = &t
	}
	if info.Limit == nil && info.Remaining == nil && info.ResetAt == nil {
		return nil
	}
	return info
}

func firstHeader(h http.Header, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(h.Get(key)); value != "" {
			return value
		}
	}
	return ""
}

func parseRateLimitReset(value string, now time.Time) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		switch {
		case secs > unixTimestampThreshold:
			return time.Unix(secs, 0).UTC(), true
		case secs >= 0:
			return now.Add(time.Duration(secs) * time.Second).UTC(), true
		}
	}
	if t, err := http.ParseTime(value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
