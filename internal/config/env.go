package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by LoadAccount and LoadSync.
const (
	EnvBaseURL        = "TICKETSYNC_BASE_URL"
	EnvSocketURL      = "TICKETSYNC_SOCKET_URL"
	EnvAPIToken       = "TICKETSYNC_API_TOKEN"
	EnvViewerID       = "TICKETSYNC_VIEWER_ID"
	EnvSystemSenderID = "TICKETSYNC_SYSTEM_SENDER_ID"
	EnvGroups         = "TICKETSYNC_GROUPS"
	EnvWorkflows      = "TICKETSYNC_WORKFLOWS"
	EnvOnlyOwn        = "TICKETSYNC_ONLY_OWN"

	EnvReconnectDelay       = "TICKETSYNC_RECONNECT_DELAY"
	EnvMaxReconnectAttempts = "TICKETSYNC_MAX_RECONNECT_ATTEMPTS"
	EnvPingInterval         = "TICKETSYNC_PING_INTERVAL"
	EnvPingTimeout          = "TICKETSYNC_PING_TIMEOUT"
	EnvRoomBatchSize        = "TICKETSYNC_ROOM_BATCH_SIZE"
	EnvDedupWindow          = "TICKETSYNC_DEDUP_WINDOW"
	EnvFetchConcurrency     = "TICKETSYNC_FETCH_CONCURRENCY"
	EnvDirectoryTTL         = "TICKETSYNC_DIRECTORY_TTL"
)

func applyEnvOverrides(a Account) (Account, error) {
	if v := strings.TrimSpace(os.Getenv(EnvSocketURL)); v != "" {
		a.SocketURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSystemSenderID)); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 {
			return Account{}, fmt.Errorf("%s must be a non-negative integer", EnvSystemSenderID)
		}
		a.SystemSenderID = id
	}
	if v, ok := os.LookupEnv(EnvGroups); ok {
		a.Groups = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvWorkflows); ok {
		a.Workflows = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvOnlyOwn)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Account{}, fmt.Errorf("%s must be a boolean", EnvOnlyOwn)
		}
		a.OnlyOwn = b
	}
	return a, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PushURL returns the socket URL, deriving ws(s)://host/ws from the base
// URL when none is configured.
func (a Account) PushURL() (string, error) {
	if a.SocketURL != "" {
		return a.SocketURL, nil
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("cannot derive socket URL from scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Sync holds the runtime tunables of the sync core.
type Sync struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	PingInterval         time.Duration
	PingTimeout          time.Duration
	RoomBatchSize        int
	DedupWindow          int
	FetchConcurrency     int
	DirectoryTTL         time.Duration
}

// DefaultSync returns the stock tunables.
func DefaultSync() Sync {
	return Sync{
		ReconnectDelay:       10 * time.Second,
		MaxReconnectAttempts: 3,
		PingInterval:         30 * time.Second,
		PingTimeout:          90 * time.Second,
		RoomBatchSize:        100,
		DedupWindow:          1000,
		FetchConcurrency:     4,
		DirectoryTTL:         5 * time.Minute,
	}
}

// LoadSync returns DefaultSync overlaid with TICKETSYNC_* variables.
// Unparseable or non-positive values are rejected.
func LoadSync() (Sync, error) {
	s := DefaultSync()
	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvReconnectDelay, &s.ReconnectDelay},
		{EnvPingInterval, &s.PingInterval},
		{EnvPingTimeout, &s.PingTimeout},
		{EnvDirectoryTTL, &s.DirectoryTTL},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.env))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return Sync{}, fmt.Errorf("%s must be a positive duration, got %q", d.env, v)
		}
		*d.dst = parsed
	}
	ints := []struct {
		env string
		dst *int
	}{
		{EnvMaxReconnectAttempts, &s.MaxReconnectAttempts},
		{EnvRoomBatchSize, &s.RoomBatchSize},
		{EnvDedupWindow, &s.DedupWindow},
		{EnvFetchConcurrency, &s.FetchConcurrency},
	}
	for _, i := range ints {
		v := strings.TrimSpace(os.Getenv(i.env))
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return Sync{}, fmt.Errorf("%s must be a positive integer, got %q", i.env, v)
		}
		*i.dst = parsed
	}
	if s.PingTimeout <= s.PingInterval {
		return Sync{}, fmt.Errorf("ping timeout (%s) must exceed ping interval (%s)", s.PingTimeout, s.PingInterval)
	}
	return s, nil
}
