package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/chatwoot/ticketsync/internal/api"
	"github.com/chatwoot/ticketsync/internal/config"
	"github.com/chatwoot/ticketsync/internal/socket"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, exitOK},
		{"help", pflag.ErrHelp, exitOK},
		{"not configured", fmt.Errorf("load: %w", config.ErrNotConfigured), exitAuth},
		{"auth", &api.AuthError{StatusCode: 401, Reason: "missing"}, exitAuth},
		{"auth forbidden", &api.AuthError{StatusCode: 403, Reason: "nope"}, exitForbidden},
		{"not found", &api.APIError{StatusCode: 404, Body: "not found"}, exitNotFound},
		{"bad request", &api.APIError{StatusCode: 422, Body: "bad"}, exitUsage},
		{"rate limited", &api.RateLimitError{RetryAfter: time.Second}, exitRateLimited},
		{"server", &api.APIError{StatusCode: 500, Body: "oops"}, exitServer},
		{"circuit", &api.CircuitBreakerError{}, exitServer},
		{"socket exhausted", fmt.Errorf("%w after 3 attempts", socket.ErrReconnectExhausted), exitNetwork},
		{"usage", errors.New("unknown command \"nope\" for \"ticketsync\""), exitUsage},
		{"usage must", errors.New("--action-needed must be true or false"), exitUsage},
		{"network", errors.New("dial tcp: connection refused"), exitNetwork},
		{"deadline", fmt.Errorf("list: %w", context.DeadlineExceeded), exitNetwork},
		{"generic", errors.New("boom"), exitGeneric},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.code {
				t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.code)
			}
		})
	}
}
