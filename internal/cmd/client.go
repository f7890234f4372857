package cmd

import (
	"fmt"
	"log/slog"

	"github.com/chatwoot/ticketsync/internal/api"
	"github.com/chatwoot/ticketsync/internal/config"
	"github.com/chatwoot/ticketsync/internal/tickets"
	"github.com/chatwoot/ticketsync/internal/validation"
)

// loadAccount resolves the account for --profile or the environment.
var loadAccount = func() (config.Account, error) {
	return config.LoadProfileAccount(flags.Profile)
}

func newClient(account config.Account) (*api.Client, error) {
	if err := validation.ValidateBaseURL(account.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	client := api.New(account.BaseURL, account.APIToken)
	client.HTTP.Timeout = flags.Timeout
	client.UserAgent = "ticketsync/" + Version
	applyRetryOverrides(client)
	return client, nil
}

// applyRetryOverrides layers the retry flags over the env-derived defaults.
func applyRetryOverrides(client *api.Client) {
	cfg := client.RetryConfig
	if flags.MaxRateLimitRetriesSet {
		cfg.MaxRateLimitRetries = flags.MaxRateLimitRetries
	}
	if flags.Max5xxRetriesSet {
		cfg.Max5xxRetries = flags.Max5xxRetries
	}
	if flags.CircuitBreakerThresholdSet {
		cfg.CircuitBreakerThreshold = flags.CircuitBreakerThreshold
	}
	client.SetRetryConfig(cfg)
}

// logRateLimit reports the API quota seen on the last response.
func logRateLimit(client *api.Client) {
	if info := client.LastRateLimit(); info != nil {
		slog.Debug("api rate limit", "rate_limit", info)
	}
}

func scopeFor(account config.Account) tickets.Scope {
	return tickets.Scope{
		Groups:    account.Groups,
		Workflows: account.Workflows,
		OnlyOwn:   account.OnlyOwn,
		ViewerID:  account.ViewerID,
	}
}

// Version is set at build time.
var Version = "dev"
