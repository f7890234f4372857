// Package config resolves the account and sync tunables from the keyring
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const envProfile = "TICKETSYNC_PROFILE"

// EnvSource names the pseudo-profile of an account built from environment
// variables.
const EnvSource = "env"

// ErrNotConfigured is returned when no account is configured
var ErrNotConfigured = errors.New("ticketsync not configured - run 'ticketsync auth login' first")

// Account holds the connection details and viewer scope of one profile.
type Account struct {
	BaseURL        string   `json:"base_url"`
	SocketURL      string   `json:"socket_url,omitempty"`
	APIToken       string   `json:"api_token"`
	ViewerID       int      `json:"viewer_id"`
	SystemSenderID int      `json:"system_sender_id,omitempty"`
	Groups         []string `json:"groups,omitempty"`
	Workflows      []string `json:"workflows,omitempty"`
	OnlyOwn        bool     `json:"only_own,omitempty"`
}

// LoadAccount resolves the active account. A complete set of
// TICKETSYNC_BASE_URL, TICKETSYNC_API_TOKEN and TICKETSYNC_VIEWER_ID wins
// over the keyring; otherwise the profile named by TICKETSYNC_PROFILE or the
// current profile is loaded. Scope variables overlay either source.
func LoadAccount() (Account, error) {
	return LoadProfileAccount("")
}

// LoadProfileAccount loads the named profile, or the active account when
// name is empty, and applies the scope variables.
func LoadProfileAccount(name string) (Account, error) {
	var (
		account Account
		err     error
	)
	if strings.TrimSpace(name) != "" {
		account, err = LoadProfile(name)
	} else {
		account, err = loadActive()
	}
	if err != nil {
		return Account{}, err
	}
	return applyEnvOverrides(account)
}

// ActiveProfile names the source LoadProfileAccount(name) reads: name itself,
// EnvSource, TICKETSYNC_PROFILE or the current profile.
func ActiveProfile(name string) (string, error) {
	switch {
	case strings.TrimSpace(name) != "":
		return profileName(name), nil
	case strings.TrimSpace(os.Getenv(EnvBaseURL)) != "":
		return EnvSource, nil
	case strings.TrimSpace(os.Getenv(envProfile)) != "":
		return profileName(os.Getenv(envProfile)), nil
	}
	return CurrentProfile()
}

func loadActive() (Account, error) {
	name, err := ActiveProfile("")
	if err != nil {
		return Account{}, err
	}
	if name == EnvSource {
		return accountFromEnv()
	}
	return LoadProfile(name)
}

func accountFromEnv() (Account, error) {
	baseURL := strings.TrimSpace(os.Getenv(EnvBaseURL))
	token := strings.TrimSpace(os.Getenv(EnvAPIToken))
	viewer := strings.TrimSpace(os.Getenv(EnvViewerID))
	if token == "" || viewer == "" {
		return Account{}, fmt.Errorf("environment variables %s, %s, and %s must all be set", EnvBaseURL, EnvAPIToken, EnvViewerID)
	}
	viewerID, err := strconv.Atoi(viewer)
	if err != nil || viewerID <= 0 {
		return Account{}, fmt.Errorf("%s must be a positive integer", EnvViewerID)
	}
	return Account{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		APIToken: token,
		ViewerID: viewerID,
	}, nil
}
