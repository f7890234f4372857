package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName = "ticketsync"

	envKeyringBackend  = "TICKETSYNC_KEYRING_BACKEND"
	envKeyringPassword = "TICKETSYNC_KEYRING_PASSWORD"
	envCredentialsDir  = "TICKETSYNC_CREDENTIALS_DIR"
)

// Keyring backends accepted by TICKETSYNC_KEYRING_BACKEND.
const (
	BackendAuto   = "auto"
	BackendFile   = "file"
	BackendSystem = "system"
)

// openKeyring is replaced in tests.
var openKeyring = keyring.Open

var stdinIsTerminal = func() bool {
	info, err := os.Stdin.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// SetOpenKeyring swaps the keyring opener and returns a func restoring it.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	prev := openKeyring
	openKeyring = fn
	return func() { openKeyring = prev }
}

func keyringBackend() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKeyringBackend))) {
	case BackendFile:
		return BackendFile
	case BackendSystem, "os", "native":
		return BackendSystem
	default:
		return BackendAuto
	}
}

// headless reports whether no secret service can be reached, which is the
// case on Linux without a D-Bus session.
func headless(goos, dbusAddr string) bool {
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

// keyringConfig picks the backend. System mode leaves the choice to the
// keyring library; auto mode also configures the encrypted file backend as
// a fallback and forces it when headless.
func keyringConfig() keyring.Config {
	cfg := keyring.Config{ServiceName: serviceName}
	backend := keyringBackend()
	if backend == BackendSystem {
		return cfg
	}
	cfg.FileDir = credentialsDir()
	cfg.FilePasswordFunc = filePassword
	if backend == BackendFile || headless(runtime.GOOS, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func credentialsDir() string {
	base := strings.TrimSpace(os.Getenv(envCredentialsDir))
	if base == "" {
		if dir, err := os.UserConfigDir(); err == nil && dir != "" {
			base = filepath.Join(dir, serviceName)
		} else {
			base = filepath.Join(os.TempDir(), serviceName)
		}
	}
	return filepath.Join(base, "keyring")
}

func filePassword(prompt string) (string, error) {
	if pw := os.Getenv(envKeyringPassword); strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	if !stdinIsTerminal() {
		return "", fmt.Errorf("set %s to use the file keyring without a terminal", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}
