package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/99designs/keyring"
)

// DefaultProfile is used when no profile is named.
const DefaultProfile = "default"

const (
	accountKeyPrefix = "account:"
	currentKey       = "current"
)

// profileRing stores one Account per profile plus the name of the current
// profile. Profiles are enumerated from the keyring's keys.
type profileRing struct {
	ring keyring.Keyring
}

func openProfiles() (profileRing, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return profileRing{}, fmt.Errorf("open keyring: %w", err)
	}
	return profileRing{ring: ring}, nil
}

func profileName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return DefaultProfile
	}
	return name
}

func (p profileRing) load(name string) (Account, error) {
	item, err := p.ring.Get(accountKeyPrefix + name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Account{}, ErrNotConfigured
	}
	if err != nil {
		return Account{}, fmt.Errorf("read profile %q: %w", name, err)
	}
	var account Account
	if err := json.Unmarshal(item.Data, &account); err != nil {
		return Account{}, fmt.Errorf("decode profile %q: %w", name, err)
	}
	return account, nil
}

func (p profileRing) save(name string, account Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", name, err)
	}
	if err := p.ring.Set(keyring.Item{Key: accountKeyPrefix + name, Data: data, Label: serviceName + " " + name}); err != nil {
		return fmt.Errorf("write profile %q: %w", name, err)
	}
	return nil
}

func (p profileRing) names() ([]string, error) {
	keys, err := p.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var names []string
	for _, k := range keys {
		if name, ok := strings.CutPrefix(k, accountKeyPrefix); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (p profileRing) current() (string, error) {
	item, err := p.ring.Get(currentKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return DefaultProfile, nil
	}
	if err != nil {
		return "", fmt.Errorf("read current profile: %w", err)
	}
	return profileName(string(item.Data)), nil
}

func (p profileRing) setCurrent(name string) error {
	if err := p.ring.Set(keyring.Item{Key: currentKey, Data: []byte(name)}); err != nil {
		return fmt.Errorf("write current profile: %w", err)
	}
	return nil
}

// SaveProfile stores account under name and makes it the current profile.
func SaveProfile(name string, account Account) error {
	p, err := openProfiles()
	if err != nil {
		return err
	}
	name = profileName(name)
	if err := p.save(name, account); err != nil {
		return err
	}
	return p.setCurrent(name)
}

// LoadProfile reads the named profile. A missing profile is ErrNotConfigured.
func LoadProfile(name string) (Account, error) {
	p, err := openProfiles()
	if err != nil {
		return Account{}, err
	}
	return p.load(profileName(name))
}

// DeleteProfile removes the named profile. Deleting the current profile
// makes the first remaining one current. A missing profile is not an error.
func DeleteProfile(name string) error {
	p, err := openProfiles()
	if err != nil {
		return err
	}
	name = profileName(name)
	if err := p.ring.Remove(accountKeyPrefix + name); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("remove profile %q: %w", name, err)
	}
	current, err := p.current()
	if err != nil || current != name {
		return err
	}
	remaining, err := p.names()
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		if err := p.ring.Remove(currentKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("reset current profile: %w", err)
		}
		return nil
	}
	return p.setCurrent(remaining[0])
}

// ListProfiles returns the stored profile names, sorted.
func ListProfiles() ([]string, error) {
	p, err := openProfiles()
	if err != nil {
		return nil, err
	}
	return p.names()
}

// CurrentProfile returns the name of the current profile.
func CurrentProfile() (string, error) {
	p, err := openProfiles()
	if err != nil {
		return "", err
	}
	return p.current()
}

// UseProfile makes an existing profile current.
func UseProfile(name string) error {
	p, err := openProfiles()
	if err != nil {
		return err
	}
	name = profileName(name)
	if _, err := p.load(name); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	return p.setCurrent(name)
}
