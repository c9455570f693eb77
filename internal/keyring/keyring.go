// Package keyring keeps PostgreSQL connection strings, passwords included, in
// the OS credential store so they never have to appear on the command line.
//
// Several connections can be stored side by side under a short name; the
// empty name is the default connection. They are selected with --config
// keyring or --config keyring:<name>.
package keyring

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/microhabits/internal/constants"
)

// ConfigPrefix is the --config value that selects a stored connection.
const ConfigPrefix = "keyring"

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
	// ErrInvalidName is returned for connection names outside [A-Za-z0-9_.-]
	ErrInvalidName = errors.New("invalid connection name")

	namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
)

// Status describes what the keyring holds for one connection name.
type Status struct {
	Account   string
	Available bool
	Stored    bool
}

// Account returns the keyring account that holds the connection called name.
func Account(name string) (string, error) {
	if name == "" {
		return constants.DefaultKeyringUser, nil
	}
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return constants.DefaultKeyringUser + ":" + name, nil
}

// ParseConfig reports whether config selects a keyring connection and, if so,
// which one. "keyring" is the default connection, "keyring:staging" a named one.
func ParseConfig(config string) (string, bool) {
	if config == ConfigPrefix {
		return "", true
	}
	name, ok := strings.CutPrefix(config, ConfigPrefix+":")
	return name, ok
}

// GetConnectionString retrieves the connection string stored under name.
func GetConnectionString(name string) (string, error) {
	account, err := Account(name)
	if err != nil {
		return "", err
	}
	connStr, err := keyring.Get(constants.AppName, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return connStr, nil
}

// SetConnectionString stores connStr under name, replacing any previous value.
func SetConnectionString(name, connStr string) error {
	if connStr == "" {
		return errors.New("connection string cannot be empty")
	}
	account, err := Account(name)
	if err != nil {
		return err
	}
	if err := keyring.Set(constants.AppName, account, connStr); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// DeleteConnectionString removes the connection stored under name.
func DeleteConnectionString(name string) error {
	account, err := Account(name)
	if err != nil {
		return err
	}
	if err := keyring.Delete(constants.AppName, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// IsAvailable is a best-effort check that the OS keyring can be read.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// Inspect reports whether the keyring is reachable and holds a connection
// under name. Only an invalid name is returned as an error.
func Inspect(name string) (Status, error) {
	account, err := Account(name)
	if err != nil {
		return Status{}, err
	}
	st := Status{Account: account, Available: IsAvailable()}
	if !st.Available {
		return st, nil
	}
	_, err = keyring.Get(constants.AppName, account)
	st.Stored = err == nil
	return st, nil
}
