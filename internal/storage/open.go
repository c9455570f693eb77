package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/keyring"
	"github.com/julianstephens/microhabits/internal/storage/postgres"
	"github.com/julianstephens/microhabits/internal/storage/sqlite"
)

// KeyringConfig selects the default connection string stored in the OS keyring.
// "keyring:<name>" selects a named one.
const KeyringConfig = keyring.ConfigPrefix

var ErrEmbeddedCredentials = postgres.ErrEmbeddedCredentials

// Open picks a Provider from config without touching the backend:
//   - "keyring" or "keyring:<name>" uses a connection string saved with 'keyring set'
//   - postgres:// and postgresql:// URLs open PostgreSQL and must not carry a password
//   - paths ending in .json use the JSON file store
//   - anything else is a SQLite database path
//
// When config is empty, MICROHABITS_DB_CONNECTION is consulted before falling
// back to the default SQLite path.
func Open(config string) (Provider, error) {
	if config == "" {
		if env := os.Getenv(constants.EnvDBConnection); env != "" {
			return postgres.New(env), nil
		}
		config = constants.DefaultConfigPath
	}

	if name, ok := keyring.ParseConfig(config); ok {
		connStr, err := keyring.GetConnectionString(name)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				hint := "keyring set"
				if name != "" {
					hint += " --name " + name
				}
				return nil, fmt.Errorf("no connection string found in keyring, use '%s %s' to store one", constants.AppName, hint)
			}
			return nil, err
		}
		return postgres.New(connStr), nil
	}

	if postgres.IsConnString(config) {
		if postgres.HasEmbeddedCredentials(config) {
			return nil, ErrEmbeddedCredentials
		}
		return postgres.New(config), nil
	}

	path, err := ExpandPath(config)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONStore(path), nil
	}
	return sqlite.NewStore(path), nil
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ConfigDir returns the directory used for logs and lock files for the given store.
// Database-backed stores fall back to the default config directory.
func ConfigDir(p Provider) (string, error) {
	path := p.GetConfigPath()
	if path == "" || path == "postgresql" {
		def, err := ExpandPath(constants.DefaultConfigPath)
		if err != nil {
			return "", err
		}
		return filepath.Dir(def), nil
	}
	return filepath.Dir(path), nil
}
