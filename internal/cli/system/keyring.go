package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/keyring"
	"github.com/julianstephens/microhabits/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show the stored connection string with the password masked."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
	Status KeyringStatusCmd `cmd:"" help:"Check whether the OS keyring is available."`
}

// keyringConfig returns the --config value that selects the connection called name.
func keyringConfig(name string) string {
	if name == "" {
		return keyring.ConfigPrefix
	}
	return keyring.ConfigPrefix + ":" + name
}

// KeyringSetCmd stores database connection credentials in the OS keyring
type KeyringSetCmd struct {
	Name             string `help:"Named connection, selected with --config keyring:<name>." placeholder:"NAME"`
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring"`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if !postgres.IsConnString(cmd.ConnectionString) && !strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is the one place a password is allowed to live.
		fmt.Println("⚠️  Connection string contains a password, it will be kept in the encrypted OS keyring.")
	}

	if err := keyring.SetConnectionString(cmd.Name, cmd.ConnectionString); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}

	fmt.Println("✓ Connection string stored successfully in OS keyring")
	fmt.Printf("  Use it with --config %s\n", keyringConfig(cmd.Name))
	return nil
}

// KeyringGetCmd retrieves database connection credentials from the OS keyring
type KeyringGetCmd struct {
	Name string `help:"Named connection, selected with --config keyring:<name>." placeholder:"NAME"`
}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString(cmd.Name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no connection string found for --config %s. Use '%s keyring set' to store one", keyringConfig(cmd.Name), constants.AppName)
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}

	fmt.Println("Connection string retrieved from keyring:")
	fmt.Println(maskPassword(connStr))
	return nil
}

// KeyringDeleteCmd removes database connection credentials from the OS keyring
type KeyringDeleteCmd struct {
	Name string `help:"Named connection, selected with --config keyring:<name>." placeholder:"NAME"`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteConnectionString(cmd.Name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}

	fmt.Println("✓ Connection string deleted from OS keyring")
	return nil
}

type KeyringStatusCmd struct {
	Name string `help:"Named connection, selected with --config keyring:<name>." placeholder:"NAME"`
}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	st, err := keyring.Inspect(cmd.Name)
	if err != nil {
		return err
	}
	if !st.Available {
		fmt.Println("❌ OS keyring is not available on this system")
		return keyring.ErrKeyringUnavailable
	}

	fmt.Println("✓ OS keyring is available")
	if st.Stored {
		fmt.Printf("✓ Connection string is stored in keyring (--config %s)\n", keyringConfig(cmd.Name))
	} else {
		fmt.Printf("ℹ No connection string stored for --config %s\n", keyringConfig(cmd.Name))
	}
	return nil
}

// maskPassword hides the password of a URL or DSN connection string
func maskPassword(connStr string) string {
	if postgres.IsConnString(connStr) {
		if idx := strings.Index(connStr, "://"); idx != -1 {
			remaining := connStr[idx+3:]
			if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
				userInfo := remaining[:atIdx]
				if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
					return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
				}
			}
		}
		return connStr
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}

	return connStr
}
