package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/cli/backups"
	"github.com/julianstephens/microhabits/internal/storage/postgres"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting the existing database file before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if _, ok := ctx.Store.(*postgres.Store); ok {
			return fmt.Errorf("--force is only supported for file-backed storage")
		}
		path := ctx.Store.GetConfigPath()
		if _, err := os.Stat(path); err == nil {
			if err := backups.Snapshot(ctx, "pre-reset"); err != nil {
				return err
			}
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized microhabits storage at: %s\n", ctx.Store.GetConfigPath())
	return nil
}
