package backups

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/microhabits/internal/backup"
	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/storage/sqlite"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List available backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
}

// Manager returns the backup manager for a SQLite-backed context.
func Manager(ctx *cli.Context) (*backup.Manager, error) {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return nil, fmt.Errorf("backups are only supported for SQLite storage")
	}
	return backup.NewManager(ctx.Store.GetConfigPath()), nil
}

// Snapshot backs up a SQLite database that already exists before a
// destructive operation. Other stores and missing files are skipped.
func Snapshot(ctx *cli.Context, label string) error {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return nil
	}
	path := ctx.Store.GetConfigPath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	snap, err := backup.NewManager(path).Create(label)
	if err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	fmt.Printf("Backed up database to: %s\n", snap.Path)
	return nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := Manager(ctx)
	if err != nil {
		return err
	}
	snap, err := mgr.Create("")
	if err != nil {
		return err
	}
	fmt.Printf("✓ Backup created: %s (%s)\n", snap.Path, humanize.Bytes(uint64(snap.Size)))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := Manager(ctx)
	if err != nil {
		return err
	}
	snaps, err := mgr.List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("No backups found.")
		return nil
	}

	fmt.Printf("Backups in %s:\n", mgr.Dir())
	for _, s := range snaps {
		label := ""
		if s.Label != "" {
			label = " [" + s.Label + "]"
		}
		fmt.Printf("  %s  %s  %s%s\n",
			s.TakenAt.In(ctx.Location).Format(constants.TimeDisplayFormat),
			humanize.Bytes(uint64(s.Size)),
			filepath.Base(s.Path),
			label,
		)
	}
	return nil
}

type BackupRestoreCmd struct {
	File string `arg:"" help:"Backup file name or path (see 'backup list')."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := Manager(ctx)
	if err != nil {
		return err
	}

	path := c.File
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(mgr.Dir(), path)
	}

	// The database file is replaced, so the open connection must go first.
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	previous, err := mgr.Restore(path)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Restored database from: %s\n", filepath.Base(path))
	if previous.Path != "" {
		fmt.Printf("  Previous database saved as: %s\n", filepath.Base(previous.Path))
	}
	return nil
}
