package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/filialwatch/internal/backup"
	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/logger"
)

// confirmFunc asks a yes/no question. Tests replace it.
var confirmFunc = func(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Sí").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the local state."`
	List    BackupListCmd    `cmd:"" help:"List local state snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore the local state from a snapshot."`
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	path, err := backup.NewManager(ctx.Store.GetConfigPath()).Create()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.Printf("✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.Printf("No backups found.\n")
		ctx.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), backup.MaxBackups)
	for _, b := range backups {
		ctx.Printf("  %s  %s  %6.1f KB  %d unsynced\n",
			filepath.Base(b.Path), b.Taken.Format("02/01/2006 15:04:05"), float64(b.Size)/1024, b.Pending)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	File string `arg:"" help:"Path or file name of the snapshot to restore."`
	Yes  bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr := backup.NewManager(ctx.Store.GetConfigPath())

	path := c.File
	if !filepath.IsAbs(path) {
		if candidate := filepath.Join(mgr.Dir(), c.File); fileExists(candidate) {
			path = candidate
		}
	}
	if !fileExists(path) {
		return fmt.Errorf("backup file not found: %s", path)
	}

	if !c.Yes {
		ok, err := confirmFunc(
			"Restore "+filepath.Base(path)+"?",
			"This replaces sessions, settings and unsynced edits. The current state is backed up first.",
		)
		if err != nil {
			return err
		}
		if !ok {
			ctx.Printf("Restore cancelled.\n")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		logger.Warn("Failed to close local state before restore", "error", err)
	}
	previous, err := mgr.Restore(path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if previous != "" {
		ctx.Printf("Backed up current state to: %s\n", filepath.Base(previous))
	}
	ctx.Printf("✓ Local state restored from %s\n", filepath.Base(path))
	ctx.Printf("Run '%s sync' to send any restored unsynced edits.\n", constants.AppName)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
