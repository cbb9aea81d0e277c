package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/filialwatch/internal/backup"
	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
)

type InitCmd struct {
	Force bool `help:"Delete the existing local state (sessions and unsynced edits) before initializing."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			snap, err := backup.NewManager(dbPath).Create()
			if err != nil {
				return fmt.Errorf("failed to back up existing local state: %w", err)
			}
			ctx.Printf("Backed up existing local state to: %s\n", snap)
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			ctx.Printf("Deleted existing local state at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	ctx.Printf("Initialized %s local state at: %s\n", constants.AppName, ctx.Store.GetConfigPath())
	ctx.Printf("Sign in with '%s login' to record reports.\n", constants.AppName)
	return nil
}
