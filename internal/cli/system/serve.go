package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/filialwatch/internal/backend"
	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/keyring"
	"github.com/julianstephens/filialwatch/internal/lockfile"
)

// serveFunc runs the backend. Tests replace it.
var serveFunc = backend.Serve

type ServeCmd struct {
	Addr     string `help:"Listen address." default:"127.0.0.1:8080" env:"FILIALWATCH_ADDR"`
	DSN      string `help:"SQLite path or PostgreSQL connection string (falls back to the keyring)." env:"FILIALWATCH_DSN"`
	Seed     bool   `help:"Load the demo catalog into an empty database."`
	Lockfile string `help:"Lockfile path (defaults to the config dir)." type:"path"`
	NoLock   bool   `help:"Do not write a lockfile."`
}

func (cmd *ServeCmd) resolveDSN() (string, error) {
	if cmd.DSN != "" {
		return cmd.DSN, nil
	}
	dsn, err := keyring.GetBackendDSN()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) || errors.Is(err, keyring.ErrKeyringUnavailable) {
			return "", errors.New("no backend DSN: pass --dsn, set FILIALWATCH_DSN or run 'keyring set-dsn'")
		}
		return "", err
	}
	return dsn, nil
}

func (cmd *ServeCmd) Run(ctx *cli.Context) error {
	dsn, err := cmd.resolveDSN()
	if err != nil {
		return err
	}
	token := ctx.APIToken()
	if token == "" {
		ctx.Printf("⚠ No API token configured: the backend will accept unauthenticated requests\n")
	}

	lockPath := ""
	if !cmd.NoLock {
		lockPath = cmd.Lockfile
		if lockPath == "" {
			if lockPath, err = lockfile.DefaultPath(); err != nil {
				return err
			}
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := make(chan string, 1)
	go func() {
		if addr, ok := <-ready; ok {
			ctx.Printf("✓ Backend listening on http://%s (%s)\n", addr, backend.DetectDriver(dsn))
		}
	}()

	err = serveFunc(sigCtx, backend.ServeConfig{
		Addr:     cmd.Addr,
		DSN:      dsn,
		Token:    token,
		Lockfile: lockPath,
		Seed:     cmd.Seed,
	}, ready)
	close(ready)
	if err != nil {
		return fmt.Errorf("backend stopped: %w", err)
	}
	ctx.Printf("Backend stopped\n")
	return nil
}
