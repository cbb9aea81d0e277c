package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julianstephens/filialwatch/internal/lockfile"
	"github.com/julianstephens/filialwatch/internal/logger"
)

// ServeConfig describes one backend process.
type ServeConfig struct {
	Addr     string
	DSN      string
	Token    string
	Lockfile string
	Seed     bool
}

// Serve opens the repository, listens on cfg.Addr and serves until ctx is
// cancelled. The lockfile, when configured, exists exactly while serving.
// ready, if not nil, receives the bound address once the listener is up.
func Serve(ctx context.Context, cfg ServeConfig, ready chan<- string) error {
	repo, err := OpenRepository(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer repo.Close()

	if cfg.Seed {
		n, err := SeedDemo(ctx, repo)
		if err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
		if n > 0 {
			logger.Info("Seeded demo catalog", "entries", n)
		}
	}

	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if cfg.Lockfile != "" {
		lock, err := lockfile.New(port)
		if err != nil {
			ln.Close()
			return err
		}
		if err := lockfile.Write(cfg.Lockfile, lock); err != nil {
			ln.Close()
			return err
		}
		defer func() {
			if err := lockfile.Remove(cfg.Lockfile); err != nil {
				logger.Warn("Failed to remove lockfile", "path", cfg.Lockfile, "error", err)
			}
		}()
	}

	srv := &http.Server{
		Handler:           NewServer(repo, hub, WithToken(cfg.Token)).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("Backend listening", "addr", ln.Addr().String(), "driver", repo.Driver(), "auth", cfg.Token != "")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	hub.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Backend stopped")
	return nil
}
