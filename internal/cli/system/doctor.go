package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/keyring"
	"github.com/julianstephens/filialwatch/internal/lockfile"
	"github.com/julianstephens/filialwatch/internal/utils"
)

type DoctorCmd struct {
	Lockfile string `help:"Backend lockfile to validate (defaults to the config dir)." type:"path"`
}

// schemaReporter is implemented by storage.SQLiteStore.
type schemaReporter interface {
	SchemaVersions() (current, latest int, err error)
}

type check struct {
	name string
	run  func() error
	warn bool
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Printf("Running diagnostics...\n\n")

	hasError := false
	dbReachable := false

	report := func(c check) bool {
		err := c.run()
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", c.name)
			return true
		case c.warn:
			ctx.Printf("⚠ %s: WARNING\n", c.name)
			ctx.Printf("   %v\n", err)
		default:
			ctx.Printf("❌ %s: FAIL\n", c.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
		}
		return false
	}

	dbReachable = report(check{name: "Local state reachable", run: func() error { return checkLocalState(ctx) }})
	for _, c := range []check{
		{name: "Schema version", run: func() error { return checkSchemaVersion(ctx) }},
		{name: "Migrations complete", run: func() error { return checkMigrationsComplete(ctx) }},
		{name: "Unsynced edits", run: func() error { return checkPending(ctx) }, warn: true},
	} {
		if dbReachable {
			report(c)
		} else {
			ctx.Printf("⊘ %s: SKIPPED (local state not reachable)\n", c.name)
		}
	}

	report(check{name: "Keyring", run: checkKeyring, warn: true})
	report(check{name: "API token", run: func() error { return checkToken(ctx) }, warn: true})
	report(check{name: "Backend reachable", run: func() error { return checkBackend(ctx) }})
	report(check{name: "Backend lockfile", run: func() error { return checkLockfile(cmd.Lockfile) }, warn: true})
	report(check{name: "Clock/timezone", run: checkClockTimezone})

	ctx.Printf("\n")
	if hasError {
		ctx.Printf("Some checks failed. Please review the errors above.\n")
		return errors.New("diagnostics failed")
	}
	ctx.Printf("All checks passed!\n")
	return nil
}

func checkLocalState(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	if settings.SessionSecret == "" {
		return fmt.Errorf("session secret missing, run '%s init'", constants.AppName)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	sr, ok := ctx.Store.(schemaReporter)
	if !ok {
		return nil
	}
	current, latest, err := sr.SchemaVersions()
	if err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("schema version %d is newer than this binary supports (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	sr, ok := ctx.Store.(schemaReporter)
	if !ok {
		return nil
	}
	current, latest, err := sr.SchemaVersions()
	if err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("%d migration(s) pending (version %d of %d)", latest-current, current, latest)
	}
	return nil
}

func checkPending(ctx *cli.Context) error {
	reports, err := ctx.Store.GetPendingReports()
	if err != nil {
		return err
	}
	notes, err := ctx.Store.GetPendingNotes()
	if err != nil {
		return err
	}
	if n := len(reports) + len(notes); n > 0 {
		return fmt.Errorf("%d edit(s) not confirmed by the backend, run '%s sync'", n, constants.AppName)
	}
	return nil
}

func checkKeyring() error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

func checkToken(ctx *cli.Context) error {
	if ctx.APIToken() == "" {
		return fmt.Errorf("no API token configured, set FILIALWATCH_TOKEN or run '%s keyring set-token'", constants.AppName)
	}
	return nil
}

func checkBackend(ctx *cli.Context) error {
	gw, err := ctx.Client()
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(context.Background(), constants.ProbeTimeout)
	defer cancel()
	if err := gw.Ping(cctx); err != nil {
		return err
	}
	_, err = gw.Health(cctx)
	return err
}

func checkLockfile(path string) error {
	if path == "" {
		var err error
		if path, err = lockfile.DefaultPath(); err != nil {
			return err
		}
	}
	if _, err := lockfile.Validate(path, constants.AppName); err != nil {
		if errors.Is(err, lockfile.ErrNotRunning) {
			return fmt.Errorf("no local backend running (%s)", path)
		}
		return err
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2024 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	local := utils.LocalNow()
	if _, offset := local.Zone(); offset != constants.BusinessUTCOffsetHours*3600 {
		return fmt.Errorf("business timezone %s resolved to offset %ds", constants.BusinessTimezone, offset)
	}
	return nil
}
