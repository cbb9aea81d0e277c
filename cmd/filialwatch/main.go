package main

import (
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/cli/admin"
	"github.com/julianstephens/filialwatch/internal/cli/reports"
	"github.com/julianstephens/filialwatch/internal/cli/system"
	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/storage"
)

var CLI struct {
	Version kong.VersionFlag
	State   string `help:"Local state database path." type:"path" default:"${state}" env:"FILIALWATCH_STATE"`
	APIURL  string `name:"api-url" help:"Backend base URL." default:"${api_url}" env:"FILIALWATCH_API_URL"`
	Token   string `help:"Backend API token (defaults to the keyring)." env:"FILIALWATCH_TOKEN"`
	Debug   bool   `help:"Log debug output to stderr." env:"FILIALWATCH_DEBUG"`

	WebhookURL    string `name:"webhook-url" help:"Webhook notified on connectivity changes." env:"FILIALWATCH_WEBHOOK_URL"`
	WebhookSecret string `name:"webhook-secret" help:"Shared secret sent with webhook calls." env:"FILIALWATCH_WEBHOOK_SECRET"`

	OperatorUser string `name:"operator-user" hidden:"" env:"FILIALWATCH_OPERATOR_USER"`
	OperatorHash string `name:"operator-hash" hidden:"" env:"FILIALWATCH_OPERATOR_HASH"`
	AdminUser    string `name:"admin-user" hidden:"" env:"FILIALWATCH_ADMIN_USER"`
	AdminHash    string `name:"admin-hash" hidden:"" env:"FILIALWATCH_ADMIN_HASH"`

	Tui      system.TuiCmd     `cmd:"" help:"Launch the interactive dashboard." default:"1"`
	Init     system.InitCmd    `cmd:"" help:"Initialize the local state."`
	Login    system.LoginCmd   `cmd:"" help:"Open an operator or admin session."`
	Logout   system.LogoutCmd  `cmd:"" help:"Close a session."`
	Status   system.StatusCmd  `cmd:"" help:"Show sessions, unsynced edits and connectivity."`
	Doctor   system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Serve    system.ServeCmd   `cmd:"" help:"Run the reference backend."`
	Keyring  system.KeyringCmd `cmd:"" help:"Manage secrets in the OS keyring."`
	Backup   system.BackupCmd  `cmd:"" help:"Manage local state backups."`
	DebugCmd system.DebugCmd   `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`

	Week     reports.WeekCmd     `cmd:"" help:"Show the week grid of a program."`
	Day      reports.DayCmd      `cmd:"" help:"Show one day of a program."`
	Stats    reports.StatsCmd    `cmd:"" help:"Show statistics for a week or day."`
	Mark     reports.MarkCmd     `cmd:"" help:"Record whether an affiliate broadcast a program."`
	Note     reports.NoteCmd     `cmd:"" help:"Read or write the weekly note of an affiliate."`
	Sync     reports.SyncCmd     `cmd:"" help:"Send unsynced edits to the backend."`
	Pending  reports.PendingCmd  `cmd:"" help:"List unsynced edits."`
	Export   reports.ExportCmd   `cmd:"" help:"Export a week or day to xlsx, csv or a printable document."`
	Validate reports.ValidateCmd `cmd:"" help:"Check the catalog and unsynced edits for inconsistencies."`

	Admin struct {
		Program   admin.ProgramCmd   `cmd:"" help:"Manage programs."`
		Affiliate admin.AffiliateCmd `cmd:"" help:"Manage affiliates."`
	} `cmd:"" help:"Manage the program and affiliate catalog (admin session required)."`
}

// noLoad lists the commands that open the local state themselves or never
// touch it.
var noLoad = map[string]bool{
	"init":    true,
	"serve":   true,
	"keyring": true,
}

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Broadcast compliance dashboard for affiliate radio stations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": constants.Version,
			"state":   constants.DefaultStatePath,
			"api_url": constants.DefaultAPIURL,
		},
	)

	command := commandName(ctx)
	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: filepath.Dir(CLI.State),
		Quiet:     command == "tui",
	}); err != nil {
		errors.Fatalf("failed to initialize logger: %v", err)
	}

	store := storage.NewSQLiteStore(CLI.State)
	defer store.Close()

	if !noLoad[command] {
		if err := store.Load(); err != nil {
			if command != "doctor" {
				errors.Fatal(err)
			}
			logger.Warn("Local state not loaded", "error", err)
		}
	}

	appCtx := &cli.Context{
		Store: store,
		Config: cli.Config{
			APIURL:        CLI.APIURL,
			Token:         CLI.Token,
			WebhookURL:    CLI.WebhookURL,
			WebhookSecret: CLI.WebhookSecret,
			OperatorUser:  CLI.OperatorUser,
			OperatorHash:  CLI.OperatorHash,
			AdminUser:     CLI.AdminUser,
			AdminHash:     CLI.AdminHash,
		},
		Out: os.Stdout,
	}

	logger.Debug("Running command", "command", ctx.Command())
	if err := ctx.Run(appCtx); err != nil {
		store.Close()
		errors.Fatal(err)
	}
}

// commandName is the top-level command, e.g. "week" for "week <date>".
func commandName(ctx *kong.Context) string {
	if sel := ctx.Selected(); sel != nil {
		for sel.Parent != nil && sel.Parent.Type == kong.CommandNode {
			sel = sel.Parent
		}
		return sel.Name
	}
	return ""
}
