package system

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
)

type DebugCmd struct {
	DBPath       DebugDBPathCmd       `cmd:"" name:"db-path" help:"Show the local state and log file paths."`
	DumpPending  DebugDumpPendingCmd  `cmd:"" help:"Dump unsynced edits as JSON."`
	DumpSessions DebugDumpSessionsCmd `cmd:"" help:"Dump stored sessions as JSON (tokens omitted)."`
}

func printJSON(ctx *cli.Context, v interface{}) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	ctx.Printf("%s\n", jsonBytes)
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return printJSON(ctx, map[string]string{
		"path": ctx.Store.GetConfigPath(),
		"log":  logger.FilePath(),
	})
}

type pendingDump struct {
	AffiliateID string        `json:"affiliateId"`
	ProgramID   string        `json:"programId"`
	Day         string        `json:"day"`
	Report      models.Report `json:"report"`
}

type DebugDumpPendingCmd struct{}

func (cmd *DebugDumpPendingCmd) Run(ctx *cli.Context) error {
	reports, err := ctx.Store.GetPendingReports()
	if err != nil {
		return err
	}
	notes, err := ctx.Store.GetPendingNotes()
	if err != nil {
		return err
	}
	out := struct {
		Reports []pendingDump `json:"reports"`
		Notes   []models.Note `json:"notes"`
	}{Reports: []pendingDump{}, Notes: notes}
	for k, r := range reports {
		out.Reports = append(out.Reports, pendingDump{AffiliateID: k.AffiliateID, ProgramID: k.ProgramID, Day: k.Day, Report: r})
	}
	sort.Slice(out.Reports, func(i, j int) bool {
		a, b := out.Reports[i], out.Reports[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.AffiliateID != b.AffiliateID {
			return a.AffiliateID < b.AffiliateID
		}
		return a.ProgramID < b.ProgramID
	})
	if out.Notes == nil {
		out.Notes = []models.Note{}
	}
	return printJSON(ctx, out)
}

type DebugDumpSessionsCmd struct{}

func (cmd *DebugDumpSessionsCmd) Run(ctx *cli.Context) error {
	type sessionDump struct {
		Kind      models.SessionKind `json:"kind"`
		Username  string             `json:"username"`
		ExpiresAt string             `json:"expiresAt"`
	}
	out := []sessionDump{}
	for _, kind := range []models.SessionKind{models.SessionOperador, models.SessionAdmin} {
		sess, err := ctx.Store.GetSession(kind)
		if err != nil {
			continue
		}
		out = append(out, sessionDump{Kind: kind, Username: sess.Username, ExpiresAt: sess.ExpiresAt.Format(time.RFC3339)})
	}
	return printJSON(ctx, out)
}
