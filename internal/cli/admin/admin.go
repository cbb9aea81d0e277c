// Package admin manages the program and affiliate catalog. Mutations need
// an open admin session.
package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/filialwatch/internal/cli"
	"github.com/julianstephens/filialwatch/internal/constants"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/gateway"
)

type ProgramCmd struct {
	List   ProgramListCmd   `cmd:"" help:"List programs."`
	Add    ProgramAddCmd    `cmd:"" help:"Add a program."`
	Edit   ProgramEditCmd   `cmd:"" help:"Edit a program."`
	Delete ProgramDeleteCmd `cmd:"" help:"Delete a program and its reports."`
}

type AffiliateCmd struct {
	List   AffiliateListCmd   `cmd:"" help:"List affiliates."`
	Add    AffiliateAddCmd    `cmd:"" help:"Add an affiliate."`
	Edit   AffiliateEditCmd   `cmd:"" help:"Edit an affiliate."`
	Delete AffiliateDeleteCmd `cmd:"" help:"Delete an affiliate, its reports and notes."`
}

// adminClient returns the backend after checking the admin session.
func adminClient(ctx *cli.Context) (gateway.Backend, error) {
	m, err := ctx.Sessions()
	if err != nil {
		return nil, err
	}
	if !m.CanAdmin() {
		return nil, fmt.Errorf("%w: run '%s login --admin' first", apperrors.ErrForbidden, constants.AppName)
	}
	return ctx.Client()
}

// matches reports whether arg names an entity by id or case-insensitive name.
func matches(arg, id, name string) bool {
	arg = strings.TrimSpace(arg)
	return arg == id || strings.EqualFold(arg, name)
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// optionalBool maps the --active/--inactive pair onto a tri-state.
func optionalBool(on, off bool) (*bool, error) {
	switch {
	case on && off:
		return nil, apperrors.Validationf("--active and --inactive are mutually exclusive")
	case on:
		v := true
		return &v, nil
	case off:
		v := false
		return &v, nil
	}
	return nil, nil
}

func background() context.Context {
	return context.Background()
}
