package admin

import (
	"fmt"
	"strings"

	"github.com/julianstephens/filialwatch/internal/cli"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/models"
)

func findAffiliate(gw gateway.Gateway, arg string) (models.Affiliate, error) {
	affiliates, err := gw.Affiliates(background())
	if err != nil {
		return models.Affiliate{}, err
	}
	for _, a := range affiliates {
		if matches(arg, a.ID, a.Nombre) {
			return a, nil
		}
	}
	return models.Affiliate{}, fmt.Errorf("affiliate %q: %w", arg, apperrors.ErrNotFound)
}

type AffiliateListCmd struct {
	ActiveOnly bool `help:"Show only active affiliates."`
	ShowIDs    bool `help:"Show affiliate IDs." name:"show-ids"`
}

func (c *AffiliateListCmd) Run(ctx *cli.Context) error {
	gw, err := ctx.Client()
	if err != nil {
		return err
	}
	affiliates, err := gw.Affiliates(background())
	if err != nil {
		return fmt.Errorf("failed to get affiliates: %w", err)
	}
	if len(affiliates) == 0 {
		ctx.Printf("No affiliates found\n")
		return nil
	}
	ctx.Printf("Affiliates:\n")
	for _, a := range affiliates {
		if c.ActiveOnly && !a.IsActivo {
			continue
		}
		idStr := ""
		if c.ShowIDs {
			idStr = fmt.Sprintf(" (ID: %s)", a.ID)
		}
		ctx.Printf("  [%s] %s%s\n", activeLabel(a.IsActivo), a.Nombre, idStr)
	}
	return nil
}

type AffiliateAddCmd struct {
	Nombre string `arg:"" help:"Affiliate name, e.g. AREQUIPA."`
	ID     string `help:"Explicit id (generated by the backend when omitted)."`
}

func (c *AffiliateAddCmd) Run(ctx *cli.Context) error {
	gw, err := adminClient(ctx)
	if err != nil {
		return err
	}
	a := models.Affiliate{ID: strings.TrimSpace(c.ID), Nombre: strings.TrimSpace(c.Nombre), IsActivo: true}
	if err := a.Validate(); err != nil {
		return apperrors.Validationf("%v", err)
	}
	created, err := gw.CreateAffiliate(background(), a)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Affiliate created: %s (ID: %s)\n", created.Nombre, created.ID)
	return nil
}

type AffiliateEditCmd struct {
	Affiliate string `arg:"" help:"Affiliate id or name."`
	Nombre    string `help:"New name."`
	Active    bool   `help:"Mark active."`
	Inactive  bool   `help:"Mark inactive."`
}

func (c *AffiliateEditCmd) Run(ctx *cli.Context) error {
	gw, err := adminClient(ctx)
	if err != nil {
		return err
	}
	active, err := optionalBool(c.Active, c.Inactive)
	if err != nil {
		return err
	}
	a, err := findAffiliate(gw, c.Affiliate)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(c.Nombre); v != "" {
		a.Nombre = v
	}
	if active != nil {
		a.IsActivo = *active
	}
	if err := a.Validate(); err != nil {
		return apperrors.Validationf("%v", err)
	}
	updated, err := gw.UpdateAffiliate(background(), a)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Affiliate updated: %s [%s]\n", updated.Nombre, activeLabel(updated.IsActivo))
	return nil
}

type AffiliateDeleteCmd struct {
	Affiliate string `arg:"" help:"Affiliate id or name."`
}

func (c *AffiliateDeleteCmd) Run(ctx *cli.Context) error {
	gw, err := adminClient(ctx)
	if err != nil {
		return err
	}
	a, err := findAffiliate(gw, c.Affiliate)
	if err != nil {
		return err
	}
	if err := gw.DeleteAffiliate(background(), a.ID); err != nil {
		return err
	}
	ctx.Printf("✓ Affiliate deleted: %s\n", a.Nombre)
	return nil
}
