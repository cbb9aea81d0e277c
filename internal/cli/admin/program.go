package admin

import (
	"fmt"
	"strings"

	"github.com/julianstephens/filialwatch/internal/cli"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/models"
)

func findProgram(gw gateway.Gateway, arg string) (models.Program, error) {
	programs, err := gw.Programs(background())
	if err != nil {
		return models.Program{}, err
	}
	for _, p := range programs {
		if matches(arg, p.ID, p.Nombre) {
			return p, nil
		}
	}
	return models.Program{}, fmt.Errorf("program %q: %w", arg, apperrors.ErrNotFound)
}

type ProgramListCmd struct {
	ActiveOnly bool `help:"Show only active programs."`
	ShowIDs    bool `help:"Show program IDs." name:"show-ids"`
}

func (c *ProgramListCmd) Run(ctx *cli.Context) error {
	gw, err := ctx.Client()
	if err != nil {
		return err
	}
	programs, err := gw.Programs(background())
	if err != nil {
		return fmt.Errorf("failed to get programs: %w", err)
	}
	if len(programs) == 0 {
		ctx.Printf("No programs found\n")
		return nil
	}
	ctx.Printf("Programs:\n")
	for _, p := range programs {
		if c.ActiveOnly && !p.IsActivo {
			continue
		}
		idStr := ""
		if c.ShowIDs {
			idStr = fmt.Sprintf(" (ID: %s)", p.ID)
		}
		ctx.Printf("  [%s] %s%s - %s %s\n", activeLabel(p.IsActivo), p.Nombre, idStr, p.Horario, p.DiasSemana)
	}
	return nil
}

type ProgramAddCmd struct {
	Nombre  string `arg:"" help:"Program name."`
	Horario string `arg:"" help:"Scheduled start (HH:MM)."`
	Dias    string `default:"DIARIO" help:"LUNES..DOMINGO or DIARIO."`
	ID      string `help:"Explicit id (generated by the backend when omitted)."`
}

func (c *ProgramAddCmd) Run(ctx *cli.Context) error {
	gw, err := adminClient(ctx)
	if err != nil {
		return err
	}
	dias, err := models.ParseDiasSemana(c.Dias)
	if err != nil {
		return apperrors.Validationf("%v", err)
	}
	p := models.Program{
		ID:         strings.TrimSpace(c.ID),
		Nombre:     strings.TrimSpace(c.Nombre),
		Horario:    strings.TrimSpace(c.Horario),
		DiasSemana: dias,
		IsActivo:   true,
	}
	if err := p.Validate(); err != nil {
		return apperrors.Validationf("%v", err)
	}
	created, err := gw.CreateProgram(background(), p)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Program created: %s (ID: %s)\n", created.Nombre, created.ID)
	return nil
}

type ProgramEditCmd struct {
	Program  string `arg:"" help:"Program id or name."`
	Nombre   string `help:"New name."`
	Horario  string `help:"New start time (HH:MM)."`
	Dias     string `help:"New airing days."`
	Active   bool   `help:"Mark active."`
	Inactive bool   `help:"Mark inactive."`
}

func (c *ProgramEditCmd) Run(ctx *cli.Context) error {
	gw, err := adminClient(ctx)
	if err != nil {
		return err
	}
	active, err := optionalBool(c.Active, c.Inactive)
	if err != nil {
		return err
	}
	p, err := findProgram(gw, c.Program)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(c.Nombre); v != "" {
		p.Nombre = v
	}
	if v := strings.TrimSpace(c.Horario); v != "" {
		p.Horario = v
	}
	if c.Dias != "" {
		if p.DiasSemana, err = models.ParseDiasSemana(c.Dias); err != nil {
			return apperrors.Validationf("%v", err)
		}
	}
	if active != nil {
		p.IsActivo = *active
	}
	if err := p.Validate(); err != nil {
		return apperrors.Validationf("%v", err)
	}
	updated, err := gw.UpdateProgram(background(), p)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Program updated: %s - %s %s [%s]\n", updated.Nombre, updated.Horario, updated.DiasSemana, activeLabel(updated.IsActivo))
	return nil
}

type ProgramDeleteCmd struct {
	Program string `arg:"" help:"Program id or name."`
}

func (c *ProgramDeleteCmd) Run(ctx *cli.Context) error {
	gw, err := adminClient(ctx)
	if err != nil {
		return err
	}
	p, err := findProgram(gw, c.Program)
	if err != nil {
		return err
	}
	if err := gw.DeleteProgram(background(), p.ID); err != nil {
		return err
	}
	ctx.Printf("✓ Program deleted: %s\n", p.Nombre)
	return nil
}
