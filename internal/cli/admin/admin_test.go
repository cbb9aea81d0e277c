package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/julianstephens/filialwatch/internal/cli/clitest"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/models"
)

func setupAdmin(t *testing.T) *clitest.Env {
	t.Helper()
	env := clitest.New(t)
	env.Seed(t)
	env.Login(t, models.SessionAdmin)
	return env
}

func TestMutationsRequireAdmin(t *testing.T) {
	env := clitest.New(t)
	env.Seed(t)
	env.Login(t, models.SessionOperador)

	tests := []struct {
		name string
		run  func() error
	}{
		{"program add", func() error { return (&ProgramAddCmd{Nombre: "DEPORTES", Horario: "20:00"}).Run(env.Ctx) }},
		{"program edit", func() error { return (&ProgramEditCmd{Program: "noticias", Nombre: "X"}).Run(env.Ctx) }},
		{"program delete", func() error { return (&ProgramDeleteCmd{Program: "noticias"}).Run(env.Ctx) }},
		{"affiliate add", func() error { return (&AffiliateAddCmd{Nombre: "PIURA"}).Run(env.Ctx) }},
		{"affiliate edit", func() error { return (&AffiliateEditCmd{Affiliate: "lima", Inactive: true}).Run(env.Ctx) }},
		{"affiliate delete", func() error { return (&AffiliateDeleteCmd{Affiliate: "lima"}).Run(env.Ctx) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, apperrors.ErrForbidden) {
				t.Errorf("expected ErrForbidden, got %v", err)
			}
		})
	}

	programs, _ := env.Client.Programs(context.Background())
	affiliates, _ := env.Client.Affiliates(context.Background())
	if len(programs) != 1 || len(affiliates) != 2 {
		t.Errorf("catalog changed without an admin session: %d programs, %d affiliates", len(programs), len(affiliates))
	}
}

func TestProgramCmds(t *testing.T) {
	env := setupAdmin(t)
	ctx := context.Background()

	if err := (&ProgramAddCmd{Nombre: "DEPORTES", Horario: "20:00", Dias: "sábado", ID: "deportes"}).Run(env.Ctx); err != nil {
		t.Fatalf("program add failed: %v", err)
	}
	p, err := findProgram(env.Client, "Deportes")
	if err != nil {
		t.Fatalf("findProgram failed: %v", err)
	}
	if p.ID != "deportes" || p.DiasSemana != models.DiasSabado || !p.IsActivo {
		t.Errorf("created program = %+v", p)
	}

	if err := (&ProgramEditCmd{Program: "deportes", Horario: "21:30", Inactive: true}).Run(env.Ctx); err != nil {
		t.Fatalf("program edit failed: %v", err)
	}
	p, _ = findProgram(env.Client, "deportes")
	if p.Horario != "21:30" || p.IsActivo || p.Nombre != "DEPORTES" {
		t.Errorf("edited program = %+v", p)
	}

	env.Out.Reset()
	if err := (&ProgramListCmd{ShowIDs: true}).Run(env.Ctx); err != nil {
		t.Fatalf("program list failed: %v", err)
	}
	out := env.Out.String()
	if !strings.Contains(out, "[inactive] DEPORTES (ID: deportes) - 21:30 SABADO") || !strings.Contains(out, "[active] NOTICIAS") {
		t.Errorf("program list output:\n%s", out)
	}

	env.Out.Reset()
	if err := (&ProgramListCmd{ActiveOnly: true}).Run(env.Ctx); err != nil {
		t.Fatalf("program list failed: %v", err)
	}
	if strings.Contains(env.Out.String(), "DEPORTES") {
		t.Errorf("active-only list shows an inactive program:\n%s", env.Out.String())
	}

	if err := (&ProgramDeleteCmd{Program: "DEPORTES"}).Run(env.Ctx); err != nil {
		t.Fatalf("program delete failed: %v", err)
	}
	programs, err := env.Client.Programs(ctx)
	if err != nil {
		t.Fatalf("Programs failed: %v", err)
	}
	if len(programs) != 1 {
		t.Errorf("expected 1 program after delete, got %d", len(programs))
	}
}

func TestProgramCmds_Validation(t *testing.T) {
	env := setupAdmin(t)
	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"bad horario", func() error { return (&ProgramAddCmd{Nombre: "X", Horario: "25:00"}).Run(env.Ctx) }, apperrors.ErrValidation},
		{"bad dias", func() error { return (&ProgramAddCmd{Nombre: "X", Horario: "10:00", Dias: "FINDE"}).Run(env.Ctx) }, apperrors.ErrValidation},
		{"empty name", func() error { return (&ProgramAddCmd{Nombre: " ", Horario: "10:00"}).Run(env.Ctx) }, apperrors.ErrValidation},
		{"both flags", func() error { return (&ProgramEditCmd{Program: "noticias", Active: true, Inactive: true}).Run(env.Ctx) }, apperrors.ErrValidation},
		{"unknown program", func() error { return (&ProgramDeleteCmd{Program: "nada"}).Run(env.Ctx) }, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAffiliateCmds(t *testing.T) {
	env := setupAdmin(t)

	if err := (&AffiliateAddCmd{Nombre: "AREQUIPA"}).Run(env.Ctx); err != nil {
		t.Fatalf("affiliate add failed: %v", err)
	}
	a, err := findAffiliate(env.Client, "arequipa")
	if err != nil {
		t.Fatalf("findAffiliate failed: %v", err)
	}
	if a.ID == "" || !a.IsActivo {
		t.Errorf("created affiliate = %+v", a)
	}

	if err := (&AffiliateEditCmd{Affiliate: a.ID, Nombre: "AREQUIPA SUR", Inactive: true}).Run(env.Ctx); err != nil {
		t.Fatalf("affiliate edit failed: %v", err)
	}
	a, _ = findAffiliate(env.Client, a.ID)
	if a.Nombre != "AREQUIPA SUR" || a.IsActivo {
		t.Errorf("edited affiliate = %+v", a)
	}

	env.Out.Reset()
	if err := (&AffiliateListCmd{}).Run(env.Ctx); err != nil {
		t.Fatalf("affiliate list failed: %v", err)
	}
	if !strings.Contains(env.Out.String(), "[inactive] AREQUIPA SUR") {
		t.Errorf("affiliate list output:\n%s", env.Out.String())
	}

	if err := (&AffiliateDeleteCmd{Affiliate: "AREQUIPA SUR"}).Run(env.Ctx); err != nil {
		t.Fatalf("affiliate delete failed: %v", err)
	}
	if _, err := findAffiliate(env.Client, "AREQUIPA SUR"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected the affiliate to be gone, got %v", err)
	}
}

func TestListWorksWithoutSession(t *testing.T) {
	env := clitest.New(t)
	env.Seed(t)
	if err := (&AffiliateListCmd{ShowIDs: true}).Run(env.Ctx); err != nil {
		t.Fatalf("affiliate list failed: %v", err)
	}
	if !strings.Contains(env.Out.String(), "LIMA (ID: lima)") {
		t.Errorf("affiliate list output:\n%s", env.Out.String())
	}
}
