package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/filialwatch/internal/export"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/targets"
)

// MarkFormModel backs the report form of one cell.
type MarkFormModel struct {
	AffiliateID string
	Affiliate   string
	ProgramID   string
	Date        time.Time
	Estado      models.Estado
	HoraReal    string
	HoraTT      string
	Target      string
	Motivo      string
}

// Report is the full replacement the form submits.
func (f MarkFormModel) Report() models.Report {
	return models.Report{
		Estado:   f.Estado,
		HoraReal: strings.TrimSpace(f.HoraReal),
		HoraTT:   strings.TrimSpace(f.HoraTT),
		Target:   f.Target,
		Motivo:   strings.TrimSpace(f.Motivo),
	}
}

type NoteFormModel struct {
	AffiliateID string
	Affiliate   string
	WeekStart   string
	Content     string
}

type LoginFormModel struct {
	Kind     models.SessionKind
	Username string
	Password string
}

func optionalHHMM(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("use HH:MM")
	}
	return nil
}

func targetOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("(ninguno)", "")}
	for _, abbr := range targets.Abbreviations() {
		opts = append(opts, huh.NewOption(abbr+" - "+targets.Label(abbr), abbr))
	}
	return opts
}

// NewMarkForm builds the form that edits one report cell.
func NewMarkForm(fm *MarkFormModel) *huh.Form {
	title := fmt.Sprintf("%s · %s", fm.Affiliate, export.DayHeader(fm.Date))
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[models.Estado]().
				Title(title).
				Description("Estado de la transmisión").
				Options(
					huh.NewOption(export.EstadoLabel(models.EstadoSi), models.EstadoSi),
					huh.NewOption(export.EstadoLabel(models.EstadoTarde), models.EstadoTarde),
					huh.NewOption(export.EstadoLabel(models.EstadoNo), models.EstadoNo),
				).
				Value(&fm.Estado),
			huh.NewInput().
				Title("Hora real (HH:MM)").
				Value(&fm.HoraReal).
				Validate(optionalHHMM),
			huh.NewInput().
				Title("Hora TT (HH:MM)").
				Value(&fm.HoraTT).
				Validate(optionalHHMM),
			huh.NewSelect[string]().
				Title("Target").
				Options(targetOptions()...).
				Value(&fm.Target),
			huh.NewInput().
				Title("Motivo").
				Value(&fm.Motivo),
		),
	).WithTheme(huh.ThemeDracula())
}

func NewNoteForm(fm *NoteFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title(fmt.Sprintf("Nota de %s (semana del %s)", fm.Affiliate, fm.WeekStart)).
				Value(&fm.Content),
		),
	).WithTheme(huh.ThemeDracula())
}

func NewLoginForm(fm *LoginFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[models.SessionKind]().
				Title("Sesión").
				Options(
					huh.NewOption("Operador", models.SessionOperador),
					huh.NewOption("Administrador", models.SessionAdmin),
				).
				Value(&fm.Kind),
			huh.NewInput().
				Title("Usuario").
				Value(&fm.Username).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("usuario requerido")
					}
					return nil
				}),
			huh.NewInput().
				Title("Contraseña").
				EchoMode(huh.EchoModePassword).
				Value(&fm.Password),
		),
	).WithTheme(huh.ThemeDracula())
}
