package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/targets"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// ProgramDTO is the backend shape of a program. Absent optional fields
// decode as nil and take their defaults in ProgramFromDTO.
type ProgramDTO struct {
	ID         string  `json:"id,omitempty"`
	Nombre     string  `json:"nombre"`
	Horario    *string `json:"horario,omitempty"`
	DiasSemana *string `json:"dias_semana,omitempty"`
	IsActivo   *bool   `json:"is_activo,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// AffiliateDTO is the backend shape of an affiliate.
type AffiliateDTO struct {
	ID        string `json:"id,omitempty"`
	Nombre    string `json:"nombre"`
	IsActivo  *bool  `json:"is_activo,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ReportRow is one report as the backend returns it. Target carries the
// backend enum (e.g. "Problema_tecnico").
type ReportRow struct {
	FilialID   string  `json:"filial_id"`
	ProgramaID string  `json:"programa_id"`
	Fecha      string  `json:"fecha"`
	Estado     string  `json:"estado"`
	HoraReal   *string `json:"hora_real"`
	HoraTT     *string `json:"hora_tt"`
	Target     *string `json:"target"`
	Motivo     *string `json:"motivo"`
}

// ReportPatch is the body of PUT /reports/{a}/{p}/{date}. It replaces the
// stored report; nil fields are stored as null.
type ReportPatch struct {
	Estado   string  `json:"estado"`
	HoraReal *string `json:"hora_real"`
	HoraTT   *string `json:"hora_tt"`
	Target   *string `json:"target"`
	Motivo   *string `json:"motivo"`
}

// NoteRow is a note as the backend stores it.
type NoteRow struct {
	FilialID  string `json:"filial_id"`
	WeekStart string `json:"week_start"`
	Content   string `json:"content"`
}

// NotePatch is the body of PUT /notes/{a}/{weekStart}.
type NotePatch struct {
	Content string `json:"content"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Version  string `json:"version,omitempty"`
}

// ErrorResponse is the body of every non-2xx backend reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Event types pushed over /ws.
const (
	EventReportUpdated  = "report.updated"
	EventNoteUpdated    = "note.updated"
	EventCatalogUpdated = "catalog.updated"
)

// Event is a change notification from the backend.
type Event struct {
	Type       string `json:"type"`
	FilialID   string `json:"filial_id,omitempty"`
	ProgramaID string `json:"programa_id,omitempty"`
	Fecha      string `json:"fecha,omitempty"`
	WeekStart  string `json:"week_start,omitempty"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func parseCreatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

// ProgramFromDTO converts the backend shape, applying defaults for absent fields.
func ProgramFromDTO(d ProgramDTO) models.Program {
	p := models.Program{
		ID:         d.ID,
		Nombre:     d.Nombre,
		Horario:    "00:00",
		DiasSemana: models.DiasDiario,
		IsActivo:   true,
		CreatedAt:  parseCreatedAt(d.CreatedAt),
	}
	if d.Horario != nil && *d.Horario != "" {
		p.Horario = *d.Horario
	}
	if d.DiasSemana != nil {
		if ds, err := models.ParseDiasSemana(*d.DiasSemana); err == nil {
			p.DiasSemana = ds
		}
	}
	if d.IsActivo != nil {
		p.IsActivo = *d.IsActivo
	}
	return p
}

// ProgramToDTO converts a program for create/update requests.
func ProgramToDTO(p models.Program) ProgramDTO {
	horario := p.Horario
	dias := string(p.DiasSemana)
	activo := p.IsActivo
	d := ProgramDTO{
		ID:         p.ID,
		Nombre:     p.Nombre,
		Horario:    &horario,
		DiasSemana: &dias,
		IsActivo:   &activo,
	}
	if !p.CreatedAt.IsZero() {
		d.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	return d
}

// AffiliateFromDTO converts the backend shape, defaulting is_activo to true.
func AffiliateFromDTO(d AffiliateDTO) models.Affiliate {
	a := models.Affiliate{ID: d.ID, Nombre: d.Nombre, IsActivo: true, CreatedAt: parseCreatedAt(d.CreatedAt)}
	if d.IsActivo != nil {
		a.IsActivo = *d.IsActivo
	}
	return a
}

// AffiliateToDTO converts an affiliate for create/update requests.
func AffiliateToDTO(a models.Affiliate) AffiliateDTO {
	activo := a.IsActivo
	d := AffiliateDTO{ID: a.ID, Nombre: a.Nombre, IsActivo: &activo}
	if !a.CreatedAt.IsZero() {
		d.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return d
}

// ParseFecha accepts the backend date, either YYYY-MM-DD or a full
// timestamp, and returns the calendar day in Lima.
func ParseFecha(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(constants.DateFormat, s, utils.Lima); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		// A DATE column serialized as UTC midnight names a calendar day, not an instant.
		if _, offset := t.Zone(); offset == 0 && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, utils.Lima), nil
		}
		return utils.StartOfDay(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid fecha %q", s)
}

// ReportFromRow converts a backend row into its cell key and canonical
// report. The backend target enum becomes the UI abbreviation.
func ReportFromRow(row ReportRow) (utils.Key, models.Report, error) {
	date, err := ParseFecha(row.Fecha)
	if err != nil {
		return utils.Key{}, models.Report{}, err
	}
	estado, err := models.ParseEstado(row.Estado)
	if err != nil {
		return utils.Key{}, models.Report{}, err
	}
	r := models.Report{
		Estado:   estado,
		HoraReal: deref(row.HoraReal),
		HoraTT:   deref(row.HoraTT),
		Target:   targets.ToAbbr(deref(row.Target)),
		Motivo:   deref(row.Motivo),
		Sync:     models.SyncSynced,
	}
	return utils.CacheKey(row.FilialID, row.ProgramaID, date), r.Sanitize(), nil
}

// ReportToPatch converts a canonical report into the PUT body. The
// abbreviation goes back to the backend enum.
func ReportToPatch(r models.Report) ReportPatch {
	var target *string
	if r.Target != "" {
		target = strPtr(targets.ToEnum(r.Target))
	}
	return ReportPatch{
		Estado:   string(r.Estado),
		HoraReal: strPtr(r.HoraReal),
		HoraTT:   strPtr(r.HoraTT),
		Target:   target,
		Motivo:   strPtr(r.Motivo),
	}
}

// NoteFromRow converts a backend note.
func NoteFromRow(row NoteRow) models.Note {
	return models.Note{AffiliateID: row.FilialID, WeekStart: row.WeekStart, Content: row.Content, Sync: models.SyncSynced}
}
