package backend

import (
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/julianstephens/filialwatch/internal/constants"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/gateway"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/targets"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Server serves the backend contract over a Repository.
type Server struct {
	repo  *Repository
	hub   *Hub
	token string
}

type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every route
// except /health and /ping. An empty token disables the check.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func NewServer(repo *Repository, hub *Hub, opts ...Option) *Server {
	s := &Server{repo: repo, hub: hub}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ping", s.ping).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.requireToken)

	api.HandleFunc("/programs", s.listPrograms).Methods(http.MethodGet)
	api.HandleFunc("/programs", s.createProgram).Methods(http.MethodPost)
	api.HandleFunc("/programs/{id}", s.updateProgram).Methods(http.MethodPut)
	api.HandleFunc("/programs/{id}", s.deleteProgram).Methods(http.MethodDelete)

	api.HandleFunc("/affiliates", s.listAffiliates).Methods(http.MethodGet)
	api.HandleFunc("/affiliates", s.createAffiliate).Methods(http.MethodPost)
	api.HandleFunc("/affiliates/{id}", s.updateAffiliate).Methods(http.MethodPut)
	api.HandleFunc("/affiliates/{id}", s.deleteAffiliate).Methods(http.MethodDelete)

	api.HandleFunc("/reports", s.listReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{filial}/{programa}/{fecha}", s.putReport).Methods(http.MethodPut)

	api.HandleFunc("/notes", s.listNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes/{filial}/{week}", s.putNote).Methods(http.MethodPut)

	if s.hub != nil {
		api.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "upgrade", true)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Warn("Failed to encode response", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, gateway.ErrorResponse{Error: msg})
}

// writeErr maps repository errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperrors.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

func (s *Server) broadcast(ev gateway.Event) {
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := gateway.HealthResponse{Status: "healthy", Database: "ok", Version: constants.Version}
	if err := s.repo.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Database = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// newID keeps a caller-chosen id and otherwise assigns a UUID.
func newID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return uuid.NewString()
}

func programToDTO(p programRow) gateway.ProgramDTO {
	activo := p.IsActivo
	return gateway.ProgramDTO{
		ID:         p.ID,
		Nombre:     p.Nombre,
		Horario:    &p.Horario,
		DiasSemana: &p.DiasSemana,
		IsActivo:   &activo,
		CreatedAt:  p.CreatedAt,
	}
}

// programFromDTO validates a request body. Absent fields take the same
// defaults the client applies.
func programFromDTO(id string, d gateway.ProgramDTO) (programRow, error) {
	p := gateway.ProgramFromDTO(d)
	p.ID = id
	if d.DiasSemana != nil {
		ds, err := models.ParseDiasSemana(*d.DiasSemana)
		if err != nil {
			return programRow{}, apperrors.Validationf("%v", err)
		}
		p.DiasSemana = ds
	}
	if err := p.Validate(); err != nil {
		return programRow{}, apperrors.Validationf("%v", err)
	}
	return programRow{
		ID:         p.ID,
		Nombre:     strings.TrimSpace(p.Nombre),
		Horario:    p.Horario,
		DiasSemana: string(p.DiasSemana),
		IsActivo:   p.IsActivo,
	}, nil
}

func (s *Server) listPrograms(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.ListPrograms(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]gateway.ProgramDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, programToDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createProgram(w http.ResponseWriter, r *http.Request) {
	var d gateway.ProgramDTO
	if err := decode(w, r, &d); err != nil {
		writeErr(w, err)
		return
	}
	p, err := programFromDTO(newID(d.ID), d)
	if err != nil {
		writeErr(w, err)
		return
	}
	if _, err := s.repo.GetProgram(r.Context(), p.ID); err == nil {
		writeErr(w, apperrors.Validationf("program %s already exists", p.ID))
		return
	}
	created, err := s.repo.CreateProgram(r.Context(), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventCatalogUpdated})
	writeJSON(w, http.StatusCreated, programToDTO(created))
}

func (s *Server) updateProgram(w http.ResponseWriter, r *http.Request) {
	var d gateway.ProgramDTO
	if err := decode(w, r, &d); err != nil {
		writeErr(w, err)
		return
	}
	p, err := programFromDTO(mux.Vars(r)["id"], d)
	if err != nil {
		writeErr(w, err)
		return
	}
	updated, err := s.repo.UpdateProgram(r.Context(), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventCatalogUpdated})
	writeJSON(w, http.StatusOK, programToDTO(updated))
}

func (s *Server) deleteProgram(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteProgram(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventCatalogUpdated})
	w.WriteHeader(http.StatusNoContent)
}

func affiliateToDTO(a affiliateRow) gateway.AffiliateDTO {
	activo := a.IsActivo
	return gateway.AffiliateDTO{ID: a.ID, Nombre: a.Nombre, IsActivo: &activo, CreatedAt: a.CreatedAt}
}

func affiliateFromDTO(id string, d gateway.AffiliateDTO) (affiliateRow, error) {
	a := gateway.AffiliateFromDTO(d)
	if err := a.Validate(); err != nil {
		return affiliateRow{}, apperrors.Validationf("%v", err)
	}
	return affiliateRow{ID: id, Nombre: strings.TrimSpace(a.Nombre), IsActivo: a.IsActivo}, nil
}

func (s *Server) listAffiliates(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.ListAffiliates(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]gateway.AffiliateDTO, 0, len(rows))
	for _, a := range rows {
		out = append(out, affiliateToDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAffiliate(w http.ResponseWriter, r *http.Request) {
	var d gateway.AffiliateDTO
	if err := decode(w, r, &d); err != nil {
		writeErr(w, err)
		return
	}
	a, err := affiliateFromDTO(newID(d.ID), d)
	if err != nil {
		writeErr(w, err)
		return
	}
	if _, err := s.repo.GetAffiliate(r.Context(), a.ID); err == nil {
		writeErr(w, apperrors.Validationf("affiliate %s already exists", a.ID))
		return
	}
	created, err := s.repo.CreateAffiliate(r.Context(), a)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventCatalogUpdated})
	writeJSON(w, http.StatusCreated, affiliateToDTO(created))
}

func (s *Server) updateAffiliate(w http.ResponseWriter, r *http.Request) {
	var d gateway.AffiliateDTO
	if err := decode(w, r, &d); err != nil {
		writeErr(w, err)
		return
	}
	a, err := affiliateFromDTO(mux.Vars(r)["id"], d)
	if err != nil {
		writeErr(w, err)
		return
	}
	updated, err := s.repo.UpdateAffiliate(r.Context(), a)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventCatalogUpdated})
	writeJSON(w, http.StatusOK, affiliateToDTO(updated))
}

func (s *Server) deleteAffiliate(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteAffiliate(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventCatalogUpdated})
	w.WriteHeader(http.StatusNoContent)
}

func parseDay(s, field string) (time.Time, error) {
	d, err := time.ParseInLocation(constants.DateFormat, s, utils.Lima)
	if err != nil {
		return time.Time{}, apperrors.Validationf("invalid %s %q (expected YYYY-MM-DD)", field, s)
	}
	return d, nil
}

func toNull(p *string) sql.NullString {
	if p == nil || strings.TrimSpace(*p) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*p), Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func reportToDTO(row reportRow) gateway.ReportRow {
	return gateway.ReportRow{
		FilialID:   row.FilialID,
		ProgramaID: row.ProgramaID,
		Fecha:      row.Fecha,
		Estado:     row.Estado,
		HoraReal:   fromNull(row.HoraReal),
		HoraTT:     fromNull(row.HoraTT),
		Target:     fromNull(row.Target),
		Motivo:     fromNull(row.Motivo),
	}
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDay(q.Get("from"), "from")
	if err != nil {
		writeErr(w, err)
		return
	}
	to, err := parseDay(q.Get("to"), "to")
	if err != nil {
		writeErr(w, err)
		return
	}
	if to.Before(from) {
		writeErr(w, apperrors.Validationf("to %s is before from %s", q.Get("to"), q.Get("from")))
		return
	}

	rows, err := s.repo.ListReports(r.Context(), utils.DateKey(from), utils.DateKey(to))
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]gateway.ReportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, reportToDTO(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func validClock(p *string) bool {
	if p == nil || strings.TrimSpace(*p) == "" {
		return true
	}
	_, err := time.Parse(constants.TimeFormat, strings.TrimSpace(*p))
	return err == nil
}

func validTarget(p *string) bool {
	if p == nil || strings.TrimSpace(*p) == "" {
		return true
	}
	for _, e := range targets.Enums() {
		if e == strings.TrimSpace(*p) {
			return true
		}
	}
	return false
}

func (s *Server) putReport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	day, err := parseDay(vars["fecha"], "fecha")
	if err != nil {
		writeErr(w, err)
		return
	}
	var patch gateway.ReportPatch
	if err := decode(w, r, &patch); err != nil {
		writeErr(w, err)
		return
	}

	switch models.Estado(patch.Estado) {
	case models.EstadoSi, models.EstadoNo, models.EstadoTarde:
	default:
		writeErr(w, apperrors.Validationf("invalid estado %q", patch.Estado))
		return
	}
	if !validClock(patch.HoraReal) || !validClock(patch.HoraTT) {
		writeErr(w, apperrors.Validationf("hora_real and hora_tt must be HH:MM"))
		return
	}
	if !validTarget(patch.Target) {
		writeErr(w, apperrors.Validationf("invalid target %q", *patch.Target))
		return
	}

	if _, err := s.repo.GetAffiliate(r.Context(), vars["filial"]); err != nil {
		writeErr(w, err)
		return
	}
	if _, err := s.repo.GetProgram(r.Context(), vars["programa"]); err != nil {
		writeErr(w, err)
		return
	}

	row := reportRow{
		FilialID:   vars["filial"],
		ProgramaID: vars["programa"],
		Fecha:      utils.DateKey(day),
		Estado:     patch.Estado,
		HoraReal:   toNull(patch.HoraReal),
		HoraTT:     toNull(patch.HoraTT),
		Target:     toNull(patch.Target),
		Motivo:     toNull(patch.Motivo),
	}

	saved, err := s.repo.UpsertReport(r.Context(), row)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventReportUpdated, FilialID: saved.FilialID, ProgramaID: saved.ProgramaID, Fecha: saved.Fecha})
	writeJSON(w, http.StatusOK, reportToDTO(saved))
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	week, err := parseDay(r.URL.Query().Get("week"), "week")
	if err != nil {
		writeErr(w, err)
		return
	}
	rows, err := s.repo.ListNotes(r.Context(), utils.DateKey(utils.WeekOf(week).Inicio))
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]gateway.NoteRow, 0, len(rows))
	for _, n := range rows {
		out = append(out, gateway.NoteRow{FilialID: n.FilialID, WeekStart: n.WeekStart, Content: n.Content})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) putNote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	week, err := parseDay(vars["week"], "week")
	if err != nil {
		writeErr(w, err)
		return
	}
	var patch gateway.NotePatch
	if err := decode(w, r, &patch); err != nil {
		writeErr(w, err)
		return
	}
	if _, err := s.repo.GetAffiliate(r.Context(), vars["filial"]); err != nil {
		writeErr(w, err)
		return
	}

	saved, err := s.repo.UpsertNote(r.Context(), noteRow{
		FilialID:  vars["filial"],
		WeekStart: utils.DateKey(utils.WeekOf(week).Inicio),
		Content:   patch.Content,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	s.broadcast(gateway.Event{Type: gateway.EventNoteUpdated, FilialID: saved.FilialID, WeekStart: saved.WeekStart})
	writeJSON(w, http.StatusOK, gateway.NoteRow{FilialID: saved.FilialID, WeekStart: saved.WeekStart, Content: saved.Content})
}
