package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, WithToken("tok"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "localhost:8080"} {
		if _, err := NewClient(u); err == nil {
			t.Errorf("NewClient(%q) should fail", u)
		}
	}
}

func TestProgramsAppliesDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"id":"p1","nombre":"NOTICIAS"},
			{"id":"p2","nombre":"DEPORTES","horario":"18:30","dias_semana":"sabado","is_activo":false}
		]`))
	})

	programs, err := c.Programs(context.Background())
	if err != nil {
		t.Fatalf("Programs failed: %v", err)
	}
	if len(programs) != 2 {
		t.Fatalf("expected 2 programs, got %d", len(programs))
	}
	p := programs[0]
	if p.Horario != "00:00" || p.DiasSemana != models.DiasDiario || !p.IsActivo {
		t.Errorf("defaults not applied: %+v", p)
	}
	p = programs[1]
	if p.Horario != "18:30" || p.DiasSemana != models.DiasSabado || p.IsActivo {
		t.Errorf("explicit fields lost: %+v", p)
	}
}

func TestReportsConvertsTargets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "2025-03-10" || r.URL.Query().Get("to") != "2025-03-14" {
			t.Errorf("unexpected range %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"filial_id":"lima","programa_id":"noticias","fecha":"2025-03-10","estado":"tarde","hora_real":"06:10","hora_tt":null,"target":"Problema_tecnico","motivo":"sin enlace"},
			{"filial_id":"cusco","programa_id":"noticias","fecha":"2025-03-11T05:00:00Z","estado":"si","hora_real":"06:00","hora_tt":null,"target":null,"motivo":null},
			{"filial_id":"piura","programa_id":"noticias","fecha":"garbage","estado":"si"}
		]`))
	})

	week := utils.WeekOf(time.Date(2025, 3, 12, 10, 0, 0, 0, utils.Lima))
	reports, err := c.Reports(context.Background(), week.Inicio, week.Fin)
	if err != nil {
		t.Fatalf("Reports failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 valid rows, got %d", len(reports))
	}

	lima := reports[utils.CacheKey("lima", "noticias", week.Fechas[0])]
	if lima.Estado != models.EstadoTarde || lima.Target != "P. Tec" || lima.Sync != models.SyncSynced {
		t.Errorf("unexpected lima report: %+v", lima)
	}
	cusco, ok := reports[utils.CacheKey("cusco", "noticias", week.Fechas[1])]
	if !ok || cusco.Estado != models.EstadoSi {
		t.Errorf("timestamp fecha not keyed to the Lima day: %+v", reports)
	}
}

func TestPutReportSendsEnum(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/reports/lima/noticias/2025-03-10" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var patch ReportPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if patch.Target == nil || *patch.Target != "Falta" || patch.HoraReal != nil {
			t.Errorf("unexpected patch: %+v", patch)
		}
		writeJSON(w, http.StatusOK, ReportRow{
			FilialID: "lima", ProgramaID: "noticias", Fecha: "2025-03-10",
			Estado: patch.Estado, Target: patch.Target, Motivo: patch.Motivo,
		})
	})

	key := utils.CacheKey("lima", "noticias", time.Date(2025, 3, 10, 0, 5, 0, 0, utils.Lima))
	got, err := c.PutReport(context.Background(), key, models.Report{Estado: models.EstadoNo, Target: "Fta", Motivo: "no llegó"})
	if err != nil {
		t.Fatalf("PutReport failed: %v", err)
	}
	if got.Target != "Fta" || got.Motivo != "no llegó" {
		t.Errorf("unexpected confirmed report: %+v", got)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, apperrors.ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, apperrors.ErrForbidden},
		{"bad request", http.StatusBadRequest, apperrors.ErrValidation},
		{"server error", http.StatusInternalServerError, apperrors.ErrWriteFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, ErrorResponse{Error: "boom"})
			})
			err := c.DeleteProgram(context.Background(), "p1")
			if !apperrors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var se *StatusError
			if !apperrors.As(err, &se) || se.Message != "boom" {
				t.Errorf("expected StatusError with message, got %v", err)
			}
		})
	}
}

func TestOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := c.Ping(context.Background()); !apperrors.Is(err, apperrors.ErrOffline) {
		t.Errorf("expected ErrOffline, got %v", err)
	}
}

func TestHealthRequiresHealthy(t *testing.T) {
	status := "healthy"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: status})
	})
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	status = "degraded"
	if _, err := c.Health(context.Background()); !apperrors.Is(err, apperrors.ErrOffline) {
		t.Errorf("expected ErrOffline for degraded backend, got %v", err)
	}
}
