package stats

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

func weekDays() []time.Time {
	return utils.WeekOf(time.Date(2025, 3, 10, 0, 0, 0, 0, utils.Lima)).Days()
}

func affiliates(n int) []models.Affiliate {
	out := make([]models.Affiliate, n)
	for i := range out {
		out[i] = models.Affiliate{ID: fmt.Sprintf("f%d", i), Nombre: fmt.Sprintf("FILIAL %d", i), IsActivo: true}
	}
	return out
}

func TestComputeWeekScenario(t *testing.T) {
	program := models.Program{ID: "noticias", Nombre: "NOTICIAS", Horario: "05:00", DiasSemana: models.DiasDiario, IsActivo: true}
	affs := affiliates(5)
	days := weekDays()

	// Affiliates 0-1 on time all week, 2 absent, 3 late, 4 untouched.
	byAffiliate := map[string]models.Estado{
		"f0": models.EstadoSi, "f1": models.EstadoSi,
		"f2": models.EstadoNo, "f3": models.EstadoTarde,
	}
	get := func(a, p string, d time.Time) models.Report {
		if e, ok := byAffiliate[a]; ok {
			return models.Report{Estado: e}
		}
		return models.DefaultReport()
	}

	got := Compute(affs, days, program, get)
	want := Stats{Total: 25, Transmitidas: 10, NoTransmitidas: 5, Tardias: 5, Pendientes: 5}
	if got != want {
		t.Errorf("Compute() = %+v, want %+v", got, want)
	}
	if got.Effectiveness() != 40 {
		t.Errorf("Effectiveness() = %d, want 40", got.Effectiveness())
	}
	if got.Marked() != 20 {
		t.Errorf("Marked() = %d, want 20", got.Marked())
	}
}

func TestComputeOnlyAiringDays(t *testing.T) {
	tests := []struct {
		dias models.DiasSemana
		want int
	}{
		{models.DiasDiario, 15},
		{models.DiasLunes, 3},
		{models.DiasViernes, 3},
		{models.DiasSabado, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.dias), func(t *testing.T) {
			program := models.Program{ID: "p", DiasSemana: tt.dias}
			got := Compute(affiliates(3), weekDays(), program, func(string, string, time.Time) models.Report {
				return models.DefaultReport()
			})
			if got.Total != tt.want || got.Pendientes != tt.want {
				t.Errorf("Compute() = %+v, want total %d", got, tt.want)
			}
		})
	}
}

func TestEffectiveness(t *testing.T) {
	tests := []struct {
		s    Stats
		want int
	}{
		{Stats{}, 0},
		{Stats{Total: 3, Transmitidas: 1}, 33},
		{Stats{Total: 3, Transmitidas: 2}, 67},
		{Stats{Total: 8, Transmitidas: 1}, 13},
		{Stats{Total: 4, Transmitidas: 4}, 100},
	}
	for _, tt := range tests {
		if got := tt.s.Effectiveness(); got != tt.want {
			t.Errorf("%+v.Effectiveness() = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestBucketsSumToTotal(t *testing.T) {
	estados := []models.Estado{models.EstadoPendiente, models.EstadoSi, models.EstadoNo, models.EstadoTarde, "", "garbage"}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := rng.Intn(10)
		program := models.Program{ID: "p", DiasSemana: models.DiasDiario}
		got := Compute(affiliates(n), weekDays(), program, func(string, string, time.Time) models.Report {
			return models.Report{Estado: estados[rng.Intn(len(estados))]}
		})
		if got.Transmitidas+got.NoTransmitidas+got.Tardias+got.Pendientes != got.Total {
			t.Fatalf("buckets do not sum to total: %+v", got)
		}
		if got.Total != n*5 {
			t.Fatalf("Total = %d, want %d", got.Total, n*5)
		}
	}
}
