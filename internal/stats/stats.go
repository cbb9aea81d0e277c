// Package stats summarises report cells for a program over a set of days.
package stats

import (
	"math"
	"time"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// ReportFunc resolves one cell. store.Store.GetReportState satisfies it.
type ReportFunc func(affiliateID, programID string, date time.Time) models.Report

// Stats counts cells by outcome. The four buckets always sum to Total.
type Stats struct {
	Total          int `json:"total"`
	Transmitidas   int `json:"transmitidas"`
	NoTransmitidas int `json:"noTransmitidas"`
	Tardias        int `json:"tardias"`
	Pendientes     int `json:"pendientes"`
}

// Compute classifies every (affiliate, day) cell on which program airs.
func Compute(affiliates []models.Affiliate, days []time.Time, program models.Program, get ReportFunc) Stats {
	var s Stats
	for _, day := range days {
		if !program.AirsOn(day.In(utils.Lima).Weekday()) {
			continue
		}
		for _, a := range affiliates {
			s.Add(get(a.ID, program.ID, day).Estado)
		}
	}
	return s
}

// Add counts one cell.
func (s *Stats) Add(e models.Estado) {
	s.Total++
	switch e {
	case models.EstadoSi:
		s.Transmitidas++
	case models.EstadoNo:
		s.NoTransmitidas++
	case models.EstadoTarde:
		s.Tardias++
	default:
		s.Pendientes++
	}
}

// Effectiveness is the rounded percentage of on-time broadcasts, 0 when
// there are no cells.
func (s Stats) Effectiveness() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Transmitidas) / float64(s.Total) * 100))
}

// Marked returns how many cells carry an outcome.
func (s Stats) Marked() int {
	return s.Total - s.Pendientes
}
