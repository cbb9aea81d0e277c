package models

import (
	"fmt"
	"time"
)

// Estado is the outcome classification of a report.
type Estado string

const (
	EstadoPendiente Estado = "pendiente"
	EstadoSi        Estado = "si"
	EstadoNo        Estado = "no"
	EstadoTarde     Estado = "tarde"
)

// ParseEstado maps user input to an Estado.
func ParseEstado(s string) (Estado, error) {
	switch Estado(s) {
	case EstadoPendiente, EstadoSi, EstadoNo, EstadoTarde:
		return Estado(s), nil
	}
	return "", fmt.Errorf("invalid estado %q (expected si|no|tarde)", s)
}

// SyncState tags where a report value came from.
type SyncState string

const (
	SyncSynced  SyncState = "synced"
	SyncPending SyncState = "pending"
)

// Report is the broadcast outcome for one (affiliate, program, date) key.
// Empty strings stand for absent values.
type Report struct {
	Estado   Estado    `json:"estado"`
	HoraReal string    `json:"horaReal,omitempty"`
	HoraTT   string    `json:"hora_tt,omitempty"`
	Target   string    `json:"target,omitempty"` // UI abbreviation, e.g. "Tde"
	Motivo   string    `json:"motivo,omitempty"`
	Sync     SyncState `json:"sync,omitempty"`
}

// DefaultReport is the state of a cell nobody has marked yet.
func DefaultReport() Report {
	return Report{Estado: EstadoPendiente}
}

// Sanitize drops the fields that do not apply to the estado.
func (r Report) Sanitize() Report {
	switch r.Estado {
	case EstadoSi:
		r.HoraTT = ""
		r.Target = ""
		r.Motivo = ""
	case EstadoNo:
		r.HoraReal = ""
		r.HoraTT = ""
	case EstadoPendiente:
		r.HoraReal = ""
		r.HoraTT = ""
		r.Target = ""
		r.Motivo = ""
	}
	return r
}

// Validate checks a write. Reports are update-only: going back to pendiente is rejected.
func (r Report) Validate() error {
	switch r.Estado {
	case EstadoSi, EstadoNo, EstadoTarde:
	case EstadoPendiente:
		return fmt.Errorf("a report cannot be reverted to %s", EstadoPendiente)
	default:
		return fmt.Errorf("invalid estado %q", r.Estado)
	}
	for name, v := range map[string]string{"horaReal": r.HoraReal, "hora_tt": r.HoraTT} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("invalid %s %q (expected HH:MM)", name, v)
		}
	}
	switch r.Estado {
	case EstadoTarde:
		if r.HoraReal == "" {
			return fmt.Errorf("estado tarde requires horaReal")
		}
		if r.Target == "" {
			return fmt.Errorf("estado tarde requires a target")
		}
	case EstadoNo:
		if r.Target == "" {
			return fmt.Errorf("estado no requires a target")
		}
	}
	return nil
}

// Equal compares the reported values, ignoring the sync tag.
func (r Report) Equal(o Report) bool {
	return r.Estado == o.Estado && r.HoraReal == o.HoraReal && r.HoraTT == o.HoraTT &&
		r.Target == o.Target && r.Motivo == o.Motivo
}
