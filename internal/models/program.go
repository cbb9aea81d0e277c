package models

import (
	"fmt"
	"strings"
	"time"
)

// DiasSemana is the airing pattern of a program: one weekday or every day.
type DiasSemana string

const (
	DiasLunes     DiasSemana = "LUNES"
	DiasMartes    DiasSemana = "MARTES"
	DiasMiercoles DiasSemana = "MIERCOLES"
	DiasJueves    DiasSemana = "JUEVES"
	DiasViernes   DiasSemana = "VIERNES"
	DiasSabado    DiasSemana = "SABADO"
	DiasDomingo   DiasSemana = "DOMINGO"
	DiasDiario    DiasSemana = "DIARIO"
)

var diasToWeekday = map[DiasSemana]time.Weekday{
	DiasLunes:     time.Monday,
	DiasMartes:    time.Tuesday,
	DiasMiercoles: time.Wednesday,
	DiasJueves:    time.Thursday,
	DiasViernes:   time.Friday,
	DiasSabado:    time.Saturday,
	DiasDomingo:   time.Sunday,
}

// ParseDiasSemana accepts the enum value case-insensitively, with or without accents.
func ParseDiasSemana(s string) (DiasSemana, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.NewReplacer("É", "E", "Á", "A").Replace(v)
	if v == "" {
		return DiasDiario, nil
	}
	d := DiasSemana(v)
	if d == DiasDiario {
		return d, nil
	}
	if _, ok := diasToWeekday[d]; ok {
		return d, nil
	}
	return "", fmt.Errorf("invalid dias_semana %q", s)
}

// Program is a scheduled recurring broadcast slot.
type Program struct {
	ID         string     `json:"id"`
	Nombre     string     `json:"nombre"`
	Horario    string     `json:"horario"` // HH:MM
	DiasSemana DiasSemana `json:"diasSemana"`
	IsActivo   bool       `json:"isActivo"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// AirsOn reports whether the program is scheduled on the given weekday.
func (p Program) AirsOn(wd time.Weekday) bool {
	if p.DiasSemana == DiasDiario || p.DiasSemana == "" {
		return true
	}
	target, ok := diasToWeekday[p.DiasSemana]
	return ok && target == wd
}

// Validate checks the fields the admin surface is allowed to set.
func (p Program) Validate() error {
	if strings.TrimSpace(p.Nombre) == "" {
		return fmt.Errorf("program name is required")
	}
	if _, err := time.Parse("15:04", p.Horario); err != nil {
		return fmt.Errorf("invalid horario %q (expected HH:MM)", p.Horario)
	}
	if _, err := ParseDiasSemana(string(p.DiasSemana)); err != nil {
		return err
	}
	return nil
}
