package models

import (
	"fmt"
	"strings"
	"time"
)

// Affiliate is a regional station ("filial") tracked for compliance.
type Affiliate struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	IsActivo  bool      `json:"isActivo"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a Affiliate) Validate() error {
	if strings.TrimSpace(a.Nombre) == "" {
		return fmt.Errorf("affiliate name is required")
	}
	return nil
}

// ActiveAffiliates returns the active affiliates, preserving order.
func ActiveAffiliates(all []Affiliate) []Affiliate {
	out := make([]Affiliate, 0, len(all))
	for _, a := range all {
		if a.IsActivo {
			out = append(out, a)
		}
	}
	return out
}

// ActivePrograms returns the active programs, preserving order.
func ActivePrograms(all []Program) []Program {
	out := make([]Program, 0, len(all))
	for _, p := range all {
		if p.IsActivo {
			out = append(out, p)
		}
	}
	return out
}
