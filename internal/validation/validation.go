// Package validation finds inconsistencies in the program/affiliate catalog
// and in unsynced local edits.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

type ConflictType string

const (
	ConflictDuplicateProgramName   ConflictType = "duplicate_program_name"
	ConflictDuplicateAffiliateName ConflictType = "duplicate_affiliate_name"
	ConflictInvalidProgram         ConflictType = "invalid_program"
	ConflictSlotClash              ConflictType = "slot_clash"
	ConflictUnknownReference       ConflictType = "unknown_reference"
	ConflictInactiveReference      ConflictType = "inactive_reference"
	ConflictNotAiring              ConflictType = "not_airing"
	ConflictInvalidReport          ConflictType = "invalid_report"
)

// Conflict is one finding. Items names the programs, affiliates or keys involved.
type Conflict struct {
	Type        ConflictType
	Description string
	Items       []string
}

type Result struct {
	Conflicts []Conflict
}

func (r *Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

func (r *Result) add(t ConflictType, items []string, format string, args ...interface{}) {
	r.Conflicts = append(r.Conflicts, Conflict{Type: t, Description: fmt.Sprintf(format, args...), Items: items})
}

// Merge appends the conflicts of other.
func (r *Result) Merge(other Result) {
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
}

// FormatReport renders the conflicts one per line.
func (r *Result) FormatReport() string {
	if !r.HasConflicts() {
		return "No conflicts detected."
	}
	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range r.Conflicts {
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}
	return b.String()
}

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateCatalog checks names, schedules and slot clashes between active
// programs.
func (v *Validator) ValidateCatalog(programs []models.Program, affiliates []models.Affiliate) Result {
	result := Result{Conflicts: []Conflict{}}

	for _, name := range duplicates(programs, func(p models.Program) string { return p.Nombre }) {
		result.add(ConflictDuplicateProgramName, []string{name}, "Duplicate program name: %q", name)
	}
	for _, name := range duplicates(affiliates, func(a models.Affiliate) string { return a.Nombre }) {
		result.add(ConflictDuplicateAffiliateName, []string{name}, "Duplicate affiliate name: %q", name)
	}

	for _, p := range programs {
		if err := p.Validate(); err != nil {
			result.add(ConflictInvalidProgram, []string{p.Nombre}, "Program %q: %v", p.Nombre, err)
		}
	}

	active := models.ActivePrograms(programs)
	sort.SliceStable(active, func(i, j int) bool { return active[i].Horario < active[j].Horario })
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active) && active[j].Horario == active[i].Horario; j++ {
			a, b := active[i], active[j]
			if sharesDay(a.DiasSemana, b.DiasSemana) {
				result.add(ConflictSlotClash, []string{a.Nombre, b.Nombre},
					"Programs %q and %q both air at %s on %s", a.Nombre, b.Nombre, a.Horario, clashDays(a.DiasSemana, b.DiasSemana))
			}
		}
	}
	return result
}

// ValidatePending checks unsynced edits against the catalog.
func (v *Validator) ValidatePending(reports map[utils.Key]models.Report, notes []models.Note, programs []models.Program, affiliates []models.Affiliate) Result {
	result := Result{Conflicts: []Conflict{}}

	progByID := make(map[string]models.Program, len(programs))
	for _, p := range programs {
		progByID[p.ID] = p
	}
	affByID := make(map[string]models.Affiliate, len(affiliates))
	for _, a := range affiliates {
		affByID[a.ID] = a
	}

	keys := make([]utils.Key, 0, len(reports))
	for k := range reports {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, k := range keys {
		item := []string{k.String()}
		p, okP := progByID[k.ProgramID]
		a, okA := affByID[k.AffiliateID]
		switch {
		case !okP:
			result.add(ConflictUnknownReference, item, "Unsynced report %s: unknown program %q", k.Day, k.ProgramID)
			continue
		case !okA:
			result.add(ConflictUnknownReference, item, "Unsynced report %s: unknown affiliate %q", k.Day, k.AffiliateID)
			continue
		}
		if !p.IsActivo || !a.IsActivo {
			result.add(ConflictInactiveReference, item, "Unsynced report %s for %s/%s refers to an inactive entry", k.Day, a.Nombre, p.Nombre)
		}
		if day, err := k.Date(); err == nil && !p.AirsOn(day.In(utils.Lima).Weekday()) {
			result.add(ConflictNotAiring, item, "Unsynced report %s for %s: %s does not air on %s", k.Day, a.Nombre, p.Nombre, utils.WeekdayName(day))
		}
		if err := reports[k].Validate(); err != nil {
			result.add(ConflictInvalidReport, item, "Unsynced report %s for %s/%s: %v", k.Day, a.Nombre, p.Nombre, err)
		}
	}

	for _, n := range notes {
		if _, ok := affByID[n.AffiliateID]; !ok {
			result.add(ConflictUnknownReference, []string{n.AffiliateID}, "Unsynced note for week %s: unknown affiliate %q", n.WeekStart, n.AffiliateID)
		}
	}
	return result
}

// duplicates returns the names used more than once, compared
// case-insensitively, in first-seen order.
func duplicates[T any](items []T, name func(T) string) []string {
	seen := map[string]int{}
	var order []string
	for _, it := range items {
		n := strings.TrimSpace(name(it))
		if n == "" {
			continue
		}
		key := strings.ToUpper(n)
		if seen[key] == 0 {
			order = append(order, n)
		}
		seen[key]++
	}
	var out []string
	for _, n := range order {
		if seen[strings.ToUpper(n)] > 1 {
			out = append(out, n)
		}
	}
	return out
}

func sharesDay(a, b models.DiasSemana) bool {
	return a == models.DiasDiario || b == models.DiasDiario || a == b
}

func clashDays(a, b models.DiasSemana) string {
	switch {
	case a == models.DiasDiario && b == models.DiasDiario:
		return "every day"
	case a == models.DiasDiario:
		return strings.ToLower(string(b))
	}
	return strings.ToLower(string(a))
}
