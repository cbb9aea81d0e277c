// Package targets translates reason codes between the backend enum and the
// abbreviations operators see. Translation never fails: unknown values fall
// back through a chain of progressively looser matchers and finally to a
// default, with a warning logged.
package targets

import (
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/filialwatch/internal/logger"
)

// Backend enum values.
const (
	EnumTarde            = "Tarde"
	EnumFalta            = "Falta"
	EnumEnfermedad       = "Enfermedad"
	EnumProblemaTecnico  = "Problema_tecnico"
	EnumFallaDeServicios = "Falla_de_servicios"
	EnumOtro             = "Otro"
)

// UI abbreviations.
const (
	AbbrTarde            = "Tde"
	AbbrFalta            = "Fta"
	AbbrEnfermedad       = "Enf"
	AbbrProblemaTecnico  = "P. Tec"
	AbbrFallaDeServicios = "F. Serv"
	AbbrOtros            = "Otros"

	DefaultAbbr = AbbrOtros
)

type pair struct {
	enum  string
	abbr  string
	label string
}

// canonical order is also the order of the fuzzy layers, which keeps them deterministic.
var canonical = []pair{
	{EnumTarde, AbbrTarde, "Tardanza"},
	{EnumFalta, AbbrFalta, "Falta"},
	{EnumEnfermedad, AbbrEnfermedad, "Enfermedad"},
	{EnumProblemaTecnico, AbbrProblemaTecnico, "Problema técnico"},
	{EnumFallaDeServicios, AbbrFallaDeServicios, "Falla de servicios"},
	{EnumOtro, AbbrOtros, "Otros"},
}

// enumAliases maps normalized free-form backend values to abbreviations.
var enumAliases = map[string]string{
	"tde":          AbbrTarde,
	"retraso":      AbbrTarde,
	"atraso":       AbbrTarde,
	"tardanza":     AbbrTarde,
	"late":         AbbrTarde,
	"fta":          AbbrFalta,
	"ausencia":     AbbrFalta,
	"noemitio":     AbbrFalta,
	"notransmitio": AbbrFalta,
	"enf":          AbbrEnfermedad,
	"enfermo":      AbbrEnfermedad,
	"salud":        AbbrEnfermedad,
	"ptec":         AbbrProblemaTecnico,
	"tecnico":      AbbrProblemaTecnico,
	"averia":       AbbrProblemaTecnico,
	"fserv":        AbbrFallaDeServicios,
	"servicios":    AbbrFallaDeServicios,
	"luz":          AbbrFallaDeServicios,
	"energia":      AbbrFallaDeServicios,
	"internet":     AbbrFallaDeServicios,
	"otros":        AbbrOtros,
	"other":        AbbrOtros,
}

// abbrAliases maps lowercased, trimmed abbreviations (and spelled-out forms)
// to backend enums.
var abbrAliases = map[string]string{
	"tde":                EnumTarde,
	"tarde":              EnumTarde,
	"fta":                EnumFalta,
	"falta":              EnumFalta,
	"enf":                EnumEnfermedad,
	"enfermedad":         EnumEnfermedad,
	"p. tec":             EnumProblemaTecnico,
	"p.tec":              EnumProblemaTecnico,
	"ptec":               EnumProblemaTecnico,
	"p tec":              EnumProblemaTecnico,
	"problema tecnico":   EnumProblemaTecnico,
	"problema técnico":   EnumProblemaTecnico,
	"problema_tecnico":   EnumProblemaTecnico,
	"f. serv":            EnumFallaDeServicios,
	"f.serv":             EnumFallaDeServicios,
	"fserv":              EnumFallaDeServicios,
	"f serv":             EnumFallaDeServicios,
	"falla de servicios": EnumFallaDeServicios,
	"falla_de_servicios": EnumFallaDeServicios,
	"otros":              EnumOtro,
	"otro":               EnumOtro,
}

// minSubstringLen keeps one- and two-letter inputs out of the substring layer,
// where they would match almost anything.
const minSubstringLen = 3

// Normalize lowercases and strips whitespace, underscores and dots.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(s)
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '_', '.', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExactAbbr is the first layer: the value is a canonical enum.
func ExactAbbr(v string) (string, bool) {
	for _, p := range canonical {
		if p.enum == v {
			return p.abbr, true
		}
	}
	return "", false
}

// NormalizedAbbr matches ignoring case, whitespace, underscores and dots.
func NormalizedAbbr(v string) (string, bool) {
	n := Normalize(v)
	if n == "" {
		return "", false
	}
	for _, p := range canonical {
		if Normalize(p.enum) == n {
			return p.abbr, true
		}
	}
	return "", false
}

// SubstringAbbr matches when either normalized string contains the other.
func SubstringAbbr(v string) (string, bool) {
	n := Normalize(v)
	if utf8.RuneCountInString(n) < minSubstringLen {
		return "", false
	}
	for _, p := range canonical {
		e := Normalize(p.enum)
		if strings.Contains(n, e) || strings.Contains(e, n) {
			return p.abbr, true
		}
	}
	return "", false
}

// AliasAbbr looks the normalized value up in the static alias table.
func AliasAbbr(v string) (string, bool) {
	a, ok := enumAliases[Normalize(v)]
	return a, ok
}

var abbrLayers = []func(string) (string, bool){ExactAbbr, NormalizedAbbr, SubstringAbbr, AliasAbbr}

// ToAbbr converts a backend enum value to its UI abbreviation. Empty input
// yields "". Anything else unmatched becomes DefaultAbbr and is logged.
func ToAbbr(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	for _, layer := range abbrLayers {
		if a, ok := layer(v); ok {
			return a
		}
	}
	logger.Warn("Unmapped target value, using default", "value", v, "default", DefaultAbbr)
	return DefaultAbbr
}

// ExactEnum is the first layer of ToEnum: the value is a canonical abbreviation.
func ExactEnum(a string) (string, bool) {
	for _, p := range canonical {
		if p.abbr == a {
			return p.enum, true
		}
	}
	return "", false
}

// AliasEnum looks the lowercased, trimmed value up in the abbreviation alias table.
func AliasEnum(a string) (string, bool) {
	e, ok := abbrAliases[strings.ToLower(strings.TrimSpace(a))]
	return e, ok
}

// ToEnum converts a UI abbreviation to the backend enum. Unmatched input is
// returned unchanged and logged.
func ToEnum(a string) string {
	if strings.TrimSpace(a) == "" {
		return ""
	}
	if e, ok := ExactEnum(a); ok {
		return e
	}
	if e, ok := AliasEnum(a); ok {
		return e
	}
	logger.Warn("Unmapped target abbreviation, passing through", "value", a)
	return a
}

// IsAbbr reports whether a is one of the canonical abbreviations.
func IsAbbr(a string) bool {
	_, ok := ExactEnum(a)
	return ok
}

// Canonicalize turns any operator input (abbreviation, enum or loose text)
// into a canonical abbreviation.
func Canonicalize(v string) string {
	if IsAbbr(v) {
		return v
	}
	if e, ok := AliasEnum(v); ok {
		a, _ := ExactAbbr(e)
		return a
	}
	return ToAbbr(v)
}

// Abbreviations lists the canonical abbreviations in display order.
func Abbreviations() []string {
	out := make([]string, len(canonical))
	for i, p := range canonical {
		out[i] = p.abbr
	}
	return out
}

// Enums lists the canonical backend enum values.
func Enums() []string {
	out := make([]string, len(canonical))
	for i, p := range canonical {
		out[i] = p.enum
	}
	return out
}

// Label returns the long Spanish label of an abbreviation.
func Label(abbr string) string {
	for _, p := range canonical {
		if p.abbr == abbr {
			return p.label
		}
	}
	return abbr
}
