package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
)

// Lima is the business timezone. Peru has not observed DST since 1994, so a
// fixed zone avoids depending on the host's tzdata.
var Lima = time.FixedZone(constants.BusinessTimezone, constants.BusinessUTCOffsetHours*60*60)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// LocalNow returns the current time in the business timezone.
func LocalNow() time.Time {
	return nowFunc().In(Lima)
}

// Today returns midnight of the current business day.
func Today() time.Time {
	return StartOfDay(LocalNow())
}

// StartOfDay returns midnight (Lima) of the calendar day t falls on in Lima.
func StartOfDay(t time.Time) time.Time {
	l := t.In(Lima)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Lima)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday, evaluated in Lima.
func ISOWeekday(t time.Time) int {
	wd := int(t.In(Lima).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Week is the Monday..Friday business week containing a date.
type Week struct {
	Inicio time.Time    // Monday 00:00 Lima
	Fin    time.Time    // Friday 00:00 Lima
	Fechas [5]time.Time // Monday..Friday
}

// WeekOf returns the business week containing date. Saturdays and Sundays
// belong to the week that started on the preceding Monday.
func WeekOf(date time.Time) Week {
	day := StartOfDay(date)
	inicio := day.AddDate(0, 0, -(ISOWeekday(day)-1)%7)
	var w Week
	w.Inicio = inicio
	for i := range w.Fechas {
		w.Fechas[i] = inicio.AddDate(0, 0, i)
	}
	w.Fin = w.Fechas[4]
	return w
}

// Days returns the week's dates as a slice.
func (w Week) Days() []time.Time {
	return w.Fechas[:]
}

// Contains reports whether date falls between Monday and the following Sunday.
func (w Week) Contains(date time.Time) bool {
	d := StartOfDay(date)
	return !d.Before(w.Inicio) && d.Before(w.Inicio.AddDate(0, 0, 7))
}

// Label renders the week as "DD/MM/YYYY - DD/MM/YYYY".
func (w Week) Label() string {
	return FormatLocal(w.Inicio) + " - " + FormatLocal(w.Fin)
}

// FormatLocal renders date as DD/MM/YYYY in the business timezone.
func FormatLocal(date time.Time) string {
	return date.In(Lima).Format(constants.DisplayDateFormat)
}

// DateKey renders date as YYYY-MM-DD in the business timezone. This is the
// form the backend speaks.
func DateKey(date time.Time) string {
	return date.In(Lima).Format(constants.DateFormat)
}

// ParseDate parses a YYYY-MM-DD date as midnight in the business timezone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(constants.DateFormat, strings.TrimSpace(s), Lima)
}

// ParseLocalDate accepts YYYY-MM-DD, DD/MM/YYYY, "today" and "hoy".
func ParseLocalDate(s string) (time.Time, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	switch v {
	case "", "today", "hoy":
		return Today(), nil
	}
	if t, err := ParseDate(v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(constants.DisplayDateFormat, v, Lima); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or DD/MM/YYYY)", s)
}

// Key identifies one report cell. Being a comparable struct, two keys are
// equal exactly when all three components are.
type Key struct {
	AffiliateID string
	ProgramID   string
	Day         string // DD/MM/YYYY in Lima
}

// CacheKey builds the cell key for a date, at calendar-day granularity in Lima.
func CacheKey(affiliateID, programID string, date time.Time) Key {
	return Key{AffiliateID: affiliateID, ProgramID: programID, Day: FormatLocal(date)}
}

// String is deterministic and injective: components are quoted so ids
// containing the separator cannot collide.
func (k Key) String() string {
	return strconv.Quote(k.AffiliateID) + "|" + strconv.Quote(k.ProgramID) + "|" + k.Day
}

// Date returns the key's day as midnight Lima.
func (k Key) Date() (time.Time, error) {
	return time.ParseInLocation(constants.DisplayDateFormat, k.Day, Lima)
}

// NoteKey identifies the note of one affiliate for one business week.
type NoteKey struct {
	AffiliateID string
	WeekStart   string // YYYY-MM-DD of the Monday
}

// NoteKeyFor builds the note key for the week containing date.
func NoteKeyFor(affiliateID string, date time.Time) NoteKey {
	return NoteKey{AffiliateID: affiliateID, WeekStart: DateKey(WeekOf(date).Inicio)}
}

var weekdayNames = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

// WeekdayName returns the Spanish weekday name of date in Lima.
func WeekdayName(date time.Time) string {
	return weekdayNames[date.In(Lima).Weekday()]
}

// ParseTime parses a time string in the standard format (HH:MM).
func ParseTime(timeStr string) (time.Time, error) {
	return time.Parse(constants.TimeFormat, timeStr)
}

// ValidateTimeFormat checks if the string matches the standard time format.
func ValidateTimeFormat(timeStr string) bool {
	_, err := ParseTime(timeStr)
	return err == nil
}

// MinutesLate returns how many minutes actual is after scheduled (both HH:MM).
func MinutesLate(scheduled, actual string) (int, error) {
	s, err := ParseTime(scheduled)
	if err != nil {
		return 0, fmt.Errorf("invalid scheduled time: %w", err)
	}
	a, err := ParseTime(actual)
	if err != nil {
		return 0, fmt.Errorf("invalid actual time: %w", err)
	}
	return int(a.Sub(s).Minutes()), nil
}
