package utils

import (
	"testing"
	"time"
)

func TestWeekOf(t *testing.T) {
	tests := []struct {
		name       string
		date       time.Time
		wantInicio string
		wantFin    string
	}{
		{
			name:       "monday is its own week start",
			date:       time.Date(2025, 3, 10, 9, 0, 0, 0, Lima),
			wantInicio: "2025-03-10",
			wantFin:    "2025-03-14",
		},
		{
			name:       "wednesday",
			date:       time.Date(2025, 3, 12, 23, 59, 0, 0, Lima),
			wantInicio: "2025-03-10",
			wantFin:    "2025-03-14",
		},
		{
			name:       "sunday belongs to the previous monday",
			date:       time.Date(2025, 3, 16, 12, 0, 0, 0, Lima),
			wantInicio: "2025-03-10",
			wantFin:    "2025-03-14",
		},
		{
			name:       "across a month boundary",
			date:       time.Date(2025, 3, 1, 8, 0, 0, 0, Lima),
			wantInicio: "2025-02-24",
			wantFin:    "2025-02-28",
		},
		{
			name:       "utc instant that is still the previous day in Lima",
			date:       time.Date(2025, 3, 17, 3, 0, 0, 0, time.UTC), // 16/03 22:00 Lima
			wantInicio: "2025-03-10",
			wantFin:    "2025-03-14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WeekOf(tt.date)
			if got := DateKey(w.Inicio); got != tt.wantInicio {
				t.Errorf("Inicio = %s, want %s", got, tt.wantInicio)
			}
			if got := DateKey(w.Fin); got != tt.wantFin {
				t.Errorf("Fin = %s, want %s", got, tt.wantFin)
			}
		})
	}
}

func TestWeekOfProperties(t *testing.T) {
	start := time.Date(2024, 12, 20, 0, 30, 0, 0, Lima)
	for i := 0; i < 60*4; i++ {
		date := start.Add(time.Duration(i) * 6 * time.Hour)
		w := WeekOf(date)
		if w.Inicio.Weekday() != time.Monday {
			t.Fatalf("WeekOf(%v).Inicio is %v, want Monday", date, w.Inicio.Weekday())
		}
		if w.Fin.Weekday() != time.Friday || !w.Fin.Equal(w.Inicio.AddDate(0, 0, 4)) {
			t.Fatalf("WeekOf(%v).Fin = %v, want the Friday after %v", date, w.Fin, w.Inicio)
		}
		if !w.Contains(date) {
			t.Fatalf("WeekOf(%v) = [%v, +6d] does not contain the date", date, w.Inicio)
		}
		for j, d := range w.Fechas {
			if !d.Equal(w.Inicio.AddDate(0, 0, j)) {
				t.Fatalf("Fechas[%d] = %v, want %v", j, d, w.Inicio.AddDate(0, 0, j))
			}
		}
	}
}

func TestFormatLocal(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"lima midnight", time.Date(2025, 3, 10, 0, 0, 0, 0, Lima), "10/03/2025"},
		{"utc early morning is previous day in Lima", time.Date(2025, 3, 10, 4, 59, 0, 0, time.UTC), "09/03/2025"},
		{"utc after five is same day", time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC), "10/03/2025"},
		{"tokyo evening", time.Date(2025, 3, 10, 20, 0, 0, 0, time.FixedZone("JST", 9*3600)), "10/03/2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLocal(tt.date); got != tt.want {
				t.Errorf("FormatLocal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCacheKeyStability(t *testing.T) {
	picked := time.Date(2025, 3, 10, 0, 5, 0, 0, Lima)
	backend, err := ParseDate("2025-03-10")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if CacheKey("LIMA", "NOTICIAS", picked) != CacheKey("LIMA", "NOTICIAS", backend) {
		t.Error("a date picked at 00:05 must share the key of the backend's calendar day")
	}

	sameInstantElsewhere := picked.In(time.UTC)
	if CacheKey("LIMA", "NOTICIAS", picked) != CacheKey("LIMA", "NOTICIAS", sameInstantElsewhere) {
		t.Error("key must not depend on the caller's zone")
	}

	nextDay := picked.AddDate(0, 0, 1)
	if CacheKey("LIMA", "NOTICIAS", picked) == CacheKey("LIMA", "NOTICIAS", nextDay) {
		t.Error("different days must not collide")
	}
	if CacheKey("LIMA", "NOTICIAS", picked) == CacheKey("CUSCO", "NOTICIAS", picked) {
		t.Error("different affiliates must not collide")
	}
	if CacheKey("LIMA", "NOTICIAS", picked) == CacheKey("LIMA", "DEPORTES", picked) {
		t.Error("different programs must not collide")
	}
}

func TestKeyStringIsInjective(t *testing.T) {
	d := time.Date(2025, 3, 10, 12, 0, 0, 0, Lima)
	a := CacheKey("a|b", "c", d).String()
	b := CacheKey("a", "b|c", d).String()
	if a == b {
		t.Errorf("keys with shifted separators collided: %s", a)
	}
}

func TestParseLocalDate(t *testing.T) {
	oldNow := nowFunc
	defer func() { nowFunc = oldNow }()
	nowFunc = func() time.Time { return time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC) }

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2025-03-10", "2025-03-10", false},
		{"10/03/2025", "2025-03-10", false},
		{"hoy", "2025-03-10", false},
		{"today", "2025-03-10", false},
		{"10-03-2025", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocalDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLocalDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && DateKey(got) != tt.want {
				t.Errorf("ParseLocalDate(%q) = %s, want %s", tt.in, DateKey(got), tt.want)
			}
		})
	}
}

func TestMinutesLate(t *testing.T) {
	got, err := MinutesLate("05:00", "05:20")
	if err != nil {
		t.Fatalf("MinutesLate: %v", err)
	}
	if got != 20 {
		t.Errorf("MinutesLate = %d, want 20", got)
	}
	if _, err := MinutesLate("5am", "05:20"); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestWeekdayName(t *testing.T) {
	if got := WeekdayName(time.Date(2025, 3, 12, 10, 0, 0, 0, Lima)); got != "Miércoles" {
		t.Errorf("WeekdayName = %s, want Miércoles", got)
	}
}
