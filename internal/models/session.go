package models

import "time"

// SessionKind distinguishes the two independent gates of the dashboard.
type SessionKind string

const (
	SessionOperador SessionKind = "operador"
	SessionAdmin    SessionKind = "admin"
)

// Session is a signed, expiring login persisted in the local state.
type Session struct {
	Kind      SessionKind
	Username  string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
