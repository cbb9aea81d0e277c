package constants

import "time"

const (
	AppName            = "filialwatch"
	DefaultKeyringUser = "api-token"
	BackendKeyringUser = "backend-dsn"
	DefaultStatePath   = "~/.config/filialwatch/filialwatch.db"
	DefaultAPIURL      = "http://127.0.0.1:8080"
	Version            = "v0.3.0"

	// DateFormat is the wire/storage date format (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// DisplayDateFormat is the operator-facing date format (DD/MM/YYYY)
	DisplayDateFormat = "02/01/2006"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// BusinessTimezone is the fixed timezone every calendar computation runs in.
	// Lima observes UTC-5 all year.
	BusinessTimezone       = "America/Lima"
	BusinessUTCOffsetHours = -5

	// Timer constants
	ClockTickInterval    = time.Second
	SessionSweepInterval = 5 * time.Minute
	ProbeInterval        = 30 * time.Second
	ProbeTimeout         = 5 * time.Second
	RequestTimeout       = 15 * time.Second

	// Session constants
	SessionDuration     = 8 * time.Hour
	AdminSessionTimeout = 2 * time.Hour

	// Lockfile written by the reference backend
	BackendLockfileName = "filialwatch-backend.lock"

	// Notifier constants
	NotifyMaxRetries   = 3
	NotifyRetryDelay   = 100 * time.Millisecond
	NotifyDurationMs   = 5000
	NotifySecretHeader = "X-Filialwatch-Secret"
)
