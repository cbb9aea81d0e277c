package storage

import (
	"time"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

// Provider is the local client state: settings, sessions and writes that
// have not been confirmed by the backend yet.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings() (Settings, error)
	SaveSettings(Settings) error

	// Sessions
	SaveSession(models.Session) error
	GetSession(kind models.SessionKind) (models.Session, error)
	DeleteSession(kind models.SessionKind) error
	DeleteExpiredSessions(now time.Time) (int, error)

	// Pending writes
	SavePendingReport(key utils.Key, r models.Report) error
	DeletePendingReport(key utils.Key) error
	GetPendingReports() (map[utils.Key]models.Report, error)
	SavePendingNote(models.Note) error
	DeletePendingNote(key utils.NoteKey) error
	GetPendingNotes() ([]models.Note, error)

	// Utils
	GetConfigPath() string
}
