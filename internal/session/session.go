// Package session gates the dashboard's write and admin surfaces behind two
// independent, expiring logins. The gate protects a shared workstation from
// accidental edits; it is not an authentication system.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/filialwatch/internal/constants"
	apperrors "github.com/julianstephens/filialwatch/internal/errors"
	"github.com/julianstephens/filialwatch/internal/logger"
	"github.com/julianstephens/filialwatch/internal/models"
)

// ErrInvalidCredentials is returned by Login for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Store persists sessions. storage.SQLiteStore satisfies it.
type Store interface {
	SaveSession(models.Session) error
	GetSession(kind models.SessionKind) (models.Session, error)
	DeleteSession(kind models.SessionKind) error
	DeleteExpiredSessions(now time.Time) (int, error)
}

// Credentials is the configured login for one session kind.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Claims are signed into each session token.
type Claims struct {
	Kind models.SessionKind `json:"kind"`
	jwt.RegisteredClaims
}

// Manager issues, validates and expires sessions.
type Manager struct {
	store  Store
	secret []byte
	now    func() time.Time

	mu        sync.RWMutex
	creds     map[models.SessionKind]Credentials
	durations map[models.SessionKind]time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithCredentials replaces the login for kind. hash is a bcrypt hash.
func WithCredentials(kind models.SessionKind, username, hash string) Option {
	return func(m *Manager) {
		m.creds[kind] = Credentials{Username: username, PasswordHash: hash}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithDuration overrides how long sessions of kind last.
func WithDuration(kind models.SessionKind, d time.Duration) Option {
	return func(m *Manager) { m.durations[kind] = d }
}

// NewManager builds a manager signing tokens with secret. Without
// WithCredentials the documented default logins apply.
func NewManager(store Store, secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is empty, run '%s init'", constants.AppName)
	}
	m := &Manager{
		store:  store,
		secret: []byte(secret),
		now:    time.Now,
		creds:  make(map[models.SessionKind]Credentials),
		durations: map[models.SessionKind]time.Duration{
			models.SessionOperador: constants.SessionDuration,
			models.SessionAdmin:    constants.AdminSessionTimeout,
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	defaults := map[models.SessionKind][2]string{
		models.SessionOperador: {constants.DefaultOperatorUser, constants.DefaultOperatorPass},
		models.SessionAdmin:    {constants.DefaultAdminUser, constants.DefaultAdminPass},
	}
	for kind, d := range defaults {
		if _, ok := m.creds[kind]; ok {
			continue
		}
		hash, err := HashPassword(d[1])
		if err != nil {
			return nil, err
		}
		m.creds[kind] = Credentials{Username: d[0], PasswordHash: hash}
	}
	return m, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Login checks the credentials for kind and persists a fresh session.
func (m *Manager) Login(kind models.SessionKind, username, password string) (models.Session, error) {
	m.mu.RLock()
	cred, ok := m.creds[kind]
	duration := m.durations[kind]
	m.mu.RUnlock()
	if !ok {
		return models.Session{}, fmt.Errorf("unknown session kind %q", kind)
	}
	if username != cred.Username || bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		logger.Warn("Rejected login", "kind", kind, "user", username)
		return models.Session{}, ErrInvalidCredentials
	}

	now := m.now()
	expires := now.Add(duration)
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    constants.AppName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to sign session: %w", err)
	}

	sess := models.Session{Kind: kind, Username: username, Token: token, ExpiresAt: expires}
	if err := m.store.SaveSession(sess); err != nil {
		return models.Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	logger.Info("Session started", "kind", kind, "user", username, "expires", expires.Format(time.RFC3339))
	return sess, nil
}

// Logout ends the session of kind. Ending an absent session is not an error.
func (m *Manager) Logout(kind models.SessionKind) error {
	if err := m.store.DeleteSession(kind); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Current returns the active session of kind, or false when there is none
// or it expired or its token does not verify.
func (m *Manager) Current(kind models.SessionKind) (models.Session, bool) {
	sess, err := m.store.GetSession(kind)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Failed to read session", "kind", kind, "error", err)
		}
		return models.Session{}, false
	}
	if sess.Expired(m.now()) {
		return models.Session{}, false
	}
	claims, err := m.verify(sess.Token)
	if err != nil || claims.Kind != kind {
		logger.Debug("Session token rejected", "kind", kind, "error", err)
		return models.Session{}, false
	}
	return sess, true
}

func (m *Manager) verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuer(constants.AppName),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// CanWrite reports whether any session is active.
func (m *Manager) CanWrite() bool {
	if _, ok := m.Current(models.SessionOperador); ok {
		return true
	}
	return m.CanAdmin()
}

// CanAdmin reports whether the admin session is active.
func (m *Manager) CanAdmin() bool {
	_, ok := m.Current(models.SessionAdmin)
	return ok
}

// Sweep deletes expired sessions and returns how many were removed.
func (m *Manager) Sweep() (int, error) {
	n, err := m.store.DeleteExpiredSessions(m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if n > 0 {
		logger.Info("Expired sessions cleared", "count", n)
	}
	return n, nil
}
