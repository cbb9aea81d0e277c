package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/filialwatch/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the requested user
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func get(user string) (string, error) {
	v, err := keyring.Get(constants.AppName, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func set(user, value, what string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if err := keyring.Set(constants.AppName, user, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", what, err)
	}
	return nil
}

func del(user, what string) error {
	if err := keyring.Delete(constants.AppName, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", what, err)
	}
	return nil
}

// GetAPIToken retrieves the bearer token used against the backend.
func GetAPIToken() (string, error) {
	return get(constants.DefaultKeyringUser)
}

// SetAPIToken stores the backend bearer token.
func SetAPIToken(token string) error {
	return set(constants.DefaultKeyringUser, token, "API token")
}

// DeleteAPIToken removes the backend bearer token.
func DeleteAPIToken() error {
	return del(constants.DefaultKeyringUser, "API token")
}

// GetBackendDSN retrieves the database connection string used by `serve`.
func GetBackendDSN() (string, error) {
	return get(constants.BackendKeyringUser)
}

// SetBackendDSN stores the database connection string used by `serve`.
func SetBackendDSN(dsn string) error {
	return set(constants.BackendKeyringUser, dsn, "connection string")
}

// DeleteBackendDSN removes the stored database connection string.
func DeleteBackendDSN() error {
	return del(constants.BackendKeyringUser, "connection string")
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
