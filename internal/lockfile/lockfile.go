// Package lockfile records a running backend as "port|pid|secret" so local
// tools can find it and check it is still alive.
package lockfile

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/filialwatch/internal/constants"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
	getpidFunc        = os.Getpid
)

var ErrNotRunning = errors.New("backend is not running")

type Lock struct {
	Port   int
	PID    int
	Secret string
}

func (l Lock) String() string {
	return fmt.Sprintf("%d|%d|%s", l.Port, l.PID, l.Secret)
}

// DefaultPath returns the lockfile location under the user config dir.
func DefaultPath() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(configDir, constants.AppName, constants.BackendLockfileName), nil
}

// New describes the current process listening on port with a fresh secret.
func New(port int) (Lock, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return Lock{}, fmt.Errorf("generating lock secret: %w", err)
	}
	return Lock{Port: port, PID: getpidFunc(), Secret: hex.EncodeToString(b)}, nil
}

// Write stores l at path, readable by the owner only.
func Write(path string, l Lock) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating lockfile dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(l.String()), 0600); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}
	return nil
}

// Remove deletes the lockfile if it still belongs to this process.
func Remove(path string) error {
	l, err := Parse(path)
	if err != nil {
		if errors.Is(err, ErrNotRunning) {
			return nil
		}
		return os.Remove(path)
	}
	if l.PID != getpidFunc() {
		return nil
	}
	return os.Remove(path)
}

// Parse reads and validates the lockfile format without checking the process.
func Parse(path string) (Lock, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Lock{}, ErrNotRunning
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return Lock{}, errors.New("lockfile is malformed")
	}

	if strings.TrimSpace(parts[0]) == "" {
		return Lock{}, errors.New("port in lockfile is empty")
	}
	port, err := strconv.Atoi(parts[0])
	if err != nil {
		return Lock{}, errors.New("invalid port number in lockfile")
	}
	if port < 1 || port > 65535 {
		return Lock{}, fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil || pid < 1 {
		return Lock{}, errors.New("invalid process ID in lockfile")
	}

	secret := parts[2]
	if strings.TrimSpace(secret) == "" {
		return Lock{}, errors.New("secret in lockfile is empty")
	}

	return Lock{Port: port, PID: pid, Secret: secret}, nil
}

// Validate parses path and checks that the recorded PID is a live process
// whose executable name starts with exePrefix.
func Validate(path, exePrefix string) (Lock, error) {
	l, err := Parse(path)
	if err != nil {
		return Lock{}, err
	}

	process, err := findProcessFunc(l.PID)
	if err != nil || process == nil {
		return Lock{}, fmt.Errorf("%w: no process with PID %d", ErrNotRunning, l.PID)
	}
	if !strings.HasPrefix(process.Executable(), exePrefix) {
		return Lock{}, fmt.Errorf("process with PID %d is not %s (is %s)", l.PID, exePrefix, process.Executable())
	}
	return l, nil
}
