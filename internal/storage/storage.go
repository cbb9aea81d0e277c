package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Settings are the key/value preferences kept in the local state.
type Settings struct {
	SessionSecret string
	LastProgram   string
	LastFilter    string
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
