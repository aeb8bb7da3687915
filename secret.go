package account

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// SessionTokenLength is the length of issued session token strings.
	SessionTokenLength = 48
	// SecretLength is the length of single-use activation and reset secrets.
	// Shorter than session tokens: exposure window and usage count are smaller.
	SecretLength = 32
)

// NewSessionToken generates an opaque random session token string. Uniqueness
// relies on the random space being large enough; a collision is a data
// integrity fault, not a handled case.
func NewSessionToken() (string, error) {
	return randomHex(SessionTokenLength)
}

// NewSecret generates a single-use activation or reset secret.
func NewSecret() (string, error) {
	return randomHex(SecretLength)
}

func randomHex(length int) (string, error) {
	buf := make([]byte, length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to read random source: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
