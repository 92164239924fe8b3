// Package random provides cryptographic randomness helpers.
//
// It uses crypto/rand for identifiers and session peppers; deterministic
// game randomness is derived elsewhere from these values plus the server
// secret.
package random

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewPepper generates the per-session random pepper returned to the session
// creator. Eight bytes of entropy, hex encoded, matching the width clients
// embed in session URLs.
func NewPepper() (string, error) {
	return hexToken(8)
}

// NewID generates a random identifier for persisted entities.
func NewID() (string, error) {
	return hexToken(16)
}

func hexToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
