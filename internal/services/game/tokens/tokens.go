// Package tokens derives and verifies the capability tokens embedded in
// session URLs. Possession of a token is the only credential: there are no
// accounts, so whoever holds a URL holds the access it grants.
package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
)

// TokenLength is the number of hex characters kept from the HMAC digest.
// Eighty bits of entropy, short enough to live in a shareable URL.
const TokenLength = 20

// Scope separates the three capability levels so a token for one can never
// verify as another.
type Scope string

const (
	// ScopeManagement grants session administration: start, delete, observe.
	ScopeManagement Scope = "sessman"
	// ScopeSession grants joining the session as a new player.
	ScopeSession Scope = "session"
	// ScopePlayer grants acting as one specific seated player.
	ScopePlayer Scope = "player"
)

// Keyring derives capability tokens from the server-held root secret. Tokens
// are re-derived on every check and never persisted.
type Keyring struct {
	secret []byte
}

// NewKeyring constructs a keyring over the root secret.
func NewKeyring(secret []byte) (*Keyring, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Keyring{secret: secret}, nil
}

// Management returns the session-management token.
func (k *Keyring) Management(pepper, sessionID string) string {
	return k.derive(ScopeManagement, sessionID, pepper)
}

// Session returns the join token shared by all prospective players.
func (k *Keyring) Session(pepper, sessionID string) string {
	return k.derive(ScopeSession, sessionID, pepper)
}

// Player returns the per-seat acting token.
func (k *Keyring) Player(pepper, sessionID, playerID string) string {
	return k.derive(ScopePlayer, sessionID, pepper, playerID)
}

// VerifyManagement checks a presented management token.
func (k *Keyring) VerifyManagement(token, pepper, sessionID string) error {
	return verify(token, k.Management(pepper, sessionID))
}

// VerifySession checks a presented join token.
func (k *Keyring) VerifySession(token, pepper, sessionID string) error {
	return verify(token, k.Session(pepper, sessionID))
}

// VerifyPlayer checks a presented per-seat token.
func (k *Keyring) VerifyPlayer(token, pepper, sessionID, playerID string) error {
	return verify(token, k.Player(pepper, sessionID, playerID))
}

// derive hashes "scope:sessionID:pepper", with the player id appended for
// player tokens, and keeps the leading hex of the digest.
func (k *Keyring) derive(scope Scope, parts ...string) string {
	mac := hmac.New(sha256.New, k.secret)
	fmt.Fprintf(mac, "%s:%s", scope, strings.Join(parts, ":"))
	return hex.EncodeToString(mac.Sum(nil))[:TokenLength]
}

func verify(presented, expected string) error {
	if !hmac.Equal([]byte(presented), []byte(expected)) {
		return perrors.New(perrors.CodeTokenMismatch, "capability token mismatch")
	}
	return nil
}
