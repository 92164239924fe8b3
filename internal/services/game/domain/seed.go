package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math/rand/v2"
)

// DealSeed derives the 32-byte generator seed for the draw events of one
// turn.
//
// The seed is HMAC-SHA256(secret, "deal:" || pepper || ":" || decimal turn).
// Every draw is therefore reproducible from the session's pepper and turn
// number alone without storing a shuffle, and infeasible to predict or
// replay without the server-held secret. The session id is deliberately
// excluded so that sessions created with the same pepper and seating deal
// identical cards.
func DealSeed(secret []byte, pepper string, turn int) [32]byte {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "deal:%s:%d", pepper, turn)
	var seed [32]byte
	copy(seed[:], mac.Sum(nil))
	return seed
}

// NewDealRNG returns the deterministic generator for one turn's draw events.
//
// The generator is ChaCha8 as specified by math/rand/v2; it is seeded with
// DealSeed and shared by all draws within the turn, in draw order. Any
// reimplementation must reproduce this construction bit for bit.
func NewDealRNG(secret []byte, pepper string, turn int) *rand.Rand {
	seed := DealSeed(secret, pepper, turn)
	return rand.New(rand.NewChaCha8(seed))
}
