package domain

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested session (or one of its rows) does not
// exist. Callers map it to their transport's "gone" semantics.
var ErrNotFound = errors.New("session not found")

// Store is the persistence boundary for session state.
//
// The read methods never take the session lock and only observe committed
// rows. All mutations go through WithSession.
type Store interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	ListPlayers(ctx context.Context, sessionID string) ([]Player, error)
	ListHeldCards(ctx context.Context, sessionID string) ([]HeldCard, error)
	ListFireworks(ctx context.Context, sessionID string) ([]Firework, error)
	ListReserves(ctx context.Context, sessionID string) ([]Reserve, error)
	GetAction(ctx context.Context, sessionID string, turn int) (Action, error)
	ListRemovals(ctx context.Context, sessionID string) ([]Action, error)

	// WithSession opens one transaction, acquires the session's exclusive
	// lock before reading any dependent rows, and invokes fn with a
	// transaction-bound view. The transaction commits iff fn returns nil;
	// any error abandons it with no partial effect visible.
	WithSession(ctx context.Context, sessionID string, fn func(Tx) error) error
}

// Tx is the transaction-bound storage contract the turn engine mutates
// through. Implementations hold the session's exclusive lock for the
// duration of the callback.
type Tx interface {
	// Session returns the locked snapshot, reflecting any UpdateSession
	// performed within this transaction.
	Session() Session
	UpdateSession(ctx context.Context, session Session) error

	InsertPlayer(ctx context.Context, player Player) error
	ListPlayers(ctx context.Context) ([]Player, error)

	ListHeldCards(ctx context.Context, playerID string) ([]HeldCard, error)
	InsertHeldCard(ctx context.Context, card HeldCard) error
	DeleteHeldCard(ctx context.Context, playerID string, position int) error

	ListFireworks(ctx context.Context) ([]Firework, error)
	SetFirework(ctx context.Context, colour, value int) error

	ListReserves(ctx context.Context) ([]Reserve, error)
	InsertReserve(ctx context.Context, reserve Reserve) error
	UpdateReserve(ctx context.Context, card CardType, cardsLeft int) error

	AppendAction(ctx context.Context, action Action) error

	// ResetGameState clears hand, firework, reserve, and log rows so a
	// start can deal from a clean slate.
	ResetGameState(ctx context.Context) error

	// DeleteSession removes the session and, transitively, everything it
	// owns.
	DeleteSession(ctx context.Context) error
}
