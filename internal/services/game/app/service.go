// Package app wires the game domain to storage and capability tokens,
// exposing the session operations the transport layer serves.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
	"github.com/louisbranch/hanabi.space/internal/platform/random"
	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
	"github.com/louisbranch/hanabi.space/internal/services/game/tokens"
)

// MaxNameLength bounds the display name a joining player may pick. Longer
// names are truncated, not rejected.
const MaxNameLength = 250

// Service implements the game session operations. All state lives in the
// store; the service itself only holds the root secret and derived keyring.
type Service struct {
	store   domain.Store
	keyring *tokens.Keyring
	secret  []byte
	clock   func() time.Time
}

// NewService creates a game service over the store and root secret.
func NewService(store domain.Store, secret []byte) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	keyring, err := tokens.NewKeyring(secret)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:   store,
		keyring: keyring,
		secret:  secret,
		clock:   time.Now,
	}, nil
}

// SessionRef locates one session: the persisted id plus the pepper carried
// in the request URL. The pepper is never stored, so it must arrive with
// every request that needs tokens or deals.
type SessionRef struct {
	SessionID string
	Pepper    string
}

func (r SessionRef) validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return perrors.New(perrors.CodeNotFound, "session id is required")
	}
	if strings.TrimSpace(r.Pepper) == "" {
		return perrors.New(perrors.CodeTokenMismatch, "session pepper is required")
	}
	return nil
}

// engine builds the turn engine bound to one session's pepper.
func (s *Service) engine(pepper string) *domain.Engine {
	return &domain.Engine{
		Clock: s.clock,
		DealRNG: func(turn int) *rand.Rand {
			return domain.NewDealRNG(s.secret, pepper, turn)
		},
	}
}

// reconcile settles an expired turn-end deadline before the operation
// proper. Every entry point calls it so abandoned sessions converge on
// whatever request touches them next.
func (s *Service) reconcile(ctx context.Context, ref SessionRef) error {
	return gone(s.engine(ref.Pepper).Reconcile(ctx, s.store, ref.SessionID))
}

// gone maps missing-session storage errors to the session-gone domain code.
func gone(err error) error {
	if err != nil && errors.Is(err, domain.ErrNotFound) {
		return perrors.Wrap(perrors.CodeSessionGone, "session is gone", err)
	}
	return err
}

// CreatedSession carries the credentials minted for a new session. The
// pepper and both tokens exist only in this response and the URLs built
// from it.
type CreatedSession struct {
	SessionID       string
	Pepper          string
	ManagementToken string
	SessionToken    string
}

// CreateSession persists a new empty session and mints its capability
// tokens.
func (s *Service) CreateSession(ctx context.Context, settings domain.Settings) (CreatedSession, error) {
	settings = settings.Normalize()
	id, err := random.NewID()
	if err != nil {
		return CreatedSession{}, fmt.Errorf("mint session id: %w", err)
	}
	session := domain.Session{
		ID:        id,
		CreatedAt: s.clock().UTC(),
		Settings:  settings,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return CreatedSession{}, fmt.Errorf("create session: %w", err)
	}

	pepper, err := random.NewPepper()
	if err != nil {
		return CreatedSession{}, fmt.Errorf("mint session pepper: %w", err)
	}
	return CreatedSession{
		SessionID:       session.ID,
		Pepper:          pepper,
		ManagementToken: s.keyring.Management(pepper, session.ID),
		SessionToken:    s.keyring.Session(pepper, session.ID),
	}, nil
}

// JoinedPlayer carries the seat and acting credential minted on join.
type JoinedPlayer struct {
	PlayerID    string
	Position    int
	PlayerToken string
}

// Join seats a new player. Only sessions that have not started accept
// joins, and the roster is capped.
func (s *Service) Join(ctx context.Context, ref SessionRef, sessionToken, name string) (JoinedPlayer, error) {
	if err := ref.validate(); err != nil {
		return JoinedPlayer{}, err
	}
	if err := s.keyring.VerifySession(sessionToken, ref.Pepper, ref.SessionID); err != nil {
		return JoinedPlayer{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return JoinedPlayer{}, perrors.New(perrors.CodePlayerNameRequired, "player name is required")
	}
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	if err := s.reconcile(ctx, ref); err != nil {
		return JoinedPlayer{}, err
	}

	var joined JoinedPlayer
	err := s.store.WithSession(ctx, ref.SessionID, func(tx domain.Tx) error {
		session := tx.Session()
		if session.Status() != domain.StatusNotStarted {
			return perrors.New(perrors.CodeSessionNotJoinable, "session is no longer accepting players")
		}
		players, err := tx.ListPlayers(ctx)
		if err != nil {
			return err
		}
		if len(players) >= domain.MaxPlayers {
			return perrors.New(perrors.CodeSessionRosterFull, "session roster is full")
		}
		playerID, err := random.NewID()
		if err != nil {
			return fmt.Errorf("mint player id: %w", err)
		}
		player := domain.Player{
			ID:        playerID,
			SessionID: session.ID,
			Position:  len(players),
			Name:      name,
		}
		if err := tx.InsertPlayer(ctx, player); err != nil {
			return err
		}
		joined = JoinedPlayer{
			PlayerID:    player.ID,
			Position:    player.Position,
			PlayerToken: s.keyring.Player(ref.Pepper, session.ID, player.ID),
		}
		return nil
	})
	if err != nil {
		return JoinedPlayer{}, gone(err)
	}
	return joined, nil
}
