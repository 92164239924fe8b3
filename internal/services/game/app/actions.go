package app

import (
	"context"
	"time"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
)

// StartGame deals the opening hands and seats the first player. Requires
// the management token; starting an already-running game is a no-op.
func (s *Service) StartGame(ctx context.Context, ref SessionRef, managementToken string) error {
	if err := ref.validate(); err != nil {
		return err
	}
	if err := s.keyring.VerifyManagement(managementToken, ref.Pepper, ref.SessionID); err != nil {
		return err
	}
	if err := s.reconcile(ctx, ref); err != nil {
		return err
	}
	engine := s.engine(ref.Pepper)
	return gone(s.store.WithSession(ctx, ref.SessionID, func(tx domain.Tx) error {
		return engine.Start(ctx, tx)
	}))
}

// ActRequest is one turn action as submitted by a player. HandPos applies
// to plays and discards; Colour, Value, and TargetPlayerID to hints.
type ActRequest struct {
	Type           domain.ActionType
	HandPos        *int
	Colour         *int
	Value          *int
	TargetPlayerID string
}

// Act applies one turn action for the authenticated player.
func (s *Service) Act(ctx context.Context, ref SessionRef, playerID, playerToken string, req ActRequest) error {
	if err := ref.validate(); err != nil {
		return err
	}
	if err := s.keyring.VerifyPlayer(playerToken, ref.Pepper, ref.SessionID, playerID); err != nil {
		return err
	}
	if err := s.reconcile(ctx, ref); err != nil {
		return err
	}

	engine := s.engine(ref.Pepper)
	return gone(s.store.WithSession(ctx, ref.SessionID, func(tx domain.Tx) error {
		switch req.Type {
		case domain.ActionPlay:
			if req.HandPos == nil {
				return perrors.New(perrors.CodeActionMalformed, "hand position is required")
			}
			return engine.Play(ctx, tx, playerID, *req.HandPos)
		case domain.ActionDiscard:
			if req.HandPos == nil {
				return perrors.New(perrors.CodeActionMalformed, "hand position is required")
			}
			return engine.Discard(ctx, tx, playerID, *req.HandPos)
		case domain.ActionHint:
			return engine.Hint(ctx, tx, playerID, domain.HintRequest{
				TargetPlayerID: req.TargetPlayerID,
				Colour:         req.Colour,
				Value:          req.Value,
			})
		default:
			return perrors.New(perrors.CodeActionMalformed, "unknown action type")
		}
	}))
}

// Advance ends the caller's pending turn early. Before the minimum viewing
// time it reports too-early while still pulling the deadline in, so the
// reschedule survives the error response.
func (s *Service) Advance(ctx context.Context, ref SessionRef, playerID, playerToken string) error {
	if err := ref.validate(); err != nil {
		return err
	}
	if err := s.keyring.VerifyPlayer(playerToken, ref.Pepper, ref.SessionID, playerID); err != nil {
		return err
	}
	if err := s.reconcile(ctx, ref); err != nil {
		return err
	}

	engine := s.engine(ref.Pepper)
	var rescheduled *time.Time
	err := s.store.WithSession(ctx, ref.SessionID, func(tx domain.Tx) error {
		var err error
		rescheduled, err = engine.Advance(ctx, tx, playerID)
		return err
	})
	if err != nil {
		return gone(err)
	}
	if rescheduled != nil {
		return perrors.WithMetadata(perrors.CodeAdvanceTooEarly,
			"minimum viewing time has not elapsed",
			map[string]string{"end_turn_at": rescheduled.UTC().Format(time.RFC3339Nano)})
	}
	return nil
}

// Delete removes the session. A lapsed turn deadline settles first, so a
// game that already ended on its own is deleted with its real outcome
// intact; a still-running game is finalized as a loss so its outcome is
// recorded, and unstarted or finished sessions are deleted outright.
func (s *Service) Delete(ctx context.Context, ref SessionRef, managementToken string) error {
	if err := ref.validate(); err != nil {
		return err
	}
	if err := s.keyring.VerifyManagement(managementToken, ref.Pepper, ref.SessionID); err != nil {
		return err
	}
	if err := s.reconcile(ctx, ref); err != nil {
		return err
	}
	engine := s.engine(ref.Pepper)
	return gone(s.store.WithSession(ctx, ref.SessionID, func(tx domain.Tx) error {
		return engine.Abandon(ctx, tx)
	}))
}
