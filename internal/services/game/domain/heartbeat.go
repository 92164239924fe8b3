package domain

import (
	"context"
	"time"
)

// Reconcile applies the session's turn-end deadline if it has expired. There
// is no background scheduler; every read or action path calls this first, so
// a session whose players walked away is settled lazily by the next request
// that touches it.
//
// The check runs twice: once on an unlocked read to keep the hot path free
// of lock traffic, then again under the session lock before ending the turn,
// since another request may have settled it in between.
func (e *Engine) Reconcile(ctx context.Context, store Store, sessionID string) error {
	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deadlineElapsed(&session, e.now()) {
		return nil
	}
	return store.WithSession(ctx, sessionID, func(tx Tx) error {
		locked := tx.Session()
		if !deadlineElapsed(&locked, e.now()) {
			return nil
		}
		return e.EndTurn(ctx, tx)
	})
}

func deadlineElapsed(session *Session, now time.Time) bool {
	return session.FinalScore == nil &&
		session.EndTurnAt != nil &&
		!now.Before(*session.EndTurnAt)
}
