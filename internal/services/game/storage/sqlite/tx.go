package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
)

// WithSession runs fn inside one transaction holding the session's exclusive
// lock. The lock is taken with a no-op update on the session row before any
// dependent row is read, so concurrent mutators serialize on the row and
// every read inside fn observes a consistent snapshot. The transaction
// commits iff fn returns nil.
func (s *Store) WithSession(ctx context.Context, sessionID string, fn func(domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if fn == nil {
		return fmt.Errorf("session callback is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `UPDATE sessions SET turn = turn WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}

	if err := fn(&sessionTx{tx: tx, session: session}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session transaction: %w", err)
	}
	committed = true
	return nil
}

// sessionTx implements domain.Tx over one open transaction. The session
// snapshot tracks UpdateSession calls so Session always reflects the
// transaction's own writes.
type sessionTx struct {
	tx      *sql.Tx
	session domain.Session
}

func (t *sessionTx) Session() domain.Session {
	return t.session
}

func (t *sessionTx) UpdateSession(ctx context.Context, session domain.Session) error {
	needDraw := 0
	if session.NeedDraw {
		needDraw = 1
	}
	_, err := t.tx.ExecContext(
		ctx,
		`UPDATE sessions SET
		   turn = ?,
		   tokens_remaining = ?,
		   errors_remaining = ?,
		   active_player_id = ?,
		   action_at = ?,
		   end_turn_at = ?,
		   need_draw = ?,
		   stop_after_player_id = ?,
		   final_score = ?
		 WHERE id = ?`,
		session.Turn,
		session.TokensRemaining,
		session.ErrorsRemaining,
		session.ActivePlayerID,
		toMillisPtr(session.ActionAt),
		toMillisPtr(session.EndTurnAt),
		needDraw,
		session.StopAfterPlayerID,
		toIntPtr(session.FinalScore),
		t.session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	session.ID = t.session.ID
	session.CreatedAt = t.session.CreatedAt
	session.Settings = t.session.Settings
	t.session = session
	return nil
}

func (t *sessionTx) InsertPlayer(ctx context.Context, player domain.Player) error {
	if strings.TrimSpace(player.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO players (session_id, id, position, name)
		 VALUES (?, ?, ?, ?)`,
		t.session.ID,
		player.ID,
		player.Position,
		player.Name,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (t *sessionTx) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	return listPlayers(ctx, t.tx, t.session.ID)
}

func (t *sessionTx) ListHeldCards(ctx context.Context, playerID string) ([]domain.HeldCard, error) {
	rows, err := t.tx.QueryContext(
		ctx,
		`SELECT session_id, player_id, position, colour, value
		 FROM held_cards
		 WHERE session_id = ? AND player_id = ?
		 ORDER BY position`,
		t.session.ID,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list held cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var held []domain.HeldCard
	for rows.Next() {
		var card domain.HeldCard
		if err := rows.Scan(
			&card.SessionID,
			&card.PlayerID,
			&card.Position,
			&card.Card.Colour,
			&card.Card.Value,
		); err != nil {
			return nil, fmt.Errorf("scan held card: %w", err)
		}
		held = append(held, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list held cards: %w", err)
	}
	return held, nil
}

func (t *sessionTx) InsertHeldCard(ctx context.Context, card domain.HeldCard) error {
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO held_cards (session_id, player_id, position, colour, value)
		 VALUES (?, ?, ?, ?, ?)`,
		t.session.ID,
		card.PlayerID,
		card.Position,
		card.Card.Colour,
		card.Card.Value,
	)
	if err != nil {
		return fmt.Errorf("insert held card: %w", err)
	}
	return nil
}

func (t *sessionTx) DeleteHeldCard(ctx context.Context, playerID string, position int) error {
	result, err := t.tx.ExecContext(
		ctx,
		`DELETE FROM held_cards
		 WHERE session_id = ? AND player_id = ? AND position = ?`,
		t.session.ID,
		playerID,
		position,
	)
	if err != nil {
		return fmt.Errorf("delete held card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete held card: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *sessionTx) ListFireworks(ctx context.Context) ([]domain.Firework, error) {
	return listFireworks(ctx, t.tx, t.session.ID)
}

func (t *sessionTx) SetFirework(ctx context.Context, colour, value int) error {
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO fireworks (session_id, colour, value)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id, colour) DO UPDATE SET value = excluded.value`,
		t.session.ID,
		colour,
		value,
	)
	if err != nil {
		return fmt.Errorf("set firework: %w", err)
	}
	return nil
}

func (t *sessionTx) ListReserves(ctx context.Context) ([]domain.Reserve, error) {
	return listReserves(ctx, t.tx, t.session.ID)
}

func (t *sessionTx) InsertReserve(ctx context.Context, reserve domain.Reserve) error {
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO deck_reserves (session_id, colour, value, cards_left)
		 VALUES (?, ?, ?, ?)`,
		t.session.ID,
		reserve.Card.Colour,
		reserve.Card.Value,
		reserve.CardsLeft,
	)
	if err != nil {
		return fmt.Errorf("insert reserve: %w", err)
	}
	return nil
}

func (t *sessionTx) UpdateReserve(ctx context.Context, card domain.CardType, cardsLeft int) error {
	result, err := t.tx.ExecContext(
		ctx,
		`UPDATE deck_reserves SET cards_left = ?
		 WHERE session_id = ? AND colour = ? AND value = ?`,
		cardsLeft,
		t.session.ID,
		card.Colour,
		card.Value,
	)
	if err != nil {
		return fmt.Errorf("update reserve: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reserve: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *sessionTx) AppendAction(ctx context.Context, action domain.Action) error {
	wasError := 0
	if action.WasError {
		wasError = 1
	}
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO action_log (session_id, turn, player_id, action_type, colour,
		   value, hand_pos, was_error, hint_positions, hint_target_player_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.session.ID,
		action.Turn,
		action.PlayerID,
		string(action.Type),
		toIntPtr(action.Colour),
		toIntPtr(action.Value),
		toIntPtr(action.HandPos),
		wasError,
		action.HintPositions,
		action.HintTargetPlayerID,
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

func (t *sessionTx) ResetGameState(ctx context.Context) error {
	for _, table := range []string{"held_cards", "fireworks", "deck_reserves", "action_log"} {
		if _, err := t.tx.ExecContext(
			ctx,
			`DELETE FROM `+table+` WHERE session_id = ?`,
			t.session.ID,
		); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func (t *sessionTx) DeleteSession(ctx context.Context) error {
	if _, err := t.tx.ExecContext(
		ctx,
		`DELETE FROM sessions WHERE id = ?`,
		t.session.ID,
	); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ domain.Tx = (*sessionTx)(nil)
