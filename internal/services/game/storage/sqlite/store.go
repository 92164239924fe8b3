// Package sqlite provides the SQLite-backed game session store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/hanabi.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
	"github.com/louisbranch/hanabi.space/internal/services/game/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists game sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toMillisPtr(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromMillisPtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func toIntPtr(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func fromIntPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

// Open opens a SQLite game store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	// Pragmas ride the DSN so every pooled connection gets them.
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

const sessionColumns = `id, created_at, colours, hand_size, max_tokens, max_errors,
	turn_time_limit_ms, min_viewing_time_ms, turn, tokens_remaining, errors_remaining,
	active_player_id, action_at, end_turn_at, need_draw, stop_after_player_id, final_score`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var session domain.Session
	var createdAt int64
	var turnLimitMillis, minViewMillis int64
	var actionAt, endTurnAt, finalScore sql.NullInt64
	var needDraw int
	err := row.Scan(
		&session.ID,
		&createdAt,
		&session.Settings.Colours,
		&session.Settings.HandSize,
		&session.Settings.MaxTokens,
		&session.Settings.MaxErrors,
		&turnLimitMillis,
		&minViewMillis,
		&session.Turn,
		&session.TokensRemaining,
		&session.ErrorsRemaining,
		&session.ActivePlayerID,
		&actionAt,
		&endTurnAt,
		&needDraw,
		&session.StopAfterPlayerID,
		&finalScore,
	)
	if err != nil {
		return domain.Session{}, err
	}
	session.CreatedAt = fromMillis(createdAt)
	session.Settings.TurnTimeLimit = time.Duration(turnLimitMillis) * time.Millisecond
	session.Settings.MinViewingTime = time.Duration(minViewMillis) * time.Millisecond
	session.ActionAt = fromMillisPtr(actionAt)
	session.EndTurnAt = fromMillisPtr(endTurnAt)
	session.NeedDraw = needDraw != 0
	session.FinalScore = fromIntPtr(finalScore)
	return session, nil
}

// CreateSession inserts a fresh session row.
func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	needDraw := 0
	if session.NeedDraw {
		needDraw = 1
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		toMillis(session.CreatedAt),
		session.Settings.Colours,
		session.Settings.HandSize,
		session.Settings.MaxTokens,
		session.Settings.MaxErrors,
		session.Settings.TurnTimeLimit.Milliseconds(),
		session.Settings.MinViewingTime.Milliseconds(),
		session.Turn,
		session.TokensRemaining,
		session.ErrorsRemaining,
		session.ActivePlayerID,
		toMillisPtr(session.ActionAt),
		toMillisPtr(session.EndTurnAt),
		needDraw,
		session.StopAfterPlayerID,
		toIntPtr(session.FinalScore),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		sessionID,
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListPlayers returns the session roster ordered by seat position.
func (s *Store) ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	return listPlayers(ctx, s.sqlDB, sessionID)
}

// ListHeldCards returns every held card in the session.
func (s *Store) ListHeldCards(ctx context.Context, sessionID string) ([]domain.HeldCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT session_id, player_id, position, colour, value
		 FROM held_cards
		 WHERE session_id = ?
		 ORDER BY player_id, position`,
		sessionID,
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

// ListFireworks returns the played-stack rows for the session.
func (s *Store) ListFireworks(ctx context.Context, sessionID string) ([]domain.Firework, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	return listFireworks(ctx, s.sqlDB, sessionID)
}

// ListReserves returns the draw-pile counts for the session.
func (s *Store) ListReserves(ctx context.Context, sessionID string) ([]domain.Reserve, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	return listReserves(ctx, s.sqlDB, sessionID)
}

// GetAction returns the logged action of one turn.
func (s *Store) GetAction(ctx context.Context, sessionID string, turn int) (domain.Action, error) {
	if err := ctx.Err(); err != nil {
		return domain.Action{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Action{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+actionColumns+`
		 FROM action_log
		 WHERE session_id = ? AND turn = ?`,
		sessionID,
		turn,
	)
	action, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Action{}, domain.ErrNotFound
		}
		return domain.Action{}, fmt.Errorf("get action: %w", err)
	}
	return action, nil
}

// ListRemovals returns the play and discard entries of the action log in
// turn order, the session's full card-removal history.
func (s *Store) ListRemovals(ctx context.Context, sessionID string) ([]domain.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+actionColumns+`
		 FROM action_log
		 WHERE session_id = ? AND action_type IN (?, ?)
		 ORDER BY turn`,
		sessionID,
		string(domain.ActionPlay),
		string(domain.ActionDiscard),
	)
	if err != nil {
		return nil, fmt.Errorf("list removals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var actions []domain.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan removal: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list removals: %w", err)
	}
	return actions, nil
}

const actionColumns = `session_id, turn, player_id, action_type, colour, value,
	hand_pos, was_error, hint_positions, hint_target_player_id`

func scanAction(row rowScanner) (domain.Action, error) {
	var action domain.Action
	var actionType string
	var colour, value, handPos sql.NullInt64
	var wasError int
	err := row.Scan(
		&action.SessionID,
		&action.Turn,
		&action.PlayerID,
		&actionType,
		&colour,
		&value,
		&handPos,
		&wasError,
		&action.HintPositions,
		&action.HintTargetPlayerID,
	)
	if err != nil {
		return domain.Action{}, err
	}
	action.Type = domain.ActionType(actionType)
	action.Colour = fromIntPtr(colour)
	action.Value = fromIntPtr(value)
	action.HandPos = fromIntPtr(handPos)
	action.WasError = wasError != 0
	return action, nil
}

// querier covers both *sql.DB and *sql.Tx so the transaction-bound reads can
// share these helpers.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func listPlayers(ctx context.Context, q querier, sessionID string) ([]domain.Player, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT session_id, id, position, name
		 FROM players
		 WHERE session_id = ?
		 ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var players []domain.Player
	for rows.Next() {
		var player domain.Player
		if err := rows.Scan(&player.SessionID, &player.ID, &player.Position, &player.Name); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

func listFireworks(ctx context.Context, q querier, sessionID string) ([]domain.Firework, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT session_id, colour, value
		 FROM fireworks
		 WHERE session_id = ?
		 ORDER BY colour`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list fireworks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fireworks []domain.Firework
	for rows.Next() {
		var firework domain.Firework
		if err := rows.Scan(&firework.SessionID, &firework.Colour, &firework.Value); err != nil {
			return nil, fmt.Errorf("scan firework: %w", err)
		}
		fireworks = append(fireworks, firework)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fireworks: %w", err)
	}
	return fireworks, nil
}

func listReserves(ctx context.Context, q querier, sessionID string) ([]domain.Reserve, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT session_id, colour, value, cards_left
		 FROM deck_reserves
		 WHERE session_id = ?
		 ORDER BY colour, value`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reserves: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reserves []domain.Reserve
	for rows.Next() {
		var reserve domain.Reserve
		if err := rows.Scan(
			&reserve.SessionID,
			&reserve.Card.Colour,
			&reserve.Card.Value,
			&reserve.CardsLeft,
		); err != nil {
			return nil, fmt.Errorf("scan reserve: %w", err)
		}
		reserves = append(reserves, reserve)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reserves: %w", err)
	}
	return reserves, nil
}

var _ domain.Store = (*Store)(nil)
