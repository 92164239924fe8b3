package domain

import "time"

// Status is the lifecycle state of one session, derived from its lifecycle
// fields rather than stored.
type Status string

const (
	// StatusNotStarted means the roster is still open and no cards are dealt.
	StatusNotStarted Status = "NOT_STARTED"
	// StatusPlayerThinking means the active player owes an action.
	StatusPlayerThinking Status = "PLAYER_THINKING"
	// StatusTurnPendingEnd means an action was taken and the turn-end
	// deadline is armed.
	StatusTurnPendingEnd Status = "TURN_PENDING_END"
	// StatusGameOver is terminal; only deletion is allowed afterwards.
	StatusGameOver Status = "GAME_OVER"
)

// Settings are the per-session capacity knobs chosen at creation and fixed
// for the session's lifetime.
type Settings struct {
	Colours        int
	HandSize       int
	MaxTokens      int
	MaxErrors      int
	TurnTimeLimit  time.Duration
	MinViewingTime time.Duration
}

// DefaultSettings returns the standard game configuration.
func DefaultSettings() Settings {
	return Settings{
		Colours:        5,
		HandSize:       4,
		MaxTokens:      8,
		MaxErrors:      3,
		TurnTimeLimit:  10 * time.Second,
		MinViewingTime: 5 * time.Second,
	}
}

// Normalize clamps the settings into supported bounds, falling back to the
// defaults for unset values. Colours stay at three or more so the smallest
// deck still covers a full roster of full hands.
func (s Settings) Normalize() Settings {
	defaults := DefaultSettings()
	if s.Colours == 0 {
		s.Colours = defaults.Colours
	}
	if s.HandSize == 0 {
		s.HandSize = defaults.HandSize
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = defaults.MaxTokens
	}
	if s.MaxErrors == 0 {
		s.MaxErrors = defaults.MaxErrors
	}
	if s.TurnTimeLimit == 0 {
		s.TurnTimeLimit = defaults.TurnTimeLimit
	}
	if s.MinViewingTime == 0 {
		s.MinViewingTime = defaults.MinViewingTime
	}

	s.Colours = clamp(s.Colours, 3, 10)
	s.HandSize = clamp(s.HandSize, 1, MaxHeldCards)
	s.MaxTokens = clamp(s.MaxTokens, 1, 16)
	s.MaxErrors = clamp(s.MaxErrors, 1, 9)
	if s.TurnTimeLimit < 5*time.Second {
		s.TurnTimeLimit = 5 * time.Second
	}
	if s.TurnTimeLimit > 5*time.Minute {
		s.TurnTimeLimit = 5 * time.Minute
	}
	if s.MinViewingTime < time.Second {
		s.MinViewingTime = time.Second
	}
	if s.MinViewingTime > s.TurnTimeLimit {
		s.MinViewingTime = s.TurnTimeLimit
	}
	return s
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Session is one game instance. Exactly one of {not started, running, ended}
// holds: ActivePlayerID is non-empty iff the game is running, FinalScore is
// non-nil iff the game has ended.
type Session struct {
	ID        string
	CreatedAt time.Time
	Settings  Settings

	Turn            int
	TokensRemaining int
	ErrorsRemaining int
	ActivePlayerID  string

	// ActionAt and EndTurnAt are set together while a performed action
	// waits for the turn to end.
	ActionAt  *time.Time
	EndTurnAt *time.Time

	// NeedDraw marks that the active player owes a draw when the turn ends.
	NeedDraw bool

	// StopAfterPlayerID arms the final lap: the game ends when this seat
	// would become active again.
	StopAfterPlayerID string

	FinalScore *int
}

// Status derives the lifecycle state from the session's fields.
func (s *Session) Status() Status {
	switch {
	case s.FinalScore != nil:
		return StatusGameOver
	case s.ActivePlayerID == "":
		return StatusNotStarted
	case s.EndTurnAt != nil:
		return StatusTurnPendingEnd
	default:
		return StatusPlayerThinking
	}
}

// Player is one seat in a session. Created on join, immutable afterwards,
// removed only when the session is deleted.
type Player struct {
	ID        string
	SessionID string
	Position  int
	Name      string
}

// HeldCard is one occupied slot in a player's hand.
type HeldCard struct {
	SessionID string
	PlayerID  string
	Position  int
	Card      CardType
}

// Firework is the current top rank reached for one colour (0 = none played).
type Firework struct {
	SessionID string
	Colour    int
	Value     int
}

// Reserve is the remaining count of one card type in the draw pile.
type Reserve struct {
	SessionID string
	Card      CardType
	CardsLeft int
}
