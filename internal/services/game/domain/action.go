package domain

// ActionType identifies the kind of a logged turn action.
type ActionType string

const (
	ActionHint    ActionType = "HINT"
	ActionDiscard ActionType = "DISCARD"
	ActionPlay    ActionType = "PLAY"
)

// Action is one immutable action-log entry, keyed by (session, turn).
//
// For card actions (play/discard) Colour, Value, and HandPos identify the
// removed card. For hints exactly one of Colour/Value carries the hinted
// attribute, HintTargetPlayerID names the receiving player, and
// HintPositions is the comma-joined ascending list of matching hand slots.
// WasError is meaningful only for plays.
type Action struct {
	SessionID string
	Turn      int
	PlayerID  string
	Type      ActionType

	Colour  *int
	Value   *int
	HandPos *int

	WasError bool

	HintPositions      string
	HintTargetPlayerID string
}
