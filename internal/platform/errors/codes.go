// Package errors provides structured error handling with machine-readable
// codes for the game session service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session lifecycle errors
	CodeSessionGone          Code = "SESSION_GONE"
	CodeSessionNotJoinable   Code = "SESSION_NOT_JOINABLE"
	CodeSessionRosterFull    Code = "SESSION_ROSTER_FULL"
	CodeGameAlreadyRunning   Code = "GAME_ALREADY_RUNNING"
	CodeGameNotEnoughPlayers Code = "GAME_NOT_ENOUGH_PLAYERS"
	CodeGameNotRunning       Code = "GAME_NOT_RUNNING"
	CodeGameAlreadyFinalized Code = "GAME_ALREADY_FINALIZED"

	// Turn/action timing errors
	CodeActionOutOfTurn    Code = "ACTION_OUT_OF_TURN"
	CodeActionAlreadyTaken Code = "ACTION_ALREADY_TAKEN"
	CodeNoActionPending    Code = "NO_ACTION_PENDING"
	CodeAdvanceTooEarly    Code = "ADVANCE_TOO_EARLY"

	// Action payload errors
	CodeActionMalformed    Code = "ACTION_MALFORMED"
	CodeHandSlotEmpty      Code = "HAND_SLOT_EMPTY"
	CodeHandSlotInvalid    Code = "HAND_SLOT_INVALID"
	CodeTokensExhausted    Code = "TOKENS_EXHAUSTED"
	CodeTokensAtCap        Code = "TOKENS_AT_CAP"
	CodeHintScopeInvalid   Code = "HINT_SCOPE_INVALID"
	CodeHintTargetSelf     Code = "HINT_TARGET_SELF"
	CodeHintTargetUnknown  Code = "HINT_TARGET_UNKNOWN"
	CodePlayerNameRequired Code = "PLAYER_NAME_REQUIRED"

	// Authorization errors
	CodeTokenMismatch Code = "TOKEN_MISMATCH"

	// Internal-consistency errors (corrupted persisted state)
	CodeGameStateCorrupt Code = "GAME_STATE_CORRUPT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps the code to the HTTP status the REST glue surfaces.
//
// The mapping follows the original service's convention: timing and rule
// violations are 409, malformed payloads are 400, bad capability tokens are
// 403, and vanished sessions are 410 so pollers can stop retrying.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionGone:
		return http.StatusGone
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTokenMismatch:
		return http.StatusForbidden
	case CodeActionMalformed, CodeHintScopeInvalid, CodeHintTargetSelf,
		CodeHandSlotInvalid, CodePlayerNameRequired:
		return http.StatusBadRequest
	case CodeSessionNotJoinable, CodeSessionRosterFull, CodeGameAlreadyRunning,
		CodeGameNotEnoughPlayers, CodeGameNotRunning, CodeGameAlreadyFinalized,
		CodeActionOutOfTurn, CodeActionAlreadyTaken, CodeNoActionPending,
		CodeAdvanceTooEarly, CodeHandSlotEmpty, CodeTokensExhausted,
		CodeTokensAtCap, CodeHintTargetUnknown, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
