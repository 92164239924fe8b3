package rest

import (
	"fmt"
	"time"

	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type createRequest struct {
	Colours            int `json:"colours,omitempty"`
	HandSize           int `json:"hand_size,omitempty"`
	MaxTokens          int `json:"max_tokens,omitempty"`
	MaxErrors          int `json:"max_errors,omitempty"`
	TurnTimeLimitSecs  int `json:"turn_time_limit_seconds,omitempty"`
	MinViewingTimeSecs int `json:"min_viewing_time_seconds,omitempty"`
}

func (r createRequest) settings() domain.Settings {
	return domain.Settings{
		Colours:        r.Colours,
		HandSize:       r.HandSize,
		MaxTokens:      r.MaxTokens,
		MaxErrors:      r.MaxErrors,
		TurnTimeLimit:  time.Duration(r.TurnTimeLimitSecs) * time.Second,
		MinViewingTime: time.Duration(r.MinViewingTimeSecs) * time.Second,
	}
}

type createResponse struct {
	SessionID     string `json:"session_id"`
	Pepper        string `json:"pepper"`
	ManagementURL string `json:"management_url"`
	JoinURL       string `json:"join_url"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type joinResponse struct {
	PlayerID string `json:"player_id"`
	Position int    `json:"position"`
	PlayURL  string `json:"play_url"`
}

type actRequest struct {
	Type           string `json:"type"`
	HandPos        *int   `json:"hand_pos,omitempty"`
	Colour         *int   `json:"colour,omitempty"`
	Value          *int   `json:"value,omitempty"`
	TargetPlayerID string `json:"target_player_id,omitempty"`
}

type cardResponse struct {
	Colour int `json:"colour"`
	Value  int `json:"value"`
}

type actionResponse struct {
	Turn          int    `json:"turn"`
	PlayerID      string `json:"player_id"`
	Type          string `json:"type"`
	Colour        *int   `json:"colour,omitempty"`
	Value         *int   `json:"value,omitempty"`
	HandPos       *int   `json:"hand_pos,omitempty"`
	WasError      bool   `json:"was_error"`
	HintPositions string `json:"hint_positions,omitempty"`
	HintTarget    string `json:"hint_target,omitempty"`
}

type seatResponse struct {
	PlayerID  string          `json:"player_id"`
	Name      string          `json:"name"`
	Position  int             `json:"position"`
	Hand      []*cardResponse `json:"hand,omitempty"`
	HandSlots []bool          `json:"hand_slots,omitempty"`
}

type stateResponse struct {
	SessionID string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	Status    string         `json:"status"`
	Colours   int            `json:"colours"`
	MaxTokens int            `json:"max_tokens"`
	Players   []seatResponse `json:"players"`

	FinalScore *int `json:"final_score,omitempty"`

	Turn            *int            `json:"turn,omitempty"`
	ActivePlayer    string          `json:"active_player,omitempty"`
	Fireworks       []int           `json:"current_fireworks,omitempty"`
	TokensRemaining *int            `json:"tokens_remaining,omitempty"`
	ErrorsRemaining *int            `json:"errors_remaining,omitempty"`
	CardsLeft       *int            `json:"cards_left,omitempty"`
	HandSize        *int            `json:"hand_size,omitempty"`
	Discarded       []cardResponse  `json:"discarded,omitempty"`
	LastAction      *actionResponse `json:"last_action,omitempty"`
	EndTurnAt       *time.Time      `json:"end_turn_at,omitempty"`
}

type discardedResponse struct {
	Discarded []cardResponse `json:"discarded"`
}

func managementPath(sessionID, pepper, token string) string {
	return fmt.Sprintf("/session/%s/%s/manage/%s", sessionID, pepper, token)
}

func joinPath(sessionID, pepper, token string) string {
	return fmt.Sprintf("/session/%s/%s/join/%s", sessionID, pepper, token)
}

func playPath(sessionID, pepper, playerID, token string) string {
	return fmt.Sprintf("/session/%s/%s/play/%s/%s", sessionID, pepper, playerID, token)
}

func toStateResponse(view domain.View) stateResponse {
	resp := stateResponse{
		SessionID:  view.SessionID,
		CreatedAt:  view.CreatedAt,
		Status:     string(view.Status),
		Colours:    view.Colours,
		MaxTokens:  view.MaxTokens,
		Players:    make([]seatResponse, len(view.Players)),
		FinalScore: view.FinalScore,
	}
	for i, seat := range view.Players {
		out := seatResponse{
			PlayerID:  seat.PlayerID,
			Name:      seat.Name,
			Position:  seat.Position,
			HandSlots: seat.HandSlots,
		}
		if seat.Hand != nil {
			out.Hand = make([]*cardResponse, len(seat.Hand))
			for pos, card := range seat.Hand {
				if card != nil {
					out.Hand[pos] = &cardResponse{Colour: card.Colour, Value: card.Value}
				}
			}
		}
		resp.Players[i] = out
	}

	running := view.Running
	if running == nil {
		return resp
	}
	turn := running.Turn
	tokens := running.TokensRemaining
	errs := running.ErrorsRemaining
	cardsLeft := running.CardsLeft
	handSize := running.HandSize
	resp.Turn = &turn
	resp.ActivePlayer = running.ActivePlayerID
	resp.Fireworks = running.Fireworks
	resp.TokensRemaining = &tokens
	resp.ErrorsRemaining = &errs
	resp.CardsLeft = &cardsLeft
	resp.HandSize = &handSize
	resp.Discarded = toCards(running.Discards)
	resp.EndTurnAt = running.EndTurnAt
	if running.LastAction != nil {
		resp.LastAction = toActionResponse(*running.LastAction)
	}
	return resp
}

func toCards(cards []domain.CardType) []cardResponse {
	out := make([]cardResponse, len(cards))
	for i, card := range cards {
		out[i] = cardResponse{Colour: card.Colour, Value: card.Value}
	}
	return out
}

func toActionResponse(action domain.Action) *actionResponse {
	return &actionResponse{
		Turn:          action.Turn,
		PlayerID:      action.PlayerID,
		Type:          string(action.Type),
		Colour:        action.Colour,
		Value:         action.Value,
		HandPos:       action.HandPos,
		WasError:      action.WasError,
		HintPositions: action.HintPositions,
		HintTarget:    action.HintTargetPlayerID,
	}
}
