package domain

import (
	"sort"
	"time"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
)

// View is a session snapshot scoped to one viewer. Fields that would leak
// hidden information (the viewer's own cards, any hand to an outside
// observer) are withheld during projection, never at the transport layer.
type View struct {
	SessionID string
	CreatedAt time.Time
	Status    Status
	Colours   int
	MaxTokens int
	Players   []PlayerView

	// FinalScore is set only in GAME_OVER.
	FinalScore *int

	// Running is set only while the game runs.
	Running *RunningView
}

// PlayerView is one seat as the viewer is allowed to see it.
type PlayerView struct {
	PlayerID string
	Name     string
	Position int

	// Hand holds the seat's cards by slot, nil for empty slots. It is
	// populated only for seats other than the viewer's, and only for a
	// player viewer.
	Hand []*CardType

	// HandSlots marks which of the viewer's own slots are occupied. Set
	// only on the viewer's seat.
	HandSlots []bool
}

// RunningView carries the shared table state of a running game.
type RunningView struct {
	Turn            int
	ActivePlayerID  string
	Fireworks       []int
	TokensRemaining int
	ErrorsRemaining int
	CardsLeft       int
	HandSize        int

	// Discards lists the removed-from-game cards newest first: every
	// discard plus every misplayed card. Successfully played cards are on
	// the stacks, not here.
	Discards []CardType

	// LastAction and EndTurnAt are set while the turn is pending end, so
	// clients can render what just happened and when it settles.
	LastAction *Action
	EndTurnAt  *time.Time
}

// ProjectionInput is everything Project needs, read in one consistent
// snapshot by the caller.
type ProjectionInput struct {
	Session Session
	Players []Player

	// ViewerPlayerID is empty for a management (observer) viewer.
	ViewerPlayerID string

	HeldCards []HeldCard
	Fireworks []Firework
	Reserves  []Reserve

	// Removals holds the play and discard log entries in turn order.
	Removals   []Action
	LastAction *Action
}

// Project builds the viewer-scoped snapshot. A player viewer sees every hand
// but their own, for which only slot occupancy is exposed; an observer sees
// no hands at all. After the game ends only the roster and final score
// remain visible.
func Project(input ProjectionInput) (View, error) {
	session := input.Session
	status := session.Status()

	players := make([]Player, len(input.Players))
	copy(players, input.Players)
	sortPlayersByPosition(players)

	view := View{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
		Status:    status,
		Colours:   session.Settings.Colours,
		MaxTokens: session.Settings.MaxTokens,
		Players:   make([]PlayerView, len(players)),
	}
	for i, player := range players {
		view.Players[i] = PlayerView{
			PlayerID: player.ID,
			Name:     player.Name,
			Position: player.Position,
		}
	}

	switch status {
	case StatusGameOver:
		view.FinalScore = session.FinalScore
		return view, nil
	case StatusNotStarted:
		return view, nil
	}

	values, err := fireworkValues(session.Settings.Colours, input.Fireworks)
	if err != nil {
		return View{}, err
	}
	cardsLeft := 0
	for _, reserve := range input.Reserves {
		if reserve.CardsLeft > 0 {
			cardsLeft += reserve.CardsLeft
		}
	}

	running := &RunningView{
		Turn:            session.Turn,
		ActivePlayerID:  session.ActivePlayerID,
		Fireworks:       values,
		TokensRemaining: session.TokensRemaining,
		ErrorsRemaining: session.ErrorsRemaining,
		CardsLeft:       cardsLeft,
		HandSize:        session.Settings.HandSize,
		Discards:        discardPile(input.Removals),
	}
	if status == StatusTurnPendingEnd {
		running.LastAction = input.LastAction
		running.EndTurnAt = session.EndTurnAt
	}
	view.Running = running

	if input.ViewerPlayerID == "" {
		return view, nil
	}

	byPlayer := make(map[string][]HeldCard, len(players))
	for _, held := range input.HeldCards {
		byPlayer[held.PlayerID] = append(byPlayer[held.PlayerID], held)
	}
	for i := range view.Players {
		seat := &view.Players[i]
		hand := byPlayer[seat.PlayerID]
		sort.Slice(hand, func(a, b int) bool { return hand[a].Position < hand[b].Position })

		if seat.PlayerID == input.ViewerPlayerID {
			slots := make([]bool, session.Settings.HandSize)
			for _, held := range hand {
				if held.Position < 0 || held.Position >= session.Settings.HandSize {
					return View{}, errHeldPositionOutOfRange()
				}
				slots[held.Position] = true
			}
			seat.HandSlots = slots
			continue
		}

		cards := make([]*CardType, session.Settings.HandSize)
		for _, held := range hand {
			if held.Position < 0 || held.Position >= session.Settings.HandSize {
				return View{}, errHeldPositionOutOfRange()
			}
			card := held.Card
			cards[held.Position] = &card
		}
		seat.Hand = cards
	}
	return view, nil
}

// discardPile lists removed cards newest first regardless of the log order
// the removals arrived in.
func discardPile(removals []Action) []CardType {
	sorted := make([]Action, len(removals))
	copy(sorted, removals)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Turn > sorted[b].Turn })

	var discards []CardType
	for _, action := range sorted {
		if action.Colour == nil || action.Value == nil {
			continue
		}
		if action.Type == ActionDiscard || (action.Type == ActionPlay && action.WasError) {
			discards = append(discards, CardType{Colour: *action.Colour, Value: *action.Value})
		}
	}
	return discards
}

func errHeldPositionOutOfRange() error {
	return perrors.New(perrors.CodeGameStateCorrupt, "held card position out of range")
}
