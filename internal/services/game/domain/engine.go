package domain

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
)

// Engine applies turn transitions for one session. Every method that
// mutates state must be invoked inside the session's exclusive transaction
// (Store.WithSession); the engine itself holds nothing between calls.
type Engine struct {
	// Clock supplies the current time; defaults to time.Now.
	Clock func() time.Time

	// DealRNG returns the deterministic draw generator for a turn. Turn 0
	// is reserved for the opening deal; playable turns start at 1 so the
	// end-of-turn draw never reuses the deal's generator stream.
	DealRNG func(turn int) *rand.Rand
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock().UTC()
}

// Start transitions NOT_STARTED to PLAYER_THINKING: resets residual game
// rows, seeds fireworks and deck reserves, deals every player a full hand,
// and seats the player at position 0. A start that raced another start is a
// no-op; the loser sees ActivePlayerID already set under the lock.
func (e *Engine) Start(ctx context.Context, tx Tx) error {
	session := tx.Session()
	if session.FinalScore != nil {
		return perrors.New(perrors.CodeGameAlreadyFinalized, "game has ended")
	}
	if session.ActivePlayerID != "" {
		return nil
	}

	players, err := tx.ListPlayers(ctx)
	if err != nil {
		return err
	}
	if len(players) < 2 {
		return perrors.New(perrors.CodeGameNotEnoughPlayers, "at least two players are required")
	}
	sortPlayersByPosition(players)

	if err := tx.ResetGameState(ctx); err != nil {
		return err
	}

	settings := session.Settings
	for colour := 0; colour < settings.Colours; colour++ {
		if err := tx.SetFirework(ctx, colour, 0); err != nil {
			return err
		}
	}

	reserves := make([]Reserve, 0, settings.Colours*MaxCardValue)
	for colour := 0; colour < settings.Colours; colour++ {
		for idx, count := range CardDistPerColour {
			reserve := Reserve{
				SessionID: session.ID,
				Card:      CardType{Colour: colour, Value: idx + 1},
				CardsLeft: count,
			}
			if err := tx.InsertReserve(ctx, reserve); err != nil {
				return err
			}
			reserves = append(reserves, reserve)
		}
	}

	// Deal in seating order, filling each hand slot by slot, so the
	// sequence of dealt cards is fully determined by the deal seed.
	deck := NewDeck(reserves)
	rng := e.DealRNG(0)
	for _, player := range players {
		for pos := 0; pos < settings.HandSize; pos++ {
			card, err := deck.Draw(rng)
			if err != nil {
				return err
			}
			held := HeldCard{
				SessionID: session.ID,
				PlayerID:  player.ID,
				Position:  pos,
				Card:      card,
			}
			if err := tx.InsertHeldCard(ctx, held); err != nil {
				return err
			}
		}
	}
	if err := flushDraws(ctx, tx, deck); err != nil {
		return err
	}

	session.TokensRemaining = settings.MaxTokens
	session.ErrorsRemaining = settings.MaxErrors
	session.Turn = 1
	session.NeedDraw = false
	session.StopAfterPlayerID = ""
	session.ActionAt = nil
	session.EndTurnAt = nil
	session.ActivePlayerID = players[0].ID
	return tx.UpdateSession(ctx, session)
}

// Play removes the card at the given hand position and resolves it against
// the played stacks: playable iff the stack for its colour sits exactly one
// below its rank. Completing a stack refunds one token up to the cap; a
// misplay burns one error.
func (e *Engine) Play(ctx context.Context, tx Tx, playerID string, position int) error {
	session := tx.Session()
	if err := requireThinking(&session, playerID); err != nil {
		return err
	}

	card, err := e.removeCard(ctx, tx, &session, playerID, position)
	if err != nil {
		return err
	}

	fireworks, err := tx.ListFireworks(ctx)
	if err != nil {
		return err
	}
	values, err := fireworkValues(session.Settings.Colours, fireworks)
	if err != nil {
		return err
	}

	playable := values[card.Colour] == card.Value-1
	if playable {
		if err := tx.SetFirework(ctx, card.Colour, card.Value); err != nil {
			return err
		}
		if card.Value == MaxCardValue && session.TokensRemaining < session.Settings.MaxTokens {
			session.TokensRemaining++
		}
	} else if session.ErrorsRemaining > 0 {
		session.ErrorsRemaining--
	}

	colour, value, handPos := card.Colour, card.Value, position
	action := Action{
		SessionID: session.ID,
		Turn:      session.Turn,
		PlayerID:  playerID,
		Type:      ActionPlay,
		Colour:    &colour,
		Value:     &value,
		HandPos:   &handPos,
		WasError:  !playable,
	}
	if err := tx.AppendAction(ctx, action); err != nil {
		return err
	}

	e.scheduleTurnEnd(&session, true)
	return tx.UpdateSession(ctx, session)
}

// Discard removes the card at the given hand position and credits one
// token. Discarding while already at the token cap is rejected: it is the
// only way to regain tokens, so burning a card for nothing is never meant.
func (e *Engine) Discard(ctx context.Context, tx Tx, playerID string, position int) error {
	session := tx.Session()
	if err := requireThinking(&session, playerID); err != nil {
		return err
	}
	if session.TokensRemaining >= session.Settings.MaxTokens {
		return perrors.New(perrors.CodeTokensAtCap, "cannot discard at the token cap")
	}

	card, err := e.removeCard(ctx, tx, &session, playerID, position)
	if err != nil {
		return err
	}
	session.TokensRemaining++

	colour, value, handPos := card.Colour, card.Value, position
	action := Action{
		SessionID: session.ID,
		Turn:      session.Turn,
		PlayerID:  playerID,
		Type:      ActionDiscard,
		Colour:    &colour,
		Value:     &value,
		HandPos:   &handPos,
	}
	if err := tx.AppendAction(ctx, action); err != nil {
		return err
	}

	e.scheduleTurnEnd(&session, true)
	return tx.UpdateSession(ctx, session)
}

// HintRequest scopes a hint: exactly one of Colour/Value must be set and the
// target must be another player in the session.
type HintRequest struct {
	TargetPlayerID string
	Colour         *int
	Value          *int
}

// Hint spends one token to reveal which of the target's hand positions match
// the hinted attribute. Hands are not mutated; the matching positions are
// logged comma-joined in ascending order for client rendering.
func (e *Engine) Hint(ctx context.Context, tx Tx, playerID string, hint HintRequest) error {
	session := tx.Session()
	if err := requireThinking(&session, playerID); err != nil {
		return err
	}

	if (hint.Colour == nil) == (hint.Value == nil) {
		return perrors.New(perrors.CodeHintScopeInvalid, "exactly one of colour or value must be hinted")
	}
	if hint.Colour != nil && (*hint.Colour < 0 || *hint.Colour >= session.Settings.Colours) {
		return perrors.New(perrors.CodeHintScopeInvalid, "hinted colour out of range")
	}
	if hint.Value != nil && (*hint.Value < 1 || *hint.Value > MaxCardValue) {
		return perrors.New(perrors.CodeHintScopeInvalid, "hinted value out of range")
	}
	if hint.TargetPlayerID == playerID {
		return perrors.New(perrors.CodeHintTargetSelf, "cannot hint yourself")
	}

	players, err := tx.ListPlayers(ctx)
	if err != nil {
		return err
	}
	targetExists := false
	for _, player := range players {
		if player.ID == hint.TargetPlayerID {
			targetExists = true
			break
		}
	}
	if !targetExists {
		return perrors.New(perrors.CodeHintTargetUnknown, "hint target is not in this session")
	}

	if session.TokensRemaining <= 0 {
		return perrors.New(perrors.CodeTokensExhausted, "no tokens left to hint with")
	}

	hand, err := tx.ListHeldCards(ctx, hint.TargetPlayerID)
	if err != nil {
		return err
	}
	var positions []int
	for _, held := range hand {
		if held.Position < 0 || held.Position >= session.Settings.HandSize {
			return perrors.New(perrors.CodeGameStateCorrupt, "held card position out of range")
		}
		matches := (hint.Colour != nil && held.Card.Colour == *hint.Colour) ||
			(hint.Value != nil && held.Card.Value == *hint.Value)
		if matches {
			positions = append(positions, held.Position)
		}
	}
	sort.Ints(positions)
	joined := make([]string, len(positions))
	for i, pos := range positions {
		joined[i] = strconv.Itoa(pos)
	}

	session.TokensRemaining--

	action := Action{
		SessionID:          session.ID,
		Turn:               session.Turn,
		PlayerID:           playerID,
		Type:               ActionHint,
		Colour:             hint.Colour,
		Value:              hint.Value,
		HintPositions:      strings.Join(joined, ","),
		HintTargetPlayerID: hint.TargetPlayerID,
	}
	if err := tx.AppendAction(ctx, action); err != nil {
		return err
	}

	e.scheduleTurnEnd(&session, false)
	return tx.UpdateSession(ctx, session)
}

// EndTurn finalizes a pending action: evaluates loss/win/final-lap
// conditions, performs the owed draw, and hands the turn to the next seat.
// It is a no-op when no deadline is pending, which makes the deadline
// re-check under the lock safe to call from any request path.
func (e *Engine) EndTurn(ctx context.Context, tx Tx) error {
	session := tx.Session()
	if session.FinalScore != nil || session.EndTurnAt == nil {
		return nil
	}

	if session.ErrorsRemaining <= 0 {
		return e.finalize(ctx, tx, session, 0)
	}

	fireworks, err := tx.ListFireworks(ctx)
	if err != nil {
		return err
	}
	values, err := fireworkValues(session.Settings.Colours, fireworks)
	if err != nil {
		return err
	}
	score := 0
	for _, value := range values {
		score += value
	}
	if score == MaxScore(session.Settings.Colours) {
		return e.finalize(ctx, tx, session, score)
	}

	players, err := tx.ListPlayers(ctx)
	if err != nil {
		return err
	}
	sortPlayersByPosition(players)
	activeIdx := -1
	for idx, player := range players {
		if player.ID == session.ActivePlayerID {
			activeIdx = idx
			break
		}
	}
	if activeIdx < 0 {
		return perrors.New(perrors.CodeGameStateCorrupt, "active player is not seated in this session")
	}
	next := players[(activeIdx+1)%len(players)]

	if session.StopAfterPlayerID != "" && next.ID == session.StopAfterPlayerID {
		return e.finalize(ctx, tx, session, score)
	}

	if session.NeedDraw {
		reserves, err := tx.ListReserves(ctx)
		if err != nil {
			return err
		}
		deck := NewDeck(reserves)
		if deck.Remaining() == 0 {
			// Empty pile: the player who could not draw triggers the
			// final lap instead of erroring.
			session.StopAfterPlayerID = session.ActivePlayerID
		} else {
			card, err := deck.Draw(e.DealRNG(session.Turn))
			if err != nil {
				return err
			}
			hand, err := tx.ListHeldCards(ctx, session.ActivePlayerID)
			if err != nil {
				return err
			}
			pos, err := freeHandSlot(&session, hand)
			if err != nil {
				return err
			}
			held := HeldCard{
				SessionID: session.ID,
				PlayerID:  session.ActivePlayerID,
				Position:  pos,
				Card:      card,
			}
			if err := tx.InsertHeldCard(ctx, held); err != nil {
				return err
			}
			if err := flushDraws(ctx, tx, deck); err != nil {
				return err
			}
		}
	}

	session.ActivePlayerID = next.ID
	session.ActionAt = nil
	session.EndTurnAt = nil
	session.NeedDraw = false
	session.Turn++
	return tx.UpdateSession(ctx, session)
}

// Advance ends the turn at the acting player's request. Before the minimum
// post-action viewing time has elapsed the deadline is instead pulled in to
// the earliest allowed instant, which is returned so the caller can report
// "too early" without abandoning the reschedule.
func (e *Engine) Advance(ctx context.Context, tx Tx, playerID string) (rescheduled *time.Time, err error) {
	session := tx.Session()
	if session.FinalScore != nil {
		return nil, perrors.New(perrors.CodeGameAlreadyFinalized, "game has ended")
	}
	if session.ActivePlayerID == "" {
		return nil, perrors.New(perrors.CodeGameNotRunning, "game has not started")
	}
	if session.ActivePlayerID != playerID {
		return nil, perrors.New(perrors.CodeActionOutOfTurn, "not this player's turn")
	}
	if session.EndTurnAt == nil || session.ActionAt == nil {
		return nil, perrors.New(perrors.CodeNoActionPending, "no action is waiting to be finalized")
	}

	earliest := session.ActionAt.Add(session.Settings.MinViewingTime)
	if e.now().Before(earliest) {
		session.EndTurnAt = &earliest
		if err := tx.UpdateSession(ctx, session); err != nil {
			return nil, err
		}
		return &earliest, nil
	}
	return nil, e.EndTurn(ctx, tx)
}

// Abandon force-finalizes a running session as a loss. Sessions that never
// started or already ended are deleted outright.
func (e *Engine) Abandon(ctx context.Context, tx Tx) error {
	session := tx.Session()
	switch session.Status() {
	case StatusPlayerThinking, StatusTurnPendingEnd:
		return e.finalize(ctx, tx, session, 0)
	default:
		return tx.DeleteSession(ctx)
	}
}

// finalize ends the game: clears the running-state fields and pins the
// score. The session becomes immutable except for deletion.
func (e *Engine) finalize(ctx context.Context, tx Tx, session Session, score int) error {
	session.ActivePlayerID = ""
	session.ActionAt = nil
	session.EndTurnAt = nil
	session.NeedDraw = false
	session.StopAfterPlayerID = ""
	session.FinalScore = &score
	return tx.UpdateSession(ctx, session)
}

func (e *Engine) scheduleTurnEnd(session *Session, needDraw bool) {
	now := e.now()
	end := now.Add(session.Settings.TurnTimeLimit)
	session.ActionAt = &now
	session.EndTurnAt = &end
	session.NeedDraw = needDraw
}

// removeCard validates the hand position and deletes the card occupying it.
func (e *Engine) removeCard(ctx context.Context, tx Tx, session *Session, playerID string, position int) (CardType, error) {
	if position < 0 || position >= session.Settings.HandSize {
		return CardType{}, perrors.New(perrors.CodeHandSlotInvalid, "hand position out of range")
	}
	hand, err := tx.ListHeldCards(ctx, playerID)
	if err != nil {
		return CardType{}, err
	}
	found := false
	var card CardType
	for _, held := range hand {
		if held.Position < 0 || held.Position >= session.Settings.HandSize {
			return CardType{}, perrors.New(perrors.CodeGameStateCorrupt, "held card position out of range")
		}
		if held.Position == position {
			card = held.Card
			found = true
		}
	}
	if !found {
		return CardType{}, perrors.New(perrors.CodeHandSlotEmpty, "no card at that hand position")
	}
	if err := tx.DeleteHeldCard(ctx, playerID, position); err != nil {
		return CardType{}, err
	}
	return card, nil
}

// requireThinking gates the three player actions: the game must be running,
// the caller must hold the turn, and no performed action may be pending.
func requireThinking(session *Session, playerID string) error {
	switch session.Status() {
	case StatusGameOver:
		return perrors.New(perrors.CodeGameAlreadyFinalized, "game has ended")
	case StatusNotStarted:
		return perrors.New(perrors.CodeGameNotRunning, "game has not started")
	case StatusTurnPendingEnd:
		if session.ActivePlayerID != playerID {
			return perrors.New(perrors.CodeActionOutOfTurn, "not this player's turn")
		}
		return perrors.New(perrors.CodeActionAlreadyTaken, "an action is already waiting for the turn to end")
	}
	if session.ActivePlayerID != playerID {
		return perrors.New(perrors.CodeActionOutOfTurn, "not this player's turn")
	}
	return nil
}

// fireworkValues folds stack rows into a dense per-colour slice, rejecting
// rows outside the configured colour range and colours with no row at all.
func fireworkValues(colours int, fireworks []Firework) ([]int, error) {
	values := make([]int, colours)
	seen := make([]bool, colours)
	for _, firework := range fireworks {
		if firework.Colour < 0 || firework.Colour >= colours {
			return nil, perrors.New(perrors.CodeGameStateCorrupt, "illegal firework colour")
		}
		values[firework.Colour] = firework.Value
		seen[firework.Colour] = true
	}
	for colour, ok := range seen {
		if !ok {
			return nil, perrors.WithMetadata(perrors.CodeGameStateCorrupt, "missing played-stack row",
				map[string]string{"colour": strconv.Itoa(colour)})
		}
	}
	return values, nil
}

func freeHandSlot(session *Session, hand []HeldCard) (int, error) {
	occupied := make([]bool, session.Settings.HandSize)
	for _, held := range hand {
		if held.Position < 0 || held.Position >= session.Settings.HandSize {
			return 0, perrors.New(perrors.CodeGameStateCorrupt, "held card position out of range")
		}
		occupied[held.Position] = true
	}
	for pos, taken := range occupied {
		if !taken {
			return pos, nil
		}
	}
	return 0, perrors.New(perrors.CodeGameStateCorrupt, "no free hand slot for the owed draw")
}

func flushDraws(ctx context.Context, tx Tx, deck *Deck) error {
	for _, update := range deck.Drawn() {
		if err := tx.UpdateReserve(ctx, update.Card, update.CardsLeft); err != nil {
			return err
		}
	}
	return nil
}

func sortPlayersByPosition(players []Player) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].Position < players[j].Position
	})
}
