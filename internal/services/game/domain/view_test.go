package domain

import (
	"testing"
	"time"
)

func runningProjectionInput(store *memStore, viewerID string) ProjectionInput {
	return ProjectionInput{
		Session:        store.session,
		Players:        store.players,
		ViewerPlayerID: viewerID,
		HeldCards:      store.held,
		Fireworks:      store.fireworkRows(),
		Reserves:       store.reserveRows(),
	}
}

func TestProjectPlayerViewer(t *testing.T) {
	t.Parallel()

	store := newRunningStore()
	view, err := Project(runningProjectionInput(store, "alice"))
	if err != nil {
		t.Fatal(err)
	}

	if view.Status != StatusPlayerThinking {
		t.Fatalf("status = %s, want %s", view.Status, StatusPlayerThinking)
	}
	if view.Running == nil {
		t.Fatal("running view missing")
	}
	if view.Running.ActivePlayerID != "alice" {
		t.Errorf("active player = %q, want alice", view.Running.ActivePlayerID)
	}
	if view.Running.CardsLeft != 10 {
		t.Errorf("cards left = %d, want 10", view.Running.CardsLeft)
	}
	if want := []int{0, 2, 1, 4, 0}; len(view.Running.Fireworks) != len(want) {
		t.Fatalf("fireworks = %v, want %v", view.Running.Fireworks, want)
	} else {
		for i := range want {
			if view.Running.Fireworks[i] != want[i] {
				t.Errorf("firework %d = %d, want %d", i, view.Running.Fireworks[i], want[i])
			}
		}
	}

	for _, seat := range view.Players {
		if seat.PlayerID == "alice" {
			if seat.Hand != nil {
				t.Error("viewer must not see their own cards")
			}
			if len(seat.HandSlots) != 4 {
				t.Fatalf("viewer slots = %v, want 4 entries", seat.HandSlots)
			}
			for pos, taken := range seat.HandSlots {
				if !taken {
					t.Errorf("viewer slot %d reported empty", pos)
				}
			}
			continue
		}
		if seat.HandSlots != nil {
			t.Errorf("seat %s carries occupancy meant for the viewer", seat.PlayerID)
		}
		if len(seat.Hand) != 4 {
			t.Fatalf("seat %s hand = %v, want 4 slots", seat.PlayerID, seat.Hand)
		}
		for pos, card := range seat.Hand {
			if card == nil {
				t.Errorf("seat %s slot %d hidden from a fellow player", seat.PlayerID, pos)
			}
		}
	}
}

func TestProjectObserverSeesNoHands(t *testing.T) {
	t.Parallel()

	store := newRunningStore()
	view, err := Project(runningProjectionInput(store, ""))
	if err != nil {
		t.Fatal(err)
	}

	if view.Running == nil {
		t.Fatal("observer still sees the shared table state")
	}
	for _, seat := range view.Players {
		if seat.Hand != nil || seat.HandSlots != nil {
			t.Errorf("observer sees hand data for seat %s", seat.PlayerID)
		}
	}
}

func TestProjectPendingTurnCarriesLastAction(t *testing.T) {
	t.Parallel()

	store := newRunningStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(10 * time.Second)
	store.session.ActionAt = &now
	store.session.EndTurnAt = &deadline

	colour, value, pos := 2, 2, 1
	last := Action{
		SessionID: store.session.ID,
		Turn:      7,
		PlayerID:  "alice",
		Type:      ActionPlay,
		Colour:    &colour,
		Value:     &value,
		HandPos:   &pos,
	}
	input := runningProjectionInput(store, "bob")
	input.LastAction = &last

	view, err := Project(input)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != StatusTurnPendingEnd {
		t.Fatalf("status = %s, want %s", view.Status, StatusTurnPendingEnd)
	}
	if view.Running.LastAction == nil || view.Running.LastAction.Turn != 7 {
		t.Errorf("last action = %+v, want the turn 7 play", view.Running.LastAction)
	}
	if view.Running.EndTurnAt == nil || !view.Running.EndTurnAt.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", view.Running.EndTurnAt, deadline)
	}
}

func TestProjectEndedAndUnstarted(t *testing.T) {
	t.Parallel()

	t.Run("ended shows only roster and score", func(t *testing.T) {
		t.Parallel()
		store := newRunningStore()
		score := 19
		store.session.ActivePlayerID = ""
		store.session.FinalScore = &score

		view, err := Project(runningProjectionInput(store, "alice"))
		if err != nil {
			t.Fatal(err)
		}
		if view.Status != StatusGameOver {
			t.Fatalf("status = %s, want %s", view.Status, StatusGameOver)
		}
		if view.FinalScore == nil || *view.FinalScore != 19 {
			t.Errorf("final score = %v, want 19", view.FinalScore)
		}
		if view.Running != nil {
			t.Error("ended view leaks running state")
		}
		for _, seat := range view.Players {
			if seat.Hand != nil || seat.HandSlots != nil {
				t.Errorf("ended view leaks hand data for seat %s", seat.PlayerID)
			}
		}
	})

	t.Run("unstarted shows only the roster", func(t *testing.T) {
		t.Parallel()
		store := newLobbyStore(3)
		view, err := Project(runningProjectionInput(store, ""))
		if err != nil {
			t.Fatal(err)
		}
		if view.Status != StatusNotStarted {
			t.Fatalf("status = %s, want %s", view.Status, StatusNotStarted)
		}
		if view.Running != nil || view.FinalScore != nil {
			t.Errorf("unstarted view carries extra state: %+v", view)
		}
		if len(view.Players) != 3 {
			t.Errorf("roster = %d seats, want 3", len(view.Players))
		}
	})
}

func TestProjectDiscardPile(t *testing.T) {
	t.Parallel()

	store := newRunningStore()
	input := runningProjectionInput(store, "")

	colourA, valueA, pos := 1, 4, 0
	colourB, valueB := 0, 3
	colourC, valueC := 2, 2
	input.Removals = []Action{
		{Turn: 2, Type: ActionDiscard, Colour: &colourA, Value: &valueA, HandPos: &pos},
		{Turn: 4, Type: ActionPlay, Colour: &colourB, Value: &valueB, HandPos: &pos, WasError: true},
		{Turn: 5, Type: ActionPlay, Colour: &colourC, Value: &valueC, HandPos: &pos},
	}

	view, err := Project(input)
	if err != nil {
		t.Fatal(err)
	}
	// Newest removal first; the successful play stays on the stacks.
	want := []CardType{{Colour: 0, Value: 3}, {Colour: 1, Value: 4}}
	if len(view.Running.Discards) != len(want) {
		t.Fatalf("discards = %v, want %v", view.Running.Discards, want)
	}
	for i := range want {
		if view.Running.Discards[i] != want[i] {
			t.Errorf("discard %d = %+v, want %+v", i, view.Running.Discards[i], want[i])
		}
	}

	// The ordering holds no matter how the log rows arrive.
	input.Removals[0], input.Removals[2] = input.Removals[2], input.Removals[0]
	again, err := Project(input)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if again.Running.Discards[i] != want[i] {
			t.Errorf("shuffled log changed discard %d: %+v, want %+v", i, again.Running.Discards[i], want[i])
		}
	}
}

func TestProjectSeatsSortedByPosition(t *testing.T) {
	t.Parallel()

	store := newRunningStore()
	store.players[0], store.players[3] = store.players[3], store.players[0]

	view, err := Project(runningProjectionInput(store, ""))
	if err != nil {
		t.Fatal(err)
	}
	for i, seat := range view.Players {
		if seat.Position != i {
			t.Errorf("seat %d has position %d, want sorted order", i, seat.Position)
		}
	}
}
