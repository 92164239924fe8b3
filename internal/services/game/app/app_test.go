package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
	"github.com/louisbranch/hanabi.space/internal/services/game/storage/sqlite"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewService(store, []byte("app-test-secret"))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.clock = clock.Now
	return svc, clock
}

func wantCode(t *testing.T, err error, code perrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := perrors.CodeOf(err); got != code {
		t.Fatalf("error code = %s, want %s (err: %v)", got, code, err)
	}
}

// newRunningGame creates a session, joins the given players, and starts the
// game. Players are returned in seating order; the first seat acts first.
func newRunningGame(t *testing.T, svc *Service, names ...string) (SessionRef, CreatedSession, []JoinedPlayer) {
	t.Helper()
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, domain.Settings{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	ref := SessionRef{SessionID: created.SessionID, Pepper: created.Pepper}

	players := make([]JoinedPlayer, 0, len(names))
	for _, name := range names {
		joined, err := svc.Join(ctx, ref, created.SessionToken, name)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		players = append(players, joined)
	}

	if err := svc.StartGame(ctx, ref, created.ManagementToken); err != nil {
		t.Fatalf("start game: %v", err)
	}
	return ref, created, players
}

func TestCreateSessionMintsCredentials(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	created, err := svc.CreateSession(context.Background(), domain.Settings{})
	if err != nil {
		t.Fatal(err)
	}

	if created.SessionID == "" || created.Pepper == "" {
		t.Fatalf("created = %+v, want id and pepper", created)
	}
	if created.ManagementToken == created.SessionToken {
		t.Error("management and session tokens collide")
	}

	session, err := svc.store.GetSession(context.Background(), created.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if session.Settings != domain.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", session.Settings)
	}
	if session.Status() != domain.StatusNotStarted {
		t.Errorf("status = %s, want %s", session.Status(), domain.StatusNotStarted)
	}
}

func TestJoinValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateSession(ctx, domain.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	ref := SessionRef{SessionID: created.SessionID, Pepper: created.Pepper}

	_, err = svc.Join(ctx, ref, "bogus-token-0000000", "alice")
	wantCode(t, err, perrors.CodeTokenMismatch)

	_, err = svc.Join(ctx, ref, created.SessionToken, "   ")
	wantCode(t, err, perrors.CodePlayerNameRequired)

	// Oversized names are truncated on join, not rejected.
	joined, err := svc.Join(ctx, ref, created.SessionToken, strings.Repeat("x", MaxNameLength+7))
	if err != nil {
		t.Fatalf("join with oversized name: %v", err)
	}
	view, err := svc.ManagementView(ctx, ref, created.ManagementToken)
	if err != nil {
		t.Fatal(err)
	}
	for _, seat := range view.Players {
		if seat.PlayerID == joined.PlayerID && len(seat.Name) != MaxNameLength {
			t.Errorf("oversized name stored with length %d, want %d", len(seat.Name), MaxNameLength)
		}
	}

	_, err = svc.Join(ctx, SessionRef{SessionID: "missing", Pepper: created.Pepper},
		svc.keyring.Session(created.Pepper, "missing"), "alice")
	wantCode(t, err, perrors.CodeSessionGone)
}

func TestJoinRosterLimits(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateSession(ctx, domain.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	ref := SessionRef{SessionID: created.SessionID, Pepper: created.Pepper}

	for i := 0; i < domain.MaxPlayers; i++ {
		joined, err := svc.Join(ctx, ref, created.SessionToken, "player")
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		if joined.Position != i {
			t.Errorf("seat %d assigned position %d", i, joined.Position)
		}
	}

	_, err = svc.Join(ctx, ref, created.SessionToken, "late")
	wantCode(t, err, perrors.CodeSessionRosterFull)
}

func TestJoinAfterStartRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ref, created, _ := newRunningGame(t, svc, "alice", "bob")

	_, err := svc.Join(context.Background(), ref, created.SessionToken, "late")
	wantCode(t, err, perrors.CodeSessionNotJoinable)
}

func TestStartGameRequiresRosterAndToken(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateSession(ctx, domain.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	ref := SessionRef{SessionID: created.SessionID, Pepper: created.Pepper}

	err = svc.StartGame(ctx, ref, created.SessionToken)
	wantCode(t, err, perrors.CodeTokenMismatch)

	if _, err := svc.Join(ctx, ref, created.SessionToken, "alone"); err != nil {
		t.Fatal(err)
	}
	err = svc.StartGame(ctx, ref, created.ManagementToken)
	wantCode(t, err, perrors.CodeGameNotEnoughPlayers)
}

func TestPlayerStateHidesOwnHand(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ref, created, players := newRunningGame(t, svc, "alice", "bob", "carol")
	ctx := context.Background()

	view, err := svc.PlayerState(ctx, ref, players[0].PlayerID, players[0].PlayerToken)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.StatusPlayerThinking {
		t.Fatalf("status = %s, want %s", view.Status, domain.StatusPlayerThinking)
	}
	if view.Running == nil || view.Running.ActivePlayerID != players[0].PlayerID {
		t.Fatalf("running = %+v, want seat 0 active", view.Running)
	}
	for _, seat := range view.Players {
		if seat.PlayerID == players[0].PlayerID {
			if seat.Hand != nil {
				t.Error("viewer sees their own cards")
			}
			continue
		}
		if len(seat.Hand) == 0 {
			t.Errorf("seat %s hand hidden from a fellow player", seat.Name)
		}
	}

	observer, err := svc.ManagementView(ctx, ref, created.ManagementToken)
	if err != nil {
		t.Fatal(err)
	}
	for _, seat := range observer.Players {
		if seat.Hand != nil || seat.HandSlots != nil {
			t.Errorf("observer sees hand data for seat %s", seat.Name)
		}
	}

	_, err = svc.PlayerState(ctx, ref, players[0].PlayerID, players[1].PlayerToken)
	wantCode(t, err, perrors.CodeTokenMismatch)
}

func TestActAndAdvanceFlow(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	ref, _, players := newRunningGame(t, svc, "alice", "bob")
	ctx := context.Background()
	active, next := players[0], players[1]

	pos := 0
	err := svc.Act(ctx, ref, active.PlayerID, active.PlayerToken, ActRequest{
		Type:    domain.ActionPlay,
		HandPos: &pos,
	})
	if err != nil {
		t.Fatalf("act: %v", err)
	}

	view, err := svc.PlayerState(ctx, ref, next.PlayerID, next.PlayerToken)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.StatusTurnPendingEnd {
		t.Fatalf("status = %s, want %s", view.Status, domain.StatusTurnPendingEnd)
	}
	if view.Running.LastAction == nil || view.Running.LastAction.Type != domain.ActionPlay {
		t.Errorf("last action = %+v, want the pending play", view.Running.LastAction)
	}

	clock.Advance(time.Second)
	err = svc.Advance(ctx, ref, active.PlayerID, active.PlayerToken)
	wantCode(t, err, perrors.CodeAdvanceTooEarly)
	var domainErr *perrors.Error
	if !errors.As(err, &domainErr) || domainErr.Metadata["end_turn_at"] == "" {
		t.Errorf("too-early error carries no deadline: %v", err)
	}

	clock.Advance(4 * time.Second)
	if err := svc.Advance(ctx, ref, active.PlayerID, active.PlayerToken); err != nil {
		t.Fatalf("advance: %v", err)
	}

	view, err = svc.PlayerState(ctx, ref, active.PlayerID, active.PlayerToken)
	if err != nil {
		t.Fatal(err)
	}
	if view.Running.ActivePlayerID != next.PlayerID {
		t.Errorf("active player = %q, want the next seat", view.Running.ActivePlayerID)
	}
}

func TestAdvanceByNonActivePlayer(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ref, _, players := newRunningGame(t, svc, "alice", "bob")
	ctx := context.Background()

	pos := 0
	if err := svc.Act(ctx, ref, players[0].PlayerID, players[0].PlayerToken, ActRequest{
		Type:    domain.ActionPlay,
		HandPos: &pos,
	}); err != nil {
		t.Fatal(err)
	}

	err := svc.Advance(ctx, ref, players[1].PlayerID, players[1].PlayerToken)
	wantCode(t, err, perrors.CodeActionOutOfTurn)
}

func TestExpiredDeadlineSettlesOnNextRead(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	ref, _, players := newRunningGame(t, svc, "alice", "bob")
	ctx := context.Background()

	pos := 0
	if err := svc.Act(ctx, ref, players[0].PlayerID, players[0].PlayerToken, ActRequest{
		Type:    domain.ActionDiscard,
		HandPos: &pos,
	}); err != nil {
		t.Fatal(err)
	}

	// No one advances; the deadline lapses unattended.
	clock.Advance(11 * time.Second)

	view, err := svc.PlayerState(ctx, ref, players[1].PlayerID, players[1].PlayerToken)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.StatusPlayerThinking {
		t.Fatalf("status = %s, want the lapsed turn settled", view.Status)
	}
	if view.Running.ActivePlayerID != players[1].PlayerID {
		t.Errorf("active player = %q, want the next seat", view.Running.ActivePlayerID)
	}
}

func TestHintRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ref, _, players := newRunningGame(t, svc, "alice", "bob")
	ctx := context.Background()

	view, err := svc.PlayerState(ctx, ref, players[0].PlayerID, players[0].PlayerToken)
	if err != nil {
		t.Fatal(err)
	}
	var targetHand []*domain.CardType
	for _, seat := range view.Players {
		if seat.PlayerID == players[1].PlayerID {
			targetHand = seat.Hand
		}
	}
	if len(targetHand) == 0 || targetHand[0] == nil {
		t.Fatal("target hand not visible to the hinting player")
	}

	colour := targetHand[0].Colour
	if err := svc.Act(ctx, ref, players[0].PlayerID, players[0].PlayerToken, ActRequest{
		Type:           domain.ActionHint,
		Colour:         &colour,
		TargetPlayerID: players[1].PlayerID,
	}); err != nil {
		t.Fatalf("hint: %v", err)
	}

	view, err = svc.PlayerState(ctx, ref, players[1].PlayerID, players[1].PlayerToken)
	if err != nil {
		t.Fatal(err)
	}
	last := view.Running.LastAction
	if last == nil || last.Type != domain.ActionHint {
		t.Fatalf("last action = %+v, want the hint", last)
	}
	if last.HintPositions == "" {
		t.Error("hint matched no positions for a colour taken from the hand")
	}
	if view.Running.TokensRemaining != domain.DefaultSettings().MaxTokens-1 {
		t.Errorf("tokens = %d, want one spent", view.Running.TokensRemaining)
	}
}

func TestDeleteLifecycle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ref, created, _ := newRunningGame(t, svc, "alice", "bob")
	ctx := context.Background()

	// Deleting a running game records a loss instead of removing it.
	if err := svc.Delete(ctx, ref, created.ManagementToken); err != nil {
		t.Fatalf("delete running: %v", err)
	}
	view, err := svc.ManagementView(ctx, ref, created.ManagementToken)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.StatusGameOver {
		t.Fatalf("status = %s, want %s", view.Status, domain.StatusGameOver)
	}
	if view.FinalScore == nil || *view.FinalScore != 0 {
		t.Errorf("final score = %v, want 0", view.FinalScore)
	}

	// A second delete removes the finished session for good.
	if err := svc.Delete(ctx, ref, created.ManagementToken); err != nil {
		t.Fatalf("delete finished: %v", err)
	}
	_, err = svc.ManagementView(ctx, ref, created.ManagementToken)
	wantCode(t, err, perrors.CodeSessionGone)
}

func TestDeleteSettlesLapsedDeadlineFirst(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	ref, created, players := newRunningGame(t, svc, "alice", "bob")
	ctx := context.Background()

	pos := 0
	if err := svc.Act(ctx, ref, players[0].PlayerID, players[0].PlayerToken, ActRequest{
		Type:    domain.ActionDiscard,
		HandPos: &pos,
	}); err != nil {
		t.Fatal(err)
	}

	// Burn the remaining errors directly so the lapsed deadline finalizes
	// the game instead of rotating the turn.
	err := svc.store.WithSession(ctx, ref.SessionID, func(tx domain.Tx) error {
		session := tx.Session()
		session.ErrorsRemaining = 0
		return tx.UpdateSession(ctx, session)
	})
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(11 * time.Second)

	// The deadline settles before the delete, so the game is already over
	// and the session is removed rather than kept as a fresh abandonment.
	if err := svc.Delete(ctx, ref, created.ManagementToken); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = svc.ManagementView(ctx, ref, created.ManagementToken)
	wantCode(t, err, perrors.CodeSessionGone)
}

func TestActMalformedRequests(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ref, _, players := newRunningGame(t, svc, "alice", "bob")
	ctx := context.Background()

	err := svc.Act(ctx, ref, players[0].PlayerID, players[0].PlayerToken, ActRequest{
		Type: domain.ActionPlay,
	})
	wantCode(t, err, perrors.CodeActionMalformed)

	err = svc.Act(ctx, ref, players[0].PlayerID, players[0].PlayerToken, ActRequest{
		Type: domain.ActionType("SHUFFLE"),
	})
	wantCode(t, err, perrors.CodeActionMalformed)
}
