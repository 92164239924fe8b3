package app

import (
	"context"
	"errors"

	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
)

// PlayerState returns the session projected for one seated player: every
// hand but their own, plus the shared table state.
func (s *Service) PlayerState(ctx context.Context, ref SessionRef, playerID, playerToken string) (domain.View, error) {
	if err := ref.validate(); err != nil {
		return domain.View{}, err
	}
	if err := s.keyring.VerifyPlayer(playerToken, ref.Pepper, ref.SessionID, playerID); err != nil {
		return domain.View{}, err
	}
	if err := s.reconcile(ctx, ref); err != nil {
		return domain.View{}, err
	}
	return s.view(ctx, ref.SessionID, playerID)
}

// ManagementView returns the observer projection: shared table state with
// every hand hidden.
func (s *Service) ManagementView(ctx context.Context, ref SessionRef, managementToken string) (domain.View, error) {
	if err := ref.validate(); err != nil {
		return domain.View{}, err
	}
	if err := s.keyring.VerifyManagement(managementToken, ref.Pepper, ref.SessionID); err != nil {
		return domain.View{}, err
	}
	if err := s.reconcile(ctx, ref); err != nil {
		return domain.View{}, err
	}
	return s.view(ctx, ref.SessionID, "")
}

// view reads one committed snapshot and projects it for the viewer. Reads
// run outside the session lock; a concurrent mutation simply lands in the
// next poll.
func (s *Service) view(ctx context.Context, sessionID, viewerPlayerID string) (domain.View, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.View{}, gone(err)
	}
	players, err := s.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return domain.View{}, err
	}

	input := domain.ProjectionInput{
		Session:        session,
		Players:        players,
		ViewerPlayerID: viewerPlayerID,
	}

	if session.Status() == domain.StatusPlayerThinking || session.Status() == domain.StatusTurnPendingEnd {
		if input.HeldCards, err = s.store.ListHeldCards(ctx, sessionID); err != nil {
			return domain.View{}, err
		}
		if input.Fireworks, err = s.store.ListFireworks(ctx, sessionID); err != nil {
			return domain.View{}, err
		}
		if input.Reserves, err = s.store.ListReserves(ctx, sessionID); err != nil {
			return domain.View{}, err
		}
		if input.Removals, err = s.store.ListRemovals(ctx, sessionID); err != nil {
			return domain.View{}, err
		}
	}
	if session.Status() == domain.StatusTurnPendingEnd {
		action, err := s.store.GetAction(ctx, sessionID, session.Turn)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.View{}, err
		}
		if err == nil {
			input.LastAction = &action
		}
	}

	return domain.Project(input)
}
