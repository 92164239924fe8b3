// Package rest serves the game session HTTP API.
//
// Every session URL embeds the pepper and a capability token, so a URL is
// the credential: sharing the join URL invites players, sharing a play URL
// delegates a seat. No other authentication exists.
package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
	"github.com/louisbranch/hanabi.space/internal/services/game/app"
	"github.com/louisbranch/hanabi.space/internal/services/game/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 16

// Handler serves the session REST routes.
type Handler struct {
	svc    *app.Service
	tracer trace.Tracer
}

// NewHandler builds the route mux over the game service.
func NewHandler(svc *app.Service) http.Handler {
	h := &Handler{
		svc:    svc,
		tracer: otel.Tracer("game-api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", h.traced("create_session", h.createSession))
	mux.HandleFunc("GET /session/{id}/{pepper}/manage/{token}", h.traced("management_view", h.managementView))
	mux.HandleFunc("POST /session/{id}/{pepper}/manage/{token}", h.traced("start_game", h.startGame))
	mux.HandleFunc("DELETE /session/{id}/{pepper}/manage/{token}", h.traced("delete_session", h.deleteSession))
	mux.HandleFunc("POST /session/{id}/{pepper}/join/{token}", h.traced("join", h.join))
	mux.HandleFunc("GET /session/{id}/{pepper}/play/{player}/{token}", h.traced("player_state", h.playerState))
	mux.HandleFunc("POST /session/{id}/{pepper}/play/{player}/{token}", h.traced("act", h.act))
	mux.HandleFunc("POST /session/{id}/{pepper}/play/{player}/{token}/advance", h.traced("advance", h.advance))
	mux.HandleFunc("GET /session/{id}/{pepper}/play/{player}/{token}/discarded", h.traced("discarded", h.discarded))
	return mux
}

// traced names spans after the operation rather than the URL, which carries
// capability tokens.
func (h *Handler) traced(name string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "game.api/"+name)
		defer span.End()
		fn(w, r.WithContext(ctx))
	}
}

func sessionRef(r *http.Request) app.SessionRef {
	return app.SessionRef{
		SessionID: r.PathValue("id"),
		Pepper:    r.PathValue("pepper"),
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(r, w, err)
		return
	}

	created, err := h.svc.CreateSession(r.Context(), req.settings())
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{
		SessionID:     created.SessionID,
		Pepper:        created.Pepper,
		ManagementURL: managementPath(created.SessionID, created.Pepper, created.ManagementToken),
		JoinURL:       joinPath(created.SessionID, created.Pepper, created.SessionToken),
	})
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(r, w, err)
		return
	}

	ref := sessionRef(r)
	joined, err := h.svc.Join(r.Context(), ref, r.PathValue("token"), req.Name)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinResponse{
		PlayerID: joined.PlayerID,
		Position: joined.Position,
		PlayURL:  playPath(ref.SessionID, ref.Pepper, joined.PlayerID, joined.PlayerToken),
	})
}

func (h *Handler) startGame(w http.ResponseWriter, r *http.Request) {
	ref := sessionRef(r)
	if err := h.svc.StartGame(r.Context(), ref, r.PathValue("token")); err != nil {
		writeError(r, w, err)
		return
	}
	view, err := h.svc.ManagementView(r.Context(), ref, r.PathValue("token"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(view))
}

func (h *Handler) managementView(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.ManagementView(r.Context(), sessionRef(r), r.PathValue("token"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(view))
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), sessionRef(r), r.PathValue("token")); err != nil {
		writeError(r, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) playerState(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.PlayerState(r.Context(), sessionRef(r), r.PathValue("player"), r.PathValue("token"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(view))
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request) {
	var req actRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(r, w, err)
		return
	}

	ref := sessionRef(r)
	playerID := r.PathValue("player")
	token := r.PathValue("token")
	err := h.svc.Act(r.Context(), ref, playerID, token, app.ActRequest{
		Type:           domain.ActionType(req.Type),
		HandPos:        req.HandPos,
		Colour:         req.Colour,
		Value:          req.Value,
		TargetPlayerID: req.TargetPlayerID,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	view, err := h.svc.PlayerState(r.Context(), ref, playerID, token)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(view))
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	ref := sessionRef(r)
	playerID := r.PathValue("player")
	token := r.PathValue("token")
	if err := h.svc.Advance(r.Context(), ref, playerID, token); err != nil {
		writeError(r, w, err)
		return
	}
	view, err := h.svc.PlayerState(r.Context(), ref, playerID, token)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(view))
}

func (h *Handler) discarded(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.PlayerState(r.Context(), sessionRef(r), r.PathValue("player"), r.PathValue("token"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	resp := discardedResponse{Discarded: []cardResponse{}}
	if view.Running != nil {
		resp.Discarded = toCards(view.Running.Discards)
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSON reads the request body into dst. With allowEmpty an absent or
// empty body decodes to the zero value, for endpoints where every field is
// optional.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return perrors.Wrap(perrors.CodeActionMalformed, "read request body", err)
	}
	if len(body) == 0 {
		if allowEmpty {
			return nil
		}
		return perrors.New(perrors.CodeActionMalformed, "request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return perrors.Wrap(perrors.CodeActionMalformed, "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("game api: encode response: %v", err)
	}
}

func writeError(r *http.Request, w http.ResponseWriter, err error) {
	code := perrors.CodeOf(err)
	status := code.HTTPStatus()

	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))

	message := err.Error()
	if status >= http.StatusInternalServerError {
		// The URL embeds capability tokens, so it stays out of the log.
		log.Printf("game api: %s: %v", r.Method, err)
		message = "internal error"
	}
	var domainErr *perrors.Error
	body := errorResponse{Error: message, Code: string(code)}
	if errors.As(err, &domainErr) && len(domainErr.Metadata) > 0 {
		writeJSON(w, status, struct {
			errorResponse
			Metadata map[string]string `json:"metadata"`
		}{body, domainErr.Metadata})
		return
	}
	writeJSON(w, status, body)
}
