package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pathrpg/engine/internal/middleware"
	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/leaderboard"
	"github.com/pathrpg/engine/pkg/scene"
	"github.com/pathrpg/engine/pkg/session"
)

// GameEngine is the progression surface the game handler drives.
type GameEngine interface {
	Start(ctx context.Context, userID string) (*session.Session, error)
	Resume(ctx context.Context, userID string) (*session.Session, error)
	Current(ctx context.Context, userID string) (*session.Session, error)
	Advance(ctx context.Context, userID, choiceKey string) (*engine.AdvanceResult, error)
	IsTerminal(ctx context.Context, sess *session.Session) (bool, error)
	Terminate(ctx context.Context, userID, username, endingKind string) (*leaderboard.Entry, error)
}

// GameHandler serves the play loop: resume, start, choose, complete.
type GameHandler struct {
	engine GameEngine
	scenes *scene.Store
	logger *slog.Logger
}

// NewGameHandler creates a game handler.
func NewGameHandler(eng GameEngine, scenes *scene.Store, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		engine: eng,
		scenes: scenes,
		logger: logger,
	}
}

// ChoiceView is one selectable choice in a rendered scene.
type ChoiceView struct {
	Key      string `json:"key"`
	Text     string `json:"text"`
	HPChange int    `json:"hp_change,omitempty"`
	AddItem  string `json:"add_item,omitempty"`
}

// SceneView is a scene rendered for the client, with choices in a
// deterministic order.
type SceneView struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	ImageAlt   string       `json:"image_alt,omitempty"`
	IsEnding   bool         `json:"is_ending,omitempty"`
	EndingType string       `json:"ending_type,omitempty"`
	Choices    []ChoiceView `json:"choices"`
}

// GameResponse is the full play-state payload: the current scene plus the
// session's visible state.
type GameResponse struct {
	Scene       SceneView             `json:"scene"`
	HP          int                   `json:"hp"`
	Inventory   []string              `json:"inventory"`
	ChoicesMade int                   `json:"choices_made"`
	LastChoice  *engine.AdvanceResult `json:"last_choice,omitempty"`
}

func renderScene(sc *scene.Scene) SceneView {
	view := SceneView{
		ID:         sc.ID,
		Title:      sc.Title,
		Text:       sc.Text,
		ImageAlt:   sc.ImageAlt,
		IsEnding:   sc.IsEnding,
		EndingType: sc.EndingType,
		Choices:    make([]ChoiceView, 0, len(sc.Choices)),
	}
	for _, key := range sc.ChoiceKeys() {
		c := sc.Choices[key]
		view.Choices = append(view.Choices, ChoiceView{
			Key:      key,
			Text:     c.Text,
			HPChange: c.HPChange,
			AddItem:  c.AddItem,
		})
	}
	return view
}

func (h *GameHandler) respondWithSession(w http.ResponseWriter, r *http.Request, sess *session.Session, last *engine.AdvanceResult) {
	sc, err := h.scenes.Load(r.Context(), sess.CurrentScene)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, GameResponse{
		Scene:       renderScene(sc),
		HP:          sess.HP,
		Inventory:   sess.Inventory,
		ChoicesMade: len(sess.ChoiceLog),
		LastChoice:  last,
	})
}

// Get handles GET /v1/game: resume the caller's game, or 404 if there is
// none (the client offers to start a new game).
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	sess, err := h.engine.Resume(r.Context(), identity.UserID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if sess == nil {
		writeError(w, h.logger, http.StatusNotFound, "No active game. Start a new game to play.")
		return
	}

	h.respondWithSession(w, r, sess, nil)
}

// Start handles POST /v1/game: begin a fresh run, discarding any
// existing one.
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	sess, err := h.engine.Start(r.Context(), identity.UserID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.respondWithSession(w, r, sess, nil)
}

type choiceRequest struct {
	Choice string `json:"choice"`
}

// Choose handles POST /v1/game/choice: apply a choice and render the
// next scene. When the next scene is an ending the response carries
// is_ending; the client shows it and then calls Complete.
func (h *GameHandler) Choose(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Choice == "" {
		writeError(w, h.logger, http.StatusBadRequest, "A choice is required")
		return
	}

	result, err := h.engine.Advance(r.Context(), identity.UserID, req.Choice)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	sess, err := h.engine.Current(r.Context(), identity.UserID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if sess == nil {
		// A concurrent complete or restart removed the session after the
		// advance was applied.
		writeError(w, h.logger, http.StatusNotFound, "No active game. Start a new game to play.")
		return
	}

	h.respondWithSession(w, r, sess, result)
}

// CompleteResponse reports the recorded run.
type CompleteResponse struct {
	Entry leaderboard.Entry `json:"entry"`
}

// Complete handles POST /v1/game/complete: close out a run that has
// reached an ending scene. The ending kind comes from the scene data,
// never from the client.
func (h *GameHandler) Complete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	sess, err := h.engine.Current(r.Context(), identity.UserID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if sess == nil {
		writeError(w, h.logger, http.StatusNotFound, "No active game. Start a new game to play.")
		return
	}

	sc, err := h.scenes.Load(r.Context(), sess.CurrentScene)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if !sc.IsEnding {
		writeError(w, h.logger, http.StatusConflict, "The game is not over yet")
		return
	}

	entry, err := h.engine.Terminate(r.Context(), identity.UserID, identity.Username, sc.EndingType)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, CompleteResponse{Entry: *entry})
}

// writeEngineError maps the engine's error taxonomy onto distinct
// user-visible responses. Infrastructure failures get a generic message
// and never leak internals.
func (h *GameHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNoActiveSession):
		writeError(w, h.logger, http.StatusNotFound, "No active game. Start a new game to play.")
	case errors.Is(err, engine.ErrInvalidChoice):
		writeError(w, h.logger, http.StatusBadRequest, "That choice is not available here")
	case errors.Is(err, scene.ErrNotFound):
		h.logger.Error("Scene data integrity failure", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Story data is unavailable")
	default:
		h.logger.Error("Game operation failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Something went wrong")
	}
}
