package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/pathrpg/engine/internal/middleware"
	"github.com/pathrpg/engine/internal/storage"
	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/scene"
	"github.com/pathrpg/engine/pkg/session"
)

// testSceneFiles is a minimal closed story graph for handler tests.
var testSceneFiles = map[string]string{
	"start": `{
		"title": "Start",
		"text": "The beginning.",
		"choices": {
			"left":  {"text": "Go left", "next_scene": "woods", "hp_change": -5},
			"right": {"text": "Go right", "next_scene": "woods", "add_item": "River Stone"}
		}
	}`,
	"woods": `{
		"title": "Woods",
		"text": "Dark trees.",
		"choices": {
			"fight": {"text": "Fight", "next_scene": "finish", "hp_change": -150},
			"rest":  {"text": "Rest", "next_scene": "start", "hp_change": 10}
		}
	}`,
	"finish": `{
		"title": "The End",
		"text": "It is over.",
		"is_ending": true,
		"ending_type": "victory"
	}`,
}

// setupGameAPI wires the full authenticated game surface the way the
// server does: scene store, engine, handler, auth middleware, router.
func setupGameAPI(t *testing.T) (http.Handler, string, *storage.MockStore) {
	t.Helper()

	dir := t.TempDir()
	for id, content := range testSceneFiles {
		if err := os.WriteFile(filepath.Join(dir, id+".json"), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write scene file: %v", err)
		}
	}

	logger := testLogger()
	scenes := scene.NewStore(dir, logger)
	store := storage.NewMockStore()
	eng := engine.New(scenes, store, store, logger)
	handler := NewGameHandler(eng, scenes, logger)

	tokens := testTokens()
	token, err := tokens.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	r := mux.NewRouter()
	game := r.PathPrefix("/v1").Subrouter()
	game.Use(func(next http.Handler) http.Handler {
		return middleware.Auth(tokens, logger, next)
	})
	game.HandleFunc("/game", handler.Get).Methods(http.MethodGet)
	game.HandleFunc("/game", handler.Start).Methods(http.MethodPost)
	game.HandleFunc("/game/choice", handler.Choose).Methods(http.MethodPost)
	game.HandleFunc("/game/complete", handler.Complete).Methods(http.MethodPost)

	return r, token, store
}

func doGameRequest(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeGame(t *testing.T, rr *httptest.ResponseRecorder) *GameResponse {
	t.Helper()
	var resp GameResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode game response: %v", err)
	}
	return &resp
}

func TestGameHandler_RequiresAuth(t *testing.T) {
	router, _, _ := setupGameAPI(t)

	rr := doGameRequest(t, router, http.MethodGet, "/v1/game", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rr.Code)
	}
}

func TestGameHandler_GetWithoutSession(t *testing.T) {
	router, token, _ := setupGameAPI(t)

	rr := doGameRequest(t, router, http.MethodGet, "/v1/game", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a game, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestGameHandler_Start(t *testing.T) {
	router, token, _ := setupGameAPI(t)

	rr := doGameRequest(t, router, http.MethodPost, "/v1/game", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeGame(t, rr)
	if resp.Scene.ID != "start" {
		t.Errorf("Expected start scene, got %q", resp.Scene.ID)
	}
	if resp.HP != 100 {
		t.Errorf("Expected full health, got %d", resp.HP)
	}
	if resp.ChoicesMade != 0 {
		t.Errorf("Expected no choices made, got %d", resp.ChoicesMade)
	}

	// Choices are rendered in deterministic sorted order.
	if len(resp.Scene.Choices) != 2 ||
		resp.Scene.Choices[0].Key != "left" || resp.Scene.Choices[1].Key != "right" {
		t.Errorf("Unexpected choices: %+v", resp.Scene.Choices)
	}
}

func TestGameHandler_GetResumesStartedGame(t *testing.T) {
	router, token, _ := setupGameAPI(t)

	doGameRequest(t, router, http.MethodPost, "/v1/game", token, "")
	doGameRequest(t, router, http.MethodPost, "/v1/game/choice", token, `{"choice":"left"}`)

	rr := doGameRequest(t, router, http.MethodGet, "/v1/game", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeGame(t, rr)
	if resp.Scene.ID != "woods" || resp.HP != 95 || resp.ChoicesMade != 1 {
		t.Errorf("Expected resumed progress, got scene=%s hp=%d choices=%d",
			resp.Scene.ID, resp.HP, resp.ChoicesMade)
	}
}

func TestGameHandler_Choose(t *testing.T) {
	router, token, _ := setupGameAPI(t)
	doGameRequest(t, router, http.MethodPost, "/v1/game", token, "")

	rr := doGameRequest(t, router, http.MethodPost, "/v1/game/choice", token, `{"choice":"right"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeGame(t, rr)
	if resp.Scene.ID != "woods" {
		t.Errorf("Expected woods scene, got %q", resp.Scene.ID)
	}
	if resp.LastChoice == nil {
		t.Fatal("Expected last_choice in response")
	}
	if resp.LastChoice.ItemGained != "River Stone" || resp.LastChoice.NextScene != "woods" {
		t.Errorf("Unexpected last choice: %+v", resp.LastChoice)
	}
	if len(resp.Inventory) != 1 || resp.Inventory[0] != "River Stone" {
		t.Errorf("Expected River Stone in inventory, got %v", resp.Inventory)
	}
}

func TestGameHandler_ChooseErrors(t *testing.T) {
	router, token, _ := setupGameAPI(t)

	// No session yet.
	rr := doGameRequest(t, router, http.MethodPost, "/v1/game/choice", token, `{"choice":"left"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without session, got %d", rr.Code)
	}

	doGameRequest(t, router, http.MethodPost, "/v1/game", token, "")

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"unknown choice key", `{"choice":"teleport"}`, http.StatusBadRequest},
		{"empty choice", `{"choice":""}`, http.StatusBadRequest},
		{"invalid JSON", `{broken`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doGameRequest(t, router, http.MethodPost, "/v1/game/choice", token, tt.body)
			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
		})
	}

	// A rejected choice leaves the game where it was.
	state := doGameRequest(t, router, http.MethodGet, "/v1/game", token, "")
	resp := decodeGame(t, state)
	if resp.Scene.ID != "start" || resp.HP != 100 {
		t.Errorf("Session mutated by rejected choice: scene=%s hp=%d", resp.Scene.ID, resp.HP)
	}
}

func TestGameHandler_CompleteBeforeEnding(t *testing.T) {
	router, token, _ := setupGameAPI(t)
	doGameRequest(t, router, http.MethodPost, "/v1/game", token, "")

	rr := doGameRequest(t, router, http.MethodPost, "/v1/game/complete", token, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 before reaching an ending, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestGameHandler_CompleteWithoutSession(t *testing.T) {
	router, token, _ := setupGameAPI(t)

	rr := doGameRequest(t, router, http.MethodPost, "/v1/game/complete", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without session, got %d", rr.Code)
	}
}

func TestGameHandler_FullRun(t *testing.T) {
	router, token, store := setupGameAPI(t)

	doGameRequest(t, router, http.MethodPost, "/v1/game", token, "")
	doGameRequest(t, router, http.MethodPost, "/v1/game/choice", token, `{"choice":"left"}`)

	// The lethal choice clamps HP to zero but the run continues to the
	// ending scene.
	rr := doGameRequest(t, router, http.MethodPost, "/v1/game/choice", token, `{"choice":"fight"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeGame(t, rr)
	if !resp.Scene.IsEnding || resp.Scene.EndingType != "victory" {
		t.Errorf("Expected ending scene, got %+v", resp.Scene)
	}
	if resp.HP != 0 {
		t.Errorf("Expected clamped HP 0, got %d", resp.HP)
	}

	// Completing records the run and closes the session.
	rr = doGameRequest(t, router, http.MethodPost, "/v1/game/complete", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var done CompleteResponse
	if err := json.NewDecoder(rr.Body).Decode(&done); err != nil {
		t.Fatalf("Failed to decode completion: %v", err)
	}
	if done.Entry.Username != "alice" {
		t.Errorf("Expected entry for 'alice', got %q", done.Entry.Username)
	}
	if done.Entry.EndingReached != "victory" {
		t.Errorf("Expected server-derived ending 'victory', got %q", done.Entry.EndingReached)
	}
	if done.Entry.FinalHP != 0 || done.Entry.ChoicesCount != 2 {
		t.Errorf("Unexpected entry stats: %+v", done.Entry)
	}

	entries, err := store.TopEntries(context.Background(), 10)
	if err != nil || len(entries) != 1 {
		t.Errorf("Expected exactly one leaderboard row, got %d, %v", len(entries), err)
	}

	rr = doGameRequest(t, router, http.MethodGet, "/v1/game", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after completion, got %d", rr.Code)
	}

	// Completing twice fails: the session is gone.
	rr = doGameRequest(t, router, http.MethodPost, "/v1/game/complete", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for double completion, got %d", rr.Code)
	}
}

// vanishingEngine simulates a concurrent complete or restart removing
// the session between an applied choice and the follow-up read.
type vanishingEngine struct {
	GameEngine
}

func (v *vanishingEngine) Current(ctx context.Context, userID string) (*session.Session, error) {
	return nil, nil
}

func TestGameHandler_ChooseSessionRemovedMidRequest(t *testing.T) {
	dir := t.TempDir()
	for id, content := range testSceneFiles {
		if err := os.WriteFile(filepath.Join(dir, id+".json"), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write scene file: %v", err)
		}
	}

	logger := testLogger()
	scenes := scene.NewStore(dir, logger)
	store := storage.NewMockStore()
	eng := engine.New(scenes, store, store, logger)
	handler := NewGameHandler(&vanishingEngine{GameEngine: eng}, scenes, logger)

	tokens := testTokens()
	token, err := tokens.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	r := mux.NewRouter()
	game := r.PathPrefix("/v1").Subrouter()
	game.Use(func(next http.Handler) http.Handler {
		return middleware.Auth(tokens, logger, next)
	})
	game.HandleFunc("/game", handler.Start).Methods(http.MethodPost)
	game.HandleFunc("/game/choice", handler.Choose).Methods(http.MethodPost)

	rr := doGameRequest(t, r, http.MethodPost, "/v1/game", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Start failed: %d", rr.Code)
	}

	rr = doGameRequest(t, r, http.MethodPost, "/v1/game/choice", token, `{"choice":"left"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when the session vanished mid-request, got %d", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if resp.Error != "No active game. Start a new game to play." {
		t.Errorf("Unexpected error message: %q", resp.Error)
	}
}
