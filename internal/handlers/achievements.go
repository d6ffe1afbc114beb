package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pathrpg/engine/internal/achievements"
	"github.com/pathrpg/engine/internal/middleware"
	"github.com/pathrpg/engine/internal/storage"
)

// AchievementReader lists a user's unlocked achievements.
type AchievementReader interface {
	ListAchievements(ctx context.Context, userID string) ([]storage.AchievementUnlock, error)
}

// AchievementsHandler serves the caller's achievement progress.
type AchievementsHandler struct {
	store  AchievementReader
	logger *slog.Logger
}

// NewAchievementsHandler creates an achievements handler.
func NewAchievementsHandler(store AchievementReader, logger *slog.Logger) *AchievementsHandler {
	return &AchievementsHandler{
		store:  store,
		logger: logger,
	}
}

// AchievementView is one catalog achievement with the caller's unlock
// state.
type AchievementView struct {
	achievements.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// AchievementsResponse is the full catalog plus progress stats.
type AchievementsResponse struct {
	Achievements []AchievementView `json:"achievements"`
	Total        int               `json:"total"`
	Unlocked     int               `json:"unlocked"`
}

// Get handles GET /v1/achievements.
func (h *AchievementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	unlocks, err := h.store.ListAchievements(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("Failed to read achievements", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Achievements are unavailable")
		return
	}

	unlockedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.AchievementID] = u.UnlockedAt
	}

	resp := AchievementsResponse{
		Achievements: make([]AchievementView, 0, len(achievements.Catalog)),
		Total:        len(achievements.Catalog),
	}
	for _, a := range achievements.Catalog {
		view := AchievementView{Achievement: a}
		if at, ok := unlockedAt[a.ID]; ok {
			view.Unlocked = true
			at := at
			view.UnlockedAt = &at
			resp.Unlocked++
		}
		resp.Achievements = append(resp.Achievements, view)
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
