package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pathrpg/engine/pkg/leaderboard"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// LeaderboardReader is the query surface the leaderboard handler needs.
type LeaderboardReader interface {
	TopEntries(ctx context.Context, n int) ([]leaderboard.Entry, error)
	Stats(ctx context.Context) (*leaderboard.Stats, error)
}

// LeaderboardHandler serves the public leaderboard.
type LeaderboardHandler struct {
	store  LeaderboardReader
	logger *slog.Logger
}

// NewLeaderboardHandler creates a leaderboard handler.
func NewLeaderboardHandler(store LeaderboardReader, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		store:  store,
		logger: logger,
	}
}

// LeaderboardResponse carries ranked entries and table stats.
type LeaderboardResponse struct {
	Entries []leaderboard.Entry `json:"entries"`
	Stats   leaderboard.Stats   `json:"stats"`
}

// Get handles GET /v1/leaderboard.
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, h.logger, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxLeaderboardLimit {
			n = maxLeaderboardLimit
		}
		limit = n
	}

	entries, err := h.store.TopEntries(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read leaderboard", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Leaderboard is unavailable")
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to read leaderboard stats", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Leaderboard is unavailable")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, LeaderboardResponse{
		Entries: entries,
		Stats:   *stats,
	})
}
