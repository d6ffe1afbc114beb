package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathrpg/engine/internal/achievements"
	"github.com/pathrpg/engine/internal/middleware"
	"github.com/pathrpg/engine/internal/storage"
)

func achievementsRequest(t *testing.T, handler *AchievementsHandler) *httptest.ResponseRecorder {
	t.Helper()

	tokens := testTokens()
	token, err := tokens.Issue(42, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/achievements", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.Auth(tokens, testLogger(), http.HandlerFunc(handler.Get)).ServeHTTP(rr, req)
	return rr
}

func TestAchievementsHandler_Get(t *testing.T) {
	store := storage.NewMockStore()
	handler := NewAchievementsHandler(store, testLogger())

	rr := achievementsRequest(t, handler)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp AchievementsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	// The full catalog is always returned, locked or not.
	assert.Len(t, resp.Achievements, len(achievements.Catalog))
	assert.Equal(t, len(achievements.Catalog), resp.Total)
	assert.Equal(t, 0, resp.Unlocked)
	for _, a := range resp.Achievements {
		assert.False(t, a.Unlocked)
		assert.Nil(t, a.UnlockedAt)
	}
}

func TestAchievementsHandler_GetWithUnlocks(t *testing.T) {
	store := storage.NewMockStore()
	ctx := context.Background()
	require.NoError(t, store.UnlockAchievement(ctx, "42", "first_steps"))
	require.NoError(t, store.UnlockAchievement(ctx, "42", "explorer"))

	handler := NewAchievementsHandler(store, testLogger())
	rr := achievementsRequest(t, handler)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp AchievementsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	assert.Equal(t, 2, resp.Unlocked)

	byID := make(map[string]AchievementView)
	for _, a := range resp.Achievements {
		byID[a.ID] = a
	}
	require.Contains(t, byID, "first_steps")
	assert.True(t, byID["first_steps"].Unlocked)
	require.NotNil(t, byID["first_steps"].UnlockedAt)
	assert.False(t, byID["survivor"].Unlocked)
}
