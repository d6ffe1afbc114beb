package achievements

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/pathrpg/engine/internal/storage"
	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/leaderboard"
	"github.com/pathrpg/engine/pkg/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func testChecker(t *testing.T) (*Checker, *storage.MockStore) {
	t.Helper()
	store := storage.NewMockStore()
	return NewChecker(store, testLogger()), store
}

func assertUnlocked(t *testing.T, store *storage.MockStore, userID, achievementID string, want bool) {
	t.Helper()
	got, err := store.IsAchievementUnlocked(context.Background(), userID, achievementID)
	if err != nil {
		t.Fatalf("Failed to query achievement %s: %v", achievementID, err)
	}
	if got != want {
		t.Errorf("Achievement %s: unlocked=%v, expected %v", achievementID, got, want)
	}
}

func TestChecker_FirstSteps(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()

	sess := session.New("1", time.Now())
	checker.Notify(ctx, "1", sess, engine.ActionStartGame, nil)

	assertUnlocked(t, store, "1", "first_steps", true)
	assertUnlocked(t, store, "1", "explorer", false)
}

func TestChecker_Explorer(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()

	sess := session.New("1", time.Now())
	for i := 0; i < 9; i++ {
		sess.RecordChoice("start", "left", "Go")
	}
	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade, map[string]string{"scene": "start", "choice": "left"})
	assertUnlocked(t, store, "1", "explorer", false)

	sess.RecordChoice("start", "left", "Go")
	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade, map[string]string{"scene": "start", "choice": "left"})
	assertUnlocked(t, store, "1", "explorer", true)
}

func TestChecker_Survivor(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()

	sess := session.New("1", time.Now())

	// Victory at full health unlocks; anything else does not.
	hurt := sess.Clone()
	hurt.HP = 99
	checker.Notify(ctx, "1", hurt, engine.ActionGameComplete,
		map[string]string{"ending": "victory", "username": "alice"})
	assertUnlocked(t, store, "1", "survivor", false)

	checker.Notify(ctx, "1", sess, engine.ActionGameComplete,
		map[string]string{"ending": "defeat", "username": "alice"})
	assertUnlocked(t, store, "1", "survivor", false)

	checker.Notify(ctx, "1", sess, engine.ActionGameComplete,
		map[string]string{"ending": "victory", "username": "alice"})
	assertUnlocked(t, store, "1", "survivor", true)
}

func TestChecker_Collector(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()

	sess := session.New("1", time.Now())
	for _, item := range []string{"A", "B", "C", "D"} {
		sess.AddItem(item)
	}
	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade, nil)
	assertUnlocked(t, store, "1", "collector", false)

	sess.AddItem("E")
	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade, nil)
	assertUnlocked(t, store, "1", "collector", true)
}

func TestChecker_SpeedRunner(t *testing.T) {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	detail := map[string]string{"ending": "victory", "username": "alice"}

	tests := []struct {
		name     string
		elapsed  time.Duration
		unlocked bool
	}{
		{"under five minutes", 4 * time.Minute, true},
		{"exactly five minutes", 5 * time.Minute, true},
		{"over five minutes", 5*time.Minute + time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, store := testChecker(t)
			checker.now = func() time.Time { return started.Add(tt.elapsed) }

			sess := session.New("1", started)
			checker.Notify(context.Background(), "1", sess, engine.ActionGameComplete, detail)
			assertUnlocked(t, store, "1", "speed_runner", tt.unlocked)
		})
	}
}

func TestChecker_SceneSpecific(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()

	sess := session.New("1", time.Now())

	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade,
		map[string]string{"scene": "sage_wisdom", "choice": "decline"})
	assertUnlocked(t, store, "1", "wise_one", false)

	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade,
		map[string]string{"scene": "sage_wisdom", "choice": "wisdom"})
	assertUnlocked(t, store, "1", "wise_one", true)

	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade,
		map[string]string{"scene": "dark_woods", "choice": "help"})
	assertUnlocked(t, store, "1", "nature_friend", true)
}

func TestChecker_CrystalMaster(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()

	sess := session.New("1", time.Now())
	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade, nil)
	assertUnlocked(t, store, "1", "crystal_master", false)

	sess.AddItem("Crystal Water")
	checker.Notify(ctx, "1", sess, engine.ActionChoiceMade, nil)
	assertUnlocked(t, store, "1", "crystal_master", true)
}

func TestChecker_Completionist(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()
	now := time.Now()

	sess := session.New("1", now)
	detail := map[string]string{"ending": "death", "username": "alice"}

	for _, ending := range []string{"victory", "defeat"} {
		if err := store.AppendEntry(ctx, leaderboard.Entry{
			Username: "alice", EndingReached: ending, CompletedAt: now,
		}); err != nil {
			t.Fatalf("Failed to seed entry: %v", err)
		}
	}

	checker.Notify(ctx, "1", sess, engine.ActionGameComplete, detail)
	assertUnlocked(t, store, "1", "completionist", false)

	if err := store.AppendEntry(ctx, leaderboard.Entry{
		Username: "alice", EndingReached: "death", CompletedAt: now,
	}); err != nil {
		t.Fatalf("Failed to seed entry: %v", err)
	}

	checker.Notify(ctx, "1", sess, engine.ActionGameComplete, detail)
	assertUnlocked(t, store, "1", "completionist", true)
}

func TestChecker_Persistent(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()
	now := time.Now()

	sess := session.New("1", now)
	detail := map[string]string{"ending": "defeat", "username": "alice"}

	for i := 0; i < 9; i++ {
		if err := store.AppendEntry(ctx, leaderboard.Entry{
			Username: "alice", EndingReached: "defeat", CompletedAt: now,
		}); err != nil {
			t.Fatalf("Failed to seed entry: %v", err)
		}
	}

	checker.Notify(ctx, "1", sess, engine.ActionGameComplete, detail)
	assertUnlocked(t, store, "1", "persistent", false)

	if err := store.AppendEntry(ctx, leaderboard.Entry{
		Username: "alice", EndingReached: "defeat", CompletedAt: now,
	}); err != nil {
		t.Fatalf("Failed to seed entry: %v", err)
	}

	checker.Notify(ctx, "1", sess, engine.ActionGameComplete, detail)
	assertUnlocked(t, store, "1", "persistent", true)
}

func TestChecker_UnlockIsIdempotent(t *testing.T) {
	checker, store := testChecker(t)
	ctx := context.Background()

	sess := session.New("1", time.Now())
	checker.Notify(ctx, "1", sess, engine.ActionStartGame, nil)
	checker.Notify(ctx, "1", sess, engine.ActionStartGame, nil)

	unlocks, err := store.ListAchievements(ctx, "1")
	if err != nil {
		t.Fatalf("Failed to list achievements: %v", err)
	}
	if len(unlocks) != 1 {
		t.Errorf("Expected a single unlock record, got %d", len(unlocks))
	}
}
