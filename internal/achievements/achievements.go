// Package achievements evaluates player accomplishments on game events
// and records unlocks. It hangs off the engine's observer boundary and
// never affects game progression.
package achievements

import (
	"context"
	"log/slog"
	"time"

	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/session"
)

// Achievement is one entry in the static achievement catalog.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Catalog lists every achievement in display order.
var Catalog = []Achievement{
	{ID: "first_steps", Name: "First Steps", Description: "Start your first adventure", Icon: "👣"},
	{ID: "explorer", Name: "Explorer", Description: "Make 10 choices in a single game", Icon: "🗺️"},
	{ID: "survivor", Name: "Survivor", Description: "Complete a game with full health", Icon: "💪"},
	{ID: "collector", Name: "Collector", Description: "Collect 5 items in a single game", Icon: "🎒"},
	{ID: "speed_runner", Name: "Speed Runner", Description: "Complete a game in under 5 minutes", Icon: "⚡"},
	{ID: "wise_one", Name: "The Wise One", Description: "Find the sage and accept his wisdom", Icon: "🧙‍♂️"},
	{ID: "nature_friend", Name: "Friend of Nature", Description: "Help the wounded fox", Icon: "🦊"},
	{ID: "crystal_master", Name: "Crystal Master", Description: "Discover the power of the crystals", Icon: "💎"},
	{ID: "completionist", Name: "Completionist", Description: "Experience all possible endings", Icon: "🏆"},
	{ID: "persistent", Name: "Persistent", Description: "Play 10 games", Icon: "🎯"},
}

// Unlock thresholds and per-achievement constants.
const (
	explorerChoices     = 10
	collectorItems      = 5
	speedRunnerMaxSecs  = 300
	persistentGameCount = 10
)

// requiredEndings is the ending set the completionist achievement spans.
var requiredEndings = []string{"victory", "defeat", "death"}

// Store is the persistence the evaluator needs: unlock bookkeeping plus
// the leaderboard history that the cross-game achievements read.
type Store interface {
	IsAchievementUnlocked(ctx context.Context, userID, achievementID string) (bool, error)
	UnlockAchievement(ctx context.Context, userID, achievementID string) error
	EndingsReached(ctx context.Context, username string) ([]string, error)
	CompletedGames(ctx context.Context, username string) (int, error)
}

// Checker evaluates achievement conditions against game events.
type Checker struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Ensure Checker can observe engine events.
var _ engine.Observer = (*Checker)(nil)

// NewChecker creates an achievement checker.
func NewChecker(store Store, logger *slog.Logger) *Checker {
	return &Checker{store: store, logger: logger, now: time.Now}
}

// Notify evaluates every locked achievement against the post-mutation
// session. Failures are logged and swallowed; achievements must never
// break game progression.
func (c *Checker) Notify(ctx context.Context, userID string, sess *session.Session, action engine.Action, detail map[string]string) {
	for _, a := range Catalog {
		unlocked, err := c.store.IsAchievementUnlocked(ctx, userID, a.ID)
		if err != nil {
			c.logger.Error("Failed to check achievement state", "achievement", a.ID, "error", err)
			return
		}
		if unlocked {
			continue
		}

		met, err := c.conditionMet(ctx, a.ID, userID, sess, action, detail)
		if err != nil {
			c.logger.Error("Failed to evaluate achievement", "achievement", a.ID, "error", err)
			continue
		}
		if !met {
			continue
		}

		if err := c.store.UnlockAchievement(ctx, userID, a.ID); err != nil {
			c.logger.Error("Failed to unlock achievement", "achievement", a.ID, "error", err)
			continue
		}
		c.logger.Info("Achievement unlocked", "user_id", userID, "achievement", a.ID)
	}
}

func (c *Checker) conditionMet(ctx context.Context, id, userID string, sess *session.Session, action engine.Action, detail map[string]string) (bool, error) {
	switch id {
	case "first_steps":
		return action == engine.ActionStartGame, nil

	case "explorer":
		return len(sess.ChoiceLog) >= explorerChoices, nil

	case "survivor":
		return action == engine.ActionGameComplete &&
			detail["ending"] == "victory" &&
			sess.HP >= session.MaxHP, nil

	case "collector":
		return len(sess.Inventory) >= collectorItems, nil

	case "speed_runner":
		if action != engine.ActionGameComplete {
			return false, nil
		}
		return c.now().Sub(sess.StartedAt).Seconds() <= speedRunnerMaxSecs, nil

	case "wise_one":
		return action == engine.ActionChoiceMade &&
			detail["scene"] == "sage_wisdom" &&
			detail["choice"] == "wisdom", nil

	case "nature_friend":
		return action == engine.ActionChoiceMade &&
			detail["scene"] == "dark_woods" &&
			detail["choice"] == "help", nil

	case "crystal_master":
		return sess.HasItem("Crystal Power") || sess.HasItem("Crystal Water"), nil

	case "completionist":
		if action != engine.ActionGameComplete {
			return false, nil
		}
		username := detail["username"]
		if username == "" {
			return false, nil
		}
		endings, err := c.store.EndingsReached(ctx, username)
		if err != nil {
			return false, err
		}
		have := make(map[string]bool, len(endings))
		for _, e := range endings {
			have[e] = true
		}
		for _, required := range requiredEndings {
			if !have[required] {
				return false, nil
			}
		}
		return true, nil

	case "persistent":
		if action != engine.ActionGameComplete {
			return false, nil
		}
		username := detail["username"]
		if username == "" {
			return false, nil
		}
		games, err := c.store.CompletedGames(ctx, username)
		if err != nil {
			return false, err
		}
		return games >= persistentGameCount, nil
	}

	return false, nil
}
