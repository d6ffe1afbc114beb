package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/pathrpg/engine/pkg/leaderboard"
	"github.com/pathrpg/engine/pkg/session"
)

// Start discards any existing session for the user and begins a fresh run
// at the start scene with full health. Explicitly destructive: a prior
// session is deleted, not merged.
func (e *Engine) Start(ctx context.Context, userID string) (*session.Session, error) {
	if err := e.sessions.DeleteSession(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear previous session: %w", err)
	}

	sess := session.New(userID, e.now())
	if err := e.sessions.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save new session: %w", err)
	}

	e.logger.Info("Game started", "user_id", userID)
	e.notify(ctx, sess, ActionStartGame, nil)
	return sess, nil
}

// Resume returns the user's existing session, or nil if there is none.
// Resume never creates a session; the caller decides whether to Start
// instead. When a session is found its start time is reset to now, so a
// resumed run is timed from the resume point. The reset is persisted so
// the stored row always matches the returned session.
func (e *Engine) Resume(ctx context.Context, userID string) (*session.Session, error) {
	sess, err := e.sessions.FindSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	// Timer restarts on resume. A long-idle run therefore undercounts its
	// true elapsed time on the leaderboard; see DESIGN.md.
	sess.StartedAt = e.now()
	if err := e.sessions.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save resumed session: %w", err)
	}

	e.logger.Debug("Game resumed", "user_id", userID, "scene", sess.CurrentScene)
	return sess, nil
}

// Current returns the user's existing session without side effects, or
// nil if there is none. Unlike Resume it does not reset the run timer,
// so callers can inspect state (for example to validate an ending)
// without affecting playtime accounting.
func (e *Engine) Current(ctx context.Context, userID string) (*session.Session, error) {
	return e.sessions.FindSession(ctx, userID)
}

// Advance applies the choice identified by choiceKey to the user's
// session: the choice is recorded, health is adjusted and clamped to
// [0,100], any granted item is appended to the inventory, and the session
// moves to the choice's target scene. All mutations are applied to a copy
// and persisted in a single save, so no partial application is ever
// observable. Zero-delta choices still persist the touched session.
func (e *Engine) Advance(ctx context.Context, userID string, choiceKey string) (*AdvanceResult, error) {
	sess, err := e.sessions.FindSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}

	sc, err := e.scenes.Load(ctx, sess.CurrentScene)
	if err != nil {
		return nil, err
	}

	choice, ok := sc.Choices[choiceKey]
	if !ok {
		e.logger.Warn("Rejected invalid choice",
			"user_id", userID, "scene", sess.CurrentScene, "choice", choiceKey)
		return nil, fmt.Errorf("%w: %q is not available in scene %q", ErrInvalidChoice, choiceKey, sess.CurrentScene)
	}

	next := sess.Clone()
	next.RecordChoice(sc.ID, choiceKey, choice.Text)
	next.ApplyHP(choice.HPChange)
	if choice.AddItem != "" {
		next.AddItem(choice.AddItem)
	}
	next.CurrentScene = choice.NextScene

	if err := e.sessions.SaveSession(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	e.logger.Info("Choice applied",
		"user_id", userID,
		"scene", sc.ID,
		"choice", choiceKey,
		"hp", next.HP,
		"next_scene", choice.NextScene)

	e.notify(ctx, next, ActionChoiceMade, map[string]string{
		"scene":  sc.ID,
		"choice": choiceKey,
	})

	return &AdvanceResult{
		HPChange:   choice.HPChange,
		ItemGained: choice.AddItem,
		NextScene:  choice.NextScene,
	}, nil
}

// IsTerminal reports whether the session's current scene is an ending.
// Pure query; the engine never terminates a run on its own. The caller
// checks this after Advance and invokes Terminate, so an ending scene can
// still be rendered to the player before the run is closed out.
func (e *Engine) IsTerminal(ctx context.Context, sess *session.Session) (bool, error) {
	if sess == nil {
		return false, nil
	}
	sc, err := e.scenes.Load(ctx, sess.CurrentScene)
	if err != nil {
		return false, err
	}
	return sc.IsEnding, nil
}

// Terminate commits a finished run: it appends a leaderboard entry for
// the session and then deletes the session. The append happens first; if
// it fails the session is kept so the caller can retry (the append has no
// effect on the session).
func (e *Engine) Terminate(ctx context.Context, userID, username, endingKind string) (*leaderboard.Entry, error) {
	sess, err := e.sessions.FindSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}

	now := e.now()
	entry := leaderboard.Entry{
		Username:        username,
		EndingReached:   endingKind,
		PlaytimeMinutes: int(math.Round(now.Sub(sess.StartedAt).Seconds() / 60)),
		FinalHP:         sess.HP,
		ChoicesCount:    len(sess.ChoiceLog),
		CompletedAt:     now,
	}

	if err := e.board.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record completed run: %w", err)
	}

	if err := e.sessions.DeleteSession(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear completed session: %w", err)
	}

	e.logger.Info("Game completed",
		"user_id", userID,
		"ending", endingKind,
		"final_hp", entry.FinalHP,
		"choices", entry.ChoicesCount,
		"playtime_minutes", entry.PlaytimeMinutes)

	e.notify(ctx, sess, ActionGameComplete, map[string]string{
		"ending":   endingKind,
		"username": username,
	})

	return &entry, nil
}
