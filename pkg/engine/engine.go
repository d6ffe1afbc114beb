// Package engine implements the game progression state machine: it owns a
// player's traversal of the scene graph, is the sole writer of session
// state, and the sole producer of leaderboard rows.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pathrpg/engine/pkg/leaderboard"
	"github.com/pathrpg/engine/pkg/scene"
	"github.com/pathrpg/engine/pkg/session"
)

var (
	// ErrNoActiveSession indicates an operation that requires a live
	// session was attempted without one. The user-facing remedy is to
	// start a new game.
	ErrNoActiveSession = errors.New("no active game session")

	// ErrInvalidChoice indicates a submitted choice key that is not valid
	// for the session's current scene, most likely a stale form
	// resubmission. The session is left untouched.
	ErrInvalidChoice = errors.New("invalid choice")
)

// SceneLoader resolves scene ids to immutable scene definitions.
type SceneLoader interface {
	Load(ctx context.Context, id string) (*scene.Scene, error)
}

// SessionRepository persists at most one progression record per user.
// Find returns nil, nil when no session exists. Save has insert-or-replace
// semantics; a later save for the same user fully overwrites an earlier
// one. Delete is a no-op when no session exists.
type SessionRepository interface {
	FindSession(ctx context.Context, userID string) (*session.Session, error)
	SaveSession(ctx context.Context, sess *session.Session) error
	DeleteSession(ctx context.Context, userID string) error
}

// LeaderboardSink is the append-only store of completed runs.
type LeaderboardSink interface {
	AppendEntry(ctx context.Context, entry leaderboard.Entry) error
}

// Action tags the game events made observable to external consumers such
// as the achievement evaluator.
type Action string

const (
	ActionStartGame    Action = "start_game"
	ActionChoiceMade   Action = "choice_made"
	ActionGameComplete Action = "game_complete"
)

// Observer receives the full post-mutation session after every engine
// mutation, with an action tag and a small context map ({scene, choice}
// or {ending}). This is a notification boundary: observer failures are
// logged and never affect the engine result.
type Observer interface {
	Notify(ctx context.Context, userID string, sess *session.Session, action Action, detail map[string]string)
}

// AdvanceResult describes the effect of a single applied choice.
type AdvanceResult struct {
	HPChange   int    `json:"hp_change"`
	ItemGained string `json:"item_gained,omitempty"`
	NextScene  string `json:"next_scene"`
}

// Engine is the progression state machine. It assumes at most one
// in-flight mutation per user at a time; request serialization is the
// calling layer's responsibility.
type Engine struct {
	scenes    SceneLoader
	sessions  SessionRepository
	board     LeaderboardSink
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an observer for game events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithClock overrides the engine's time source. Tests use this to pin
// playtime arithmetic.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a progression engine.
func New(scenes SceneLoader, sessions SessionRepository, board LeaderboardSink, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		scenes:   scenes,
		sessions: sessions,
		board:    board,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) notify(ctx context.Context, sess *session.Session, action Action, detail map[string]string) {
	for _, o := range e.observers {
		o.Notify(ctx, sess.UserID, sess, action, detail)
	}
}
