// Package events publishes game events to Redis Pub/Sub so external
// consumers (notification streams, future SSE endpoints) can react to
// progression without being wired into the engine.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/session"
)

// Event is the wire shape published for every game action.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"` // "game." + action
	UserID     string            `json:"user_id"`
	Scene      string            `json:"scene"`
	HP         int               `json:"hp"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Broadcaster publishes game events to per-user Redis channels.
type Broadcaster struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure Broadcaster can observe engine events.
var _ engine.Observer = (*Broadcaster)(nil)

// NewBroadcaster creates an event broadcaster on an existing Redis client.
func NewBroadcaster(client *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		client: client,
		logger: logger,
	}
}

// ChannelForUser returns the pub/sub channel game events for a user are
// published on.
func ChannelForUser(userID string) string {
	return "events:game:" + userID
}

// Notify publishes the event. Publish failures are logged and dropped;
// event delivery is best effort and never blocks progression.
func (b *Broadcaster) Notify(ctx context.Context, userID string, sess *session.Session, action engine.Action, detail map[string]string) {
	event := Event{
		ID:         uuid.New().String(),
		Type:       fmt.Sprintf("game.%s", action),
		UserID:     userID,
		Scene:      sess.CurrentScene,
		HP:         sess.HP,
		Detail:     detail,
		OccurredAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal game event", "type", event.Type, "error", err)
		return
	}

	if err := b.client.Publish(ctx, ChannelForUser(userID), data).Err(); err != nil {
		b.logger.Warn("Failed to publish game event",
			"type", event.Type, "user_id", userID, "error", err)
		return
	}

	b.logger.Debug("Published game event", "type", event.Type, "user_id", userID)
}
