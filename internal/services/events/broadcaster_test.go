package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func TestBroadcaster_Notify(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()

	sub := client.Subscribe(ctx, ChannelForUser("42"))
	defer func() {
		_ = sub.Close()
	}()
	_, err = sub.Receive(ctx) // wait for the subscription confirmation
	require.NoError(t, err)

	b := NewBroadcaster(client, testLogger())

	sess := session.New("42", time.Now())
	sess.CurrentScene = "dark_woods"
	sess.HP = 85
	b.Notify(ctx, "42", sess, engine.ActionChoiceMade, map[string]string{
		"scene":  "start",
		"choice": "left",
	})

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "game.choice_made", event.Type)
	assert.Equal(t, "42", event.UserID)
	assert.Equal(t, "dark_woods", event.Scene)
	assert.Equal(t, 85, event.HP)
	assert.Equal(t, "left", event.Detail["choice"])
	assert.False(t, event.OccurredAt.IsZero())
}

func TestBroadcaster_NotifySurvivesPublishFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() {
		_ = client.Close()
	}()

	mr.Close() // broker gone before the publish

	b := NewBroadcaster(client, testLogger())

	// Delivery is best effort; a dead broker must not panic or block.
	b.Notify(context.Background(), "42", session.New("42", time.Now()),
		engine.ActionStartGame, nil)
}

func TestChannelForUser(t *testing.T) {
	assert.Equal(t, "events:game:42", ChannelForUser("42"))
}
