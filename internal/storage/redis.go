package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/session"
)

const sessionKeyPrefix = "session:"

// RedisStore implements the session repository using Redis. Sessions are
// stored as JSON values keyed by user id, one key per user, so a save is
// always a full insert-or-replace of the user's single session row.
// Keys carry no TTL; durability across restarts is the deployment's Redis
// persistence configuration.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStore satisfies the engine's repository contract.
var _ engine.SessionRepository = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed session store from a redis:// URL.
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisStore{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup).
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// FindSession returns the user's session, or nil if none exists.
func (r *RedisStore) FindSession(ctx context.Context, userID string) (*session.Session, error) {
	key := sessionKeyPrefix + userID
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		r.logger.Error("Failed to unmarshal session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &sess, nil
}

// SaveSession upserts the user's single session row. A later save fully
// overwrites an earlier one.
func (r *RedisStore) SaveSession(ctx context.Context, sess *session.Session) error {
	sess.UpdatedAt = time.Now()

	data, err := json.Marshal(sess)
	if err != nil {
		r.logger.Error("Failed to marshal session", "user_id", sess.UserID, "error", err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionKeyPrefix + sess.UserID
	if err := r.client.Set(ctx, key, string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to save session", "user_id", sess.UserID, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// DeleteSession removes the user's session. Deleting a missing session is
// not an error.
func (r *RedisStore) DeleteSession(ctx context.Context, userID string) error {
	key := sessionKeyPrefix + userID
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete session", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Client exposes the underlying Redis client for components that share
// the connection, such as the event broadcaster.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}
