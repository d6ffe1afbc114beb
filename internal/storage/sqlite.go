package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/leaderboard"
)

// ErrUsernameTaken indicates a registration attempt with a username that
// already exists.
var ErrUsernameTaken = errors.New("username already taken")

// User is a registered player account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// AchievementUnlock is one unlocked achievement for a user.
type AchievementUnlock struct {
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// SQLiteStore persists user accounts, the append-only leaderboard, and
// achievement unlocks in a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore satisfies the engine's leaderboard contract.
var _ engine.LeaderboardSink = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS leaderboard (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	ending_reached TEXT NOT NULL,
	playtime_minutes INTEGER NOT NULL,
	final_hp INTEGER NOT NULL,
	choices_count INTEGER NOT NULL,
	completed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS user_achievements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	achievement_id TEXT NOT NULL,
	unlocked_at INTEGER NOT NULL,
	UNIQUE(user_id, achievement_id)
);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (creating if needed) the game database at path and
// ensures the schema exists.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close sqlite db", "error", err)
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// User operations

// CreateUser registers a new account. Fails with ErrUsernameTaken when
// the username exists.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, toMillis(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new user id: %w", err)
	}

	return &User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetUserByUsername returns the account for username, or nil if none
// exists.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var (
		u         User
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// GetUserByID returns the account with the given id, or nil if none exists.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var (
		u         User
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// Leaderboard operations

// AppendEntry inserts one completed-run record. Pure insert; existing
// rows are never updated or deleted.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry leaderboard.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leaderboard (username, ending_reached, playtime_minutes, final_hp, choices_count, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Username, entry.EndingReached, entry.PlaytimeMinutes,
		entry.FinalHP, entry.ChoicesCount, toMillis(entry.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to append leaderboard entry: %w", err)
	}
	return nil
}

// TopEntries returns up to n entries ranked by final HP descending, then
// playtime ascending, then choice count descending.
func (s *SQLiteStore) TopEntries(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, ending_reached, playtime_minutes, final_hp, choices_count, completed_at
		 FROM leaderboard
		 ORDER BY final_hp DESC, playtime_minutes ASC, choices_count DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []leaderboard.Entry
	for rows.Next() {
		var (
			e           leaderboard.Entry
			completedAt int64
		)
		if err := rows.Scan(&e.Username, &e.EndingReached, &e.PlaytimeMinutes,
			&e.FinalHP, &e.ChoicesCount, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.CompletedAt = fromMillis(completedAt)
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}

	return entries, nil
}

// Stats summarizes the leaderboard table.
func (s *SQLiteStore) Stats(ctx context.Context) (*leaderboard.Stats, error) {
	var stats leaderboard.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT username), COALESCE(AVG(playtime_minutes), 0) FROM leaderboard`).
		Scan(&stats.TotalGames, &stats.UniquePlayers, &stats.AvgPlaytime)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard stats: %w", err)
	}
	return &stats, nil
}

// EndingsReached returns the distinct endings the player has recorded.
func (s *SQLiteStore) EndingsReached(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ending_reached FROM leaderboard WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query endings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var endings []string
	for rows.Next() {
		var ending string
		if err := rows.Scan(&ending); err != nil {
			return nil, fmt.Errorf("failed to scan ending: %w", err)
		}
		endings = append(endings, ending)
	}
	return endings, rows.Err()
}

// CompletedGames returns how many runs the player has finished.
func (s *SQLiteStore) CompletedGames(ctx context.Context, username string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leaderboard WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed games: %w", err)
	}
	return count, nil
}

// Achievement operations

// UnlockAchievement records an unlock. Unlocking an already-unlocked
// achievement is a no-op.
func (s *SQLiteStore) UnlockAchievement(ctx context.Context, userID, achievementID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)`,
		userID, achievementID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return nil
}

// IsAchievementUnlocked reports whether the user already holds the
// achievement.
func (s *SQLiteStore) IsAchievementUnlocked(ctx context.Context, userID, achievementID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_achievements WHERE user_id = ? AND achievement_id = ?`,
		userID, achievementID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query achievement: %w", err)
	}
	return true, nil
}

// ListAchievements returns the user's unlocks, most recent first.
func (s *SQLiteStore) ListAchievements(ctx context.Context, userID string) ([]AchievementUnlock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT achievement_id, unlocked_at FROM user_achievements
		 WHERE user_id = ? ORDER BY unlocked_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var unlocks []AchievementUnlock
	for rows.Next() {
		var (
			u          AchievementUnlock
			unlockedAt int64
		)
		if err := rows.Scan(&u.AchievementID, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		u.UnlockedAt = fromMillis(unlockedAt)
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}
