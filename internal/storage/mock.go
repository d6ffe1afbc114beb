package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pathrpg/engine/pkg/leaderboard"
	"github.com/pathrpg/engine/pkg/session"
)

// MockStore is an in-memory implementation of the session repository,
// leaderboard sink, user store, and achievement store for testing.
type MockStore struct {
	mu           sync.RWMutex
	sessions     map[string]*session.Session
	entries      []leaderboard.Entry
	users        map[string]*User
	nextUserID   int64
	achievements map[string][]AchievementUnlock

	pingErr   error
	saveErr   error
	appendErr error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions:     make(map[string]*session.Session),
		users:        make(map[string]*User),
		nextUserID:   1,
		achievements: make(map[string][]AchievementUnlock),
	}
}

// SetPingError configures Ping to fail with err.
func (m *MockStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// SetSaveError configures SaveSession to fail with err.
func (m *MockStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// SetAppendError configures AppendEntry to fail with err.
func (m *MockStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingErr
}

func (m *MockStore) Close() error { return nil }

// Session repository

func (m *MockStore) FindSession(ctx context.Context, userID string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

func (m *MockStore) SaveSession(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return errors.New("session cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored := sess.Clone()
	stored.UpdatedAt = time.Now()
	m.sessions[sess.UserID] = stored
	return nil
}

func (m *MockStore) DeleteSession(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Leaderboard sink

func (m *MockStore) AppendEntry(ctx context.Context, entry leaderboard.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockStore) TopEntries(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := make([]leaderboard.Entry, len(m.entries))
	copy(sorted, m.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FinalHP != sorted[j].FinalHP {
			return sorted[i].FinalHP > sorted[j].FinalHP
		}
		if sorted[i].PlaytimeMinutes != sorted[j].PlaytimeMinutes {
			return sorted[i].PlaytimeMinutes < sorted[j].PlaytimeMinutes
		}
		return sorted[i].ChoicesCount > sorted[j].ChoicesCount
	})

	if n < len(sorted) {
		sorted = sorted[:n]
	}
	for i := range sorted {
		sorted[i].Rank = i + 1
	}
	return sorted, nil
}

func (m *MockStore) Stats(ctx context.Context) (*leaderboard.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &leaderboard.Stats{TotalGames: len(m.entries)}
	players := make(map[string]bool)
	total := 0
	for _, e := range m.entries {
		players[e.Username] = true
		total += e.PlaytimeMinutes
	}
	stats.UniquePlayers = len(players)
	if len(m.entries) > 0 {
		stats.AvgPlaytime = float64(total) / float64(len(m.entries))
	}
	return stats, nil
}

func (m *MockStore) EndingsReached(ctx context.Context, username string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var endings []string
	for _, e := range m.entries {
		if e.Username == username && !seen[e.EndingReached] {
			seen[e.EndingReached] = true
			endings = append(endings, e.EndingReached)
		}
	}
	return endings, nil
}

func (m *MockStore) CompletedGames(ctx context.Context, username string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries {
		if e.Username == username {
			count++
		}
	}
	return count, nil
}

// Users

func (m *MockStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return nil, ErrUsernameTaken
	}
	u := &User{
		ID:           m.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.nextUserID++
	m.users[username] = u
	return u, nil
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *MockStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

// Achievements

func (m *MockStore) UnlockAchievement(ctx context.Context, userID, achievementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.achievements[userID] {
		if u.AchievementID == achievementID {
			return nil
		}
	}
	m.achievements[userID] = append(m.achievements[userID], AchievementUnlock{
		AchievementID: achievementID,
		UnlockedAt:    time.Now(),
	})
	return nil
}

func (m *MockStore) IsAchievementUnlocked(ctx context.Context, userID, achievementID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.achievements[userID] {
		if u.AchievementID == achievementID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) ListAchievements(ctx context.Context, userID string) ([]AchievementUnlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	unlocks := make([]AchievementUnlock, len(m.achievements[userID]))
	copy(unlocks, m.achievements[userID])
	return unlocks, nil
}
