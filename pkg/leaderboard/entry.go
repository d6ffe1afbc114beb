// Package leaderboard defines the records written for completed runs.
package leaderboard

import "time"

// Entry is an immutable record of one completed run. Entries are appended
// exactly once per completed session and never updated.
type Entry struct {
	Rank            int       `json:"rank,omitempty"` // assigned on read, not stored
	Username        string    `json:"username"`
	EndingReached   string    `json:"ending_reached"`
	PlaytimeMinutes int       `json:"playtime_minutes"`
	FinalHP         int       `json:"final_hp"`
	ChoicesCount    int       `json:"choices_count"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Stats summarizes the whole leaderboard table.
type Stats struct {
	TotalGames    int     `json:"total_games"`
	UniquePlayers int     `json:"unique_players"`
	AvgPlaytime   float64 `json:"avg_playtime_minutes"`
}
