package session

import (
	"time"

	"github.com/pathrpg/engine/pkg/scene"
)

// Health point bounds. HP is clamped to this closed interval after every
// mutation.
const (
	MinHP = 0
	MaxHP = 100
)

// ChoiceRecord is one entry in a session's choice history.
type ChoiceRecord struct {
	Scene  string `json:"scene"`
	Choice string `json:"choice"`
	Text   string `json:"text"`
}

// Session is a user's live progression state through the scene graph.
// There is at most one session per user at any time; starting a new game
// supersedes and discards the prior one.
type Session struct {
	UserID       string         `json:"user_id"`
	CurrentScene string         `json:"current_scene"`
	HP           int            `json:"hp"`
	Inventory    []string       `json:"inventory"`
	ChoiceLog    []ChoiceRecord `json:"choices_made"`
	StartedAt    time.Time      `json:"started_at"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty"`
}

// New creates a fresh session at the start scene with full health.
func New(userID string, now time.Time) *Session {
	return &Session{
		UserID:       userID,
		CurrentScene: scene.StartSceneID,
		HP:           MaxHP,
		Inventory:    make([]string, 0),
		ChoiceLog:    make([]ChoiceRecord, 0),
		StartedAt:    now,
	}
}

// ApplyHP adds delta to the session's health and clamps the result to
// [MinHP, MaxHP].
func (s *Session) ApplyHP(delta int) {
	s.HP += delta
	if s.HP > MaxHP {
		s.HP = MaxHP
	}
	if s.HP < MinHP {
		s.HP = MinHP
	}
}

// RecordChoice appends a choice to the session's history.
func (s *Session) RecordChoice(sceneID, choiceKey, text string) {
	s.ChoiceLog = append(s.ChoiceLog, ChoiceRecord{
		Scene:  sceneID,
		Choice: choiceKey,
		Text:   text,
	})
}

// AddItem appends an item to the inventory. Duplicates are allowed.
func (s *Session) AddItem(item string) {
	s.Inventory = append(s.Inventory, item)
}

// HasItem reports whether the inventory contains item.
func (s *Session) HasItem(item string) bool {
	for _, have := range s.Inventory {
		if have == item {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the session. The engine mutates a clone and
// persists it in one save, so a failed operation never leaves a
// half-mutated session visible anywhere.
func (s *Session) Clone() *Session {
	out := *s
	out.Inventory = make([]string, len(s.Inventory))
	copy(out.Inventory, s.Inventory)
	out.ChoiceLog = make([]ChoiceRecord, len(s.ChoiceLog))
	copy(out.ChoiceLog, s.ChoiceLog)
	return &out
}
