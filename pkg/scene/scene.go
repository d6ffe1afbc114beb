package scene

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// StartSceneID is the distinguished entry point of every story graph.
const StartSceneID = "start"

// ErrNotFound indicates that no scene definition exists for the requested id.
var ErrNotFound = errors.New("scene not found")

// Choice is a labeled edge from one scene to another, with optional
// health and inventory effects.
type Choice struct {
	Text      string `json:"text"`
	NextScene string `json:"next_scene"`
	HPChange  int    `json:"hp_change,omitempty"`
	AddItem   string `json:"add_item,omitempty"`
}

// Scene is a single node in the static story graph. Scenes are authored
// offline as JSON files and are immutable at runtime.
type Scene struct {
	ID         string            `json:"id,omitempty"` // set from filename on load
	Title      string            `json:"title"`
	Text       string            `json:"text"`
	ImageAlt   string            `json:"image_alt,omitempty"`
	IsEnding   bool              `json:"is_ending,omitempty"`
	EndingType string            `json:"ending_type,omitempty"` // e.g. "victory", "defeat", "death"
	Choices    map[string]Choice `json:"choices"`
}

var sceneIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidSceneID reports whether id is a well-formed scene identifier
// (lowercase snake_case). IDs double as filenames, so anything else
// is rejected before it reaches the filesystem.
func ValidSceneID(id string) bool {
	return sceneIDPattern.MatchString(id)
}

// Validate checks the scene definition against the authoring rules:
// display fields are present, terminal scenes name an ending and have no
// choices, and every choice has a label and a target.
func (s *Scene) Validate() error {
	if !ValidSceneID(s.ID) {
		return fmt.Errorf("invalid scene id %q: must be lowercase snake_case", s.ID)
	}
	if s.Title == "" {
		return fmt.Errorf("scene %q: title is required", s.ID)
	}
	if s.Text == "" {
		return fmt.Errorf("scene %q: text is required", s.ID)
	}

	if s.IsEnding {
		if s.EndingType == "" {
			return fmt.Errorf("scene %q: ending scenes must set ending_type", s.ID)
		}
		if len(s.Choices) > 0 {
			return fmt.Errorf("scene %q: ending scenes must not have choices", s.ID)
		}
		return nil
	}

	if s.EndingType != "" {
		return fmt.Errorf("scene %q: ending_type set without is_ending", s.ID)
	}
	if len(s.Choices) == 0 {
		return fmt.Errorf("scene %q: non-ending scenes must have at least one choice", s.ID)
	}

	for key, c := range s.Choices {
		if !sceneIDPattern.MatchString(key) {
			return fmt.Errorf("scene %q: invalid choice key %q", s.ID, key)
		}
		if c.Text == "" {
			return fmt.Errorf("scene %q: choice %q has no text", s.ID, key)
		}
		if !ValidSceneID(c.NextScene) {
			return fmt.Errorf("scene %q: choice %q has invalid next_scene %q", s.ID, key, c.NextScene)
		}
	}

	return nil
}

// ChoiceKeys returns the scene's choice keys in sorted order. JSON objects
// carry no ordering, so callers that render choices use this for a
// deterministic display order.
func (s *Scene) ChoiceKeys() []string {
	keys := make([]string, 0, len(s.Choices))
	for k := range s.Choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
