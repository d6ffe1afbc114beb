package scene

import (
	"fmt"
	"sort"
)

// GraphReport is the result of a static integrity check over a full
// authored scene set.
type GraphReport struct {
	// Dangling lists "scene/choice -> target" references whose target
	// scene does not exist.
	Dangling []string
	// Unreachable lists scene ids that cannot be reached from the start
	// scene. Unreachable scenes are legal but usually authoring mistakes.
	Unreachable []string
}

// OK reports whether the scene set has full referential integrity.
// Unreachable scenes do not fail the check.
func (r *GraphReport) OK() bool {
	return len(r.Dangling) == 0
}

// CheckGraph verifies referential integrity across a complete scene set:
// every choice target must resolve to an existing scene. The runtime engine
// never performs this check; it belongs to deploy-time validation.
func CheckGraph(scenes map[string]*Scene) (*GraphReport, error) {
	if _, ok := scenes[StartSceneID]; !ok {
		return nil, fmt.Errorf("scene set has no %q scene", StartSceneID)
	}

	report := &GraphReport{}

	for _, id := range sortedIDs(scenes) {
		sc := scenes[id]
		for _, key := range sc.ChoiceKeys() {
			target := sc.Choices[key].NextScene
			if _, ok := scenes[target]; !ok {
				report.Dangling = append(report.Dangling,
					fmt.Sprintf("%s/%s -> %s", id, key, target))
			}
		}
	}

	seen := map[string]bool{StartSceneID: true}
	frontier := []string{StartSceneID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		sc, ok := scenes[id]
		if !ok {
			continue
		}
		for _, key := range sc.ChoiceKeys() {
			target := sc.Choices[key].NextScene
			if !seen[target] {
				seen[target] = true
				frontier = append(frontier, target)
			}
		}
	}

	for _, id := range sortedIDs(scenes) {
		if !seen[id] {
			report.Unreachable = append(report.Unreachable, id)
		}
	}

	return report, nil
}

func sortedIDs(scenes map[string]*Scene) []string {
	ids := make([]string, 0, len(scenes))
	for id := range scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
