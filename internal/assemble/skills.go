package assemble

import (
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/daybookhq/daybook/internal/normalize"
)

const maxSkills = 10

// skillLabels are the prose entity labels that plausibly name a skill,
// technology, or product in an activity title.
var skillLabels = map[string]bool{
	"PRODUCT":     true,
	"ORG":         true,
	"LANGUAGE":    true,
	"WORK_OF_ART": true,
	"EVENT":       true,
}

// ExtractSkills derives candidate skill names from activity titles using
// NLP entity extraction. Used when the AI pipeline output carries no
// extracted skills of its own.
func ExtractSkills(activities []normalize.Activity) []string {
	var titles []string
	for _, act := range activities {
		if act.Title != "" && act.Title != "Untitled" {
			titles = append(titles, act.Title)
		}
	}
	if len(titles) == 0 {
		return nil
	}

	doc, err := prose.NewDocument(strings.Join(titles, ". "))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var skills []string
	for _, ent := range doc.Entities() {
		if !skillLabels[strings.ToUpper(ent.Label)] {
			continue
		}
		name := strings.TrimSpace(ent.Text)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, name)
		if len(skills) >= maxSkills {
			break
		}
	}
	return skills
}
