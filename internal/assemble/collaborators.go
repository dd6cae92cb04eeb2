package assemble

import (
	"hash/fnv"
	"sort"
	"strings"

	"github.com/daybookhq/daybook/internal/normalize"
)

// Field names, varying by source tool, that can carry a single person.
var personFields = []string{"author", "assignee", "creator", "user", "organizer", "from", "owner"}

// Field names that can carry a list of people.
var peopleFields = []string{"reviewers", "participants", "attendees", "assignees", "collaborators", "members"}

// colorPalette is the fixed gradient list collaborators are hashed into.
var colorPalette = []string{
	"#6366f1", "#8b5cf6", "#ec4899", "#f43f5e", "#f97316",
	"#eab308", "#22c55e", "#14b8a6", "#0ea5e9", "#3b82f6",
}

// Collaborators scans each activity's metadata people fields and
// deduplicates by case/space-normalized display name into synthesized
// Collaborator records, sorted case-insensitively by name.
func Collaborators(activities []normalize.Activity) []Collaborator {
	return collectPeople(activities, append(personFields, peopleFields...))
}

// Reviewers is the same synthesis restricted to reviewer fields.
func Reviewers(activities []normalize.Activity) []Collaborator {
	return collectPeople(activities, []string{"reviewers", "reviewer"})
}

func collectPeople(activities []normalize.Activity, fields []string) []Collaborator {
	seen := make(map[string]Collaborator)
	for _, act := range activities {
		for _, field := range fields {
			for _, name := range namesFrom(act.Metadata[field]) {
				key := normalizeName(name)
				if key == "" {
					continue
				}
				if _, ok := seen[key]; !ok {
					seen[key] = synthesize(name)
				}
			}
		}
	}

	out := make([]Collaborator, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// namesFrom pulls display names out of the various shapes vendors use:
// a bare string, an object with a name-ish field, or an array of either.
func namesFrom(v any) []string {
	switch x := v.(type) {
	case string:
		if x != "" {
			return []string{x}
		}
	case map[string]any:
		for _, f := range []string{"name", "displayName", "display_name", "login", "email"} {
			if s, ok := x[f].(string); ok && s != "" {
				return []string{s}
			}
		}
	case []any:
		var names []string
		for _, item := range x {
			names = append(names, namesFrom(item)...)
		}
		return names
	}
	return nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func synthesize(name string) Collaborator {
	display := strings.Join(strings.Fields(name), " ")
	return Collaborator{
		ID:       slugify(display),
		Name:     display,
		Initials: initials(display),
		Color:    pickColor(normalizeName(display)),
	}
}

// slugify lowercases and joins the name's words with dashes, dropping
// anything that isn't alphanumeric.
func slugify(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(strings.ToLower(name)) {
		cleaned := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, word)
		if cleaned == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('-')
		}
		b.WriteString(cleaned)
	}
	return b.String()
}

// initials is first initial + last initial, or a single initial for
// one-word names.
func initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	first := strings.ToUpper(words[0][:1])
	if len(words) == 1 {
		return first
	}
	return first + strings.ToUpper(words[len(words)-1][:1])
}

func pickColor(normalized string) string {
	h := fnv.New32a()
	h.Write([]byte(normalized))
	return colorPalette[h.Sum32()%uint32(len(colorPalette))]
}
