// Package selection tracks which normalized activities the user has chosen
// to include in a journal entry. IDs are the deterministic activity IDs
// produced by the normalize package; the set is the single source of truth
// for inclusion across wizard steps.
package selection

import "sort"

// Selection is a unique set of activity IDs.
type Selection struct {
	ids map[string]struct{}
}

// New creates an empty selection.
func New() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// FromIDs creates a selection pre-populated with the given IDs.
func FromIDs(ids []string) *Selection {
	s := New()
	s.AddAll(ids)
	return s
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add marks id as selected. Adding an already-selected ID is a no-op.
func (s *Selection) Add(id string) {
	s.ids[id] = struct{}{}
}

// Remove unmarks id. Removing an unselected ID is a no-op.
func (s *Selection) Remove(id string) {
	delete(s.ids, id)
}

// Toggle flips the selected state of id. Toggling twice restores the
// prior state.
func (s *Selection) Toggle(id string) {
	if s.Has(id) {
		s.Remove(id)
	} else {
		s.Add(id)
	}
}

// AddAll selects every ID in ids (category-level "select all").
func (s *Selection) AddAll(ids []string) {
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// RemoveAll unselects every ID in ids.
func (s *Selection) RemoveAll(ids []string) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
}

// Count returns the number of selected IDs.
func (s *Selection) Count() int {
	return len(s.ids)
}

// IDs returns the selected IDs in sorted order.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
