package normalize

import "github.com/daybookhq/daybook/internal/selection"

// FilterBySelection rebuilds raw with each sub-collection reduced to the
// records whose derived ID is in sel. ID derivation goes through the same
// template table as Extract, so selecting every extracted ID returns the
// payload unchanged.
//
// Sub-collections not covered by a tool's template, and unknown tools whose
// payload is not array-shaped, pass through unfiltered: they contribute no
// extractable activities, so there is no selection granularity to apply.
func FilterBySelection(raw RawData, tools []string, sel *selection.Selection) RawData {
	out := make(RawData, len(tools))
	for _, tool := range tools {
		payload := raw[tool]
		if payload == nil {
			continue
		}

		spec, known := toolSpecs[tool]
		if known {
			if m, ok := payload.(map[string]any); ok {
				out[tool] = filterKnown(tool, spec, m, sel)
				continue
			}
		}
		if arr, ok := payload.([]any); ok {
			out[tool] = filterArray(tool, arr, sel)
			continue
		}
		out[tool] = payload
	}
	return out
}

func filterKnown(tool string, spec toolSpec, payload map[string]any, sel *selection.Selection) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		coll, ok := spec.byName(key)
		if !ok {
			out[key] = value
			continue
		}
		items, ok := value.([]any)
		if !ok {
			out[key] = value
			continue
		}
		kept := make([]any, 0, len(items))
		for i, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				// Not a record; never extracted, so nothing to filter on.
				kept = append(kept, raw)
				continue
			}
			if sel.Has(coll.id(tool, item, i)) {
				kept = append(kept, raw)
			}
		}
		out[key] = kept
	}
	return out
}

func filterArray(tool string, items []any, sel *selection.Selection) []any {
	kept := make([]any, 0, len(items))
	for i, raw := range items {
		if sel.Has(arrayID(tool, i)) {
			kept = append(kept, raw)
		}
	}
	return kept
}

func (s toolSpec) byName(name string) (collectionSpec, bool) {
	for _, coll := range s {
		if coll.name == name {
			return coll, true
		}
	}
	return collectionSpec{}, false
}
