// Package normalize turns heterogeneous per-tool raw payloads into a flat
// list of activities with deterministic IDs, and filters raw payloads back
// down to a selected subset using the same ID derivation.
//
// The ID is the only join key that survives across wizard steps, so both
// Extract and FilterBySelection read from one shared per-tool template table
// (tools.go). Never derive an ID any other way.
package normalize

import (
	"strconv"
	"time"
)

// Activity is a normalized work activity record.
type Activity struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	URL       string         `json:"url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RawData maps tool type to that tool's raw payload. A payload is usually a
// map from sub-collection name to an array of vendor-shaped records, but
// unknown tools may hand us a bare array. A nil payload (one tool's fetch
// failed) contributes zero activities.
type RawData map[string]any

// Extract normalizes one tool's raw payload into a list of activities.
// Missing sub-collections are treated as empty. It never returns an error:
// records that can't be mapped are skipped.
func Extract(tool string, payload any) []Activity {
	if payload == nil {
		return nil
	}

	spec, known := toolSpecs[tool]
	if known {
		if m, ok := payload.(map[string]any); ok {
			return extractKnown(tool, spec, m)
		}
		// Known tool but unexpected shape: fall through to array handling.
	}

	if arr, ok := payload.([]any); ok {
		return extractArray(tool, arr)
	}
	return nil
}

// ExtractAll normalizes every tool in tools from raw, in tool order.
func ExtractAll(raw RawData, tools []string) []Activity {
	var all []Activity
	for _, tool := range tools {
		all = append(all, Extract(tool, raw[tool])...)
	}
	return all
}

func extractKnown(tool string, spec toolSpec, payload map[string]any) []Activity {
	var out []Activity
	for _, coll := range spec {
		items, ok := payload[coll.name].([]any)
		if !ok {
			continue
		}
		for i, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, Activity{
				ID:        coll.id(tool, item, i),
				Tool:      tool,
				Type:      coll.typeLabel,
				Title:     firstString(item, coll.titleFields, "Untitled"),
				Timestamp: parseTimestamp(firstString(item, coll.timeFields, "")),
				URL:       firstString(item, urlFields, ""),
				Metadata:  item,
			})
		}
	}
	return out
}

// extractArray is the fallback for tools with no template: each element maps
// to an index-keyed ID.
func extractArray(tool string, items []any) []Activity {
	var out []Activity
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			item = map[string]any{"value": raw}
		}
		out = append(out, Activity{
			ID:        arrayID(tool, i),
			Tool:      tool,
			Type:      firstString(item, []string{"type"}, "activity"),
			Title:     firstString(item, []string{"title", "name"}, "Untitled"),
			Timestamp: parseTimestamp(firstString(item, []string{"timestamp", "createdAt", "created_at"}, "")),
			URL:       firstString(item, urlFields, ""),
			Metadata:  item,
		})
	}
	return out
}

// firstString returns the first non-empty string value among the candidate
// fields, stringifying JSON numbers, or fallback if none match.
func firstString(item map[string]any, fields []string, fallback string) string {
	for _, f := range fields {
		if s := stringValue(item[f]); s != "" {
			return s
		}
	}
	return fallback
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// timestampLayouts are tried in order when parsing vendor timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a vendor timestamp string, returning the zero time
// when it can't be parsed. Epoch seconds and milliseconds are accepted.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// Slack-style epoch: "1706000000.000200" or millis
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		if f > 1e12 { // milliseconds
			return time.UnixMilli(int64(f)).UTC()
		}
		return time.Unix(int64(f), 0).UTC()
	}
	return time.Time{}
}
