package assemble

import "github.com/daybookhq/daybook/internal/normalize"

// Artifacts collects linked files/documents from each activity's metadata
// url field and any nested files[].url, deduplicated by URL in first-seen
// order.
func Artifacts(activities []normalize.Activity) []Artifact {
	seen := make(map[string]struct{})
	var out []Artifact

	add := func(title, url, source string) {
		if url == "" {
			return
		}
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		out = append(out, Artifact{Title: title, URL: url, Source: source})
	}

	for _, act := range activities {
		if act.URL != "" {
			add(act.Title, act.URL, act.Tool)
		}
		if s, ok := act.Metadata["url"].(string); ok {
			add(act.Title, s, act.Tool)
		}
		files, ok := act.Metadata["files"].([]any)
		if !ok {
			continue
		}
		for _, f := range files {
			file, ok := f.(map[string]any)
			if !ok {
				continue
			}
			url, _ := file["url"].(string)
			title, _ := file["name"].(string)
			if title == "" {
				title, _ = file["title"].(string)
			}
			add(title, url, act.Tool)
		}
	}
	return out
}
