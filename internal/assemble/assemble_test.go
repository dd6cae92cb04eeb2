package assemble

import (
	"testing"
	"time"

	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
)

func TestTimeRangeHours(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	acts := []normalize.Activity{
		{ID: "a", Timestamp: t0},
		{ID: "b", Timestamp: t0.Add(2 * time.Hour)},
		{ID: "c", Timestamp: t0.Add(5 * time.Hour)},
	}
	if got := TimeRangeHours(acts); got != 5 {
		t.Errorf("TimeRangeHours = %d, want 5", got)
	}
}

func TestTimeRangeHoursEdges(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		acts []normalize.Activity
		want int
	}{
		{"empty", nil, 0},
		{"single", []normalize.Activity{{Timestamp: t0}}, 0},
		{"one parseable", []normalize.Activity{{Timestamp: t0}, {}}, 0},
		{"unparseable ignored", []normalize.Activity{
			{Timestamp: t0}, {}, {Timestamp: t0.Add(3 * time.Hour)},
		}, 3},
		{"rounds", []normalize.Activity{
			{Timestamp: t0}, {Timestamp: t0.Add(90 * time.Minute)},
		}, 2},
	}
	for _, tt := range tests {
		if got := TimeRangeHours(tt.acts); got != tt.want {
			t.Errorf("%s: TimeRangeHours = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCollaboratorDedup(t *testing.T) {
	acts := []normalize.Activity{
		{ID: "a", Metadata: map[string]any{"author": "Sarah Chen"}},
		{ID: "b", Metadata: map[string]any{"author": "sarah chen"}},
		{ID: "c", Metadata: map[string]any{"author": " Sarah   Chen "}},
		{ID: "d", Metadata: map[string]any{"author": map[string]any{"login": "mike-r"}}},
	}
	collabs := Collaborators(acts)
	if len(collabs) != 2 {
		t.Fatalf("expected 2 collaborators, got %d: %v", len(collabs), collabs)
	}

	// Ordering ignores case: "mike-r" sorts before "Sarah Chen" even though
	// uppercase letters come first in ASCII.
	if collabs[0].Name != "mike-r" {
		t.Errorf("collabs[0] = %q, want mike-r first", collabs[0].Name)
	}

	// First-seen casing wins for the display name.
	sarah := collabs[1]
	if sarah.Name != "Sarah Chen" {
		t.Errorf("name = %q, want first-seen form Sarah Chen", sarah.Name)
	}
	if sarah.Initials != "SC" {
		t.Errorf("initials = %q, want SC", sarah.Initials)
	}
	if sarah.ID != "sarah-chen" {
		t.Errorf("id = %q", sarah.ID)
	}
	if sarah.Color == "" {
		t.Error("color not assigned")
	}

	// Same normalized name always hashes to the same color.
	again := Collaborators(acts[:1])
	if again[0].Color != sarah.Color {
		t.Errorf("color unstable: %q vs %q", again[0].Color, sarah.Color)
	}
}

func TestCollaboratorShapes(t *testing.T) {
	acts := []normalize.Activity{
		{ID: "a", Metadata: map[string]any{
			"reviewers": []any{
				map[string]any{"name": "Ana Gomez"},
				"Raj Patel",
			},
			"attendees": []any{map[string]any{"displayName": "Ana Gomez"}},
		}},
	}
	collabs := Collaborators(acts)
	if len(collabs) != 2 {
		t.Fatalf("expected 2, got %v", collabs)
	}
	reviewers := Reviewers(acts)
	if len(reviewers) != 2 {
		t.Fatalf("expected 2 reviewers, got %v", reviewers)
	}
}

func TestArtifactsDedupByURL(t *testing.T) {
	acts := []normalize.Activity{
		{ID: "a", URL: "https://github.com/acme/api/pull/456", Title: "PR"},
		{ID: "b", URL: "https://github.com/acme/api/pull/456", Title: "same link"},
		{ID: "c", Metadata: map[string]any{
			"files": []any{
				map[string]any{"url": "https://docs.example.com/x", "name": "Design doc"},
			},
		}},
	}
	artifacts := Artifacts(acts)
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d: %v", len(artifacts), artifacts)
	}
	if artifacts[0].URL != "https://github.com/acme/api/pull/456" {
		t.Errorf("first artifact = %v, want first-seen order kept", artifacts[0])
	}
	if artifacts[1].Title != "Design doc" {
		t.Errorf("file artifact title = %q", artifacts[1].Title)
	}
}

func TestAssemble(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	acts := []normalize.Activity{
		{ID: "github-pr-456", Tool: "github", Type: "Pull Request", Title: "Add rate limiter", Timestamp: t0,
			URL: "https://github.com/acme/api/pull/456", Metadata: map[string]any{"author": "Sarah Chen"}},
		{ID: "jira-FEAT-789", Tool: "jira", Type: "Jira Issue", Title: "Rate limiting epic", Timestamp: t0.Add(5 * time.Hour)},
	}
	organized := &pipeline.OrganizedData{
		Categories: []pipeline.Category{
			{Label: "Infrastructure", Items: []pipeline.AnalyzedActivity{
				{ID: "github-pr-456"}, {ID: "jira-FEAT-789"},
			}},
		},
		Correlations:   []pipeline.Correlation{{Description: "PR implements the epic", ActivityIDs: []string{"github-pr-456", "jira-FEAT-789"}}},
		SuggestedTitle: "Rate limiting work",
	}
	generated := &pipeline.GeneratedContent{Title: "Shipped the rate limiter", Summary: "Built and reviewed rate limiting."}

	entry := Assemble(acts, organized, generated, Options{
		Workspace:       "acme",
		DateStart:       "2026-01-10",
		DateEnd:         "2026-01-10",
		SourcesSelected: []string{"github", "jira", "slack"},
	})

	if entry.EntryMetadata.Title != "Shipped the rate limiter" {
		t.Errorf("title = %q, want generated title preferred", entry.EntryMetadata.Title)
	}
	if entry.EntryMetadata.Privacy != "private" || entry.EntryMetadata.Type != "work_journal" {
		t.Errorf("defaults not applied: %+v", entry.EntryMetadata)
	}
	if !entry.EntryMetadata.IsAutomated {
		t.Error("IsAutomated should be set")
	}
	if entry.Context.TotalActivities != 2 {
		t.Errorf("total activities = %d", entry.Context.TotalActivities)
	}
	// Zero-activity sources stay listed.
	if len(entry.Context.SourcesIncluded) != 3 {
		t.Errorf("sources included = %v", entry.Context.SourcesIncluded)
	}
	if entry.Context.PrimaryFocus != "Infrastructure" {
		t.Errorf("primary focus = %q", entry.Context.PrimaryFocus)
	}
	if entry.Activities[0].Category != "Infrastructure" {
		t.Errorf("category = %q", entry.Activities[0].Category)
	}
	if entry.Summary.TotalTimeRangeHours != 5 {
		t.Errorf("time range = %d, want 5", entry.Summary.TotalTimeRangeHours)
	}
	if entry.Summary.ActivitiesBySource["github"] != 1 || entry.Summary.ActivitiesByType["Jira Issue"] != 1 {
		t.Errorf("frequency maps wrong: %+v", entry.Summary)
	}
	if len(entry.Summary.UniqueCollaborators) != 1 {
		t.Errorf("collaborators = %v", entry.Summary.UniqueCollaborators)
	}
	if len(entry.Correlations) != 1 {
		t.Errorf("correlations = %v", entry.Correlations)
	}
	if len(entry.Artifacts) != 1 {
		t.Errorf("artifacts = %v", entry.Artifacts)
	}
}

func TestAssembleTitleFallbacks(t *testing.T) {
	acts := []normalize.Activity{{ID: "a"}}
	entry := Assemble(acts, &pipeline.OrganizedData{SuggestedTitle: "Suggested"}, &pipeline.GeneratedContent{}, Options{})
	if entry.EntryMetadata.Title != "Suggested" {
		t.Errorf("title = %q, want suggested title", entry.EntryMetadata.Title)
	}
	entry = Assemble(acts, nil, nil, Options{})
	if entry.EntryMetadata.Title != "Work Journal Entry" {
		t.Errorf("title = %q, want final fallback", entry.EntryMetadata.Title)
	}
}
