package assemble

import (
	"math"
	"time"

	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
)

// Options carries caller parameters for entry assembly.
type Options struct {
	Title     string
	EntryType string
	Workspace string
	Privacy   string
	DateStart string
	DateEnd   string
	// SourcesSelected is every tool the user originally picked, whether or
	// not it contributed activities.
	SourcesSelected []string
}

// Assemble builds a Format7 entry from the selected normalized activities
// and the AI pipeline outputs. organized and generated may be nil; the
// entry degrades to what the activities alone can support.
func Assemble(activities []normalize.Activity, organized *pipeline.OrganizedData, generated *pipeline.GeneratedContent, opts Options) *Entry {
	now := time.Now().UTC()

	title := opts.Title
	if title == "" && generated != nil {
		title = generated.Title
	}
	if title == "" && organized != nil {
		title = organized.SuggestedTitle
	}
	if title == "" {
		title = "Work Journal Entry"
	}

	entryType := opts.EntryType
	if entryType == "" {
		entryType = "work_journal"
	}
	privacy := opts.Privacy
	if privacy == "" {
		privacy = "private"
	}

	categoryByID := categoryIndex(organized)

	entryActivities := make([]EntryActivity, 0, len(activities))
	byType := make(map[string]int)
	bySource := make(map[string]int)
	for _, act := range activities {
		ea := EntryActivity{
			ID:       act.ID,
			Source:   act.Tool,
			Type:     act.Type,
			Title:    act.Title,
			URL:      act.URL,
			Category: categoryByID[act.ID],
		}
		if !act.Timestamp.IsZero() {
			ea.Timestamp = act.Timestamp.Format(time.RFC3339)
		}
		entryActivities = append(entryActivities, ea)
		byType[act.Type]++
		bySource[act.Tool]++
	}

	var correlations []pipeline.Correlation
	var contextSummary string
	if organized != nil {
		correlations = organized.Correlations
		contextSummary = organized.ContextSummary
	}

	skills := extractedSkills(activities, organized, generated)

	return &Entry{
		EntryMetadata: Metadata{
			Title:       title,
			Date:        now.Format("2006-01-02"),
			Type:        entryType,
			Workspace:   opts.Workspace,
			Privacy:     privacy,
			IsAutomated: true,
			CreatedAt:   now,
		},
		Context: Context{
			DateRange:       DateRange{Start: opts.DateStart, End: opts.DateEnd},
			SourcesIncluded: opts.SourcesSelected,
			TotalActivities: len(entryActivities),
			PrimaryFocus:    primaryFocus(organized, contextSummary),
		},
		Activities: entryActivities,
		Summary: SummaryStats{
			UniqueCollaborators: Collaborators(activities),
			UniqueReviewers:     Reviewers(activities),
			ActivitiesByType:    byType,
			ActivitiesBySource:  bySource,
			TotalTimeRangeHours: TimeRangeHours(activities),
			ExtractedSkills:     skills,
		},
		Correlations: correlations,
		Artifacts:    Artifacts(activities),
	}
}

// TimeRangeHours is the rounded span in hours between the earliest and
// latest parseable timestamps, or 0 when fewer than two are parseable.
func TimeRangeHours(activities []normalize.Activity) int {
	var min, max time.Time
	count := 0
	for _, act := range activities {
		if act.Timestamp.IsZero() {
			continue
		}
		if count == 0 || act.Timestamp.Before(min) {
			min = act.Timestamp
		}
		if count == 0 || act.Timestamp.After(max) {
			max = act.Timestamp
		}
		count++
	}
	if count < 2 {
		return 0
	}
	return int(math.Round(max.Sub(min).Hours()))
}

// categoryIndex maps each analyzed activity ID to its category label.
func categoryIndex(organized *pipeline.OrganizedData) map[string]string {
	idx := make(map[string]string)
	if organized == nil {
		return idx
	}
	for _, cat := range organized.Categories {
		for _, item := range cat.Items {
			idx[item.ID] = cat.Label
		}
	}
	return idx
}

// primaryFocus is the category with the most items, falling back to the
// AI context summary.
func primaryFocus(organized *pipeline.OrganizedData, contextSummary string) string {
	if organized != nil {
		best := ""
		bestCount := 0
		for _, cat := range organized.Categories {
			if len(cat.Items) > bestCount {
				best = cat.Label
				bestCount = len(cat.Items)
			}
		}
		if best != "" {
			return best
		}
	}
	return contextSummary
}

func extractedSkills(activities []normalize.Activity, organized *pipeline.OrganizedData, generated *pipeline.GeneratedContent) []string {
	if organized != nil && len(organized.ExtractedSkills) > 0 {
		return organized.ExtractedSkills
	}
	if generated != nil && len(generated.Skills) > 0 {
		return generated.Skills
	}
	return ExtractSkills(activities)
}
