// Package assemble builds the canonical Format7 journal entry aggregate
// from selected activities and AI pipeline outputs. It is the client-side
// fallback for the backend transform endpoint and supplies the summary
// statistics both paths share.
package assemble

import (
	"time"

	"github.com/daybookhq/daybook/internal/pipeline"
)

// Entry is the canonical Format7 journal entry aggregate.
type Entry struct {
	EntryMetadata Metadata               `json:"entry_metadata"`
	Context       Context                `json:"context"`
	Activities    []EntryActivity        `json:"activities"`
	Summary       SummaryStats           `json:"summary"`
	Correlations  []pipeline.Correlation `json:"correlations"`
	Artifacts     []Artifact             `json:"artifacts"`
}

// Metadata describes the entry itself.
type Metadata struct {
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Workspace   string    `json:"workspace,omitempty"`
	Privacy     string    `json:"privacy"`
	IsAutomated bool      `json:"isAutomated"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateRange is the fetch window the activities came from.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Context summarizes where the entry's activities came from.
// SourcesIncluded lists every originally-selected tool, including tools
// that contributed zero activities.
type Context struct {
	DateRange       DateRange `json:"date_range"`
	SourcesIncluded []string  `json:"sources_included"`
	TotalActivities int       `json:"total_activities"`
	PrimaryFocus    string    `json:"primary_focus,omitempty"`
}

// EntryActivity is one included activity as it appears in the entry.
// Every ID traces back to a normalized activity that was selected at
// filter time.
type EntryActivity struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp,omitempty"`
	URL       string `json:"url,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Collaborator is a person synthesized from activity metadata.
type Collaborator struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
}

// SummaryStats aggregates across the included activities.
type SummaryStats struct {
	UniqueCollaborators []Collaborator `json:"unique_collaborators"`
	UniqueReviewers     []Collaborator `json:"unique_reviewers"`
	ActivitiesByType    map[string]int `json:"activities_by_type"`
	ActivitiesBySource  map[string]int `json:"activities_by_source"`
	TotalTimeRangeHours int            `json:"total_time_range_hours"`
	ExtractedSkills     []string       `json:"extracted_skills,omitempty"`
}

// Artifact is a linked file or document referenced by an activity.
type Artifact struct {
	Title  string `json:"title,omitempty"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}
