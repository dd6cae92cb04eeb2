package normalize

import (
	"fmt"
	"sort"
	"strings"
)

// collectionSpec describes how one sub-collection of a tool's payload maps
// to normalized activities. keyFields are tried in order for the native
// unique key; when none is present the array index is used.
type collectionSpec struct {
	name        string
	subtype     string
	typeLabel   string
	keyFields   []string
	titleFields []string
	timeFields  []string
}

// id derives the activity ID for one record. This is the single place IDs
// come from: extraction and filtering both call it, so they can never drift.
func (c collectionSpec) id(tool string, item map[string]any, index int) string {
	key := firstString(item, c.keyFields, "")
	if key == "" {
		key = fmt.Sprintf("%d", index)
	}
	parts := []string{tool}
	if c.subtype != "" {
		parts = append(parts, c.subtype)
	}
	parts = append(parts, key)
	return strings.Join(parts, "-")
}

// arrayID is the fallback ID for index-addressed records of tools with no
// template. Shared by extraction and filtering.
func arrayID(tool string, index int) string {
	return fmt.Sprintf("%s-%d", tool, index)
}

type toolSpec []collectionSpec

// urlFields are the common vendor spellings of a record's canonical link.
var urlFields = []string{"url", "html_url", "htmlUrl", "webUrl", "web_url", "link", "permalink", "webViewLink", "join_url"}

// toolSpecs is the per-tool template table. One row per sub-collection;
// Extract and FilterBySelection both consume it.
var toolSpecs = map[string]toolSpec{
	"github": {
		{
			name: "pullRequests", subtype: "pr", typeLabel: "Pull Request",
			keyFields:   []string{"number", "id"},
			titleFields: []string{"title"},
			timeFields:  []string{"createdAt", "created_at", "updatedAt", "updated_at"},
		},
		{
			name: "issues", subtype: "issue", typeLabel: "Issue",
			keyFields:   []string{"number", "id"},
			titleFields: []string{"title"},
			timeFields:  []string{"createdAt", "created_at", "updatedAt", "updated_at"},
		},
		{
			name: "commits", subtype: "commit", typeLabel: "Commit",
			keyFields:   []string{"sha", "id"},
			titleFields: []string{"message", "title"},
			timeFields:  []string{"date", "committedDate", "createdAt", "created_at"},
		},
		{
			name: "reviews", subtype: "review", typeLabel: "Code Review",
			keyFields:   []string{"id"},
			titleFields: []string{"title", "body"},
			timeFields:  []string{"submittedAt", "submitted_at", "createdAt", "created_at"},
		},
	},
	"jira": {
		{
			// Jira issue keys (FEAT-789) already carry a project prefix, so
			// no extra subtype segment: the ID is jira-FEAT-789.
			name: "issues", subtype: "", typeLabel: "Jira Issue",
			keyFields:   []string{"key", "id"},
			titleFields: []string{"summary", "title"},
			timeFields:  []string{"updated", "created", "createdAt"},
		},
		{
			name: "comments", subtype: "comment", typeLabel: "Jira Comment",
			keyFields:   []string{"id"},
			titleFields: []string{"body", "title"},
			timeFields:  []string{"created", "createdAt", "updated"},
		},
		{
			name: "worklogs", subtype: "worklog", typeLabel: "Jira Worklog",
			keyFields:   []string{"id"},
			titleFields: []string{"comment", "title"},
			timeFields:  []string{"started", "created"},
		},
	},
	"slack": {
		{
			name: "messages", subtype: "msg", typeLabel: "Slack Message",
			keyFields:   []string{"ts", "id"},
			titleFields: []string{"text", "title"},
			timeFields:  []string{"ts", "timestamp"},
		},
		{
			name: "threads", subtype: "thread", typeLabel: "Slack Thread",
			keyFields:   []string{"thread_ts", "ts", "id"},
			titleFields: []string{"text", "title"},
			timeFields:  []string{"thread_ts", "ts", "timestamp"},
		},
	},
	"figma": {
		{
			name: "files", subtype: "file", typeLabel: "Figma File",
			keyFields:   []string{"key", "id"},
			titleFields: []string{"name", "title"},
			timeFields:  []string{"last_modified", "lastModified", "created_at"},
		},
		{
			name: "comments", subtype: "comment", typeLabel: "Figma Comment",
			keyFields:   []string{"id"},
			titleFields: []string{"message", "text"},
			timeFields:  []string{"created_at", "createdAt"},
		},
	},
	"outlook": {
		{
			name: "emails", subtype: "email", typeLabel: "Email",
			keyFields:   []string{"id"},
			titleFields: []string{"subject", "title"},
			timeFields:  []string{"receivedDateTime", "sentDateTime", "createdDateTime"},
		},
		{
			name: "events", subtype: "event", typeLabel: "Calendar Event",
			keyFields:   []string{"id"},
			titleFields: []string{"subject", "title"},
			timeFields:  []string{"start", "startDateTime", "createdDateTime"},
		},
	},
	"teams": {
		{
			name: "messages", subtype: "msg", typeLabel: "Teams Message",
			keyFields:   []string{"id"},
			titleFields: []string{"subject", "body", "text"},
			timeFields:  []string{"createdDateTime", "lastModifiedDateTime"},
		},
		{
			name: "meetings", subtype: "meeting", typeLabel: "Teams Meeting",
			keyFields:   []string{"id"},
			titleFields: []string{"subject", "title"},
			timeFields:  []string{"startDateTime", "start", "createdDateTime"},
		},
	},
	"confluence": {
		{
			name: "pages", subtype: "page", typeLabel: "Confluence Page",
			keyFields:   []string{"id"},
			titleFields: []string{"title"},
			timeFields:  []string{"when", "createdDate", "created", "lastModified"},
		},
		{
			name: "blogposts", subtype: "blog", typeLabel: "Confluence Blog Post",
			keyFields:   []string{"id"},
			titleFields: []string{"title"},
			timeFields:  []string{"when", "createdDate", "created"},
		},
		{
			name: "comments", subtype: "comment", typeLabel: "Confluence Comment",
			keyFields:   []string{"id"},
			titleFields: []string{"title", "body"},
			timeFields:  []string{"when", "createdDate", "created"},
		},
	},
	"onenote": {
		{
			name: "pages", subtype: "page", typeLabel: "OneNote Page",
			keyFields:   []string{"id"},
			titleFields: []string{"title"},
			timeFields:  []string{"lastModifiedDateTime", "createdDateTime"},
		},
		{
			name: "notebooks", subtype: "notebook", typeLabel: "OneNote Notebook",
			keyFields:   []string{"id"},
			titleFields: []string{"displayName", "title"},
			timeFields:  []string{"lastModifiedDateTime", "createdDateTime"},
		},
	},
	"google_workspace": {
		{
			name: "documents", subtype: "doc", typeLabel: "Google Doc",
			keyFields:   []string{"id", "documentId"},
			titleFields: []string{"name", "title"},
			timeFields:  []string{"modifiedTime", "createdTime"},
		},
		{
			name: "spreadsheets", subtype: "sheet", typeLabel: "Google Sheet",
			keyFields:   []string{"id", "spreadsheetId"},
			titleFields: []string{"name", "title"},
			timeFields:  []string{"modifiedTime", "createdTime"},
		},
		{
			name: "presentations", subtype: "slides", typeLabel: "Google Slides",
			keyFields:   []string{"id", "presentationId"},
			titleFields: []string{"name", "title"},
			timeFields:  []string{"modifiedTime", "createdTime"},
		},
		{
			name: "events", subtype: "event", typeLabel: "Calendar Event",
			keyFields:   []string{"id"},
			titleFields: []string{"summary", "title"},
			timeFields:  []string{"start", "startTime", "created"},
		},
	},
	"zoom": {
		{
			name: "meetings", subtype: "meeting", typeLabel: "Zoom Meeting",
			keyFields:   []string{"id", "uuid"},
			titleFields: []string{"topic", "title"},
			timeFields:  []string{"start_time", "created_at"},
		},
		{
			name: "recordings", subtype: "recording", typeLabel: "Zoom Recording",
			keyFields:   []string{"id", "uuid"},
			titleFields: []string{"topic", "title"},
			timeFields:  []string{"recording_start", "start_time"},
		},
	},
	"sharepoint": {
		{
			name: "files", subtype: "file", typeLabel: "SharePoint File",
			keyFields:   []string{"id"},
			titleFields: []string{"name", "title"},
			timeFields:  []string{"lastModifiedDateTime", "createdDateTime"},
		},
		{
			name: "pages", subtype: "page", typeLabel: "SharePoint Page",
			keyFields:   []string{"id"},
			titleFields: []string{"title", "name"},
			timeFields:  []string{"lastModifiedDateTime", "createdDateTime"},
		},
	},
	"onedrive": {
		{
			name: "files", subtype: "file", typeLabel: "OneDrive File",
			keyFields:   []string{"id"},
			titleFields: []string{"name", "title"},
			timeFields:  []string{"lastModifiedDateTime", "createdDateTime"},
		},
	},
}

// SupportedTools returns the tool types with a template table entry.
func SupportedTools() []string {
	out := make([]string, 0, len(toolSpecs))
	for tool := range toolSpecs {
		out = append(out, tool)
	}
	sort.Strings(out)
	return out
}

// KnownTool reports whether tool has a template table entry.
func KnownTool(tool string) bool {
	_, ok := toolSpecs[tool]
	return ok
}
