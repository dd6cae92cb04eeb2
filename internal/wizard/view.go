package wizard

import (
	"github.com/daybookhq/daybook/internal/assemble"
	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
)

// ActivityView is one normalized activity plus its current selection
// state. Selected is derived from the session's selection set at
// snapshot time.
type ActivityView struct {
	normalize.Activity
	Selected bool `json:"selected"`
}

// State is a point-in-time snapshot of a session, safe to serialize and
// hand to clients. Mutating it has no effect on the session.
type State struct {
	SessionID string               `json:"sessionId"`
	Step      Step                 `json:"step"`
	Busy      bool                 `json:"busy"`
	Tools     []string             `json:"tools,omitempty"`
	DateRange connectors.DateRange `json:"dateRange"`
	Workspace string               `json:"workspace,omitempty"`
	Sources   []string             `json:"sources,omitempty"`

	TotalActivities int            `json:"totalActivities"`
	SelectedCount   int            `json:"selectedCount"`
	Activities      []ActivityView `json:"activities,omitempty"`

	Organized *pipeline.OrganizedData    `json:"organized,omitempty"`
	Generated *pipeline.GeneratedContent `json:"generated,omitempty"`
	Entry     *assemble.Entry            `json:"entry,omitempty"`

	EditableTitle       string `json:"editableTitle,omitempty"`
	EditableDescription string `json:"editableDescription,omitempty"`
}

// State snapshots the session. Selection flags on activities and on
// organized categories are recomputed from the selection set, so a
// stale Selected carried in pipeline output can never leak through.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		SessionID:           s.ID,
		Step:                s.step,
		Busy:                s.busy,
		Tools:               append([]string(nil), s.tools...),
		DateRange:           s.dateRange,
		Workspace:           s.workspace,
		Sources:             append([]string(nil), s.sources...),
		TotalActivities:     len(s.activities),
		SelectedCount:       s.sel.Count(),
		Entry:               s.entry,
		EditableTitle:       s.editableTitle,
		EditableDescription: s.editableDescription,
	}

	if len(s.activities) > 0 {
		st.Activities = make([]ActivityView, len(s.activities))
		for i, act := range s.activities {
			st.Activities[i] = ActivityView{Activity: act, Selected: s.sel.Has(act.ID)}
		}
	}

	if s.result != nil {
		st.Organized = reconcileOrganized(s.result.Organized, s.sel)
		st.Generated = s.result.Generated
	}
	return st
}

// reconcileOrganized copies the organized data with every item's
// Selected flag rewritten from the selection set.
func reconcileOrganized(org *pipeline.OrganizedData, sel interface{ Has(string) bool }) *pipeline.OrganizedData {
	if org == nil {
		return nil
	}
	out := *org
	out.Categories = make([]pipeline.Category, len(org.Categories))
	for i, cat := range org.Categories {
		items := make([]pipeline.AnalyzedActivity, len(cat.Items))
		for j, item := range cat.Items {
			item.Selected = sel.Has(item.ID)
			items[j] = item
		}
		cat.Items = items
		out.Categories[i] = cat
	}
	return &out
}
