package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/daybookhq/daybook/internal/assemble"
	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/entries"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/metrics"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
	"github.com/daybookhq/daybook/internal/selection"
	"github.com/daybookhq/daybook/internal/transform"
)

// Session is one journal-entry creation run. All fields are owned by the
// session for its lifetime; nothing survives Close except what was handed
// to the entry-creation collaborator.
type Session struct {
	ID   string
	deps Deps

	mu       sync.Mutex
	step     Step
	busy     bool
	opCancel context.CancelFunc

	// select step inputs
	tools     []string
	dateRange connectors.DateRange
	workspace string

	// fetched data
	sources    []string
	raw        normalize.RawData
	activities []normalize.Activity
	sel        *selection.Selection

	// pipeline outputs
	result *pipeline.Result

	// preview
	entry               *assemble.Entry
	network             *transform.SanitizeResult
	editableTitle       string
	editableDescription string

	createdAt  time.Time
	lastActive time.Time
}

func newSession(id string, deps Deps) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		deps:       deps,
		step:       StepSelect,
		sel:        selection.New(),
		createdAt:  now,
		lastActive: now,
	}
}

// Step returns the current wizard step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// checkReady verifies the session is open, idle, and in one of the given
// steps. Caller must hold the mutex.
func (s *Session) checkReady(steps ...Step) error {
	if s.step == StepClosed {
		return ErrClosed
	}
	if s.busy {
		return ErrBusy
	}
	for _, st := range steps {
		if s.step == st {
			s.lastActive = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: in %s", ErrBadStep, s.step)
}

// opContext derives the context used for one network operation and
// registers its cancel so Close can abandon the call. Caller must hold
// the mutex.
func (s *Session) opContext(ctx context.Context) context.Context {
	opCtx, cancel := context.WithCancel(ctx)
	s.opCancel = cancel
	return opCtx
}

// finishOp clears the busy flag. Returns ErrClosed when the session was
// closed while the operation was in flight, in which case its results
// must be discarded.
func (s *Session) finishOp() error {
	s.busy = false
	s.opCancel = nil
	if s.step == StepClosed {
		return ErrClosed
	}
	return nil
}

// Fetch pulls raw activity for the chosen tools and window. On success
// with at least one extractable activity the session advances to raw
// review with everything selected; an empty result keeps the session in
// select with ErrNoActivities.
func (s *Session) Fetch(ctx context.Context, tools []string, dateRange connectors.DateRange, workspace string) error {
	s.mu.Lock()
	if err := s.checkReady(StepSelect); err != nil {
		s.mu.Unlock()
		return err
	}
	s.busy = true
	opCtx := s.opContext(ctx)
	s.mu.Unlock()

	s.deps.event(s.ID, "fetch started", map[string]any{"tools": tools, "start": dateRange.Start, "end": dateRange.End})
	result, err := s.deps.Fetcher.FetchActivities(opCtx, tools, dateRange)
	metrics.ObserveFetch(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ferr := s.finishOp(); ferr != nil {
		return ferr
	}
	if err != nil {
		s.deps.event(s.ID, "fetch failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("fetch activities: %w", err)
	}

	activities := normalize.ExtractAll(result.RawData, tools)
	if len(activities) == 0 {
		s.deps.event(s.ID, "fetch returned no activities", nil)
		return ErrNoActivities
	}

	s.tools = tools
	s.dateRange = dateRange
	s.workspace = workspace
	s.sources = result.Sources
	s.raw = result.RawData
	s.activities = activities
	s.sel = selection.New()
	for _, act := range activities {
		s.sel.Add(act.ID)
	}
	s.step = StepRawReview

	if s.deps.History != nil {
		if err := s.deps.History.StartRun(s.ID, tools); err != nil {
			logging.Warn("wizard", "record run start: %v", err)
		}
	}
	s.deps.event(s.ID, "entered rawReview", map[string]any{"activities": len(activities)})
	return nil
}

// Toggle flips one activity's inclusion during raw review.
func (s *Session) Toggle(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(StepRawReview); err != nil {
		return err
	}
	s.sel.Toggle(id)
	return nil
}

// SetSelected bulk-sets the inclusion of a group of activities
// (category-level select/deselect all).
func (s *Session) SetSelected(ids []string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(StepRawReview); err != nil {
		return err
	}
	if selected {
		s.sel.AddAll(ids)
	} else {
		s.sel.RemoveAll(ids)
	}
	return nil
}

// SelectAll selects every fetched activity.
func (s *Session) SelectAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(StepRawReview); err != nil {
		return err
	}
	for _, act := range s.activities {
		s.sel.Add(act.ID)
	}
	return nil
}

// ClearSelection deselects everything.
func (s *Session) ClearSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(StepRawReview); err != nil {
		return err
	}
	s.sel.Clear()
	return nil
}

// Continue advances from raw review to correlations and eagerly runs the
// AI pipeline. On pipeline failure the session stays in correlations; the
// user re-triggers with RunPipeline.
func (s *Session) Continue(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkReady(StepRawReview); err != nil {
		s.mu.Unlock()
		return err
	}
	selected := s.sel.Count()
	if selected == 0 {
		s.mu.Unlock()
		return ErrNothingSelected
	}
	s.step = StepCorrelations
	s.mu.Unlock()

	s.deps.event(s.ID, "entered correlations", map[string]any{"selected": selected})
	return s.runPipeline(ctx)
}

// RunPipeline re-runs the AI pipeline from the correlations step, e.g.
// after a failure.
func (s *Session) RunPipeline(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkReady(StepCorrelations); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.sel.Count() == 0 {
		s.mu.Unlock()
		return ErrNothingSelected
	}
	s.mu.Unlock()
	return s.runPipeline(ctx)
}

// runPipeline filters the raw data to the selection, runs the three AI
// stages in order, builds the Format7 entry, and advances to preview.
func (s *Session) runPipeline(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.step != StepCorrelations {
		s.mu.Unlock()
		return fmt.Errorf("%w: in %s", ErrBadStep, s.step)
	}
	s.busy = true
	opCtx := s.opContext(ctx)

	// The filter runs to completion before any stage request is issued:
	// the filtered payload is the analyze input.
	filtered := normalize.FilterBySelection(s.raw, s.tools, s.sel)
	selected := s.selectedActivitiesLocked()
	selectedIDs := s.sel.IDs()
	opts := pipeline.RunOptions{
		Tools:     append([]string(nil), s.tools...),
		DateStart: s.dateRange.Start,
		DateEnd:   s.dateRange.End,
		Workspace: s.workspace,
	}
	s.mu.Unlock()

	start := time.Now()
	result, err := s.deps.Pipeline.Run(opCtx, filtered, opts)
	metrics.ObserveStage("full_run", time.Since(start), err)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ferr := s.finishOp(); ferr != nil {
			return ferr
		}
		s.deps.event(s.ID, "pipeline failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("run pipeline: %w", err)
	}

	entry, err := s.buildEntry(opCtx, selected, selectedIDs, result, opts)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ferr := s.finishOp(); ferr != nil {
			return ferr
		}
		s.deps.event(s.ID, "entry assembly failed", map[string]any{"error": err.Error()})
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ferr := s.finishOp(); ferr != nil {
		return ferr
	}
	s.result = result
	s.entry = entry
	s.editableTitle = entry.EntryMetadata.Title
	s.editableDescription = previewDescription(result)
	s.step = StepPreview
	s.deps.event(s.ID, "entered preview", map[string]any{"title": s.editableTitle})
	return nil
}

// buildEntry prefers the backend transform and falls back to client-side
// assembly when no transform endpoint is configured.
func (s *Session) buildEntry(ctx context.Context, selected []normalize.Activity, selectedIDs []string, result *pipeline.Result, opts pipeline.RunOptions) (*assemble.Entry, error) {
	assembleOpts := assemble.Options{
		Workspace:       opts.Workspace,
		DateStart:       opts.DateStart,
		DateEnd:         opts.DateEnd,
		SourcesSelected: opts.Tools,
	}

	if s.deps.Transformer != nil && s.deps.Transformer.Configured() {
		entry, err := s.deps.Transformer.TransformFormat7(ctx, transform.Format7Request{
			Activities:          selected,
			OrganizedData:       result.Organized,
			Correlations:        result.Organized.Correlations,
			GeneratedContent:    result.Generated,
			SelectedActivityIDs: selectedIDs,
			Options: map[string]any{
				"workspace":  opts.Workspace,
				"date_start": opts.DateStart,
				"date_end":   opts.DateEnd,
				"sources":    opts.Tools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("transform format7: %w", err)
		}
		return entry, nil
	}

	return assemble.Assemble(selected, result.Organized, result.Generated, assembleOpts), nil
}

func previewDescription(result *pipeline.Result) string {
	if result.Generated != nil && result.Generated.Summary != "" {
		return result.Generated.Summary
	}
	if result.Organized != nil {
		return result.Organized.ContextSummary
	}
	return ""
}

// Back steps to the previous wizard step without losing fetched data.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step == StepClosed {
		return ErrClosed
	}
	if s.busy {
		return ErrBusy
	}
	switch s.step {
	case StepPreview:
		s.step = StepCorrelations
	case StepCorrelations:
		s.step = StepRawReview
	case StepRawReview:
		s.step = StepSelect
	default:
		return fmt.Errorf("%w: in %s", ErrBadStep, s.step)
	}
	s.lastActive = time.Now()
	s.deps.event(s.ID, "went back", map[string]any{"step": string(s.step)})
	return nil
}

// SetTitle updates the editable entry title during preview.
func (s *Session) SetTitle(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(StepPreview); err != nil {
		return err
	}
	s.editableTitle = title
	return nil
}

// SetDescription updates the editable entry description during preview.
func (s *Session) SetDescription(description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(StepPreview); err != nil {
		return err
	}
	s.editableDescription = description
	return nil
}

// CreateEntry hands the final aggregate to the entry-creation
// collaborator. The session stays open in preview regardless of outcome:
// a failed creation must not lose the user's edits, and a successful one
// is closed by the caller's acknowledgment.
func (s *Session) CreateEntry(ctx context.Context) (*entries.CreateResult, error) {
	s.mu.Lock()
	if err := s.checkReady(StepPreview); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if strings.TrimSpace(s.editableTitle) == "" {
		s.mu.Unlock()
		return nil, ErrTitleRequired
	}
	s.busy = true
	opCtx := s.opContext(ctx)

	title := s.editableTitle
	description := s.editableDescription
	workspace := s.workspace
	entry := s.entry
	selected := s.selectedActivitiesLocked()
	var skills []string
	if entry != nil {
		skills = entry.Summary.ExtractedSkills
	}
	s.mu.Unlock()

	// Network copy is best-effort: entry creation proceeds without it.
	var network *transform.SanitizeResult
	if s.deps.Transformer != nil && s.deps.Transformer.Configured() {
		var err error
		network, err = s.deps.Transformer.SanitizeForNetwork(opCtx, transform.SanitizeRequest{
			Title:       title,
			Description: description,
			Format7Data: entry,
		})
		if err != nil {
			logging.Warn("wizard", "sanitize for network: %v", err)
			network = nil
		}
	}

	result, err := s.deps.Creator.CreateEntry(opCtx, entries.CreateRequest{
		Title:        title,
		Description:  description,
		Skills:       skills,
		Activities:   selected,
		Format7Entry: entry,
		Workspace:    workspace,
		NetworkEntry: network,
	})
	metrics.ObserveEntryCreation(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ferr := s.finishOp(); ferr != nil {
		return nil, ferr
	}
	if err != nil {
		s.deps.event(s.ID, "entry creation failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("create entry: %w", err)
	}
	s.network = network

	if s.deps.History != nil {
		rec := entries.Record{
			RemoteID:    result.ID,
			Title:       title,
			Description: description,
			Workspace:   workspace,
			Tools:       append([]string(nil), s.tools...),
			Activities:  len(selected),
			Entry:       entry,
		}
		if err := s.deps.History.SaveEntry(rec); err != nil {
			logging.Warn("wizard", "save entry history: %v", err)
		}
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.EntryCreated(title, len(selected))
	}
	s.deps.event(s.ID, "entry created", map[string]any{"remote_id": result.ID})
	return result, nil
}

// Close resets the session and abandons any in-flight request. Safe to
// call in any state, including mid-fetch.
func (s *Session) Close() {
	s.mu.Lock()
	if s.step == StepClosed {
		s.mu.Unlock()
		return
	}
	if s.opCancel != nil {
		s.opCancel()
		s.opCancel = nil
	}
	fetched := len(s.activities)
	selected := 0
	if s.sel != nil {
		selected = s.sel.Count()
	}

	s.step = StepClosed
	s.busy = false
	s.raw = nil
	s.activities = nil
	s.sel = selection.New()
	s.result = nil
	s.entry = nil
	s.network = nil
	s.editableTitle = ""
	s.editableDescription = ""
	s.mu.Unlock()

	if s.deps.History != nil {
		if err := s.deps.History.FinishRun(s.ID, "closed", fetched, selected); err != nil {
			logging.Warn("wizard", "record run finish: %v", err)
		}
	}
	s.deps.event(s.ID, "closed", nil)
}

// selectedActivitiesLocked returns the activities currently in the
// selection, in fetch order. Caller must hold the mutex.
func (s *Session) selectedActivitiesLocked() []normalize.Activity {
	out := make([]normalize.Activity, 0, s.sel.Count())
	for _, act := range s.activities {
		if s.sel.Has(act.ID) {
			out = append(out, act)
		}
	}
	return out
}
