// Package wizard drives the journal-entry creation flow: fetch raw
// activity for the chosen tools and window, let the user prune the raw
// list, run the AI pipeline over the surviving subset, and assemble the
// Format7 entry for preview and final creation.
//
// All state for one run lives in a Session. Steps are strictly linear;
// Back never re-fetches, and Close abandons in-flight work.
package wizard

import (
	"context"
	"errors"

	"github.com/daybookhq/daybook/internal/assemble"
	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/entries"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
	"github.com/daybookhq/daybook/internal/transform"
)

// Step is one wizard state.
type Step string

const (
	StepSelect       Step = "select"
	StepRawReview    Step = "rawReview"
	StepCorrelations Step = "correlations"
	StepPreview      Step = "preview"
	StepClosed       Step = "closed"
)

// Guard violations surfaced to callers. These map to client errors, not
// server faults.
var (
	ErrBusy            = errors.New("an operation is already in flight")
	ErrBadStep         = errors.New("operation not valid in the current step")
	ErrClosed          = errors.New("session is closed")
	ErrNothingSelected = errors.New("no activities selected")
	ErrNoActivities    = errors.New("no activities found for the chosen tools and date range")
	ErrTitleRequired   = errors.New("title must not be empty")
	ErrNoSession       = errors.New("no such session")
)

// Fetcher fetches raw per-tool activity payloads.
type Fetcher interface {
	FetchActivities(ctx context.Context, tools []string, dateRange connectors.DateRange) (*connectors.FetchResult, error)
}

// PipelineRunner executes the analyze/correlate/generate stages.
type PipelineRunner interface {
	Run(ctx context.Context, filtered normalize.RawData, opts pipeline.RunOptions) (*pipeline.Result, error)
}

// Transformer is the backend Format7 transform; when unconfigured the
// session assembles the entry client-side.
type Transformer interface {
	Configured() bool
	TransformFormat7(ctx context.Context, req transform.Format7Request) (*assemble.Entry, error)
	SanitizeForNetwork(ctx context.Context, req transform.SanitizeRequest) (*transform.SanitizeResult, error)
}

// EntryCreator submits the final aggregate.
type EntryCreator interface {
	CreateEntry(ctx context.Context, req entries.CreateRequest) (*entries.CreateResult, error)
}

// History is the optional local audit/history store.
type History interface {
	StartRun(sessionID string, tools []string) error
	FinishRun(sessionID, status string, fetched, selected int) error
	SaveEntry(rec entries.Record) error
}

// Notifier is told about created entries. Failures must not block
// creation.
type Notifier interface {
	EntryCreated(title string, activityCount int)
}

// Deps are the session's external collaborators. Fetcher, Pipeline, and
// Creator are required; the rest are optional.
type Deps struct {
	Fetcher     Fetcher
	Pipeline    PipelineRunner
	Transformer Transformer
	Creator     EntryCreator
	History     History
	Notifier    Notifier
	Events      *logging.EventRing
}

func (d Deps) event(sessionID, message string, data map[string]any) {
	if d.Events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["session"] = sessionID
	d.Events.Append("wizard", message, data)
}
