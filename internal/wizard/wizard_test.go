package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/entries"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
)

// fakeFetcher returns a canned result, optionally blocking until released.
type fakeFetcher struct {
	result  *connectors.FetchResult
	err     error
	block   chan struct{}
	entered chan struct{}
	calls   int
}

func (f *fakeFetcher) FetchActivities(ctx context.Context, tools []string, dr connectors.DateRange) (*connectors.FetchResult, error) {
	f.calls++
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakePipeline records the filtered payload it was handed.
type fakePipeline struct {
	result   *pipeline.Result
	err      error
	filtered normalize.RawData
	calls    int
}

func (p *fakePipeline) Run(ctx context.Context, filtered normalize.RawData, opts pipeline.RunOptions) (*pipeline.Result, error) {
	p.calls++
	p.filtered = filtered
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type fakeCreator struct {
	err   error
	req   entries.CreateRequest
	calls int
}

func (c *fakeCreator) CreateEntry(ctx context.Context, req entries.CreateRequest) (*entries.CreateResult, error) {
	c.calls++
	c.req = req
	if c.err != nil {
		return nil, c.err
	}
	return &entries.CreateResult{ID: "entry-1"}, nil
}

func testRaw() normalize.RawData {
	return normalize.RawData{
		"github": map[string]any{
			"pullRequests": []any{
				map[string]any{"number": float64(456), "title": "Add rate limiter", "createdAt": "2026-01-10T09:00:00Z"},
			},
			"issues": []any{
				map[string]any{"number": float64(88), "title": "Timeout bug"},
			},
		},
		"jira": map[string]any{
			"issues": []any{
				map[string]any{"key": "FEAT-789", "summary": "Rate limiting epic"},
			},
		},
	}
}

func testPipelineResult() *pipeline.Result {
	return &pipeline.Result{
		Organized: &pipeline.OrganizedData{
			Categories: []pipeline.Category{
				{Label: "Infrastructure", Items: []pipeline.AnalyzedActivity{{ID: "github-pr-456"}}},
			},
			SuggestedTitle: "Rate limiting work",
		},
		Generated: &pipeline.GeneratedContent{Title: "Shipped rate limiter", Summary: "Built it."},
	}
}

func newTestSession(fetcher Fetcher, pipe PipelineRunner, creator EntryCreator) *Session {
	return newSession("test", Deps{Fetcher: fetcher, Pipeline: pipe, Creator: creator})
}

func fetchOK(t *testing.T, s *Session) {
	t.Helper()
	err := s.Fetch(context.Background(), []string{"github", "jira"}, connectors.DateRange{Start: "2026-01-10", End: "2026-01-10"}, "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestHappyPath(t *testing.T) {
	fetcher := &fakeFetcher{result: &connectors.FetchResult{Sources: []string{"github", "jira"}, RawData: testRaw()}}
	pipe := &fakePipeline{result: testPipelineResult()}
	creator := &fakeCreator{}
	s := newTestSession(fetcher, pipe, creator)

	if s.Step() != StepSelect {
		t.Fatalf("initial step = %s", s.Step())
	}

	fetchOK(t, s)
	if s.Step() != StepRawReview {
		t.Fatalf("after fetch step = %s", s.Step())
	}
	state := s.State()
	if state.TotalActivities != 3 || state.SelectedCount != 3 {
		t.Fatalf("fetch should select everything: %d/%d", state.SelectedCount, state.TotalActivities)
	}

	// Deselect the issue; only the PR and the epic go downstream.
	if err := s.Toggle("github-issue-88"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	if err := s.Continue(context.Background()); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if s.Step() != StepPreview {
		t.Fatalf("after continue step = %s", s.Step())
	}

	// The pipeline saw only selected records.
	got := normalize.ExtractAll(pipe.filtered, []string{"github", "jira"})
	if len(got) != 2 {
		t.Fatalf("pipeline input had %d activities, want 2", len(got))
	}
	for _, a := range got {
		if a.ID == "github-issue-88" {
			t.Error("deselected activity leaked into the pipeline input")
		}
	}

	state = s.State()
	if state.EditableTitle != "Shipped rate limiter" {
		t.Errorf("editable title = %q", state.EditableTitle)
	}
	if state.Entry == nil {
		t.Fatal("no entry in preview")
	}

	result, err := s.CreateEntry(context.Background())
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if result.ID != "entry-1" {
		t.Errorf("result ID = %q", result.ID)
	}
	// Creation never auto-closes; the caller closes after acknowledgment.
	if s.Step() != StepPreview {
		t.Errorf("step after create = %s, want preview", s.Step())
	}
	if len(creator.req.Activities) != 2 {
		t.Errorf("creator got %d activities", len(creator.req.Activities))
	}
}

func TestBackTwiceFromPreviewLandsRawReview(t *testing.T) {
	fetcher := &fakeFetcher{result: &connectors.FetchResult{RawData: testRaw()}}
	pipe := &fakePipeline{result: testPipelineResult()}
	s := newTestSession(fetcher, pipe, &fakeCreator{})

	fetchOK(t, s)
	if err := s.Continue(context.Background()); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	if err := s.Back(); err != nil {
		t.Fatalf("first Back: %v", err)
	}
	if s.Step() != StepCorrelations {
		t.Fatalf("after first back step = %s", s.Step())
	}
	if err := s.Back(); err != nil {
		t.Fatalf("second Back: %v", err)
	}
	if s.Step() != StepRawReview {
		t.Fatalf("after second back step = %s", s.Step())
	}

	// Nothing was lost on the way back.
	state := s.State()
	if state.TotalActivities != 3 || state.SelectedCount != 3 {
		t.Errorf("back lost data: %d/%d", state.SelectedCount, state.TotalActivities)
	}
	if fetcher.calls != 1 {
		t.Errorf("back should not re-fetch; calls = %d", fetcher.calls)
	}
}

func TestFailedCreateKeepsSessionOpen(t *testing.T) {
	fetcher := &fakeFetcher{result: &connectors.FetchResult{RawData: testRaw()}}
	pipe := &fakePipeline{result: testPipelineResult()}
	creator := &fakeCreator{err: errors.New("api down")}
	s := newTestSession(fetcher, pipe, creator)

	fetchOK(t, s)
	if err := s.Continue(context.Background()); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if err := s.SetTitle("My edited title"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}

	if _, err := s.CreateEntry(context.Background()); err == nil {
		t.Fatal("expected creation error")
	}
	if s.Step() != StepPreview {
		t.Fatalf("failed create moved step to %s", s.Step())
	}
	if s.State().EditableTitle != "My edited title" {
		t.Error("failed create lost the user's edits")
	}

	// Retry succeeds without redoing earlier steps.
	creator.err = nil
	if _, err := s.CreateEntry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if pipe.calls != 1 {
		t.Errorf("retrying creation re-ran the pipeline %d times", pipe.calls-1)
	}
}

func TestEmptyFetchStaysInSelect(t *testing.T) {
	fetcher := &fakeFetcher{result: &connectors.FetchResult{RawData: normalize.RawData{"github": map[string]any{}}}}
	s := newTestSession(fetcher, &fakePipeline{}, &fakeCreator{})

	err := s.Fetch(context.Background(), []string{"github"}, connectors.DateRange{}, "")
	if !errors.Is(err, ErrNoActivities) {
		t.Fatalf("err = %v, want ErrNoActivities", err)
	}
	if s.Step() != StepSelect {
		t.Errorf("step = %s, want select", s.Step())
	}

	// A later fetch over a better range still works.
	fetcher.result = &connectors.FetchResult{RawData: testRaw()}
	fetchOK(t, s)
	if s.Step() != StepRawReview {
		t.Errorf("step = %s", s.Step())
	}
}

func TestFetchErrorStaysInSelect(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("backend unreachable")}
	s := newTestSession(fetcher, &fakePipeline{}, &fakeCreator{})

	if err := s.Fetch(context.Background(), []string{"github"}, connectors.DateRange{}, ""); err == nil {
		t.Fatal("expected fetch error")
	}
	if s.Step() != StepSelect {
		t.Errorf("step = %s", s.Step())
	}
}

func TestPipelineFailureStaysInCorrelations(t *testing.T) {
	fetcher := &fakeFetcher{result: &connectors.FetchResult{RawData: testRaw()}}
	pipe := &fakePipeline{err: errors.New("analyze stage timed out")}
	s := newTestSession(fetcher, pipe, &fakeCreator{})

	fetchOK(t, s)
	if err := s.Continue(context.Background()); err == nil {
		t.Fatal("expected pipeline error")
	}
	if s.Step() != StepCorrelations {
		t.Fatalf("step = %s, want correlations for retry", s.Step())
	}

	pipe.err = nil
	pipe.result = testPipelineResult()
	if err := s.RunPipeline(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.Step() != StepPreview {
		t.Errorf("step = %s", s.Step())
	}
}

func TestStepGuards(t *testing.T) {
	fetcher := &fakeFetcher{result: &connectors.FetchResult{RawData: testRaw()}}
	s := newTestSession(fetcher, &fakePipeline{result: testPipelineResult()}, &fakeCreator{})

	if err := s.Toggle("github-pr-456"); !errors.Is(err, ErrBadStep) {
		t.Errorf("Toggle in select: %v", err)
	}
	if err := s.Continue(context.Background()); !errors.Is(err, ErrBadStep) {
		t.Errorf("Continue in select: %v", err)
	}
	if err := s.Back(); !errors.Is(err, ErrBadStep) {
		t.Errorf("Back in select: %v", err)
	}

	fetchOK(t, s)
	if err := s.ClearSelection(); err != nil {
		t.Fatalf("ClearSelection: %v", err)
	}
	if err := s.Continue(context.Background()); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("Continue with empty selection: %v", err)
	}
	if _, err := s.CreateEntry(context.Background()); !errors.Is(err, ErrBadStep) {
		t.Errorf("CreateEntry in rawReview: %v", err)
	}
}

func TestTitleRequired(t *testing.T) {
	fetcher := &fakeFetcher{result: &connectors.FetchResult{RawData: testRaw()}}
	s := newTestSession(fetcher, &fakePipeline{result: testPipelineResult()}, &fakeCreator{})

	fetchOK(t, s)
	if err := s.Continue(context.Background()); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if err := s.SetTitle("   "); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	if _, err := s.CreateEntry(context.Background()); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("err = %v, want ErrTitleRequired", err)
	}
}

func TestBusyGuardAndCloseMidFetch(t *testing.T) {
	fetcher := &fakeFetcher{
		result:  &connectors.FetchResult{RawData: testRaw()},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	s := newTestSession(fetcher, &fakePipeline{}, &fakeCreator{})

	done := make(chan error, 1)
	go func() {
		done <- s.Fetch(context.Background(), []string{"github"}, connectors.DateRange{}, "")
	}()
	<-fetcher.entered

	if err := s.Back(); !errors.Is(err, ErrBusy) {
		t.Errorf("Back while busy: %v", err)
	}
	if err := s.Toggle("x"); !errors.Is(err, ErrBusy) {
		t.Errorf("Toggle while busy: %v", err)
	}

	// Close is the one operation allowed mid-flight.
	s.Close()
	if s.Step() != StepClosed {
		t.Fatalf("step = %s", s.Step())
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
			t.Errorf("abandoned fetch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not unblock after close")
	}

	if s.State().TotalActivities != 0 {
		t.Error("closed session retained fetched data")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestSession(&fakeFetcher{}, &fakePipeline{}, &fakeCreator{})
	s.Close()
	s.Close()
	if s.Step() != StepClosed {
		t.Errorf("step = %s", s.Step())
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(Deps{Fetcher: &fakeFetcher{}, Pipeline: &fakePipeline{}, Creator: &fakeCreator{}}, time.Hour)
	defer m.Shutdown()

	s := m.Start()
	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get: %v", err)
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Get missing: %v", err)
	}

	if err := m.Close(s.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNoSession) {
		t.Error("closed session still retrievable")
	}
	if err := m.Close(s.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("double close: %v", err)
	}
}
