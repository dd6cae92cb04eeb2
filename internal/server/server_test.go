package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/entries"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
	"github.com/daybookhq/daybook/internal/wizard"
)

type stubFetcher struct{ raw normalize.RawData }

func (f *stubFetcher) FetchActivities(ctx context.Context, tools []string, dr connectors.DateRange) (*connectors.FetchResult, error) {
	return &connectors.FetchResult{Sources: tools, RawData: f.raw}, nil
}

type stubPipeline struct{}

func (p *stubPipeline) Run(ctx context.Context, filtered normalize.RawData, opts pipeline.RunOptions) (*pipeline.Result, error) {
	return &pipeline.Result{
		Organized: &pipeline.OrganizedData{SuggestedTitle: "A title"},
		Generated: &pipeline.GeneratedContent{Title: "Generated", Summary: "Summary"},
	}, nil
}

type stubCreator struct{}

func (c *stubCreator) CreateEntry(ctx context.Context, req entries.CreateRequest) (*entries.CreateResult, error) {
	return &entries.CreateResult{ID: "entry-1"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *wizard.Manager) {
	t.Helper()
	raw := normalize.RawData{
		"github": map[string]any{
			"pullRequests": []any{
				map[string]any{"number": float64(456), "title": "Add rate limiter"},
			},
		},
	}
	manager := wizard.NewManager(wizard.Deps{
		Fetcher:  &stubFetcher{raw: raw},
		Pipeline: &stubPipeline{},
		Creator:  &stubCreator{},
		Events:   logging.NewEventRing(64),
	}, time.Hour)
	t.Cleanup(manager.Shutdown)

	srv := New(Options{Manager: manager, Events: logging.NewEventRing(64)})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, manager
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestSessionFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, "POST", ts.URL+"/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %v", resp.StatusCode, body)
	}
	id, _ := body["sessionId"].(string)
	if id == "" {
		t.Fatalf("no session id in %v", body)
	}
	base := fmt.Sprintf("%s/api/sessions/%s", ts.URL, id)

	resp, body = doJSON(t, "POST", base+"/fetch", map[string]any{
		"tools":     []string{"github"},
		"dateRange": map[string]string{"start": "2026-01-10", "end": "2026-01-10"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch: %d %v", resp.StatusCode, body)
	}
	if body["step"] != "rawReview" {
		t.Errorf("step = %v", body["step"])
	}

	resp, body = doJSON(t, "POST", base+"/toggle", map[string]string{"id": "github-pr-456"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: %d %v", resp.StatusCode, body)
	}
	if n, _ := body["selectedCount"].(float64); n != 0 {
		t.Errorf("selectedCount = %v", body["selectedCount"])
	}

	// Re-select everything and run the pipeline.
	doJSON(t, "POST", base+"/selection", map[string]any{"all": true, "selected": true})
	resp, body = doJSON(t, "POST", base+"/continue", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("continue: %d %v", resp.StatusCode, body)
	}
	if body["step"] != "preview" {
		t.Errorf("step = %v", body["step"])
	}

	resp, body = doJSON(t, "POST", base+"/create", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, "DELETE", base, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "GET", base, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after close: %d", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, "GET", ts.URL+"/api/sessions/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: %d", resp.StatusCode)
	}

	_, body := doJSON(t, "POST", ts.URL+"/api/sessions", nil)
	id, _ := body["sessionId"].(string)
	base := fmt.Sprintf("%s/api/sessions/%s", ts.URL, id)

	// Step guard violations are conflicts, not server faults.
	resp, _ = doJSON(t, "POST", base+"/continue", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("continue in select: %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, "POST", base+"/fetch", map[string]any{"tools": []string{"notatool"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown tool: %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, "POST", base+"/fetch", map[string]any{"tools": []string{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty tools: %d", resp.StatusCode)
	}
}

func TestListTools(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, body := doJSON(t, "GET", ts.URL+"/api/tools", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tools: %d", resp.StatusCode)
	}
	tools, _ := body["tools"].([]any)
	if len(tools) == 0 {
		t.Error("no tools listed")
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, body := doJSON(t, "GET", ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}
