package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/daybookhq/daybook/internal/normalize"
)

func TestRunSequencesStages(t *testing.T) {
	var stagesSeen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp/process-stage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}

		var req struct {
			Stage string          `json:"stage"`
			Input json.RawMessage `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		stagesSeen = append(stagesSeen, req.Stage)

		var result any
		switch req.Stage {
		case "analyze":
			result = map[string]any{"analyzed": true}
		case "correlate":
			// Correlate must receive the analyze output, not the raw input.
			if !strings.Contains(string(req.Input), "analyzed") {
				t.Errorf("correlate input missing analyze output: %s", req.Input)
			}
			result = OrganizedData{
				Categories:     []Category{{Label: "Infra", Items: []AnalyzedActivity{{ID: "github-pr-1"}}}},
				SuggestedTitle: "Infra week",
			}
		case "generate":
			if !strings.Contains(string(req.Input), "Infra") {
				t.Errorf("generate input missing correlate output: %s", req.Input)
			}
			result = GeneratedContent{Title: "Generated title", Summary: "Did infra."}
		}
		json.NewEncoder(w).Encode(map[string]any{"result": result})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 5*time.Second)
	result, err := c.Run(context.Background(), normalize.RawData{"github": map[string]any{}}, RunOptions{Tools: []string{"github"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"analyze", "correlate", "generate"}
	if len(stagesSeen) != 3 {
		t.Fatalf("stages = %v", stagesSeen)
	}
	for i, stage := range want {
		if stagesSeen[i] != stage {
			t.Errorf("stage %d = %s, want %s", i, stagesSeen[i], stage)
		}
	}

	if result.Organized.SuggestedTitle != "Infra week" {
		t.Errorf("organized = %+v", result.Organized)
	}
	if result.Generated.Title != "Generated title" {
		t.Errorf("generated = %+v", result.Generated)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	_, err := c.Run(context.Background(), normalize.RawData{}, RunOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "analyze") {
		t.Errorf("error should name the failing stage: %v", err)
	}
	if calls != 1 {
		t.Errorf("later stages ran after a failure: %d calls", calls)
	}
}

func TestProcessStageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 50*time.Millisecond)
	_, err := c.ProcessStage(context.Background(), StageAnalyze, nil, nil)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("timeout not reported distinctly: %v", err)
	}
}
