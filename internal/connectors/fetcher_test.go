package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func fetchServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if r.URL.Path != "/mcp/fetch-activities" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			ToolTypes []string  `json:"toolTypes"`
			DateRange DateRange `json:"dateRange"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sources": req.ToolTypes,
			"rawData": map[string]any{
				"github": map[string]any{"pullRequests": []any{}},
			},
		})
	}))
}

func TestFetchActivitiesCaches(t *testing.T) {
	calls := 0
	srv := fetchServer(t, &calls)
	defer srv.Close()

	f := NewFetcher(srv.URL, "", 8, time.Minute)
	dr := DateRange{Start: "2026-01-10", End: "2026-01-10"}

	first, err := f.FetchActivities(context.Background(), []string{"github", "jira"}, dr)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !reflect.DeepEqual(first.Sources, []string{"github", "jira"}) {
		t.Errorf("sources = %v", first.Sources)
	}

	// Same window, different tool order: still one backend call.
	if _, err := f.FetchActivities(context.Background(), []string{"jira", "github"}, dr); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("backend calls = %d, want 1", calls)
	}

	// A different window misses the cache.
	if _, err := f.FetchActivities(context.Background(), []string{"github", "jira"}, DateRange{Start: "2026-01-11", End: "2026-01-11"}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 2 {
		t.Errorf("backend calls = %d, want 2", calls)
	}
}

func TestFetchCacheExpiry(t *testing.T) {
	calls := 0
	srv := fetchServer(t, &calls)
	defer srv.Close()

	f := NewFetcher(srv.URL, "", 8, 10*time.Millisecond)
	dr := DateRange{Start: "2026-01-10", End: "2026-01-10"}

	if _, err := f.FetchActivities(context.Background(), []string{"github"}, dr); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := f.FetchActivities(context.Background(), []string{"github"}, dr); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expired entry served from cache; calls = %d", calls)
	}
}

func TestFetchCacheDisabled(t *testing.T) {
	calls := 0
	srv := fetchServer(t, &calls)
	defer srv.Close()

	f := NewFetcher(srv.URL, "", 0, time.Minute)
	dr := DateRange{Start: "2026-01-10", End: "2026-01-10"}
	for i := 0; i < 2; i++ {
		if _, err := f.FetchActivities(context.Background(), []string{"github"}, dr); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 with cache disabled", calls)
	}
}

func TestFetchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "integration expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "", 8, time.Minute)
	if _, err := f.FetchActivities(context.Background(), []string{"github"}, DateRange{}); err == nil {
		t.Fatal("expected error")
	}
}
