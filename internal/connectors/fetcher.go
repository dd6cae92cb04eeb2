package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/normalize"
)

// DateRange is the fetch window, inclusive, as ISO dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FetchResult is the raw-fetch API response: which sources actually
// returned data, and the per-tool raw payloads. A tool whose fetch failed
// appears in RawData with a null payload.
type FetchResult struct {
	Sources []string          `json:"sources"`
	RawData normalize.RawData `json:"rawData"`
}

// Fetcher is the HTTP client for the raw activity fetch API, with an LRU
// cache so re-entering a step or a second session over the same window
// does not re-fetch.
type Fetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	cache    *lru.Cache[string, cachedFetch]
	cacheTTL time.Duration
}

type cachedFetch struct {
	result  *FetchResult
	fetched time.Time
}

// NewFetcher creates a fetch client. cacheSize <= 0 disables caching;
// cacheTTL <= 0 means 5 minutes.
func NewFetcher(baseURL, apiKey string, cacheSize int, cacheTTL time.Duration) *Fetcher {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	f := &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cacheTTL:   cacheTTL,
	}
	if cacheSize > 0 {
		f.cache, _ = lru.New[string, cachedFetch](cacheSize)
	}
	return f
}

type fetchRequest struct {
	ToolTypes []string  `json:"toolTypes"`
	DateRange DateRange `json:"dateRange"`
}

// FetchActivities fetches raw activity payloads for the given tools over
// the date range.
func (f *Fetcher) FetchActivities(ctx context.Context, tools []string, dateRange DateRange) (*FetchResult, error) {
	key := cacheKey(tools, dateRange)
	if f.cache != nil {
		if entry, ok := f.cache.Get(key); ok {
			if time.Since(entry.fetched) < f.cacheTTL {
				logging.Debug("fetch", "cache hit for %s", key)
				return entry.result, nil
			}
			f.cache.Remove(key)
		}
	}

	body, err := json.Marshal(fetchRequest{ToolTypes: tools, DateRange: dateRange})
	if err != nil {
		return nil, fmt.Errorf("marshal fetch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.baseURL+"/mcp/fetch-activities", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch activities: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fetch response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch API error (%d): %s", resp.StatusCode, logging.Truncate(string(respBody), 200))
	}

	var result FetchResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse fetch response: %w", err)
	}
	if result.RawData == nil {
		result.RawData = normalize.RawData{}
	}

	if f.cache != nil {
		f.cache.Add(key, cachedFetch{result: &result, fetched: time.Now()})
	}
	return &result, nil
}

func cacheKey(tools []string, dateRange DateRange) string {
	sorted := append([]string(nil), tools...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",") + "|" + dateRange.Start + "|" + dateRange.End
}
