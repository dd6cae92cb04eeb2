// Package pipeline is the HTTP client for the backend AI pipeline that
// analyzes, correlates, and summarizes a filtered set of raw activities.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/normalize"
)

// Client calls the AI pipeline API.
type Client struct {
	baseURL      string
	apiKey       string
	stageTimeout time.Duration
	httpClient   *http.Client
}

// NewClient creates a pipeline client. stageTimeout bounds each individual
// stage call; zero means 60s.
func NewClient(baseURL, apiKey string, stageTimeout time.Duration) *Client {
	if stageTimeout <= 0 {
		stageTimeout = 60 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		stageTimeout: stageTimeout,
		httpClient:   &http.Client{Timeout: stageTimeout + 5*time.Second},
	}
}

type processStageRequest struct {
	Stage   Stage          `json:"stage"`
	Input   any            `json:"input"`
	Options map[string]any `json:"options,omitempty"`
}

type processStageResponse struct {
	Result json.RawMessage `json:"result"`
}

// ProcessStage runs one pipeline stage and returns its raw result.
// A deadline-exceeded error is reported as a distinct timeout error so the
// caller can surface it separately from connectivity failures.
func (c *Client) ProcessStage(ctx context.Context, stage Stage, input any, options map[string]any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	body, err := json.Marshal(processStageRequest{Stage: stage, Input: input, Options: options})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", stage, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/mcp/process-stage", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", stage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s stage timed out after %v", stage, c.stageTimeout)
		}
		return nil, fmt.Errorf("%s stage: %w", stage, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", stage, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s stage returned %d: %s", stage, resp.StatusCode, logging.Truncate(string(respBody), 200))
	}

	var out processStageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", stage, err)
	}

	logging.Debug("pipeline", "%s stage done in %v", stage, time.Since(start).Round(time.Millisecond))
	return out.Result, nil
}

// RunOptions carries caller parameters threaded into the stage calls.
type RunOptions struct {
	Tools     []string
	DateStart string
	DateEnd   string
	Workspace string
}

// Run executes analyze, correlate, and generate in strict sequence over the
// filtered raw data. Each stage consumes the previous stage's resolved
// output; no stage starts before its predecessor returns.
func (c *Client) Run(ctx context.Context, filtered normalize.RawData, opts RunOptions) (*Result, error) {
	stageOpts := map[string]any{
		"tools":      opts.Tools,
		"date_start": opts.DateStart,
		"date_end":   opts.DateEnd,
	}
	if opts.Workspace != "" {
		stageOpts["workspace"] = opts.Workspace
	}

	analyzed, err := c.ProcessStage(ctx, StageAnalyze, filtered, stageOpts)
	if err != nil {
		return nil, err
	}

	correlated, err := c.ProcessStage(ctx, StageCorrelate, json.RawMessage(analyzed), stageOpts)
	if err != nil {
		return nil, err
	}

	var organized OrganizedData
	if err := json.Unmarshal(correlated, &organized); err != nil {
		return nil, fmt.Errorf("parse organized data: %w", err)
	}

	generatedRaw, err := c.ProcessStage(ctx, StageGenerate, json.RawMessage(correlated), stageOpts)
	if err != nil {
		return nil, err
	}

	var generated GeneratedContent
	if err := json.Unmarshal(generatedRaw, &generated); err != nil {
		return nil, fmt.Errorf("parse generated content: %w", err)
	}

	return &Result{Organized: &organized, Generated: &generated}, nil
}
