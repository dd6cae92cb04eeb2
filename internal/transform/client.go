// Package transform is the HTTP client for the backend Format7 transform
// and network sanitization endpoints. When the backend is not configured
// the wizard falls back to client-side assembly.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/daybookhq/daybook/internal/assemble"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/pipeline"
)

// Client calls the transform endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a transform client. An empty baseURL means the backend
// transform is unavailable; callers check Configured.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether a backend transform endpoint is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Format7Request is the body for POST /mcp/transform-format7.
type Format7Request struct {
	Activities          []normalize.Activity       `json:"activities"`
	OrganizedData       *pipeline.OrganizedData    `json:"organizedData,omitempty"`
	Correlations        []pipeline.Correlation     `json:"correlations,omitempty"`
	GeneratedContent    *pipeline.GeneratedContent `json:"generatedContent,omitempty"`
	SelectedActivityIDs []string                   `json:"selectedActivityIds"`
	Options             map[string]any             `json:"options,omitempty"`
}

// TransformFormat7 asks the backend to assemble the Format7 entry.
func (c *Client) TransformFormat7(ctx context.Context, req Format7Request) (*assemble.Entry, error) {
	var entry assemble.Entry
	if err := c.post(ctx, "/mcp/transform-format7", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SanitizeRequest is the body for POST /mcp/sanitize-for-network.
type SanitizeRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	FullContent string          `json:"fullContent,omitempty"`
	Format7Data *assemble.Entry `json:"format7Data,omitempty"`
}

// SanitizeResult is the sanitized, network-shareable variant of an entry.
type SanitizeResult struct {
	NetworkTitle       string          `json:"networkTitle"`
	NetworkContent     string          `json:"networkContent"`
	Format7DataNetwork *assemble.Entry `json:"format7DataNetwork,omitempty"`
	SanitizationLog    []string        `json:"sanitizationLog,omitempty"`
}

// SanitizeForNetwork strips private details for the network-visible copy.
func (c *Client) SanitizeForNetwork(ctx context.Context, req SanitizeRequest) (*SanitizeResult, error) {
	var result SanitizeResult
	if err := c.post(ctx, "/mcp/sanitize-for-network", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("transform API error (%d): %s", resp.StatusCode, logging.Truncate(string(respBody), 200))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
