// Package connectors talks to the multi-connector layer: the integration
// registry, the raw activity fetch API, and optional local stdio connector
// processes for tools not served by the backend.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Integration describes one connected SaaS tool.
type Integration struct {
	ToolType    string    `json:"toolType"`
	Name        string    `json:"name,omitempty"`
	IsConnected bool      `json:"isConnected"`
	LastSyncAt  time.Time `json:"lastSyncAt,omitempty"`
}

// Validation is one tool's credential check result.
type Validation struct {
	Status string `json:"status"` // valid, expired, invalid
	Error  string `json:"error,omitempty"`
}

// Registry is the HTTP client for the tool connection registry.
type Registry struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRegistry creates a registry client.
func NewRegistry(baseURL, apiKey string) *Registry {
	return &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListIntegrations returns all known integrations and their connection state.
func (r *Registry) ListIntegrations(ctx context.Context) ([]Integration, error) {
	var out struct {
		Integrations []Integration `json:"integrations"`
	}
	if err := r.get(ctx, "/mcp/integrations", &out); err != nil {
		return nil, err
	}
	return out.Integrations, nil
}

// ValidateIntegrations checks every connected tool's credentials.
func (r *Registry) ValidateIntegrations(ctx context.Context) (map[string]Validation, error) {
	var out struct {
		Validations map[string]Validation `json:"validations"`
	}
	if err := r.post(ctx, "/mcp/integrations/validate", nil, &out); err != nil {
		return nil, err
	}
	return out.Validations, nil
}

func (r *Registry) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return r.do(req, out)
}

func (r *Registry) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, out)
}

func (r *Registry) do(req *http.Request, out any) error {
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("registry API error (%d): %s", resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
