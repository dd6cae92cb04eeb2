// Package entries handles the final hand-off of an assembled journal entry:
// the entry-creation API client and a local SQLite history of what was
// journaled.
package entries

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
	"github.com/daybookhq/daybook/internal/transform"
)

// CreateRequest is the aggregate handed to the entry-creation API when the
// user confirms the preview.
type CreateRequest struct {
	Title        string                    `json:"title"`
	Description  string                    `json:"description"`
	Skills       []string                  `json:"skills,omitempty"`
	Activities   []normalize.Activity      `json:"activities"`
	Format7Entry *assemble.Entry           `json:"format7Entry"`
	Workspace    string                    `json:"workspaceEntry,omitempty"`
	NetworkEntry *transform.SanitizeResult `json:"networkEntry,omitempty"`
	GoalLinking  map[string]any            `json:"goalLinking,omitempty"`
}

// CreateResult is the created entry's identity.
type CreateResult struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Creator is the HTTP client for the entry-creation API.
type Creator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCreator creates an entry-creation client.
func NewCreator(baseURL, apiKey string) *Creator {
	return &Creator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateEntry submits the final aggregate. The wizard stays open on
// failure so the user's edits are not lost.
func (c *Creator) CreateEntry(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/entries", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read create response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("entry API error (%d): %s", resp.StatusCode, logging.Truncate(string(respBody), 200))
	}

	var result CreateResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}
	return &result, nil
}
