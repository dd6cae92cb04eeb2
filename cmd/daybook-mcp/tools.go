package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/normalize"
	"github.com/daybookhq/daybook/internal/wizard"
)

type tools struct {
	manager  *wizard.Manager
	registry *connectors.Registry
}

func (t *tools) session(args map[string]any) (*wizard.Session, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	return t.manager.Get(id)
}

func stateResult(sess *wizard.Session) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(sess.State(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal state: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func startTool() mcp.Tool {
	return mcp.NewTool("journal_start",
		mcp.WithDescription("Start a new journal entry session. Returns the session ID; follow with journal_fetch to pull activity."),
	)
}

func (t *tools) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := t.manager.Start()
	return stateResult(sess)
}

func fetchTool() mcp.Tool {
	return mcp.NewTool("journal_fetch",
		mcp.WithDescription("Fetch raw work activity for the chosen tools and date range. On success everything is selected and the session moves to raw review. Supported tools: "+strings.Join(normalize.SupportedTools(), ", ")),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from journal_start")),
		mcp.WithString("tools", mcp.Required(), mcp.Description("Comma-separated tool names, e.g. \"github,jira,slack\"")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Range start, ISO date or RFC3339")),
		mcp.WithString("end", mcp.Required(), mcp.Description("Range end, ISO date or RFC3339")),
		mcp.WithString("workspace", mcp.Description("Optional workspace to file the entry under")),
	)
}

func (t *tools) handleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	toolsArg, _ := args["tools"].(string)
	var toolNames []string
	for _, name := range strings.Split(toolsArg, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !normalize.KnownTool(name) {
			return mcp.NewToolResultError("unknown tool: " + name), nil
		}
		toolNames = append(toolNames, name)
	}
	if len(toolNames) == 0 {
		return mcp.NewToolResultError("tools is required"), nil
	}

	start, _ := args["start"].(string)
	end, _ := args["end"].(string)
	workspace, _ := args["workspace"].(string)

	if err := sess.Fetch(ctx, toolNames, connectors.DateRange{Start: start, End: end}, workspace); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return stateResult(sess)
}

func selectTool() mcp.Tool {
	return mcp.NewTool("journal_select",
		mcp.WithDescription("Adjust which fetched activities are included. Toggle one ID, set a group, or select/deselect everything."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("toggle", mcp.Description("One activity ID to toggle")),
		mcp.WithString("ids", mcp.Description("Comma-separated activity IDs to set")),
		mcp.WithBoolean("selected", mcp.Description("Desired state for ids (default true)")),
		mcp.WithBoolean("all", mcp.Description("Apply selected to every activity")),
	)
}

func (t *tools) handleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	selected := true
	if v, ok := args["selected"].(bool); ok {
		selected = v
	}

	switch {
	case args["toggle"] != nil:
		id, _ := args["toggle"].(string)
		err = sess.Toggle(id)
	case args["all"] == true && selected:
		err = sess.SelectAll()
	case args["all"] == true:
		err = sess.ClearSelection()
	default:
		idsArg, _ := args["ids"].(string)
		var ids []string
		for _, id := range strings.Split(idsArg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return mcp.NewToolResultError("one of toggle, ids, or all is required"), nil
		}
		err = sess.SetSelected(ids, selected)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return stateResult(sess)
}

func reviewTool() mcp.Tool {
	return mcp.NewTool("journal_review",
		mcp.WithDescription("Show the session's current state: step, fetched activities with selection flags, and preview content when available."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
}

func (t *tools) handleReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return stateResult(sess)
}

func correlateTool() mcp.Tool {
	return mcp.NewTool("journal_correlate",
		mcp.WithDescription("Advance past raw review and run the AI pipeline (analyze, correlate, generate) over the selected activities. On success the session lands in preview; on failure it stays in correlations and this tool can be called again to retry."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
}

func (t *tools) handleCorrelate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if sess.Step() == wizard.StepCorrelations {
		err = sess.RunPipeline(ctx)
	} else {
		err = sess.Continue(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return stateResult(sess)
}

func previewTool() mcp.Tool {
	return mcp.NewTool("journal_preview",
		mcp.WithDescription("Show the assembled entry preview: title, description, and the full Format7 entry."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
}

func (t *tools) handlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state := sess.State()
	if state.Entry == nil {
		return mcp.NewToolResultError("no preview yet; run journal_correlate first"), nil
	}
	data, err := json.MarshalIndent(map[string]any{
		"title":       state.EditableTitle,
		"description": state.EditableDescription,
		"entry":       state.Entry,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal preview: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func editTool() mcp.Tool {
	return mcp.NewTool("journal_edit",
		mcp.WithDescription("Edit the entry title or description during preview."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
	)
}

func (t *tools) handleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if title, ok := args["title"].(string); ok && title != "" {
		if err := sess.SetTitle(title); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if desc, ok := args["description"].(string); ok && desc != "" {
		if err := sess.SetDescription(desc); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return stateResult(sess)
}

func backTool() mcp.Tool {
	return mcp.NewTool("journal_back",
		mcp.WithDescription("Step back to the previous wizard step. Fetched activities and selections are kept."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
}

func (t *tools) handleBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.Back(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return stateResult(sess)
}

func createTool() mcp.Tool {
	return mcp.NewTool("journal_create",
		mcp.WithDescription("Create the journal entry from the preview. The session stays open afterwards; call journal_close to finish."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
}

func (t *tools) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sess, err := t.session(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := sess.CreateEntry(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Entry created: %s", result.ID)), nil
}

func closeTool() mcp.Tool {
	return mcp.NewTool("journal_close",
		mcp.WithDescription("Close the session and discard its state. Safe at any step, including while a fetch or pipeline run is in flight."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
}

func (t *tools) handleClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	id, _ := args["session_id"].(string)
	if err := t.manager.Close(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Session closed"), nil
}

func integrationsTool() mcp.Tool {
	return mcp.NewTool("integrations_list",
		mcp.WithDescription("List connected SaaS integrations and their connection state."),
	)
}

func (t *tools) handleIntegrations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	integrations, err := t.registry.ListIntegrations(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(integrations, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal integrations: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
