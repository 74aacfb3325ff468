package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dermind/dermind/internal/checkin"
	"github.com/dermind/dermind/internal/form"
	"github.com/dermind/dermind/internal/history"
	"github.com/dermind/dermind/internal/insight"
	"github.com/dermind/dermind/internal/logentry"
	"github.com/dermind/dermind/internal/storage"
)

const recentResourceSize = 10

// NewMCPServer creates an MCP server with the dermind tools and resources registered.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"dermind",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dermind: daily skin check-ins, flare history and pattern insights."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("checkin_step",
			mcp.WithDescription("Submit one step of today's check-in (status, barrier, lifestyle, triggers, emotion). The emotion step finalizes the log and returns its insight."),
			mcp.WithString("step", mcp.Description("Step name"), mcp.Required()),
			mcp.WithString("fields", mcp.Description("JSON object of field values for the step")),
		),
		mcpCheckinStep(deps),
	)

	s.AddTool(
		mcp.NewTool("history",
			mcp.WithDescription("List logged check-ins newest first with average itch and the most frequent food trigger."),
			mcp.WithString("window", mcp.Description("all (default) or 7d")),
			mcp.WithString("trigger", mcp.Description("Only logs that include this food trigger")),
		),
		mcpHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("latest_insight",
			mcp.WithDescription("Flare score, risk band, pattern hint and tip for the most recent check-in."),
		),
		mcpLatestInsight(deps),
	)

	s.AddTool(
		mcp.NewTool("set_display_name",
			mcp.WithDescription("Change the name shown on the dashboard."),
			mcp.WithString("name", mcp.Description("New display name"), mcp.Required()),
		),
		mcpSetDisplayName(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Baseline skin profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://history/recent",
			"Recent Check-ins",
			mcp.WithResourceDescription("Last 10 check-ins, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpCheckinStep(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("step")
		if err != nil {
			return mcpError("step is required"), nil
		}
		step, err := checkin.ParseStep(name)
		if err != nil {
			return mcpError(fmt.Sprintf("unknown step %q", name)), nil
		}

		fields := map[string]any{}
		if raw := req.GetString("fields", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &fields); err != nil {
				return mcpError(fmt.Sprintf("invalid fields JSON: %v", err)), nil
			}
		}

		res, err := deps.Wizard.Submit(ctx, step, fields)
		var verr *form.ValidationError
		switch {
		case errors.As(err, &verr):
			return mcpError(verr.Error()), nil
		case err != nil:
			return mcpError(fmt.Sprintf("check-in failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpHistory(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		window, err := history.ParseWindow(req.GetString("window", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		view, err := deps.History.View(ctx, history.Query{
			Window:  window,
			Trigger: req.GetString("trigger", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("loading history failed: %v", err)), nil
		}
		return mcpJSON(view)
	}
}

func mcpLatestInsight(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rec, all, err := deps.History.Latest(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpText("No check-ins logged yet."), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("loading history failed: %v", err)), nil
		}
		return mcpJSON(LatestInsight{
			Record:  rec,
			Lines:   rec.Entry.Lines(),
			Insight: insight.Evaluate(rec, all),
		})
	}
}

func mcpSetDisplayName(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		name, err = deps.Settings.SetDisplayName(ctx, name)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Name updated successfully! Now %s.", name)), nil
	}
}

func mcpResourceProfile(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stored, err := deps.Store.RecentRecords(recentResourceSize)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent check-ins: %w", err)
		}
		records, err := logentry.FromStorageList(stored)
		if err != nil {
			return nil, err
		}

		b, err := json.Marshal(history.Newest(records))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal check-ins: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
