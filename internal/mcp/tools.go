package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sightgrid/sightgrid/internal/model"
)

// registerTools registers the sightgrid monitoring tools on the server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	srv.AddTool(
		mcp.NewTool("sightgrid_list_cameras",
			mcp.WithDescription(
				"List the cameras registered for an organization, including their "+
					"location, timezone, and active status. Use this first to discover "+
					"camera ids before querying events.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("org_id",
				mcp.Required(),
				mcp.Description("Organization id to list cameras for"),
			),
		),
		s.handleListCameras,
	)

	srv.AddTool(
		mcp.NewTool("sightgrid_query_events",
			mcp.WithDescription(
				"Query detection events with optional filtering by camera, event type "+
					"(person_detected, person_lost, heartbeat, system), minimum confidence, "+
					"and time range. Returns newest events first.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("org_id",
				mcp.Required(),
				mcp.Description("Organization id to query events for"),
			),
			mcp.WithString("camera_id",
				mcp.Description("Restrict to a single camera"),
			),
			mcp.WithString("event_type",
				mcp.Description("Restrict to one event type"),
			),
			mcp.WithNumber("min_confidence",
				mcp.Description("Minimum detection confidence (0-100)"),
			),
			mcp.WithString("start",
				mcp.Description("RFC 3339 lower bound on occurred_at"),
			),
			mcp.WithString("end",
				mcp.Description("RFC 3339 upper bound on occurred_at"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum events to return (default 50, max 500)"),
			),
		),
		s.handleQueryEvents,
	)

	srv.AddTool(
		mcp.NewTool("sightgrid_daily_stats",
			mcp.WithDescription(
				"Per-camera daily detection counts for the last N days. Useful for "+
					"spotting traffic patterns and quiet cameras.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("org_id",
				mcp.Required(),
				mcp.Description("Organization id"),
			),
			mcp.WithNumber("days",
				mcp.Description("Number of days to include (default 14)"),
			),
		),
		s.handleDailyStats,
	)

	srv.AddTool(
		mcp.NewTool("sightgrid_list_alerts",
			mcp.WithDescription(
				"List the organization's alert rules and the most recent alert log "+
					"entries, newest first.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("org_id",
				mcp.Required(),
				mcp.Description("Organization id"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum log entries to return (default 50)"),
			),
		),
		s.handleListAlerts,
	)
}

func (s *MCPServer) handleListCameras(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgID, err := request.RequireString("org_id")
	if err != nil {
		return toolError("missing required parameter %q", "org_id")
	}
	cameras, err := s.store.ListCameras(ctx, orgID)
	if err != nil {
		return toolError("list cameras: %v", err)
	}
	return successJSON(cameras)
}

func (s *MCPServer) handleQueryEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgID, err := request.RequireString("org_id")
	if err != nil {
		return toolError("missing required parameter %q", "org_id")
	}

	filter := model.EventFilter{
		OrgID:     orgID,
		CameraID:  request.GetString("camera_id", ""),
		EventType: request.GetString("event_type", ""),
		Limit:     clamp(request.GetInt("limit", 50), 1, 500),
	}
	if filter.EventType != "" && !model.ValidEventType(filter.EventType) {
		return toolError("invalid event_type %q", filter.EventType)
	}
	if f := request.GetFloat("min_confidence", -1); f >= 0 {
		filter.MinConfidence = &f
	}
	if raw := request.GetString("start", ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return toolError("start must be RFC 3339")
		}
		t = t.UTC()
		filter.Start = &t
	}
	if raw := request.GetString("end", ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return toolError("end must be RFC 3339")
		}
		t = t.UTC()
		filter.End = &t
	}

	events, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		return toolError("query events: %v", err)
	}
	return successJSON(events)
}

func (s *MCPServer) handleDailyStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgID, err := request.RequireString("org_id")
	if err != nil {
		return toolError("missing required parameter %q", "org_id")
	}
	days := clamp(request.GetInt("days", 14), 1, 365)

	stats, err := s.store.DailyStats(ctx, orgID, days)
	if err != nil {
		return toolError("daily stats: %v", err)
	}
	return successJSON(stats)
}

func (s *MCPServer) handleListAlerts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgID, err := request.RequireString("org_id")
	if err != nil {
		return toolError("missing required parameter %q", "org_id")
	}
	limit := clamp(request.GetInt("limit", 50), 1, 500)

	rules, err := s.store.ListAlertRules(ctx, orgID, "")
	if err != nil {
		return toolError("list alert rules: %v", err)
	}
	logs, err := s.store.ListAlertLogs(ctx, orgID, limit)
	if err != nil {
		return toolError("list alert logs: %v", err)
	}
	return successJSON(map[string]interface{}{
		"rules": rules,
		"logs":  logs,
	})
}

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way
// are visible to the calling agent so it can self-correct; they do NOT
// terminate the MCP session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// clamp constrains val to [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
