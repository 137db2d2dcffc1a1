package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolListPages         = "list_pages"
	ToolDiscoverSlots     = "discover_slots"
	ToolPlanAssignments   = "plan_assignments"
	ToolSubmitAssignments = "submit_assignments"
	ToolRefreshStats      = "refresh_stats"
	ToolQueryValues       = "query_values"
	ToolHealthCheck       = "health_check"
)

var numberItems = map[string]any{"type": "number"}

// registerTools adds every tool to the protocol server
func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolListPages,
		mcp.WithDescription("List pages that carry custom fields"),
	), s.handleListPages)

	s.mcp.AddTool(mcp.NewTool(ToolDiscoverSlots,
		mcp.WithDescription("List the image slots of a page in display order, including slots nested in repeaters, flexible content and groups"),
		mcp.WithNumber("page_id", mcp.Required(), mcp.Description("Page ID")),
	), s.handleDiscoverSlots)

	s.mcp.AddTool(mcp.NewTool(ToolPlanAssignments,
		mcp.WithDescription("Preview how a list of images would be spread over the slots of a page. Nothing is written."),
		mcp.WithNumber("page_id", mcp.Required(), mcp.Description("Page ID")),
		mcp.WithArray("image_ids", mcp.Required(), mcp.Items(numberItems),
			mcp.Description("Attachment IDs in the order they should be assigned")),
		mcp.WithArray("slots", mcp.Items(numberItems),
			mcp.Description("Slot indexes from discover_slots to fill (default: all)")),
		mcp.WithBoolean("replace_existing", mcp.DefaultBool(true),
			mcp.Description("Overwrite slots that already hold an image (default: true)")),
	), s.handlePlanAssignments)

	s.mcp.AddTool(mcp.NewTool(ToolSubmitAssignments,
		mcp.WithDescription("Write image assignments to a page (requires confirmation)"),
		mcp.WithNumber("page_id", mcp.Required(), mcp.Description("Page ID")),
		mcp.WithArray("assignments", mcp.Required(),
			mcp.Items(map[string]any{"type": "object"}),
			mcp.Description("Assignment records as returned by plan_assignments")),
		mcp.WithBoolean("confirmed",
			mcp.Description("Set after the user approved the slotfill_confirm_submit prompt")),
	), s.handleSubmitAssignments)

	s.mcp.AddTool(mcp.NewTool(ToolRefreshStats,
		mcp.WithDescription("Count total, empty and filled image slots per page. Counts are cached for five minutes."),
	), s.handlePageStats)

	s.mcp.AddTool(mcp.NewTool(ToolQueryValues,
		mcp.WithDescription("Evaluate a JSONPath expression against the stored field values of a page"),
		mcp.WithNumber("page_id", mcp.Required(), mcp.Description("Page ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("JSONPath expression, e.g. $.gallery or $.rows[*].photo")),
	), s.handleQueryValues)

	s.mcp.AddTool(mcp.NewTool(ToolHealthCheck,
		mcp.WithDescription("Report the health of the server and its store"),
	), s.handleHealthCheck)
}
