package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// PromptConfirmSubmit presents a pending submit to the user
const PromptConfirmSubmit = "slotfill_confirm_submit"

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt(PromptConfirmSubmit,
		mcp.WithPromptDescription("Presents a pending image assignment to the user for confirmation before it is written."),
		mcp.WithArgument("action_description",
			mcp.ArgumentDescription("A human-readable description of the write (e.g. \"Assign 3 image(s) to 2 field(s) on page 12\")."),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("fields",
			mcp.ArgumentDescription("Comma separated names of the fields that will be written."),
		),
		mcp.WithArgument("original_tool_name",
			mcp.ArgumentDescription("The tool to call again once the user approved."),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("original_tool_args_json",
			mcp.ArgumentDescription("The JSON arguments of the original call."),
			mcp.RequiredArgument(),
		),
	), s.handleConfirmSubmitPrompt)
}

func (s *Server) handleConfirmSubmitPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	action := args["action_description"]
	if action == "" {
		return nil, fmt.Errorf("missing or invalid 'action_description' in prompt arguments")
	}
	tool := args["original_tool_name"]
	if tool == "" {
		tool = ToolSubmitAssignments
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Image Assignment Confirmation Required**\n\nACTION: %s.", action)
	if fields := args["fields"]; fields != "" {
		fmt.Fprintf(&b, "\nFIELDS: %s", fields)
	}
	b.WriteString("\n\n**WARNING:** Existing images in these fields will be replaced.")
	b.WriteString("\n\nPlease explicitly state if you 'approve' or 'deny' this action.")
	fmt.Fprintf(&b, "\n(On approval the AI will call '%s' again with confirmed set to true.)", tool)

	return mcp.NewGetPromptResult("Confirm image assignment", []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(b.String())),
	}), nil
}
