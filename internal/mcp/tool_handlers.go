package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/uploader"
	"github.com/contentops/slotfill/pkg/types"
)

// Errors whose message is safe to hand back to the client as is
var clientErrors = []error{
	uploader.ErrInvalidPage,
	uploader.ErrNoImages,
	uploader.ErrNoSlots,
	uploader.ErrInvalidAssignment,
	uploader.ErrNoValidAssignments,
	uploader.ErrPartialWrite,
	uploader.ErrSubmitInProgress,
	uploader.ErrInvalidQuery,
}

type pageArgs struct {
	PageID int64 `json:"page_id"`
}

type submitArgs struct {
	types.SubmitRequest
	Confirmed bool `json:"confirmed"`
}

type queryArgs struct {
	PageID int64  `json:"page_id"`
	Path   string `json:"path"`
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, err := s.uploader.Pages(ctx)
	if err != nil {
		return s.errorResult(req, err), nil
	}
	return jsonResult(map[string]interface{}{
		"pages": pages,
		"count": len(pages),
	})
}

func (s *Server) handleDiscoverSlots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args pageArgs
	if err := bindArguments(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.uploader.Discover(ctx, args.PageID)
	if err != nil {
		return s.errorResult(req, err), nil
	}
	return jsonResult(resp)
}

func (s *Server) handlePlanAssignments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args types.PlanRequest
	if err := bindArguments(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.uploader.Plan(ctx, args)
	if err != nil {
		return s.errorResult(req, err), nil
	}
	return jsonResult(resp)
}

// handleSubmitAssignments writes directly in batch or auto-approve mode.
// Otherwise the first call returns confirmation details and the client
// repeats it with confirmed set once the user approved.
func (s *Server) handleSubmitAssignments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args submitArgs
	if err := bindArguments(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !args.Confirmed && !s.options.BatchMode && !s.options.AutoApprove {
		return s.confirmationRequired(args.SubmitRequest)
	}

	resp, err := s.uploader.Submit(ctx, args.SubmitRequest)
	if err != nil {
		return s.errorResult(req, err), nil
	}
	return jsonResult(resp)
}

func (s *Server) confirmationRequired(req types.SubmitRequest) (*mcp.CallToolResult, error) {
	images := 0
	names := make([]string, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		images += len(a.AttachmentIDs)
		names = append(names, a.FieldName)
	}
	action := fmt.Sprintf("Assign %d image(s) to %d field(s) on page %d", images, len(req.Assignments), req.PageID)

	rawArgs, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submit arguments: %w", err)
	}

	s.audit.LogSystem(audit.EventSubmit, "Submit: Confirmation required", map[string]interface{}{
		"session_id": s.sessionID,
		"page_id":    req.PageID,
	})

	return jsonResult(map[string]interface{}{
		"status":  "confirmation_required",
		"message": fmt.Sprintf("Confirmation required to %s. Use the '%s' prompt, then call %s again with confirmed set to true.", action, PromptConfirmSubmit, ToolSubmitAssignments),
		"confirmation_details": map[string]interface{}{
			"prompt_name": PromptConfirmSubmit,
			"prompt_arguments": map[string]interface{}{
				"action_description":      action,
				"fields":                  strings.Join(names, ", "),
				"original_tool_name":      ToolSubmitAssignments,
				"original_tool_args_json": string(rawArgs),
			},
		},
	})
}

func (s *Server) handlePageStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.uploader.PageStats(ctx)
	if err != nil {
		return s.errorResult(req, err), nil
	}
	return jsonResult(map[string]interface{}{
		"pages": stats,
		"count": len(stats),
	})
}

func (s *Server) handleQueryValues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args queryArgs
	if err := bindArguments(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	values, err := s.uploader.QueryValues(ctx, args.PageID, args.Path)
	if err != nil {
		return s.errorResult(req, err), nil
	}
	return jsonResult(map[string]interface{}{
		"page_id": args.PageID,
		"path":    args.Path,
		"values":  values,
	})
}

func (s *Server) handleHealthCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.HealthCheck(ctx))
}

// bindArguments decodes the tool arguments into dst
func bindArguments(req mcp.CallToolRequest, dst any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("invalid parameters for %s: %w", req.Params.Name, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid parameters for %s: %w", req.Params.Name, err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// errorResult turns a service error into a tool error. Errors that are not
// part of the uploader's contract are logged and replaced by a generic text.
func (s *Server) errorResult(req mcp.CallToolRequest, err error) *mcp.CallToolResult {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return mcp.NewToolResultError(err.Error())
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return mcp.NewToolResultError("operation timed out")
	}
	s.logger.Error("tool failed", zap.String("tool", req.Params.Name), zap.Error(err))
	s.audit.LogError("mcp", err, map[string]interface{}{
		"tool":       req.Params.Name,
		"session_id": s.sessionID,
	})
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: internal error", req.Params.Name))
}
