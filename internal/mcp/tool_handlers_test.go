package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contentops/slotfill/internal/uploader"
	"github.com/contentops/slotfill/pkg/types"
)

// Mock uploader
type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Pages(ctx context.Context) ([]types.Page, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Page), args.Error(1)
}

func (m *mockUploader) Discover(ctx context.Context, pageID int64) (*types.DiscoverResponse, error) {
	args := m.Called(pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.DiscoverResponse), args.Error(1)
}

func (m *mockUploader) Plan(ctx context.Context, req types.PlanRequest) (*types.PlanResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PlanResponse), args.Error(1)
}

func (m *mockUploader) Submit(ctx context.Context, req types.SubmitRequest) (*types.SubmitResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SubmitResponse), args.Error(1)
}

func (m *mockUploader) PageStats(ctx context.Context) (map[int64]types.PageStats, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]types.PageStats), args.Error(1)
}

func (m *mockUploader) QueryValues(ctx context.Context, pageID int64, path string) ([]any, error) {
	args := m.Called(pageID, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]any), args.Error(1)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newMockServer(t *testing.T, options *ServerOptions) (*Server, *mockUploader) {
	t.Helper()
	up := &mockUploader{}
	t.Cleanup(func() { up.AssertExpectations(t) })
	return NewServer(up, fakePinger{}, nil, zap.NewNop(), options), up
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, dst any) {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), dst))
}

func TestHandleListPages(t *testing.T) {
	s, up := newMockServer(t, nil)
	up.On("Pages").Return([]types.Page{{ID: 1, Title: "Home", Status: "publish"}}, nil)

	result, err := s.handleListPages(context.Background(), callRequest(ToolListPages, nil))
	require.NoError(t, err)

	var got struct {
		Pages []types.Page `json:"pages"`
		Count int          `json:"count"`
	}
	decodeResult(t, result, &got)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "Home", got.Pages[0].Title)
}

func TestHandleDiscoverSlots(t *testing.T) {
	s, up := newMockServer(t, nil)
	up.On("Discover", int64(7)).Return(&types.DiscoverResponse{
		PageID: 7,
		Fields: []types.FlattenedSlot{{Index: 0, Name: "hero", Label: "Hero", Kind: types.SlotImage}},
		Count:  1,
	}, nil)

	result, err := s.handleDiscoverSlots(context.Background(), callRequest(ToolDiscoverSlots, map[string]any{"page_id": 7}))
	require.NoError(t, err)

	var got types.DiscoverResponse
	decodeResult(t, result, &got)
	assert.Equal(t, int64(7), got.PageID)
	assert.Equal(t, "hero", got.Fields[0].Name)
}

func TestHandleDiscoverSlots_BadArguments(t *testing.T) {
	s, _ := newMockServer(t, nil)

	result, err := s.handleDiscoverSlots(context.Background(), callRequest(ToolDiscoverSlots, map[string]any{"page_id": "seven"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid parameters for discover_slots")
}

func TestHandlePlanAssignments(t *testing.T) {
	s, up := newMockServer(t, nil)
	keep := false
	want := types.PlanRequest{PageID: 1, ImageIDs: []int64{10, 11}, Slots: []int{0, 2}, ReplaceExisting: &keep}
	up.On("Plan", want).Return(&types.PlanResponse{
		PageID:   1,
		Selected: []int{0, 2},
		Assignments: []types.Assignment{
			{FieldName: "hero", FieldType: types.SlotImage, AttachmentIDs: []int64{10}},
			{FieldName: "gallery", FieldType: types.SlotGallery, AttachmentIDs: []int64{11}},
		},
	}, nil)

	result, err := s.handlePlanAssignments(context.Background(), callRequest(ToolPlanAssignments, map[string]any{
		"page_id":          1,
		"image_ids":        []any{10.0, 11.0},
		"slots":            []any{0.0, 2.0},
		"replace_existing": false,
	}))
	require.NoError(t, err)

	var got types.PlanResponse
	decodeResult(t, result, &got)
	assert.Equal(t, []int{0, 2}, got.Selected)
	assert.Len(t, got.Assignments, 2)
}

func TestHandleSubmitAssignments(t *testing.T) {
	args := map[string]any{
		"page_id": 1,
		"assignments": []any{
			map[string]any{"field_key": "field_hero", "field_name": "hero", "field_type": "image", "attachment_ids": []any{10}},
		},
	}
	expected := types.SubmitRequest{
		PageID: 1,
		Assignments: []types.Assignment{
			{FieldKey: "field_hero", FieldName: "hero", FieldType: types.SlotImage, AttachmentIDs: []int64{10}},
		},
	}

	t.Run("requires confirmation", func(t *testing.T) {
		s, _ := newMockServer(t, &ServerOptions{})

		result, err := s.handleSubmitAssignments(context.Background(), callRequest(ToolSubmitAssignments, args))
		require.NoError(t, err)

		var got struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Details struct {
				PromptName string            `json:"prompt_name"`
				Arguments  map[string]string `json:"prompt_arguments"`
			} `json:"confirmation_details"`
		}
		decodeResult(t, result, &got)
		assert.Equal(t, "confirmation_required", got.Status)
		assert.Equal(t, PromptConfirmSubmit, got.Details.PromptName)
		assert.Equal(t, "Assign 1 image(s) to 1 field(s) on page 1", got.Details.Arguments["action_description"])
		assert.Equal(t, "hero", got.Details.Arguments["fields"])
		assert.Equal(t, ToolSubmitAssignments, got.Details.Arguments["original_tool_name"])

		var replay types.SubmitRequest
		require.NoError(t, json.Unmarshal([]byte(got.Details.Arguments["original_tool_args_json"]), &replay))
		assert.Equal(t, expected, replay)
	})

	t.Run("confirmed", func(t *testing.T) {
		s, up := newMockServer(t, &ServerOptions{})
		up.On("Submit", expected).Return(&types.SubmitResponse{
			BatchID:            "b1",
			ProcessedCount:     1,
			FieldsUpdatedCount: 1,
			Message:            "1 images uploaded successfully to 1 fields!",
		}, nil)

		confirmed := map[string]any{"confirmed": true}
		for k, v := range args {
			confirmed[k] = v
		}
		result, err := s.handleSubmitAssignments(context.Background(), callRequest(ToolSubmitAssignments, confirmed))
		require.NoError(t, err)

		var got types.SubmitResponse
		decodeResult(t, result, &got)
		assert.Equal(t, 1, got.ProcessedCount)
		assert.Equal(t, "1 images uploaded successfully to 1 fields!", got.Message)
	})

	t.Run("batch mode skips confirmation", func(t *testing.T) {
		s, up := newMockServer(t, &ServerOptions{BatchMode: true})
		up.On("Submit", expected).Return(&types.SubmitResponse{BatchID: "b2", ProcessedCount: 1, FieldsUpdatedCount: 1}, nil)

		result, err := s.handleSubmitAssignments(context.Background(), callRequest(ToolSubmitAssignments, args))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), `"batch_id": "b2"`)
	})
}

func TestHandleSubmitAssignments_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "partial write",
			err:      fmt.Errorf("%w: 1 of 3 fields updated", uploader.ErrPartialWrite),
			contains: "some images could not be uploaded: 1 of 3 fields updated",
		},
		{
			name:     "busy page",
			err:      fmt.Errorf("%w: page 1", uploader.ErrSubmitInProgress),
			contains: "a submit is already running for this page",
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("load: %w", context.DeadlineExceeded),
			contains: "operation timed out",
		},
		{
			name:     "internal error is not leaked",
			err:      errors.New("sqlite: disk I/O error at /var/lib/slotfill.db"),
			contains: "submit_assignments failed: internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, up := newMockServer(t, &ServerOptions{AutoApprove: true})
			up.On("Submit", mock.Anything).Return(nil, tt.err)

			result, err := s.handleSubmitAssignments(context.Background(), callRequest(ToolSubmitAssignments, map[string]any{
				"page_id":     1,
				"assignments": []any{},
			}))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			text := resultText(t, result)
			assert.Contains(t, text, tt.contains)
			assert.NotContains(t, text, "/var/lib")
		})
	}
}

func TestHandlePageStats(t *testing.T) {
	s, up := newMockServer(t, nil)
	up.On("PageStats").Return(map[int64]types.PageStats{
		1: {Total: 5, Empty: 3, Filled: 2},
	}, nil)

	result, err := s.handlePageStats(context.Background(), callRequest(ToolRefreshStats, nil))
	require.NoError(t, err)

	var got struct {
		Pages map[string]types.PageStats `json:"pages"`
		Count int                        `json:"count"`
	}
	decodeResult(t, result, &got)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, types.PageStats{Total: 5, Empty: 3, Filled: 2}, got.Pages["1"])
}

func TestHandleQueryValues(t *testing.T) {
	s, up := newMockServer(t, nil)
	up.On("QueryValues", int64(1), "$.rows[*].photo").Return([]any{int64(11), nil}, nil)
	up.On("QueryValues", int64(1), "$.rows[").Return(nil, fmt.Errorf("%w: unexpected end", uploader.ErrInvalidQuery))

	result, err := s.handleQueryValues(context.Background(), callRequest(ToolQueryValues, map[string]any{
		"page_id": 1,
		"path":    "$.rows[*].photo",
	}))
	require.NoError(t, err)

	var got struct {
		Values []any `json:"values"`
	}
	decodeResult(t, result, &got)
	assert.Equal(t, []any{11.0, nil}, got.Values)

	result, err = s.handleQueryValues(context.Background(), callRequest(ToolQueryValues, map[string]any{
		"page_id": 1,
		"path":    "$.rows[",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid query")
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		store  Pinger
		status string
	}{
		{name: "no audit log degrades", store: fakePinger{}, status: "degraded"},
		{name: "store down", store: fakePinger{err: errors.New("database is closed")}, status: "unhealthy"},
		{name: "no store", store: nil, status: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&mockUploader{}, tt.store, nil, zap.NewNop(), nil)
			health := s.HealthCheck(context.Background())
			assert.Equal(t, tt.status, health.Status)
			require.Len(t, health.Checks, 3)
			assert.Equal(t, "storage", health.Checks[0].Name)
		})
	}
}

func TestConfirmSubmitPrompt(t *testing.T) {
	s, _ := newMockServer(t, nil)

	req := mcp.GetPromptRequest{}
	req.Params.Name = PromptConfirmSubmit
	req.Params.Arguments = map[string]string{
		"action_description": "Assign 2 image(s) to 1 field(s) on page 3",
		"fields":             "gallery",
	}

	result, err := s.handleConfirmSubmitPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, mcp.RoleAssistant, result.Messages[0].Role)

	text, ok := result.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "ACTION: Assign 2 image(s) to 1 field(s) on page 3.")
	assert.Contains(t, text.Text, "FIELDS: gallery")
	assert.Contains(t, text.Text, "'submit_assignments'")

	req.Params.Arguments = map[string]string{}
	_, err = s.handleConfirmSubmitPrompt(context.Background(), req)
	assert.Error(t, err)
}
