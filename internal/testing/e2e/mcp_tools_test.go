package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contentops/slotfill/internal/mcp"
	"github.com/contentops/slotfill/internal/storage"
	"github.com/contentops/slotfill/internal/uploader"
)

const siteFixture = `
attachments:
  - {id: 10, title: Banner, mime_type: image/jpeg}
  - {id: 11, title: Shot 1, mime_type: image/png}
  - {id: 12, title: Shot 2, mime_type: image/png}
pages:
  - id: 1
    title: Landing
    status: publish
    fields:
      - key: field_sections
        name: sections
        label: Sections
        type: flexible_content
        layouts:
          - name: hero
            label: Hero
            sub_fields:
              - {key: field_sections_hero_background, name: background, label: Background, type: image}
          - name: text
            label: Text
            sub_fields:
              - {key: field_sections_text_body, name: body, label: Body, type: textarea}
        value:
          - {acf_fc_layout: hero, background: null}
          - {acf_fc_layout: text, body: hello}
      - {key: field_gallery, name: gallery, label: Gallery, type: gallery}
`

// TestHarness drives a server over its stdio transport
type TestHarness struct {
	t      *testing.T
	store  *storage.MemoryStore
	in     *io.PipeWriter
	outR   *io.PipeReader
	out    *bufio.Reader
	cancel context.CancelFunc
	done   chan error
	nextID int
}

func NewTestHarness(t *testing.T, options *mcp.ServerOptions) *TestHarness {
	t.Helper()

	store := storage.NewMemoryStore()
	fixture, err := storage.ReadFixture(strings.NewReader(siteFixture))
	require.NoError(t, err)
	require.NoError(t, fixture.Import(context.Background(), store))

	svc := uploader.NewService(store, nil, zap.NewNop(), uploader.Options{})
	server := mcp.NewServer(svc, store, nil, zap.NewNop(), options)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	h := &TestHarness{
		t:      t,
		store:  store,
		in:     inW,
		outR:   outR,
		out:    bufio.NewReader(outR),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		err := server.Serve(ctx, inR, outW)
		_ = outW.Close()
		h.done <- err
	}()
	t.Cleanup(h.Close)
	return h
}

// Close stops the server and waits for it to exit
func (h *TestHarness) Close() {
	_ = h.in.Close()
	_ = h.outR.Close()
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		h.t.Error("server did not stop")
	}
}

func (h *TestHarness) write(msg map[string]any) {
	h.t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(h.t, err)
	_, err = h.in.Write(append(raw, '\n'))
	require.NoError(h.t, err)
}

// SendRequest sends one request and returns the result of its response
func (h *TestHarness) SendRequest(method string, params any) map[string]any {
	h.t.Helper()
	h.nextID++
	h.write(map[string]any{
		"jsonrpc": "2.0",
		"id":      h.nextID,
		"method":  method,
		"params":  params,
	})

	line, err := h.out.ReadBytes('\n')
	require.NoError(h.t, err)

	var resp struct {
		ID     int             `json:"id"`
		Result map[string]any  `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	require.NoError(h.t, json.Unmarshal(line, &resp), string(line))
	require.Equal(h.t, h.nextID, resp.ID)
	require.Empty(h.t, resp.Error, string(line))
	return resp.Result
}

func (h *TestHarness) Initialize() {
	h.t.Helper()
	result := h.SendRequest("initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "e2e", "version": "1.0"},
	})
	info := result["serverInfo"].(map[string]any)
	assert.Equal(h.t, mcp.ServerName, info["name"])
	h.write(map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"})
}

// CallTool calls a tool and decodes its text result into dst
func (h *TestHarness) CallTool(name string, args map[string]any, dst any) bool {
	h.t.Helper()
	result := h.SendRequest("tools/call", map[string]any{"name": name, "arguments": args})
	content := result["content"].([]any)
	require.NotEmpty(h.t, content)
	text := content[0].(map[string]any)["text"].(string)
	isError, _ := result["isError"].(bool)
	if isError {
		if s, ok := dst.(*string); ok {
			*s = text
		}
		return false
	}
	require.NoError(h.t, json.Unmarshal([]byte(text), dst), text)
	return true
}

func TestAssignmentFlow(t *testing.T) {
	h := NewTestHarness(t, &mcp.ServerOptions{Timeout: 10 * time.Second, RateLimit: 100})
	h.Initialize()

	var discovered struct {
		Count  int `json:"count"`
		Fields []struct {
			Index    int    `json:"index"`
			Label    string `json:"label"`
			Kind     string `json:"type"`
			HasValue bool   `json:"has_value"`
		} `json:"fields"`
	}
	require.True(t, h.CallTool(mcp.ToolDiscoverSlots, map[string]any{"page_id": 1}, &discovered))
	require.Equal(t, 3, discovered.Count)
	assert.Equal(t, "Sections (Hero) → Row 1: Background", discovered.Fields[0].Label)
	assert.Equal(t, "Sections (Hero) → Background", discovered.Fields[1].Label)
	assert.Equal(t, "Gallery", discovered.Fields[2].Label)
	assert.Equal(t, "gallery", discovered.Fields[2].Kind)

	var plan struct {
		Assignments []map[string]any `json:"assignments"`
	}
	require.True(t, h.CallTool(mcp.ToolPlanAssignments, map[string]any{
		"page_id":   1,
		"image_ids": []int{10, 11, 12},
		"slots":     []int{0, 2},
	}, &plan))
	require.Len(t, plan.Assignments, 2)
	assert.Equal(t, "background", plan.Assignments[0]["field_name"])
	assert.Equal(t, "hero", plan.Assignments[0]["layout_name"])
	assert.Equal(t, []any{11.0, 12.0}, plan.Assignments[1]["attachment_ids"])

	// without confirmation nothing is written
	var pending struct {
		Status  string `json:"status"`
		Details struct {
			PromptName string            `json:"prompt_name"`
			Arguments  map[string]string `json:"prompt_arguments"`
		} `json:"confirmation_details"`
	}
	submit := map[string]any{"page_id": 1, "assignments": plan.Assignments}
	require.True(t, h.CallTool(mcp.ToolSubmitAssignments, submit, &pending))
	assert.Equal(t, "confirmation_required", pending.Status)
	assert.Empty(t, h.store.Updates())

	prompt := h.SendRequest("prompts/get", map[string]any{
		"name":      pending.Details.PromptName,
		"arguments": pending.Details.Arguments,
	})
	messages := prompt["messages"].([]any)
	require.Len(t, messages, 1)
	text := messages[0].(map[string]any)["content"].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Assign 3 image(s) to 2 field(s) on page 1")

	submit["confirmed"] = true
	var done struct {
		Processed int    `json:"processed_count"`
		Updated   int    `json:"fields_updated_count"`
		Message   string `json:"message"`
	}
	require.True(t, h.CallTool(mcp.ToolSubmitAssignments, submit, &done))
	assert.Equal(t, 3, done.Processed)
	assert.Equal(t, 2, done.Updated)
	assert.Equal(t, "3 images uploaded successfully to 2 fields!", done.Message)
	assert.Equal(t, []string{"sections", "gallery"}, h.store.Updates())

	var query struct {
		Values []any `json:"values"`
	}
	require.True(t, h.CallTool(mcp.ToolQueryValues, map[string]any{"page_id": 1, "path": "$.sections[*].body"}, &query))
	assert.Equal(t, []any{"hello"}, query.Values)
	require.True(t, h.CallTool(mcp.ToolQueryValues, map[string]any{"page_id": 1, "path": "$.sections[0].background"}, &query))
	require.Len(t, query.Values, 1)
	assert.EqualValues(t, 10, query.Values[0])

	var stats struct {
		Pages map[string]struct {
			Total  int `json:"total"`
			Empty  int `json:"empty"`
			Filled int `json:"filled"`
		} `json:"pages"`
	}
	require.True(t, h.CallTool(mcp.ToolRefreshStats, map[string]any{}, &stats))
	assert.Equal(t, 3, stats.Pages["1"].Total)
	assert.Equal(t, 1, stats.Pages["1"].Empty)
	assert.Equal(t, 2, stats.Pages["1"].Filled)
}

func TestToolErrors(t *testing.T) {
	h := NewTestHarness(t, &mcp.ServerOptions{BatchMode: true, RateLimit: 100})
	h.Initialize()

	var msg string
	assert.False(t, h.CallTool(mcp.ToolDiscoverSlots, map[string]any{"page_id": 99}, &msg))
	assert.Contains(t, msg, "invalid page")

	assert.False(t, h.CallTool(mcp.ToolPlanAssignments, map[string]any{"page_id": 1, "image_ids": []int{}}, &msg))
	assert.Contains(t, msg, "no images selected")

	assert.False(t, h.CallTool(mcp.ToolSubmitAssignments, map[string]any{
		"page_id": 1,
		"assignments": []any{map[string]any{
			"field_key":      "field_gallery",
			"field_name":     "gallery",
			"field_type":     "gallery",
			"attachment_ids": []int{404},
		}},
	}, &msg))
	assert.Contains(t, msg, "no valid images to upload")
	assert.Empty(t, h.store.Updates())
}
