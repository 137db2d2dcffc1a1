package mcp

import (
	"context"

	"github.com/contentops/slotfill/pkg/types"
)

// Uploader defines the operations the tools expose
type Uploader interface {
	Pages(ctx context.Context) ([]types.Page, error)
	Discover(ctx context.Context, pageID int64) (*types.DiscoverResponse, error)
	Plan(ctx context.Context, req types.PlanRequest) (*types.PlanResponse, error)
	Submit(ctx context.Context, req types.SubmitRequest) (*types.SubmitResponse, error)
	PageStats(ctx context.Context) (map[int64]types.PageStats, error)
	QueryValues(ctx context.Context, pageID int64, path string) ([]any, error)
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}
