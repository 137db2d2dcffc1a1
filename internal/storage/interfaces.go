package storage

import (
	"context"
	"errors"
	"time"

	"github.com/contentops/slotfill/pkg/types"
)

var (
	ErrPageNotFound       = errors.New("page not found")
	ErrFieldNotFound      = errors.New("field not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// ContentStore holds pages, their field schemas and the stored field values
type ContentStore interface {
	ListPages(ctx context.Context) ([]types.Page, error)
	GetPage(ctx context.Context, pageID int64) (*types.Page, error)
	// LoadFields returns the page schema with the stored value of every top-level field
	LoadFields(ctx context.Context, pageID int64) ([]types.FieldNode, error)
	// ReadField returns the stored value of a top-level field by name or key
	ReadField(ctx context.Context, pageID int64, selector string) (any, error)
	// UpdateField replaces the stored value of a top-level field by name or key
	UpdateField(ctx context.Context, pageID int64, selector string, value any) error
	// UpdateMeta writes flat meta entries, replacing existing keys
	UpdateMeta(ctx context.Context, pageID int64, entries []types.MetaEntry) error
	ReadMeta(ctx context.Context, pageID int64) ([]types.MetaEntry, error)
	// ImportPage creates or replaces a page with its schema and top-level values
	ImportPage(ctx context.Context, page types.Page, fields []types.FieldNode) error
}

// AssetLibrary is the media library
type AssetLibrary interface {
	GetAttachment(ctx context.Context, id int64) (*types.Attachment, error)
	ListAttachments(ctx context.Context) ([]types.Attachment, error)
	ImportAttachment(ctx context.Context, a types.Attachment) error
	// IsImageAsset reports whether id names an image attachment
	IsImageAsset(ctx context.Context, id int64) (bool, error)
}

// TransientStore keeps cached values until they expire
type TransientStore interface {
	// GetTransient decodes the cached value into dst. It reports false when
	// the key is missing or expired.
	GetTransient(ctx context.Context, name string, dst any) (bool, error)
	SetTransient(ctx context.Context, name string, value any, ttl time.Duration) error
	DeleteTransient(ctx context.Context, name string) error
}

// Store is the complete persistence layer
type Store interface {
	ContentStore
	AssetLibrary
	TransientStore
	Ping(ctx context.Context) error
	Close() error
}
