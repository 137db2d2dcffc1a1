// Package uploader runs slot discovery, assignment planning and submits
// against a content store. It is the layer both the MCP tools and the CLI
// commands call into.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/fields"
	"github.com/contentops/slotfill/internal/logging"
	"github.com/contentops/slotfill/internal/storage"
	"github.com/contentops/slotfill/internal/validation"
	"github.com/contentops/slotfill/pkg/types"
)

var (
	ErrInvalidPage         = errors.New("invalid page")
	ErrNoImages            = errors.New("no images selected")
	ErrNoSlots             = errors.New("no image fields selected")
	ErrInvalidAssignment   = errors.New("invalid assignment")
	ErrNoValidAssignments  = errors.New("no valid images to upload")
	ErrPartialWrite        = errors.New("some images could not be uploaded")
	ErrSubmitInProgress    = errors.New("a submit is already running for this page")
	ErrInvalidQuery        = errors.New("invalid query")
	ErrInvalidImportRecord = errors.New("invalid import record")
)

// StatsTransient is the transient holding the per-page slot statistics
const StatsTransient = "slotfill_page_stats"

// NoSlotsMessage is returned by Discover for a page without image slots
const NoSlotsMessage = "No image fields found on this page."

// Options tunes a Service
type Options struct {
	StatsTTL         time.Duration
	StatsConcurrency int
	// Debug adds a dump of the instruction list to write failures
	Debug bool
}

// DefaultOptions returns the settings used when a config leaves them unset
func DefaultOptions() Options {
	return Options{
		StatsTTL:         5 * time.Minute,
		StatsConcurrency: 4,
	}
}

// Service coordinates the field walker, planner and tree writer with storage
type Service struct {
	store     storage.Store
	validator *validation.Validator
	audit     *audit.Logger
	logger    *zap.Logger
	opts      Options

	mu       sync.Mutex
	inFlight map[int64]struct{}

	stats singleflight.Group
	newID func() string
}

// NewService creates a service. auditLogger and logger may be nil.
func NewService(store storage.Store, auditLogger *audit.Logger, logger *zap.Logger, opts Options) *Service {
	defaults := DefaultOptions()
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = defaults.StatsTTL
	}
	if opts.StatsConcurrency < 1 {
		opts.StatsConcurrency = defaults.StatsConcurrency
	}
	return &Service{
		store:     store,
		validator: validation.NewValidator(),
		audit:     auditLogger,
		logger:    logging.OrNop(logger).Named("uploader"),
		opts:      opts,
		inFlight:  make(map[int64]struct{}),
		newID:     uuid.NewString,
	}
}

// Store returns the underlying store
func (s *Service) Store() storage.Store {
	return s.store
}

// Pages lists every page of the content store
func (s *Service) Pages(ctx context.Context) ([]types.Page, error) {
	return s.store.ListPages(ctx)
}

// page checks the id and loads the page
func (s *Service) page(ctx context.Context, pageID int64) (*types.Page, error) {
	if err := s.validator.ValidatePageID(pageID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}
	page, err := s.store.GetPage(ctx, pageID)
	if errors.Is(err, storage.ErrPageNotFound) {
		return nil, fmt.Errorf("%w: %d not found", ErrInvalidPage, pageID)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Slots walks the stored schema of a page
func (s *Service) Slots(ctx context.Context, pageID int64) ([]types.SlotDescriptor, error) {
	if _, err := s.page(ctx, pageID); err != nil {
		return nil, err
	}
	return s.walk(ctx, pageID)
}

func (s *Service) walk(ctx context.Context, pageID int64) ([]types.SlotDescriptor, error) {
	nodes, err := s.store.LoadFields(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields of page %d: %w", pageID, err)
	}
	return fields.Walk(nodes), nil
}

// begin marks a page as being written. It fails if another submit holds it.
func (s *Service) begin(pageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[pageID]; busy {
		return fmt.Errorf("%w: page %d", ErrSubmitInProgress, pageID)
	}
	s.inFlight[pageID] = struct{}{}
	return nil
}

func (s *Service) end(pageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, pageID)
}
