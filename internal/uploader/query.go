package uploader

import (
	"context"
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/contentops/slotfill/internal/fields"
)

// QueryValues evaluates a JSONPath expression against the stored values of
// a page, e.g. "$.rows[*].photo". The root object maps field names to values.
func (s *Service) QueryValues(ctx context.Context, pageID int64, path string) ([]any, error) {
	if _, err := s.page(ctx, pageID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateQueryPath(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	nodes, err := s.store.LoadFields(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields of page %d: %w", pageID, err)
	}
	root := map[string]any(fields.TreeFromFields(nodes))

	results := x.Get(root)
	if results == nil {
		results = []any{}
	}
	return results, nil
}
