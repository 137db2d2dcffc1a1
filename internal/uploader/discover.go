package uploader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/fields"
	"github.com/contentops/slotfill/pkg/types"
)

// Discover lists the image slots of a page in schema order
func (s *Service) Discover(ctx context.Context, pageID int64) (*types.DiscoverResponse, error) {
	slots, err := s.Slots(ctx, pageID)
	if err != nil {
		s.audit.LogOperation(audit.EventDiscover, pageID, "", false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	resp := &types.DiscoverResponse{
		PageID: pageID,
		Fields: fields.Flatten(slots),
		Count:  len(slots),
	}
	if len(slots) == 0 {
		resp.Fields = []types.FlattenedSlot{}
		resp.Message = NoSlotsMessage
	}

	s.logger.Debug("slots discovered", zap.Int64("page_id", pageID), zap.Int("count", resp.Count))
	s.audit.LogOperation(audit.EventDiscover, pageID, "", true, map[string]interface{}{"count": resp.Count})
	return resp, nil
}

// Plan previews the assignments a submit would carry for the given images.
// Without explicit slots every selectable slot is used. With replace turned
// off, slots that already hold a value are left out.
func (s *Service) Plan(ctx context.Context, req types.PlanRequest) (*types.PlanResponse, error) {
	if _, err := s.page(ctx, req.PageID); err != nil {
		return nil, err
	}
	if len(req.ImageIDs) == 0 {
		return nil, ErrNoImages
	}
	if err := s.validator.ValidateImageIDs(req.ImageIDs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssignment, err)
	}

	slots, err := s.walk(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: page %d has no image fields", ErrNoSlots, req.PageID)
	}

	sel := fields.NewSelection(slots)
	sel.SetReplaceExisting(req.Replace())
	if len(req.Slots) > 0 {
		if rejected := sel.SelectOnly(req.Slots); len(rejected) > 0 {
			s.logger.Debug("slots not selectable", zap.Int64("page_id", req.PageID), zap.Ints("slots", rejected))
		}
	}
	if sel.Len() == 0 {
		return nil, ErrNoSlots
	}

	instructions := sel.Plan(req.ImageIDs)
	resp := &types.PlanResponse{
		PageID:      req.PageID,
		Assignments: ToAssignments(instructions),
		Selected:    sel.Indices(),
		Hint:        sel.MatchHint(len(req.ImageIDs)),
	}

	s.audit.LogOperation(audit.EventPlan, req.PageID, "", true, map[string]interface{}{
		"images":      len(req.ImageIDs),
		"selected":    sel.Len(),
		"assignments": len(resp.Assignments),
	})
	return resp, nil
}

// ToAssignments converts planner output to the submit wire form
func ToAssignments(instructions []types.AssignmentInstruction) []types.Assignment {
	out := make([]types.Assignment, 0, len(instructions))
	for _, in := range instructions {
		a := types.Assignment{
			FieldKey:      in.Key,
			FieldType:     in.Kind,
			FieldName:     in.Name,
			AttachmentIDs: in.AttachmentIDs,
			Ancestry:      in.Ancestry,
		}
		if n := len(in.Ancestry); n > 0 {
			parent := in.Ancestry[n-1]
			a.ParentKey = parent.Key
			a.ParentName = parent.Name
			a.LayoutName = parent.LayoutName
		}
		out = append(out, a)
	}
	return out
}
