package uploader

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/fields"
	"github.com/contentops/slotfill/pkg/types"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Submit validates the assignments of one page and writes them. Every
// record is checked before anything is written; a malformed record fails
// the whole request. Attachments that are not images are dropped, and an
// assignment left without attachments is skipped and counted. Each
// container is written on its own: a failure is recorded and the remaining
// containers are still written, and the call then returns ErrPartialWrite.
func (s *Service) Submit(ctx context.Context, req types.SubmitRequest) (*types.SubmitResponse, error) {
	if _, err := s.page(ctx, req.PageID); err != nil {
		return nil, err
	}
	if len(req.Assignments) == 0 {
		return nil, fmt.Errorf("%w: no image assignments provided", ErrNoSlots)
	}
	for i, a := range req.Assignments {
		if err := s.validator.ValidateAssignment(a); err != nil {
			return nil, fmt.Errorf("%w: assignment %d: %v", ErrInvalidAssignment, i, err)
		}
	}

	if err := s.begin(req.PageID); err != nil {
		return nil, err
	}
	defer s.end(req.PageID)

	batchID := s.newID()
	logger := s.logger.With(zap.Int64("page_id", req.PageID), zap.String("batch_id", batchID))

	instructions, skipped, err := s.instructions(ctx, req, batchID)
	if err != nil {
		return nil, err
	}
	if len(instructions) == 0 {
		s.audit.LogOperation(audit.EventSubmit, req.PageID, "", false, map[string]interface{}{
			"batch_id": batchID,
			"skipped":  skipped,
		})
		return nil, ErrNoValidAssignments
	}

	nodes, err := s.store.LoadFields(ctx, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields of page %d: %w", req.PageID, err)
	}
	current := fields.TreeFromFields(nodes)
	result := fields.Apply(current, instructions)

	failed := len(result.Failures)
	for _, f := range result.Failures {
		logger.Warn("assignment not applied", zap.String("field", f.Instruction.Name), zap.Error(f.Err))
		s.audit.LogContainerWrite(batchID, req.PageID, f.Instruction.Name, "", "", f)
	}

	updated, processed := 0, 0
	for _, u := range result.Updates {
		before, after := digest(current[u.Name]), digest(u.Value)
		err := s.persist(ctx, req.PageID, u)
		s.audit.LogContainerWrite(batchID, req.PageID, u.Name, before, after, err)
		if err != nil {
			logger.Error("field write failed", zap.String("field", u.Name), zap.Error(err))
			failed += len(u.Instructions)
			continue
		}
		updated += len(u.Instructions)
		processed += fields.ImageCount(u.Instructions)
	}

	s.audit.LogOperation(audit.EventSubmit, req.PageID, "", failed == 0, map[string]interface{}{
		"batch_id":       batchID,
		"processed":      processed,
		"fields_updated": updated,
		"skipped":        skipped,
		"failed":         failed,
	})

	if failed > 0 {
		err := fmt.Errorf("%w: %d of %d fields updated", ErrPartialWrite, updated, updated+failed)
		if s.opts.Debug {
			err = fmt.Errorf("%w\ninstructions:\n%s", err, dumper.Sdump(instructions))
		}
		return nil, err
	}

	logger.Info("submit complete", zap.Int("processed", processed), zap.Int("fields_updated", updated), zap.Int("skipped", skipped))
	return &types.SubmitResponse{
		BatchID:            batchID,
		ProcessedCount:     processed,
		FieldsUpdatedCount: updated,
		SkippedCount:       skipped,
		Message:            fmt.Sprintf("%d images uploaded successfully to %d fields!", processed, updated),
	}, nil
}

// instructions turns validated records into writer instructions, keeping
// only attachment ids the asset library knows as images.
func (s *Service) instructions(ctx context.Context, req types.SubmitRequest, batchID string) ([]types.AssignmentInstruction, int, error) {
	var out []types.AssignmentInstruction
	skipped := 0
	for _, a := range req.Assignments {
		valid := make([]int64, 0, len(a.AttachmentIDs))
		for _, id := range a.AttachmentIDs {
			ok, err := s.store.IsImageAsset(ctx, id)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to check attachment %d: %w", id, err)
			}
			if ok {
				valid = append(valid, id)
			}
		}
		if len(valid) == 0 {
			skipped++
			s.audit.Log(&audit.AuditEvent{
				Type:          audit.EventAssignmentSkipped,
				Severity:      audit.SeverityWarning,
				Source:        "uploader",
				PageID:        req.PageID,
				Resource:      a.FieldName,
				Action:        "filter_attachments",
				Result:        "SKIPPED",
				CorrelationID: batchID,
				Details:       map[string]interface{}{"attachment_ids": a.AttachmentIDs},
			})
			continue
		}
		out = append(out, types.AssignmentInstruction{
			Key:           a.FieldKey,
			Name:          a.FieldName,
			Kind:          a.FieldType,
			AttachmentIDs: valid,
			Ancestry:      a.Ancestry,
		})
	}
	return out, skipped, nil
}

// persist writes one container: by name, then by key, then as flat meta
// entries. A panic inside the store is returned as an error.
func (s *Service) persist(ctx context.Context, pageID int64, u fields.ContainerUpdate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while writing %s: %v", u.Name, r)
		}
	}()

	var errs []error
	if u.Name != "" {
		werr := s.store.UpdateField(ctx, pageID, u.Name, u.Value)
		if werr == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("update by name: %w", werr))
	}
	if u.Key != "" && u.Key != u.Name {
		werr := s.store.UpdateField(ctx, pageID, u.Key, u.Value)
		if werr == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("update by key: %w", werr))
	}
	if len(u.Fallback) > 0 {
		werr := s.store.UpdateMeta(ctx, pageID, u.Fallback)
		if werr == nil {
			s.logger.Warn("field written as flat meta", zap.Int64("page_id", pageID), zap.String("field", u.Name), zap.Errors("causes", errs))
			return nil
		}
		errs = append(errs, fmt.Errorf("update meta: %w", werr))
	}
	return errors.Join(errs...)
}

// digest identifies a stored value in the audit log
func digest(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}
