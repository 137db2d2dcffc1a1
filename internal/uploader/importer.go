package uploader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/storage"
)

// Import loads a fixture of pages and attachments into the store
func (s *Service) Import(ctx context.Context, f *storage.Fixture) error {
	for _, a := range f.Attachments {
		if err := s.validator.ValidateMimeType(a.MimeType); err != nil {
			return fmt.Errorf("%w: attachment %d: %v", ErrInvalidImportRecord, a.ID, err)
		}
	}
	for _, p := range f.Pages {
		if err := s.validator.ValidateTitle(p.Title); err != nil {
			return fmt.Errorf("%w: page %d: %v", ErrInvalidImportRecord, p.ID, err)
		}
	}

	if err := f.Import(ctx, s.store); err != nil {
		s.audit.LogOperation(audit.EventImport, 0, "", false, map[string]interface{}{"error": err.Error()})
		return err
	}

	s.logger.Info("fixture imported", zap.Int("pages", len(f.Pages)), zap.Int("attachments", len(f.Attachments)))
	s.audit.LogOperation(audit.EventImport, 0, "", true, map[string]interface{}{
		"pages":       len(f.Pages),
		"attachments": len(f.Attachments),
	})
	return nil
}
