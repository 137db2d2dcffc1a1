package uploader

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/fields"
	"github.com/contentops/slotfill/pkg/types"
)

// statsStatuses are the page statuses counted in statistics
var statsStatuses = map[string]bool{
	"publish": true,
	"private": true,
	"draft":   true,
}

// PageStats returns slot counts for every page. Counts are recomputed only
// once the cached ones expire; writes do not invalidate them.
func (s *Service) PageStats(ctx context.Context) (map[int64]types.PageStats, error) {
	var cached map[int64]types.PageStats
	ok, err := s.store.GetTransient(ctx, StatsTransient, &cached)
	if err != nil {
		s.logger.Warn("statistics cache unreadable", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	v, err, shared := s.stats.Do(StatsTransient, func() (any, error) {
		return s.computeStats(ctx)
	})
	if err != nil {
		s.audit.LogOperation(audit.EventStatsRefresh, 0, StatsTransient, false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	if shared {
		s.logger.Debug("statistics refresh shared")
	}
	return v.(map[int64]types.PageStats), nil
}

func (s *Service) computeStats(ctx context.Context) (map[int64]types.PageStats, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	stats := make(map[int64]types.PageStats, len(pages))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.StatsConcurrency)
	for _, p := range pages {
		if !statsStatuses[p.Status] {
			continue
		}
		g.Go(func() error {
			nodes, err := s.store.LoadFields(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("page %d: %w", p.ID, err)
			}
			st := fields.Stats(fields.Walk(nodes))
			mu.Lock()
			stats[p.ID] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.SetTransient(ctx, StatsTransient, stats, s.opts.StatsTTL); err != nil {
		s.logger.Warn("failed to cache statistics", zap.Error(err))
	}
	s.audit.LogOperation(audit.EventStatsRefresh, 0, StatsTransient, true, map[string]interface{}{"pages": len(stats)})
	return stats, nil
}

// ClearCache drops the cached statistics. It is the only state the
// uploader keeps outside the content itself, so it is also what an
// uninstall removes.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.store.DeleteTransient(ctx, StatsTransient); err != nil {
		s.audit.LogOperation(audit.EventCacheClear, 0, StatsTransient, false, map[string]interface{}{"error": err.Error()})
		return err
	}
	s.audit.LogOperation(audit.EventCacheClear, 0, StatsTransient, true, nil)
	return nil
}
