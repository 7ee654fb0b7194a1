package server

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

type syncer interface {
	Sync(ctx context.Context) (models.SyncReport, error)
	PurgeExpired(ctx context.Context) (models.PermanentDeleteReport, error)
}

// scheduler syncs once at start and then every interval. With autoPurge it
// also offers expired recycle-bin items for permanent deletion after each
// successful sync.
type scheduler struct {
	lib       syncer
	interval  time.Duration
	autoPurge bool
	logger    logging.Logger
}

func newScheduler(lib syncer, interval time.Duration, autoPurge bool, l logging.Logger) *scheduler {
	return &scheduler{lib: lib, interval: interval, autoPurge: autoPurge, logger: l.With("module", "scheduler")}
}

func (s *scheduler) Run(ctx context.Context) error {
	s.tick(ctx)
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *scheduler) tick(ctx context.Context) {
	report, err := s.lib.Sync(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn(ctx, "periodic sync failed", "error", err)
		}
		return
	}
	s.logger.Debug(ctx, "periodic sync done", "run_id", report.RunID, "coalesced", report.Coalesced)

	if !s.autoPurge {
		return
	}
	purged, err := s.lib.PurgeExpired(ctx)
	if err != nil {
		s.logger.Warn(ctx, "purge of expired items failed", "error", err)
		return
	}
	if len(purged.Deleted)+len(purged.Pending) > 0 {
		s.logger.Info(ctx, "purged expired items", "deleted", len(purged.Deleted), "pending", len(purged.Pending))
	}
}
