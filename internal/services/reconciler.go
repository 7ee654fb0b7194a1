package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Keys written to the sync_state table after every successful run.
const (
	KeyLastSyncAt      = "last_sync_at"
	KeyLastSyncSkipped = "last_sync_skipped"
)

// Reconciler brings the store in line with catalog snapshots. Concurrent Sync
// calls share one run.
type Reconciler struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	reader catalog.Reader
	logger logging.Logger
	now    Clock

	group singleflight.Group

	mu        sync.Mutex
	waiters   int
	runCtx    context.Context
	cancelRun context.CancelFunc
}

func NewReconciler(db *sql.DB, repos repomanager.RepositoryManager, reader catalog.Reader, logger logging.Logger, now Clock) *Reconciler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{
		db:     db,
		repos:  repos,
		reader: reader,
		logger: logger.With("module", "reconciler"),
		now:    now.orDefault(),
	}
}

// Sync runs one reconciliation or joins the one already in flight. The run
// keeps going while at least one caller is still waiting for it; when every
// caller has given up it is cancelled and the store is rolled back.
func (r *Reconciler) Sync(ctx context.Context) (models.SyncReport, error) {
	for {
		report, leader, err := r.syncOnce(ctx)
		// joined a run whose own callers all left before we arrived
		if err != nil && !leader && errors.Is(err, context.Canceled) && ctx.Err() == nil {
			continue
		}
		report.Coalesced = !leader
		return report, err
	}
}

func (r *Reconciler) syncOnce(ctx context.Context) (models.SyncReport, bool, error) {
	runCtx := r.join(ctx)
	defer r.leave()

	leader := false
	ch := r.group.DoChan("sync", func() (any, error) {
		leader = true
		return r.run(runCtx)
	})

	select {
	case res := <-ch:
		report, _ := res.Val.(models.SyncReport)
		return report, leader, res.Err
	case <-ctx.Done():
		return models.SyncReport{}, false, ctx.Err()
	}
}

func (r *Reconciler) join(ctx context.Context) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiters == 0 {
		r.runCtx, r.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	}
	r.waiters++
	return r.runCtx
}

func (r *Reconciler) leave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters--
	if r.waiters == 0 {
		r.cancelRun()
		r.runCtx, r.cancelRun = nil, nil
	}
}

func (r *Reconciler) run(ctx context.Context) (models.SyncReport, error) {
	report := models.SyncReport{RunID: uuid.New(), StartedAt: r.now()}
	ctx = logging.ContextWith(ctx, "run_id", report.RunID.String())

	entries, err := r.reader.ScanAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return models.SyncReport{}, ctx.Err()
		}
		r.logger.Warn(ctx, "catalog scan failed, store left untouched", "error", err)
		return models.SyncReport{}, catalog.Unavailable(err)
	}
	report.Seen = len(entries)

	now := r.now()
	records := make([]models.MetadataRecord, 0, len(entries))
	// keep protects identifiers present in the snapshot, including rows
	// skipped for bad attributes, from orphan cleanup.
	keep := make(map[int64]struct{}, len(entries))
	accepted := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if e.ID > 0 {
			keep[e.ID] = struct{}{}
		}
		if err := e.Validate(); err != nil {
			report.Skipped++
			r.logger.Warn(ctx, "skipping catalog entry", "id", e.ID, "reason", err)
			continue
		}
		if _, dup := accepted[e.ID]; dup {
			report.Skipped++
			r.logger.Warn(ctx, "skipping duplicate catalog entry", "id", e.ID, "uri", e.URI)
			continue
		}
		accepted[e.ID] = struct{}{}
		records = append(records, models.NewRecord(e, now))
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repos.Media(tx)

		existing, err := repo.ListIDs(ctx)
		if err != nil {
			return err
		}
		known := make(map[int64]struct{}, len(existing))
		for _, id := range existing {
			known[id] = struct{}{}
		}

		// Upsert never writes flags or createdAt, so a toggle that lands
		// mid-run is never overwritten.
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := repo.Upsert(ctx, rec); err != nil {
				return err
			}
			if _, ok := known[rec.ID]; ok {
				report.Updated++
			} else {
				report.Inserted++
			}
		}

		var orphans []int64
		for _, id := range existing {
			if _, ok := keep[id]; !ok {
				orphans = append(orphans, id)
			}
		}
		removed, err := repo.DeleteMany(ctx, orphans)
		if err != nil {
			return err
		}
		report.Removed = removed

		report.FinishedAt = r.now()
		meta := r.repos.Metadata(tx)
		if err := meta.Set(ctx, KeyLastSyncAt, []byte(report.FinishedAt.UTC().Format(time.RFC3339))); err != nil {
			return err
		}
		return meta.Set(ctx, KeyLastSyncSkipped, []byte(strconv.Itoa(report.Skipped)))
	})
	if err != nil {
		if ctx.Err() != nil {
			return models.SyncReport{}, ctx.Err()
		}
		r.logger.Error(ctx, "failed to apply snapshot", "error", err)
		return models.SyncReport{}, fmt.Errorf("failed to apply snapshot: %w", err)
	}

	r.logger.Info(ctx, "sync finished",
		"seen", report.Seen,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"removed", report.Removed,
		"skipped", report.Skipped,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return report, nil
}

// SyncState is what the last successful run left behind.
type SyncState struct {
	At      time.Time `json:"at"`
	Skipped int       `json:"skipped"`
}

// LastSync returns the state of the last successful run, or nil before the
// first one.
func (r *Reconciler) LastSync(ctx context.Context) (*SyncState, error) {
	meta := r.repos.Metadata(r.db)
	raw, err := meta.Get(ctx, KeyLastSyncAt)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", KeyLastSyncAt, err)
	}
	state := &SyncState{At: at.UTC()}

	raw, err = meta.Get(ctx, KeyLastSyncSkipped)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		if state.Skipped, err = strconv.Atoi(string(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", KeyLastSyncSkipped, err)
		}
	}
	return state, nil
}
