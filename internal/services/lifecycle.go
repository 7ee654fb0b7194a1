package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/keylock"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/repomanager"
)

// PendingFinalizePrefix prefixes journal keys of permanent deletions whose
// catalog side is done but whose row is still in the store.
const PendingFinalizePrefix = "pending_finalize:"

func pendingKey(id int64) string {
	return PendingFinalizePrefix + strconv.FormatInt(id, 10)
}

// Lifecycle drives the soft-delete state machine: Active, Deleted, awaiting
// consent, and permanently deleted.
type Lifecycle struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	deleter   catalog.Deleter
	consenter catalog.Consenter
	locks     *keylock.KeyLock
	logger    logging.Logger
	now       Clock

	mu        sync.Mutex
	requested map[int64]struct{}
	// pending holds journal entries that could not be persisted.
	pending map[int64]struct{}
}

func NewLifecycle(db *sql.DB, repos repomanager.RepositoryManager, deleter catalog.Deleter,
	consenter catalog.Consenter, locks *keylock.KeyLock, logger logging.Logger, now Clock) *Lifecycle {
	if logger == nil {
		logger = logging.Discard()
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &Lifecycle{
		db:        db,
		repos:     repos,
		deleter:   deleter,
		consenter: consenter,
		locks:     locks,
		logger:    logger.With("module", "lifecycle"),
		now:       now.orDefault(),
		requested: make(map[int64]struct{}),
		pending:   make(map[int64]struct{}),
	}
}

func distinct(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// SoftDelete moves each item to the recycle bin. Each row is updated on its
// own; the error is a *common.BatchError naming the ids that failed.
func (l *Lifecycle) SoftDelete(ctx context.Context, ids []int64) ([]int64, error) {
	repo := l.repos.Media(l.db)
	var done []int64
	failed := make(map[int64]error)

	for _, id := range distinct(ids) {
		if err := ctx.Err(); err != nil {
			failed[id] = err
			continue
		}
		unlock := l.locks.Lock(id)
		err := repo.MarkDeleted(ctx, id, l.now())
		unlock()
		if err != nil {
			failed[id] = err
			continue
		}
		done = append(done, id)
	}

	if len(done) > 0 {
		l.logger.Info(ctx, "moved to recycle bin", "count", len(done))
	}
	return done, common.NewBatchError("soft delete", done, failed)
}

// Restore returns items to the library. Unknown ids are ignored, so the call
// is idempotent; the result lists the rows that exist and are now Active.
func (l *Lifecycle) Restore(ctx context.Context, ids []int64) ([]int64, error) {
	repo := l.repos.Media(l.db)
	var done []int64
	failed := make(map[int64]error)

	for _, id := range distinct(ids) {
		if err := ctx.Err(); err != nil {
			failed[id] = err
			continue
		}
		unlock := l.locks.Lock(id)
		found, err := repo.Restore(ctx, id, l.now())
		unlock()
		switch {
		case err != nil:
			failed[id] = err
		case found:
			done = append(done, id)
		}
	}
	return done, common.NewBatchError("restore", done, failed)
}

// ScanExpired lists deleted items with now - deletedAt >= window. It has no
// side effects.
func (l *Lifecycle) ScanExpired(ctx context.Context, window time.Duration) ([]int64, error) {
	if window < 0 {
		return nil, fmt.Errorf("%w: negative retention window %s", common.ErrInvalidArgument, window)
	}
	recs, err := l.repos.Media(l.db).ListExpired(ctx, l.now().Add(-window))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// RecycleBin lists deleted items, most recently deleted first, with the time
// each becomes eligible for permanent deletion.
func (l *Lifecycle) RecycleBin(ctx context.Context, retention time.Duration) ([]models.RecycleBinEntry, error) {
	recs, err := l.repos.Media(l.db).Query(ctx, models.Filter{View: models.ViewDeleted}, models.DefaultSort)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].DeletedAt.After(*recs[j].DeletedAt)
	})

	out := make([]models.RecycleBinEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.RecycleBinEntry{MetadataRecord: r, AutoDeleteAt: r.ExpiresAt(retention)})
	}
	return out, nil
}

// RequestPermanentDelete asks for consent once for the whole batch, then
// removes each granted item from the catalog and from the store, in that
// order. Items are finalized independently: a catalog failure for one id
// leaves it in the recycle bin and does not stop the rest.
//
// A refusal or an error from the consenter returns ErrConsentDenied and
// touches nothing. Per-id failures are returned as a *common.BatchError.
func (l *Lifecycle) RequestPermanentDelete(ctx context.Context, ids []int64) (models.PermanentDeleteReport, error) {
	if _, err := l.FinalizePending(ctx); err != nil {
		l.logger.Warn(ctx, "pending finalizations remain", "error", err)
	}

	report := models.PermanentDeleteReport{Consent: models.ConsentDenied}
	failed := make(map[int64]error)

	claimed := l.claim(distinct(ids), failed)
	defer l.release(claimed)

	eligible := l.eligible(ctx, claimed, failed)
	if len(eligible) == 0 {
		report.Failed = describe(failed)
		return report, common.NewBatchError("permanent delete", nil, failed)
	}

	res, err := l.consenter.RequestDelete(ctx, eligible)
	if err != nil || res.Status == models.ConsentDenied {
		for _, id := range eligible {
			failed[id] = common.ErrConsentDenied
		}
		report.Failed = describe(failed)
		if err != nil {
			l.logger.Info(ctx, "consent not obtained", "count", len(eligible), "error", err)
			return report, fmt.Errorf("%w: %w", common.ErrConsentDenied, err)
		}
		l.logger.Info(ctx, "consent denied", "count", len(eligible))
		return report, common.ErrConsentDenied
	}
	report.Consent = res.Status

	granted := eligible
	if res.Status == models.ConsentPartiallyGranted {
		granted = granted[:0:0]
		for _, id := range eligible {
			if slices.Contains(res.Granted, id) {
				granted = append(granted, id)
			} else {
				failed[id] = common.ErrConsentDenied
			}
		}
	}

	var succeeded []int64
	for _, id := range granted {
		pending, err := l.finalize(ctx, id)
		switch {
		case err != nil:
			failed[id] = err
		case pending:
			report.Pending = append(report.Pending, id)
			succeeded = append(succeeded, id)
		default:
			report.Deleted = append(report.Deleted, id)
			succeeded = append(succeeded, id)
		}
	}

	report.Failed = describe(failed)
	l.logger.Info(ctx, "permanent delete finished",
		"consent", res.Status.String(),
		"deleted", len(report.Deleted),
		"pending", len(report.Pending),
		"failed", len(failed),
	)
	return report, common.NewBatchError("permanent delete", succeeded, failed)
}

// claim marks ids as awaiting consent. Ids already claimed by a concurrent
// request fail with ErrDeleteInProgress.
func (l *Lifecycle) claim(ids []int64, failed map[int64]error) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	claimed := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, busy := l.requested[id]; busy {
			failed[id] = common.ErrDeleteInProgress
			continue
		}
		l.requested[id] = struct{}{}
		claimed = append(claimed, id)
	}
	return claimed
}

func (l *Lifecycle) release(ids []int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		delete(l.requested, id)
	}
}

// eligible keeps the ids whose rows are in the recycle bin.
func (l *Lifecycle) eligible(ctx context.Context, ids []int64, failed map[int64]error) []int64 {
	repo := l.repos.Media(l.db)
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		rec, err := repo.Get(ctx, id)
		switch {
		case err != nil:
			failed[id] = err
		case rec == nil:
			failed[id] = fmt.Errorf("media[%d]: %w", id, common.ErrorNotFound)
		case !rec.IsDeleted:
			failed[id] = fmt.Errorf("%w: media[%d] is not in the recycle bin", common.ErrInvalidArgument, id)
		default:
			out = append(out, id)
		}
	}
	return out
}

// finalize removes one granted item. pending is true when the catalog copy is
// gone but the row removal failed and was journaled for retry.
func (l *Lifecycle) finalize(ctx context.Context, id int64) (pending bool, err error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	repo := l.repos.Media(l.db)
	rec, err := repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec != nil && !rec.IsDeleted {
		return false, fmt.Errorf("%w: media[%d] was restored while awaiting consent", common.ErrInvalidArgument, id)
	}

	if err := l.deleter.Delete(ctx, id); err != nil {
		l.logger.Warn(ctx, "catalog delete failed, item kept in recycle bin", "id", id, "error", err)
		return false, catalog.Unavailable(err)
	}

	if _, err := repo.Delete(ctx, id); err != nil {
		l.logger.Warn(ctx, "row removal failed after catalog delete, journaling", "id", id, "error", err)
		l.journal(ctx, id)
		return true, nil
	}
	return false, nil
}

func (l *Lifecycle) journal(ctx context.Context, id int64) {
	ctx = context.WithoutCancel(ctx)
	meta := l.repos.Metadata(l.db)
	if err := meta.Set(ctx, pendingKey(id), []byte(l.now().Format(time.RFC3339))); err != nil {
		l.logger.Error(ctx, "failed to journal pending finalization, keeping it in memory", "id", id, "error", err)
		l.mu.Lock()
		l.pending[id] = struct{}{}
		l.mu.Unlock()
	}
}

// FinalizePending retries row removal for items already deleted from the
// catalog. The catalog is never contacted again. It returns how many rows
// were finalized.
func (l *Lifecycle) FinalizePending(ctx context.Context) (int, error) {
	meta := l.repos.Metadata(l.db)
	var errs []error

	ids := make(map[int64]struct{})
	journaled, err := meta.List(ctx, PendingFinalizePrefix)
	if err != nil {
		errs = append(errs, err)
	}
	for key := range journaled {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, PendingFinalizePrefix), 10, 64)
		if err != nil {
			l.logger.Warn(ctx, "dropping malformed journal key", "key", key)
			_ = meta.Delete(ctx, key)
			continue
		}
		ids[id] = struct{}{}
	}
	l.mu.Lock()
	for id := range l.pending {
		ids[id] = struct{}{}
	}
	l.mu.Unlock()

	if len(ids) == 0 {
		return 0, errors.Join(errs...)
	}

	repo := l.repos.Media(l.db)
	finalized := 0
	for _, id := range sortedKeys(ids) {
		unlock := l.locks.Lock(id)
		_, err := repo.Delete(ctx, id)
		if err == nil {
			err = meta.Delete(ctx, pendingKey(id))
		}
		unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("finalize media[%d]: %w", id, err))
			continue
		}
		l.mu.Lock()
		delete(l.pending, id)
		l.mu.Unlock()
		finalized++
	}

	if finalized > 0 {
		l.logger.Info(ctx, "finalized pending permanent deletions", "count", finalized)
	}
	return finalized, errors.Join(errs...)
}

// PendingIDs lists ids awaiting row removal.
func (l *Lifecycle) PendingIDs(ctx context.Context) ([]int64, error) {
	journaled, err := l.repos.Metadata(l.db).List(ctx, PendingFinalizePrefix)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]struct{}, len(journaled))
	for key := range journaled {
		if id, err := strconv.ParseInt(strings.TrimPrefix(key, PendingFinalizePrefix), 10, 64); err == nil {
			ids[id] = struct{}{}
		}
	}
	l.mu.Lock()
	for id := range l.pending {
		ids[id] = struct{}{}
	}
	l.mu.Unlock()
	return sortedKeys(ids), nil
}

// PurgeExpired requests permanent deletion of everything past the window in
// one consent round-trip.
func (l *Lifecycle) PurgeExpired(ctx context.Context, window time.Duration) (models.PermanentDeleteReport, error) {
	ids, err := l.ScanExpired(ctx, window)
	if err != nil {
		return models.PermanentDeleteReport{}, err
	}
	if len(ids) == 0 {
		return models.PermanentDeleteReport{Consent: models.ConsentGranted}, nil
	}
	return l.RequestPermanentDelete(ctx, ids)
}

func sortedKeys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func describe(failed map[int64]error) map[int64]string {
	if len(failed) == 0 {
		return nil
	}
	out := make(map[int64]string, len(failed))
	for id, err := range failed {
		out[id] = err.Error()
	}
	return out
}
