package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/keylock"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/repomanager"
)

// DefaultRetention is used when Options.Retention is zero.
const DefaultRetention = 30 * 24 * time.Hour

type Options struct {
	// Retention is how long items stay in the recycle bin before they are
	// offered for permanent deletion.
	Retention time.Duration
	// Location is the calendar used for day grouping.
	Location *time.Location
	Now      Clock
	Logger   logging.Logger
	// OnSync observes every finished Sync, successful or not.
	OnSync func(models.SyncReport, error)
}

// Library is the facade presentation layers talk to. All methods are safe for
// concurrent use.
type Library struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	catalog   catalog.Catalog
	retention time.Duration
	logger    logging.Logger
	onSync    func(models.SyncReport, error)

	reconciler *Reconciler
	lifecycle  *Lifecycle
	overlay    *Overlay
	query      *QueryService
	hub        *hub
}

func NewLibrary(repos repomanager.RepositoryManager, cat catalog.Catalog, consenter catalog.Consenter, opts Options) *Library {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	now := opts.Now.orDefault()
	db := repos.DB()
	locks := keylock.New()
	query := NewQueryService(db, repos, opts.Location)

	return &Library{
		db:         db,
		repos:      repos,
		catalog:    cat,
		retention:  opts.Retention,
		logger:     logger,
		onSync:     opts.OnSync,
		reconciler: NewReconciler(db, repos, cat, logger, now),
		lifecycle:  NewLifecycle(db, repos, cat, consenter, locks, logger, now),
		overlay:    NewOverlay(db, repos, locks, now),
		query:      query,
		hub:        newHub(query, logger.With("module", "subscriptions")),
	}
}

func (l *Library) Retention() time.Duration { return l.retention }

// Sync finalizes journaled deletions and then reconciles the store with a
// fresh catalog snapshot.
func (l *Library) Sync(ctx context.Context) (models.SyncReport, error) {
	if _, err := l.lifecycle.FinalizePending(ctx); err != nil {
		l.logger.Warn(ctx, "pending finalizations remain", "error", err)
	}
	report, err := l.reconciler.Sync(ctx)
	if l.onSync != nil {
		l.onSync(report, err)
	}
	if err == nil {
		l.hub.notify()
	}
	return report, err
}

func (l *Library) Query(ctx context.Context, opts models.QueryOptions) (models.GroupedResult, error) {
	return l.query.Query(ctx, opts)
}

// HiddenItems lists hidden items that are not in the recycle bin.
func (l *Library) HiddenItems(ctx context.Context, sort models.Sort) ([]models.MetadataRecord, error) {
	res, err := l.query.Query(ctx, models.QueryOptions{Filter: models.Filter{View: models.ViewHidden}, Sort: sort})
	return res.Items, err
}

func (l *Library) Get(ctx context.Context, id int64) (*models.MetadataRecord, error) {
	rec, err := l.repos.Media(l.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("media[%d]: %w", id, common.ErrorNotFound)
	}
	return rec, nil
}

func (l *Library) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	fav, err := l.overlay.ToggleFavorite(ctx, id)
	if err == nil {
		l.hub.notify()
	}
	return fav, err
}

func (l *Library) SetHidden(ctx context.Context, id int64, hidden bool) error {
	err := l.overlay.SetHidden(ctx, id, hidden)
	if err == nil {
		l.hub.notify()
	}
	return err
}

func (l *Library) SoftDelete(ctx context.Context, ids []int64) ([]int64, error) {
	done, err := l.lifecycle.SoftDelete(ctx, ids)
	if len(done) > 0 {
		l.hub.notify()
	}
	return done, err
}

func (l *Library) Restore(ctx context.Context, ids []int64) ([]int64, error) {
	done, err := l.lifecycle.Restore(ctx, ids)
	if len(done) > 0 {
		l.hub.notify()
	}
	return done, err
}

// ScanExpired lists deleted items with now - deletedAt >= window. Callers
// without a window of their own pass Retention().
func (l *Library) ScanExpired(ctx context.Context, window time.Duration) ([]int64, error) {
	return l.lifecycle.ScanExpired(ctx, window)
}

func (l *Library) RequestPermanentDelete(ctx context.Context, ids []int64) (models.PermanentDeleteReport, error) {
	report, err := l.lifecycle.RequestPermanentDelete(ctx, ids)
	if len(report.Deleted)+len(report.Pending) > 0 {
		l.hub.notify()
	}
	return report, err
}

func (l *Library) PurgeExpired(ctx context.Context) (models.PermanentDeleteReport, error) {
	report, err := l.lifecycle.PurgeExpired(ctx, l.retention)
	if len(report.Deleted)+len(report.Pending) > 0 {
		l.hub.notify()
	}
	return report, err
}

func (l *Library) FinalizePending(ctx context.Context) (int, error) {
	n, err := l.lifecycle.FinalizePending(ctx)
	if n > 0 {
		l.hub.notify()
	}
	return n, err
}

func (l *Library) RecycleBin(ctx context.Context) ([]models.RecycleBinEntry, error) {
	return l.lifecycle.RecycleBin(ctx, l.retention)
}

func (l *Library) FavoriteIDs(ctx context.Context) ([]int64, error) {
	return l.repos.Media(l.db).FavoriteIDs(ctx)
}

func (l *Library) DeletedIDs(ctx context.Context) ([]int64, error) {
	return l.repos.Media(l.db).DeletedIDs(ctx)
}

func (l *Library) LastSync(ctx context.Context) (*SyncState, error) {
	return l.reconciler.LastSync(ctx)
}

func (l *Library) Stats(ctx context.Context) (models.LibraryStats, error) {
	stats, err := l.repos.Media(l.db).Stats(ctx)
	if err != nil {
		return stats, err
	}
	state, err := l.reconciler.LastSync(ctx)
	if err != nil {
		return stats, err
	}
	if state != nil {
		stats.LastSync = &state.At
	}
	pending, err := l.lifecycle.PendingIDs(ctx)
	if err != nil {
		return stats, err
	}
	stats.PendingFinalize = len(pending)
	stats.Subscribers = l.hub.count()
	return stats, nil
}

// Subscribe emits the current result for opts and a fresh one after every
// mutation. The channel is closed when ctx is done.
func (l *Library) Subscribe(ctx context.Context, opts models.QueryOptions) (<-chan models.GroupedResult, error) {
	return l.hub.subscribe(ctx, opts)
}

// Locate returns a fetchable URL for an item. Catalogs without URLs report
// catalog.ErrNotLocatable; callers can then use the record's Path.
func (l *Library) Locate(ctx context.Context, id int64) (string, *models.MetadataRecord, error) {
	rec, err := l.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	loc, ok := l.catalog.(catalog.Locator)
	if !ok {
		return "", rec, catalog.ErrNotLocatable
	}
	url, err := loc.Locate(ctx, id)
	if err != nil && !errors.Is(err, catalog.ErrNotLocatable) {
		return "", rec, catalog.Unavailable(err)
	}
	return url, rec, err
}
