package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog/consent"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog/memcatalog"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/media"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/repomanager"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func init() {
	goose.SetLogger(goose.NopLogger())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// consentFunc adapts a function to catalog.Consenter.
type consentFunc func(ctx context.Context, ids []int64) (models.ConsentResult, error)

func (f consentFunc) RequestDelete(ctx context.Context, ids []int64) (models.ConsentResult, error) {
	return f(ctx, ids)
}

// flakyRepos wraps the real manager and can make row deletes fail.
type flakyRepos struct {
	repomanager.RepositoryManager
	failRowDelete atomic.Bool
}

func (f *flakyRepos) Media(db dbx.DBTX) media.Repository {
	return &flakyMedia{Repository: f.RepositoryManager.Media(db), parent: f}
}

type flakyMedia struct {
	media.Repository
	parent *flakyRepos
}

var errDisk = errors.New("disk I/O error")

func (m *flakyMedia) Delete(ctx context.Context, id int64) (bool, error) {
	if m.parent.failRowDelete.Load() {
		return false, errDisk
	}
	return m.Repository.Delete(ctx, id)
}

func openRepos(t *testing.T) *repomanager.SQLRepositoryManager {
	t.Helper()
	rm, err := repomanager.Open(context.Background(), filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rm.Close() })
	return rm
}

type env struct {
	lib   *Library
	cat   *memcatalog.Catalog
	repos repomanager.RepositoryManager
	clock *fakeClock
}

type envOption func(*envConfig)

type envConfig struct {
	consenter catalog.Consenter
	wrap      func(repomanager.RepositoryManager) repomanager.RepositoryManager
	catalog   func(*memcatalog.Catalog) catalog.Catalog
	onSync    func(models.SyncReport, error)
}

func withConsent(c catalog.Consenter) envOption {
	return func(e *envConfig) { e.consenter = c }
}

func withRepos(wrap func(repomanager.RepositoryManager) repomanager.RepositoryManager) envOption {
	return func(e *envConfig) { e.wrap = wrap }
}

func withCatalog(wrap func(*memcatalog.Catalog) catalog.Catalog) envOption {
	return func(e *envConfig) { e.catalog = wrap }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	cfg := envConfig{consenter: consent.Auto{}}
	for _, o := range opts {
		o(&cfg)
	}

	var repos repomanager.RepositoryManager = openRepos(t)
	if cfg.wrap != nil {
		repos = cfg.wrap(repos)
	}
	mem := memcatalog.New()
	var cat catalog.Catalog = mem
	if cfg.catalog != nil {
		cat = cfg.catalog(mem)
	}
	clock := newFakeClock(t0)

	lib := NewLibrary(repos, cat, cfg.consenter, Options{
		Retention: 30 * day,
		Location:  time.UTC,
		Now:       clock.Now,
		OnSync:    cfg.onSync,
	})
	return &env{lib: lib, cat: mem, repos: repos, clock: clock}
}

func mkEntry(id int64, name string) models.CatalogEntry {
	added := t0.Add(-time.Duration(id) * day).Unix()
	return models.CatalogEntry{
		ID:           id,
		URI:          "mem://library/" + name,
		DisplayName:  name,
		DateAdded:    added,
		DateModified: added,
		Size:         1024 * id,
		Width:        640,
		Height:       480,
		MIMEType:     "image/jpeg",
		Bucket:       "Camera",
		Path:         "/library/" + name,
	}
}

func (e *env) sync(t *testing.T) models.SyncReport {
	t.Helper()
	r, err := e.lib.Sync(context.Background())
	require.NoError(t, err)
	return r
}

func (e *env) get(t *testing.T, id int64) *models.MetadataRecord {
	t.Helper()
	rec, err := e.repos.Media(e.repos.DB()).Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

// all returns every row regardless of flags, keyed by id.
func (e *env) all(t *testing.T) map[int64]models.MetadataRecord {
	t.Helper()
	repo := e.repos.Media(e.repos.DB())
	ids, err := repo.ListIDs(context.Background())
	require.NoError(t, err)
	out := make(map[int64]models.MetadataRecord, len(ids))
	for _, id := range ids {
		rec, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		out[id] = *rec
	}
	return out
}

func withOnSync(fn func(models.SyncReport, error)) envOption {
	return func(e *envConfig) { e.onSync = fn }
}
