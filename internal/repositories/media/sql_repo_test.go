package media

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/migrations"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.SetDialect(dbx.SQLite.GooseDialect()))
	require.NoError(t, goose.UpContext(context.Background(), db, migrations.Dir(dbx.SQLite)))

	db.SetMaxOpenConns(1)
	return db
}

func entry(id int64, name string, added int64, size int64, mime string) models.CatalogEntry {
	return models.CatalogEntry{
		ID:           id,
		URI:          "file:///media/" + name,
		DisplayName:  name,
		DateAdded:    added,
		DateModified: added,
		Size:         size,
		MIMEType:     mime,
	}
}

func seed(t *testing.T, r *SQLRepository, entries ...models.CatalogEntry) {
	t.Helper()
	for _, e := range entries {
		require.NoError(t, r.Upsert(context.Background(), models.NewRecord(e, t0)))
	}
}

func ids(recs []models.MetadataRecord) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestUpsert_InsertThenGet(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	e := entry(1, "a.jpg", 100, 2048, "image/jpeg")
	e.Width, e.Height, e.Bucket, e.Path = 10, 20, "Camera", "/media/a.jpg"
	seed(t, r, e)

	got, err := r.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e, got.CatalogEntry)
	assert.Equal(t, models.MediaKindImage, got.MediaKind)
	assert.Equal(t, t0, got.CreatedAt)
	assert.Equal(t, t0, got.UpdatedAt)
	assert.False(t, got.IsFavorite || got.IsDeleted || got.IsHidden)
	assert.Nil(t, got.DeletedAt)
}

func TestGet_Missing_ReturnsNilNil(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)

	got, err := r.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsert_PreservesFlagsAndCreatedAt(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	seed(t, r, entry(1, "a.jpg", 100, 10, "image/jpeg"))
	_, err := r.ToggleFavorite(ctx, 1, t0)
	require.NoError(t, err)
	require.NoError(t, r.SetHidden(ctx, 1, true, t0))
	require.NoError(t, r.MarkDeleted(ctx, 1, t0.Add(time.Minute)))

	later := t0.Add(time.Hour)
	renamed := entry(1, "renamed.jpg", 100, 99, "image/jpeg")
	require.NoError(t, r.Upsert(ctx, models.NewRecord(renamed, later)))

	got, err := r.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "renamed.jpg", got.DisplayName)
	assert.Equal(t, int64(99), got.Size)
	assert.True(t, got.IsFavorite)
	assert.True(t, got.IsHidden)
	assert.True(t, got.IsDeleted)
	require.NotNil(t, got.DeletedAt)
	assert.Equal(t, t0.Add(time.Minute), *got.DeletedAt)
	assert.Equal(t, t0, got.CreatedAt)
	assert.Equal(t, later, got.UpdatedAt)
}

func TestUpsert_Idempotent(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	e := entry(1, "a.jpg", 100, 10, "image/jpeg")

	require.NoError(t, r.Upsert(ctx, models.NewRecord(e, t0)))
	first, _ := r.Get(ctx, 1)
	require.NoError(t, r.Upsert(ctx, models.NewRecord(e, t0.Add(time.Second))))
	second, _ := r.Get(ctx, 1)

	assert.Equal(t, first.CatalogEntry, second.CatalogEntry)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestToggleFavorite_FlipsAndReportsNotFound(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r, entry(1, "a.jpg", 100, 10, "image/jpeg"))

	v, err := r.ToggleFavorite(ctx, 1, t0)
	require.NoError(t, err)
	assert.True(t, v)
	v, err = r.ToggleFavorite(ctx, 1, t0)
	require.NoError(t, err)
	assert.False(t, v)

	_, err = r.ToggleFavorite(ctx, 2, t0)
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestMarkDeleted_And_Restore(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r, entry(1, "a.jpg", 100, 10, "image/jpeg"))

	require.NoError(t, r.MarkDeleted(ctx, 1, t0))
	// second soft delete keeps the original timestamp
	require.NoError(t, r.MarkDeleted(ctx, 1, t0.Add(time.Hour)))
	got, _ := r.Get(ctx, 1)
	require.True(t, got.IsDeleted)
	assert.Equal(t, t0, *got.DeletedAt)
	assert.True(t, got.Consistent())

	err := r.MarkDeleted(ctx, 2, t0)
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	found, err := r.Restore(ctx, 1, t0)
	require.NoError(t, err)
	assert.True(t, found)
	got, _ = r.Get(ctx, 1)
	assert.False(t, got.IsDeleted)
	assert.Nil(t, got.DeletedAt)

	found, err = r.Restore(ctx, 1, t0)
	require.NoError(t, err)
	assert.True(t, found, "restoring an active row is a no-op")

	found, err = r.Restore(ctx, 2, t0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSchema_RejectsInconsistentDeletePair(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	rec := models.NewRecord(entry(1, "a.jpg", 100, 10, "image/jpeg"), t0)
	rec.IsDeleted = true

	err := r.Upsert(context.Background(), rec)
	assert.Error(t, err)
}

func TestDeleteMany_AndDelete(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	for i := int64(1); i <= 1200; i++ {
		seed(t, r, entry(i, "x.jpg", i, i, "image/jpeg"))
	}

	var del []int64
	for i := int64(1); i <= 1100; i++ {
		del = append(del, i)
	}
	del = append(del, 9999)
	n, err := r.DeleteMany(ctx, del)
	require.NoError(t, err)
	assert.Equal(t, 1100, n)

	left, err := r.ListIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 100)

	ok, err := r.Delete(ctx, 1101)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Delete(ctx, 1101)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = r.DeleteMany(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQuery_BasePredicateAndViews(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r,
		entry(1, "active.jpg", 100, 10, "image/jpeg"),
		entry(2, "hidden.jpg", 200, 10, "image/jpeg"),
		entry(3, "deleted.jpg", 300, 10, "image/jpeg"),
		entry(4, "hidden-deleted.jpg", 400, 10, "image/jpeg"),
	)
	require.NoError(t, r.SetHidden(ctx, 2, true, t0))
	require.NoError(t, r.MarkDeleted(ctx, 3, t0))
	require.NoError(t, r.SetHidden(ctx, 4, true, t0))
	require.NoError(t, r.MarkDeleted(ctx, 4, t0))

	active, err := r.Query(ctx, models.Filter{}, models.DefaultSort)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(active))

	hidden, err := r.Query(ctx, models.Filter{View: models.ViewHidden}, models.DefaultSort)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(hidden))

	deleted, err := r.Query(ctx, models.Filter{View: models.ViewDeleted}, models.DefaultSort)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3}, ids(deleted))
}

func TestQuery_FiltersAndSorts(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	const k = 1024
	song := entry(3, "song.mp3", 3000, 200*k, "audio/mpeg")
	song.Bucket = "Music"
	seed(t, r,
		entry(1, "Beach.jpg", 1000, 50*k, "image/jpeg"),
		entry(2, "beach-video.mp4", 2000, 5*k*k, "video/mp4"),
		song,
		entry(4, "apple.png", 4000, 500*k*k, "image/png"),
	)
	_, err := r.ToggleFavorite(ctx, 4, t0)
	require.NoError(t, err)

	tiny, _ := models.LookupSizeBucket("tiny")
	medium, _ := models.LookupSizeBucket("medium")
	huge, _ := models.LookupSizeBucket("huge")
	from := time.Unix(2000, 0)
	to := time.Unix(3000, 0)

	tests := []struct {
		name   string
		filter models.Filter
		sort   models.Sort
		want   []int64
	}{
		{"default date desc", models.Filter{}, models.DefaultSort, []int64{4, 3, 2, 1}},
		{"date asc", models.Filter{}, models.Sort{Field: models.SortByDate, Ascending: true}, []int64{1, 2, 3, 4}},
		{"name asc case-insensitive", models.Filter{}, models.Sort{Field: models.SortByName, Ascending: true}, []int64{4, 2, 1, 3}},
		{"size desc", models.Filter{}, models.Sort{Field: models.SortBySize}, []int64{4, 2, 3, 1}},
		{"kind", models.Filter{Kind: models.MediaKindImage}, models.DefaultSort, []int64{4, 1}},
		{"inclusive date range", models.Filter{AddedFrom: &from, AddedTo: &to}, models.DefaultSort, []int64{3, 2}},
		{"size buckets", models.Filter{Sizes: []models.SizeBucket{tiny, medium, huge}}, models.DefaultSort, []int64{4, 2, 1}},
		{"favorites only", models.Filter{FavoritesOnly: true}, models.DefaultSort, []int64{4}},
		{"bucket", models.Filter{Bucket: "Music"}, models.DefaultSort, []int64{3}},
		{"text", models.Filter{Text: "BEACH"}, models.DefaultSort, []int64{2, 1}},
		{"combined", models.Filter{Kind: models.MediaKindImage, Text: "beach"}, models.DefaultSort, []int64{1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Query(ctx, tc.filter, tc.sort)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestQuery_NameSortFoldsNonASCII(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r,
		entry(1, "éclair.jpg", 1, 1, "image/jpeg"),
		entry(2, "Éte.jpg", 2, 1, "image/jpeg"),
		entry(3, "Zebra.jpg", 3, 1, "image/jpeg"),
		entry(4, "ÉCLAIR.jpg", 4, 1, "image/jpeg"),
	)

	got, err := r.Query(ctx, models.Filter{}, models.Sort{Field: models.SortByName, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 4, 2}, ids(got))

	got, err = r.Query(ctx, models.Filter{}, models.Sort{Field: models.SortByName})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 1, 3}, ids(got))

	got, err = r.Query(ctx, models.Filter{Text: "éclair"}, models.Sort{Field: models.SortByName, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids(got))
}

func TestQuery_SizeBucketBoundaries(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	const (
		kib = int64(1024)
		mib = 1024 * kib
	)
	seed(t, r,
		entry(1, "under-100k.jpg", 1, 100*kib-1, "image/jpeg"),
		entry(2, "at-100k.jpg", 2, 100*kib, "image/jpeg"),
		entry(3, "under-100m.mp4", 3, 100*mib-1, "video/mp4"),
		entry(4, "at-100m.mp4", 4, 100*mib, "video/mp4"),
	)

	tests := []struct {
		bucket string
		want   []int64
	}{
		{"tiny", []int64{1}},
		{"small", []int64{2}},
		{"large", []int64{3}},
		{"huge", []int64{4}},
	}
	for _, tc := range tests {
		t.Run(tc.bucket, func(t *testing.T) {
			b, ok := models.LookupSizeBucket(tc.bucket)
			require.True(t, ok)
			got, err := r.Query(ctx, models.Filter{Sizes: []models.SizeBucket{b}}, models.Sort{Field: models.SortByDate, Ascending: true})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestListExpired_UsesInclusiveCutoff(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r,
		entry(1, "a.jpg", 1, 1, "image/jpeg"),
		entry(2, "b.jpg", 2, 1, "image/jpeg"),
		entry(3, "c.jpg", 3, 1, "image/jpeg"),
	)
	require.NoError(t, r.MarkDeleted(ctx, 1, t0))
	require.NoError(t, r.MarkDeleted(ctx, 2, t0.Add(time.Hour)))

	got, err := r.ListExpired(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))

	got, err = r.ListExpired(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestIDLists_AndStats(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()
	seed(t, r,
		entry(1, "a.jpg", 1, 100, "image/jpeg"),
		entry(2, "b.mp4", 2, 200, "video/mp4"),
		entry(3, "c.jpg", 3, 300, "image/jpeg"),
		entry(4, "d.mp3", 4, 400, "audio/mpeg"),
	)
	_, _ = r.ToggleFavorite(ctx, 1, t0)
	_, _ = r.ToggleFavorite(ctx, 3, t0)
	require.NoError(t, r.MarkDeleted(ctx, 3, t0))
	require.NoError(t, r.SetHidden(ctx, 4, true, t0))

	fav, err := r.FavoriteIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, fav)

	del, err := r.DeletedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, del)

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Hidden)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 1, stats.Favorites)
	assert.Equal(t, int64(1000), stats.TotalSize)
	assert.Equal(t, map[models.MediaKind]int{models.MediaKindImage: 1, models.MediaKindVideo: 1}, stats.ByKind)
}
