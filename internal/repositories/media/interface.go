package media

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

type Repository interface {
	// Get returns (nil, nil) when the row does not exist.
	Get(ctx context.Context, id int64) (*models.MetadataRecord, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Upsert(ctx context.Context, rec models.MetadataRecord) error
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteMany(ctx context.Context, ids []int64) (int, error)

	ToggleFavorite(ctx context.Context, id int64, now time.Time) (bool, error)
	SetHidden(ctx context.Context, id int64, hidden bool, now time.Time) error
	MarkDeleted(ctx context.Context, id int64, at time.Time) error
	Restore(ctx context.Context, id int64, now time.Time) (bool, error)

	Query(ctx context.Context, filter models.Filter, sort models.Sort) ([]models.MetadataRecord, error)
	ListExpired(ctx context.Context, cutoff time.Time) ([]models.MetadataRecord, error)
	FavoriteIDs(ctx context.Context) ([]int64, error)
	DeletedIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (models.LibraryStats, error)
}
