// Package httpapi serves the library facade over HTTP with gin. Every route
// under /api/v1 requires a bearer token issued by the auth package.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Library is the part of services.Library the API needs.
type Library interface {
	Sync(ctx context.Context) (models.SyncReport, error)
	Query(ctx context.Context, opts models.QueryOptions) (models.GroupedResult, error)
	Get(ctx context.Context, id int64) (*models.MetadataRecord, error)
	Locate(ctx context.Context, id int64) (string, *models.MetadataRecord, error)
	ToggleFavorite(ctx context.Context, id int64) (bool, error)
	SetHidden(ctx context.Context, id int64, hidden bool) error
	SoftDelete(ctx context.Context, ids []int64) ([]int64, error)
	Restore(ctx context.Context, ids []int64) ([]int64, error)
	RecycleBin(ctx context.Context) ([]models.RecycleBinEntry, error)
	ScanExpired(ctx context.Context, window time.Duration) ([]int64, error)
	Retention() time.Duration
	RequestPermanentDelete(ctx context.Context, ids []int64) (models.PermanentDeleteReport, error)
	PurgeExpired(ctx context.Context) (models.PermanentDeleteReport, error)
	FavoriteIDs(ctx context.Context) ([]int64, error)
	DeletedIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (models.LibraryStats, error)
	LastSync(ctx context.Context) (*services.SyncState, error)
}

type Options struct {
	SecretKey []byte
	// Location is the calendar for date filters and day grouping.
	Location *time.Location
	Logger   logging.Logger
	// AllowOrigins defaults to any origin.
	AllowOrigins []string
}

func NewRouter(lib Library, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}
	h := &Handler{lib: lib, loc: opts.Location, logger: opts.Logger.With("module", "http")}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(requireToken(opts.SecretKey))
	{
		v1.POST("/sync", h.Sync)
		v1.GET("/media", h.ListMedia)
		v1.GET("/media/:id", h.GetMedia)
		v1.GET("/media/:id/content", h.Content)
		v1.POST("/media/:id/favorite/toggle", h.ToggleFavorite)
		v1.PUT("/media/:id/hidden", h.SetHidden)
		v1.POST("/media/delete", h.SoftDelete)
		v1.POST("/media/restore", h.Restore)
		v1.GET("/bin", h.RecycleBin)
		v1.GET("/bin/expired", h.Expired)
		v1.POST("/bin/purge", h.Purge)
		v1.GET("/favorites/ids", h.FavoriteIDs)
		v1.GET("/deleted/ids", h.DeletedIDs)
		v1.GET("/stats", h.Stats)
	}
	return r
}
