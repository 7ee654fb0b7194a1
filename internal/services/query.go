package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/repomanager"
)

// QueryService answers filtered, sorted and optionally grouped reads.
type QueryService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	loc   *time.Location
}

// NewQueryService groups by day in loc, or in the process local zone when loc
// is nil.
func NewQueryService(db *sql.DB, repos repomanager.RepositoryManager, loc *time.Location) *QueryService {
	if loc == nil {
		loc = time.Local
	}
	return &QueryService{db: db, repos: repos, loc: loc}
}

func (q *QueryService) Query(ctx context.Context, opts models.QueryOptions) (models.GroupedResult, error) {
	recs, err := q.repos.Media(q.db).Query(ctx, opts.Filter, opts.Sort)
	if err != nil {
		return models.GroupedResult{}, err
	}
	res := models.GroupedResult{Items: recs}
	if opts.GroupByDay {
		res.Groups = models.GroupByDay(recs, q.loc)
	}
	return res, nil
}

func (q *QueryService) Location() *time.Location { return q.loc }
