package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/mediakeeper/internal/keylock"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/repomanager"
)

// Overlay owns the favorite and hidden flags. Mutations of one id are
// serialized through the shared key lock.
type Overlay struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	locks *keylock.KeyLock
	now   Clock
}

func NewOverlay(db *sql.DB, repos repomanager.RepositoryManager, locks *keylock.KeyLock, now Clock) *Overlay {
	if locks == nil {
		locks = keylock.New()
	}
	return &Overlay{db: db, repos: repos, locks: locks, now: now.orDefault()}
}

// ToggleFavorite flips the flag and returns the new value.
func (o *Overlay) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	unlock := o.locks.Lock(id)
	defer unlock()
	return o.repos.Media(o.db).ToggleFavorite(ctx, id, o.now())
}

func (o *Overlay) SetHidden(ctx context.Context, id int64, hidden bool) error {
	unlock := o.locks.Lock(id)
	defer unlock()
	return o.repos.Media(o.db).SetHidden(ctx, id, hidden, o.now())
}
