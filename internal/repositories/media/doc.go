// Package media provides the metadata store: the local mirror of catalog
// entries plus the user-owned flags (favorite, hidden, soft-deleted).
//
// # Data Model
//
// Each row carries the catalog attributes, the derived media kind, and the
// flags isFavorite, isDeleted, deletedAt and isHidden. The schema enforces
// isDeleted == (deletedAt IS NOT NULL).
//
// # Concurrency
//
// Upsert writes only catalog attributes on conflict, so a reconciliation run
// can never overwrite a flag changed concurrently. Flag mutations are single
// statements. Callers wanting atomic multi-row work pass a *sql.Tx through
// dbx.DBTX.
//
// Key Types
//
//   - type Repository: interface used by the engines
//   - type SQLRepository: SQLite/Postgres implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := media.NewSQLRepository(db, dbx.SQLite)
//	_ = repo.Upsert(ctx, models.NewRecord(entry, now))
//	fav, _ := repo.ToggleFavorite(ctx, entry.ID, now)
//	rows, _ := repo.Query(ctx, models.Filter{View: models.ViewActive}, models.DefaultSort)
package media
