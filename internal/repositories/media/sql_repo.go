package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

// deleteChunk bounds the number of placeholders in one IN (...) list.
const deleteChunk = 500

const selectColumns = `id, uri, display_name, date_added, date_modified, size, width, height,
	mime_type, media_kind, bucket, path, is_favorite, is_deleted, deleted_at, is_hidden,
	created_at, updated_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) q(query string) string {
	return r.dialect.Rebind(query)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*models.MetadataRecord, error) {
	var (
		rec       models.MetadataRecord
		kind      string
		deletedAt sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := s.Scan(
		&rec.ID, &rec.URI, &rec.DisplayName, &rec.DateAdded, &rec.DateModified,
		&rec.Size, &rec.Width, &rec.Height, &rec.MIMEType, &kind, &rec.Bucket, &rec.Path,
		&rec.IsFavorite, &rec.IsDeleted, &deletedAt, &rec.IsHidden, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.MediaKind = models.MediaKind(kind)
	if deletedAt.Valid {
		t := time.Unix(deletedAt.Int64, 0).UTC()
		rec.DeletedAt = &t
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rec, nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (*models.MetadataRecord, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+selectColumns+` FROM media WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media[%d]: %w", id, err)
	}
	return rec, nil
}

func (r *SQLRepository) exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, r.q(`SELECT 1 FROM media WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check media[%d]: %w", id, err)
	}
	return true, nil
}

func (r *SQLRepository) ListIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM media ORDER BY id`)
}

func (r *SQLRepository) FavoriteIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM media WHERE is_favorite = ? ORDER BY id`, true)
}

func (r *SQLRepository) DeletedIDs(ctx context.Context) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM media WHERE is_deleted = ? ORDER BY id`, true)
}

func (r *SQLRepository) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list media ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan media id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media ids: %w", err)
	}
	return ids, nil
}

// Upsert inserts a new row or refreshes the catalog attributes of an existing
// one. Flags and created_at are only written on insert.
func (r *SQLRepository) Upsert(ctx context.Context, rec models.MetadataRecord) error {
	var deletedAt any
	if rec.DeletedAt != nil {
		deletedAt = rec.DeletedAt.Unix()
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO media (id, uri, display_name, date_added, date_modified, size, width, height,
			mime_type, media_kind, bucket, path, is_favorite, is_deleted, deleted_at, is_hidden,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			uri = excluded.uri,
			display_name = excluded.display_name,
			date_added = excluded.date_added,
			date_modified = excluded.date_modified,
			size = excluded.size,
			width = excluded.width,
			height = excluded.height,
			mime_type = excluded.mime_type,
			media_kind = excluded.media_kind,
			bucket = excluded.bucket,
			path = excluded.path,
			updated_at = excluded.updated_at
	`),
		rec.ID, rec.URI, rec.DisplayName, rec.DateAdded, rec.DateModified, rec.Size,
		rec.Width, rec.Height, rec.MIMEType, string(rec.MediaKind), rec.Bucket, rec.Path,
		rec.IsFavorite, rec.IsDeleted, deletedAt, rec.IsHidden,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert media[%d]: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM media WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete media[%d]: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete media[%d]: %w", id, err)
	}
	return n > 0, nil
}

// DeleteMany hard-deletes the given rows in chunks and returns how many
// existed.
func (r *SQLRepository) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM media WHERE id IN (`+placeholders+`)`), args...)
		if err != nil {
			return total, fmt.Errorf("failed to delete %d media rows: %w", len(chunk), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to delete %d media rows: %w", len(chunk), err)
		}
		total += int(n)
	}
	return total, nil
}

// ToggleFavorite flips the flag in a single statement and returns the new
// value.
func (r *SQLRepository) ToggleFavorite(ctx context.Context, id int64, now time.Time) (bool, error) {
	var fav bool
	err := r.db.QueryRowContext(ctx, r.q(`
		UPDATE media SET is_favorite = NOT is_favorite, updated_at = ?
		WHERE id = ?
		RETURNING is_favorite
	`), now.Unix(), id).Scan(&fav)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("media[%d]: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite on media[%d]: %w", id, err)
	}
	return fav, nil
}

func (r *SQLRepository) SetHidden(ctx context.Context, id int64, hidden bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE media SET is_hidden = ?, updated_at = ? WHERE id = ?`),
		hidden, now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set hidden on media[%d]: %w", id, err)
	}
	return r.requireRow(res, id)
}

// MarkDeleted moves an Active row to Deleted. Rows already deleted keep their
// original deletedAt.
func (r *SQLRepository) MarkDeleted(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE media SET is_deleted = ?, deleted_at = ?, updated_at = ?
		WHERE id = ? AND is_deleted = ?
	`), true, at.Unix(), at.Unix(), id, false)
	if err != nil {
		return fmt.Errorf("failed to soft-delete media[%d]: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to soft-delete media[%d]: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	ok, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("media[%d]: %w", id, common.ErrorNotFound)
	}
	return nil
}

// Restore clears the soft-delete pair. It reports whether the row exists.
func (r *SQLRepository) Restore(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE media SET is_deleted = ?, deleted_at = NULL, updated_at = ?
		WHERE id = ? AND is_deleted = ?
	`), false, now.Unix(), id, true)
	if err != nil {
		return false, fmt.Errorf("failed to restore media[%d]: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to restore media[%d]: %w", id, err)
	}
	if n > 0 {
		return true, nil
	}
	return r.exists(ctx, id)
}

func (r *SQLRepository) requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update media[%d]: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("media[%d]: %w", id, common.ErrorNotFound)
	}
	return nil
}

// Query returns the rows matching filter in the requested order. The text
// predicate and the name order are applied after the SQL query so both are
// Unicode-aware on every dialect.
func (r *SQLRepository) Query(ctx context.Context, filter models.Filter, sort models.Sort) ([]models.MetadataRecord, error) {
	query, args := buildQuery(filter, sort)
	recs, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if filter.Text != "" {
		out := recs[:0]
		for _, rec := range recs {
			if filter.MatchesText(rec.DisplayName) {
				out = append(out, rec)
			}
		}
		recs = out
	}
	if sort.Field == models.SortByName {
		sortByName(recs, sort.Ascending)
	}
	return recs, nil
}

// ListExpired returns soft-deleted rows with deletedAt <= cutoff, oldest first.
func (r *SQLRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]models.MetadataRecord, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM media
		WHERE is_deleted = ? AND deleted_at <= ?
		ORDER BY deleted_at, id`, true, cutoff.Unix())
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]models.MetadataRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	recs := make([]models.MetadataRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media rows: %w", err)
	}
	return recs, nil
}

func (r *SQLRepository) Stats(ctx context.Context) (models.LibraryStats, error) {
	stats := models.LibraryStats{ByKind: make(map[models.MediaKind]int)}

	rows, err := r.db.QueryContext(ctx, `
		SELECT media_kind, is_favorite, is_deleted, is_hidden, COUNT(*), COALESCE(SUM(size), 0)
		FROM media
		GROUP BY media_kind, is_favorite, is_deleted, is_hidden`)
	if err != nil {
		return stats, fmt.Errorf("failed to collect media stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind                 string
			fav, deleted, hidden bool
			count                int
			size                 int64
		)
		if err := rows.Scan(&kind, &fav, &deleted, &hidden, &count, &size); err != nil {
			return stats, fmt.Errorf("failed to scan media stats: %w", err)
		}
		stats.Total += count
		stats.TotalSize += size
		switch {
		case deleted:
			stats.Deleted += count
		case hidden:
			stats.Hidden += count
		default:
			stats.Active += count
			stats.ByKind[models.MediaKind(kind)] += count
		}
		if fav && !deleted {
			stats.Favorites += count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate media stats: %w", err)
	}
	return stats, nil
}
