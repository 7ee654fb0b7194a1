package media

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

// buildQuery composes the base visibility predicate with the optional
// filters. Placeholders are '?' and rebound by the caller.
func buildQuery(f models.Filter, s models.Sort) (string, []any) {
	var (
		where []string
		args  []any
	)

	switch f.View {
	case models.ViewDeleted:
		where = append(where, "is_deleted = ?")
		args = append(args, true)
	case models.ViewHidden:
		where = append(where, "is_hidden = ?", "is_deleted = ?")
		args = append(args, true, false)
	default:
		where = append(where, "is_deleted = ?", "is_hidden = ?")
		args = append(args, false, false)
	}

	if f.Kind != "" {
		where = append(where, "media_kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.AddedFrom != nil {
		where = append(where, "date_added >= ?")
		args = append(args, f.AddedFrom.Unix())
	}
	if f.AddedTo != nil {
		where = append(where, "date_added <= ?")
		args = append(args, f.AddedTo.Unix())
	}
	if len(f.Sizes) > 0 {
		ors := make([]string, 0, len(f.Sizes))
		for _, b := range f.Sizes {
			if b.Max == 0 {
				ors = append(ors, "size >= ?")
				args = append(args, b.Min)
				continue
			}
			ors = append(ors, "(size >= ? AND size < ?)")
			args = append(args, b.Min, b.Max)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if f.Bucket != "" {
		where = append(where, "bucket = ?")
		args = append(args, f.Bucket)
	}
	if f.FavoritesOnly {
		where = append(where, "is_favorite = ?")
		args = append(args, true)
	}

	query := `SELECT ` + selectColumns + ` FROM media WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + orderBy(s)
	return query, args
}

func orderBy(s models.Sort) string {
	dir := "DESC"
	if s.Ascending {
		dir = "ASC"
	}
	switch s.Field {
	case models.SortByName:
		// final order comes from sortByName
		return "LOWER(display_name) " + dir + ", id " + dir
	case models.SortBySize:
		return "size " + dir + ", id " + dir
	default:
		return "date_added " + dir + ", id " + dir
	}
}

// sortByName orders recs by lowercased display name with id as the
// tie-breaker, both in the same direction. SQLite's LOWER only folds ASCII.
func sortByName(recs []models.MetadataRecord, ascending bool) {
	slices.SortStableFunc(recs, func(a, b models.MetadataRecord) int {
		c := cmp.Or(
			strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)),
			cmp.Compare(a.ID, b.ID),
		)
		if !ascending {
			return -c
		}
		return c
	})
}
