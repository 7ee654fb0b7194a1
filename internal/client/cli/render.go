package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dustin/go-humanize"
)

const timeLayout = "2006-01-02 15:04"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(12)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true)
			}
			return cellStyle
		})
}

func renderRecords(recs []models.MetadataRecord, loc *time.Location) string {
	t := newTable("ID", "Name", "Kind", "Size", "Added", "Flags")
	for _, r := range recs {
		t.Row(
			strconv.FormatInt(r.ID, 10),
			r.DisplayName,
			string(r.MediaKind),
			humanize.Bytes(uint64(r.Size)),
			time.Unix(r.DateAdded, 0).In(loc).Format(timeLayout),
			flags(r),
		)
	}
	return t.Render()
}

func renderGroups(groups []models.Group, loc *time.Location) string {
	sections := make([]string, 0, len(groups)*2)
	for _, g := range groups {
		sections = append(sections,
			headerStyle.Render(fmt.Sprintf("%s (%d)", g.Key, len(g.Items))),
			renderRecords(g.Items, loc),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderRecord(r *models.MetadataRecord, loc *time.Location) string {
	line := func(label, value string) string {
		return labelStyle.Render(label) + value
	}
	lines := []string{
		headerStyle.Render(r.DisplayName),
		line("id", strconv.FormatInt(r.ID, 10)),
		line("kind", string(r.MediaKind)),
		line("mime", r.MIMEType),
		line("size", fmt.Sprintf("%s (%s bytes)", humanize.Bytes(uint64(r.Size)), humanize.Comma(r.Size))),
		line("dimensions", fmt.Sprintf("%dx%d", r.Width, r.Height)),
		line("bucket", r.Bucket),
		line("path", r.Path),
		line("uri", r.URI),
		line("added", time.Unix(r.DateAdded, 0).In(loc).Format(timeLayout)),
		line("modified", time.Unix(r.DateModified, 0).In(loc).Format(timeLayout)),
		line("flags", flags(*r)),
	}
	if r.DeletedAt != nil {
		lines = append(lines, line("deleted", r.DeletedAt.In(loc).Format(timeLayout)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderBin(entries []models.RecycleBinEntry, loc *time.Location) string {
	t := newTable("ID", "Name", "Deleted", "Auto-delete")
	for _, e := range entries {
		deleted := ""
		if e.DeletedAt != nil {
			deleted = e.DeletedAt.In(loc).Format(timeLayout)
		}
		t.Row(
			strconv.FormatInt(e.ID, 10),
			e.DisplayName,
			deleted,
			fmt.Sprintf("%s (%s)", e.AutoDeleteAt.In(loc).Format(timeLayout), humanize.Time(e.AutoDeleteAt)),
		)
	}
	return t.Render()
}

func renderStats(s models.LibraryStats) string {
	t := newTable("State", "Count")
	t.Row("total", humanize.Comma(int64(s.Total)))
	t.Row("active", humanize.Comma(int64(s.Active)))
	t.Row("favorites", humanize.Comma(int64(s.Favorites)))
	t.Row("hidden", humanize.Comma(int64(s.Hidden)))
	t.Row("deleted", humanize.Comma(int64(s.Deleted)))
	if s.PendingFinalize > 0 {
		t.Row("pending cleanup", humanize.Comma(int64(s.PendingFinalize)))
	}

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		t.Row("kind "+k, humanize.Comma(int64(s.ByKind[models.MediaKind(k)])))
	}

	last := "never"
	if s.LastSync != nil {
		last = humanize.Time(*s.LastSync)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		t.Render(),
		labelStyle.Render("size")+humanize.Bytes(uint64(s.TotalSize)),
		labelStyle.Render("last sync")+last,
	)
}

func formatStatus(s models.LibraryStats) string {
	if s.LastSync == nil {
		return fmt.Sprintf("[%d items, never synced]", s.Active)
	}
	return fmt.Sprintf("[%d items, synced %s]", s.Active, humanize.Time(*s.LastSync))
}

func formatSyncReport(r models.SyncReport) string {
	msg := fmt.Sprintf("synced: seen %d, inserted %d, updated %d, removed %d, skipped %d",
		r.Seen, r.Inserted, r.Updated, r.Removed, r.Skipped)
	if r.Coalesced {
		msg += " (joined a run in progress)"
	}
	return msg
}

func formatPurgeReport(r models.PermanentDeleteReport) string {
	var parts []string
	if len(r.Deleted) > 0 {
		parts = append(parts, "deleted: "+joinIDs(r.Deleted))
	}
	if len(r.Pending) > 0 {
		parts = append(parts, "pending local cleanup: "+joinIDs(r.Pending))
	}
	if len(parts) == 0 && len(r.Failed) == 0 {
		return "nothing to delete"
	}
	return strings.Join(parts, "\n")
}

func flags(r models.MetadataRecord) string {
	var f []string
	if r.IsFavorite {
		f = append(f, "fav")
	}
	if r.IsHidden {
		f = append(f, "hidden")
	}
	if r.IsDeleted {
		f = append(f, "deleted")
	}
	return strings.Join(f, ",")
}

func joinIDs(ids []int64) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(s, ", ")
}
