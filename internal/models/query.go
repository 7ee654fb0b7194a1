package models

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// View selects which base set of records a query runs against.
type View string

const (
	// ViewActive excludes deleted and hidden records.
	ViewActive View = "active"
	// ViewDeleted is the recycle bin.
	ViewDeleted View = "deleted"
	// ViewHidden lists hidden records that are not deleted.
	ViewHidden View = "hidden"
)

// SizeBucket is a half-open byte range [Min, Max). Max == 0 means unbounded.
type SizeBucket struct {
	Name string
	Min  int64
	Max  int64
}

// Contains reports whether size falls inside the bucket.
func (b SizeBucket) Contains(size int64) bool {
	return size >= b.Min && (b.Max == 0 || size < b.Max)
}

const (
	kb = int64(1) << 10
	mb = int64(1) << 20
)

// SizeBuckets are the predefined buckets, ordered by size. The last one is
// open-ended.
var SizeBuckets = []SizeBucket{
	{Name: "tiny", Min: 0, Max: 100 * kb},
	{Name: "small", Min: 100 * kb, Max: mb},
	{Name: "medium", Min: mb, Max: 10 * mb},
	{Name: "large", Min: 10 * mb, Max: 100 * mb},
	{Name: "huge", Min: 100 * mb},
}

// LookupSizeBucket finds a predefined bucket by name.
func LookupSizeBucket(name string) (SizeBucket, bool) {
	for _, b := range SizeBuckets {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return SizeBucket{}, false
}

// Filter narrows a query. Zero values never constrain results.
type Filter struct {
	View          View
	Kind          MediaKind
	AddedFrom     *time.Time
	AddedTo       *time.Time
	Sizes         []SizeBucket
	FavoritesOnly bool
	// Bucket matches the catalog album or folder exactly.
	Bucket string
	Text   string
}

// MatchesText is the case-insensitive substring test used for Text.
func (f Filter) MatchesText(name string) bool {
	if f.Text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(f.Text))
}

// SortField is the attribute a query is ordered by.
type SortField string

const (
	SortByDate SortField = "date"
	SortByName SortField = "name"
	SortBySize SortField = "size"
)

// Sort is a field plus direction. The zero value is date descending.
type Sort struct {
	Field     SortField
	Ascending bool
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: SortByDate}

func (s Sort) String() string {
	field := s.Field
	if field == "" {
		field = SortByDate
	}
	if s.Ascending {
		return string(field) + "_asc"
	}
	return string(field) + "_desc"
}

// ParseSort accepts "<field>_<asc|desc>" or a bare field (descending).
func ParseSort(s string) (Sort, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultSort, nil
	}
	field, dir, hasDir := strings.Cut(s, "_")
	out := Sort{Field: SortField(field)}
	switch out.Field {
	case SortByDate, SortByName, SortBySize:
	default:
		return Sort{}, fmt.Errorf("unknown sort field %q", field)
	}
	if hasDir {
		switch dir {
		case "asc":
			out.Ascending = true
		case "desc":
		default:
			return Sort{}, fmt.Errorf("unknown sort direction %q", dir)
		}
	}
	return out, nil
}

// QueryOptions is everything a query or subscription needs.
type QueryOptions struct {
	Filter     Filter
	Sort       Sort
	GroupByDay bool
}

// Group is a run of records sharing a calendar day of dateModified.
type Group struct {
	Key   string           `json:"key"`
	Items []MetadataRecord `json:"items"`
}

// GroupedResult is a query answer. Items is always the full ordered list;
// Groups is filled only when grouping was requested.
type GroupedResult struct {
	Items  []MetadataRecord `json:"items"`
	Groups []Group          `json:"groups,omitempty"`
}

// DayKey formats a Unix timestamp as YYYY-MM-DD in loc.
func DayKey(unix int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(unix, 0).In(loc).Format(time.DateOnly)
}

// GroupByDay buckets records by the local date of dateModified. Groups are
// ordered by key descending; records keep their incoming order.
func GroupByDay(records []MetadataRecord, loc *time.Location) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range records {
		key := DayKey(r.DateModified, loc)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Items = append(groups[i].Items, r)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key > groups[j].Key })
	return groups
}

// ParseQueryOptions reads options from query-string style values. Shared by
// the HTTP API and the CLI so both accept the same vocabulary:
//
//	view=active|deleted|hidden kind=image from=2024-01-01 to=2024-01-31
//	size=tiny,small fav=true bucket=Camera q=beach sort=name_asc group=day
//
// "favorite" is accepted as a synonym for "fav".
func ParseQueryOptions(values url.Values, loc *time.Location) (QueryOptions, error) {
	if loc == nil {
		loc = time.Local
	}
	var opts QueryOptions

	switch v := View(strings.ToLower(values.Get("view"))); v {
	case "", ViewActive:
		opts.Filter.View = ViewActive
	case ViewDeleted, ViewHidden:
		opts.Filter.View = v
	default:
		return opts, fmt.Errorf("unknown view %q", v)
	}

	kind, err := ParseMediaKind(values.Get("kind"))
	if err != nil {
		return opts, err
	}
	opts.Filter.Kind = kind

	if s := values.Get("from"); s != "" {
		t, err := parseDateBound(s, loc, false)
		if err != nil {
			return opts, fmt.Errorf("invalid from: %w", err)
		}
		opts.Filter.AddedFrom = &t
	}
	if s := values.Get("to"); s != "" {
		t, err := parseDateBound(s, loc, true)
		if err != nil {
			return opts, fmt.Errorf("invalid to: %w", err)
		}
		opts.Filter.AddedTo = &t
	}

	for _, raw := range values["size"] {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			b, ok := LookupSizeBucket(name)
			if !ok {
				return opts, fmt.Errorf("unknown size bucket %q", name)
			}
			opts.Filter.Sizes = append(opts.Filter.Sizes, b)
		}
	}

	fav := values.Get("fav")
	if fav == "" {
		fav = values.Get("favorite")
	}
	if s := fav; s != "" {
		fav, err := strconv.ParseBool(s)
		if err != nil {
			return opts, fmt.Errorf("invalid fav: %w", err)
		}
		opts.Filter.FavoritesOnly = fav
	}

	opts.Filter.Bucket = strings.TrimSpace(values.Get("bucket"))
	opts.Filter.Text = strings.TrimSpace(values.Get("q"))

	if opts.Sort, err = ParseSort(values.Get("sort")); err != nil {
		return opts, err
	}

	switch g := strings.ToLower(values.Get("group")); g {
	case "", "none":
	case "day":
		opts.GroupByDay = true
	default:
		return opts, fmt.Errorf("unknown grouping %q", g)
	}

	return opts, nil
}

// parseDateBound accepts YYYY-MM-DD (local day, end-of-day when upper),
// RFC 3339, or Unix seconds.
func parseDateBound(s string, loc *time.Location, upper bool) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		if upper {
			return t.AddDate(0, 0, 1).Add(-time.Second), nil
		}
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	return time.Unix(n, 0), nil
}
