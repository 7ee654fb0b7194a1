// Package models defines the media library's domain types: catalog entries
// as reported by the external catalog, the local metadata records that mirror
// them, and the query, consent and reporting types shared by services.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MediaKind classifies an entry by the top-level part of its MIME type.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
	MediaKindOther MediaKind = "other"
)

// ParseMediaKind accepts the lowercase kind names. The empty string means
// "any kind" and is returned as is.
func ParseMediaKind(s string) (MediaKind, error) {
	switch k := MediaKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", MediaKindImage, MediaKindVideo, MediaKindAudio, MediaKindOther:
		return k, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// KindFromMIME maps a MIME type such as "image/jpeg" to its MediaKind.
func KindFromMIME(mime string) MediaKind {
	major, _, _ := strings.Cut(strings.ToLower(mime), "/")
	switch major {
	case "image":
		return MediaKindImage
	case "video":
		return MediaKindVideo
	case "audio":
		return MediaKindAudio
	default:
		return MediaKindOther
	}
}

var (
	ErrEntryNoID  = errors.New("entry has no identifier")
	ErrEntryNoURI = errors.New("entry has no uri")
	ErrEntryField = errors.New("entry has an invalid attribute")
)

// CatalogEntry is one row of a catalog snapshot. Times are Unix seconds.
type CatalogEntry struct {
	ID           int64  `json:"id"`
	URI          string `json:"uri"`
	DisplayName  string `json:"displayName"`
	DateAdded    int64  `json:"dateAdded"`
	DateModified int64  `json:"dateModified"`
	Size         int64  `json:"size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	MIMEType     string `json:"mimeType"`
	Bucket       string `json:"bucket"`
	Path         string `json:"path"`
}

// Kind derives the MediaKind from the entry's MIME type.
func (e CatalogEntry) Kind() MediaKind {
	return KindFromMIME(e.MIMEType)
}

// Validate reports whether the entry can be mirrored. Entries that fail are
// skipped by reconciliation instead of aborting the whole run.
func (e CatalogEntry) Validate() error {
	switch {
	case e.ID <= 0:
		return ErrEntryNoID
	case strings.TrimSpace(e.URI) == "":
		return ErrEntryNoURI
	case e.Size < 0:
		return fmt.Errorf("%w: negative size %d", ErrEntryField, e.Size)
	case e.DateAdded < 0 || e.DateModified < 0:
		return fmt.Errorf("%w: negative timestamp", ErrEntryField)
	case e.Width < 0 || e.Height < 0:
		return fmt.Errorf("%w: negative dimensions", ErrEntryField)
	}
	return nil
}

// MetadataRecord is the local mirror of a CatalogEntry plus the user-owned
// flags that reconciliation never touches.
type MetadataRecord struct {
	CatalogEntry

	MediaKind  MediaKind  `json:"mediaKind"`
	IsFavorite bool       `json:"isFavorite"`
	IsDeleted  bool       `json:"isDeleted"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	IsHidden   bool       `json:"isHidden"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NewRecord builds a fresh, Active record for an entry first seen at now.
func NewRecord(e CatalogEntry, now time.Time) MetadataRecord {
	now = now.UTC().Truncate(time.Second)
	return MetadataRecord{
		CatalogEntry: e,
		MediaKind:    e.Kind(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Consistent reports whether the soft-delete flag agrees with its timestamp.
func (r MetadataRecord) Consistent() bool {
	return r.IsDeleted == (r.DeletedAt != nil)
}

// ExpiresAt is the moment a soft-deleted record becomes eligible for
// permanent deletion under the given retention window. Zero for Active rows.
func (r MetadataRecord) ExpiresAt(retention time.Duration) time.Time {
	if r.DeletedAt == nil {
		return time.Time{}
	}
	return r.DeletedAt.Add(retention)
}

// Expired reports whether now - deletedAt >= retention.
func (r MetadataRecord) Expired(now time.Time, retention time.Duration) bool {
	if !r.IsDeleted || r.DeletedAt == nil {
		return false
	}
	return now.Sub(*r.DeletedAt) >= retention
}

// RecycleBinEntry is a soft-deleted record annotated with the time it will be
// auto-purged.
type RecycleBinEntry struct {
	MetadataRecord
	AutoDeleteAt time.Time `json:"autoDeleteAt"`
}

// LibraryStats counts records by state.
type LibraryStats struct {
	Total     int               `json:"total"`
	Active    int               `json:"active"`
	Favorites int               `json:"favorites"`
	Hidden    int               `json:"hidden"`
	Deleted   int               `json:"deleted"`
	ByKind    map[MediaKind]int `json:"byKind"`
	TotalSize int64             `json:"totalSize"`
	LastSync  *time.Time        `json:"lastSync,omitempty"`
	// PendingFinalize counts ids whose catalog file is gone but whose row
	// removal still has to be retried.
	PendingFinalize int `json:"pendingFinalize"`
	Subscribers     int `json:"subscribers"`
}
