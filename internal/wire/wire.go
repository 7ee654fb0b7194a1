// Package wire encodes catalog entries and metadata records in the protobuf
// binary format, field by field with protowire, for transports that want a
// compact schema'd payload instead of JSON. Unknown fields are skipped so
// older readers accept newer payloads.
//
// Schema (field numbers are stable):
//
//	message Entry {
//	  int64  id = 1;  string uri = 2;  string display_name = 3;
//	  int64  date_added = 4;  int64 date_modified = 5;  int64 size = 6;
//	  int32  width = 7;  int32 height = 8;  string mime_type = 9;
//	  string bucket = 10;  string path = 11;
//	}
//	message Record {
//	  Entry  entry = 1;  string media_kind = 2;  bool is_favorite = 3;
//	  bool   is_deleted = 4;  optional int64 deleted_at = 5;  bool is_hidden = 6;
//	  int64  created_at = 7;  int64 updated_at = 8;
//	}
//	message RecordList { repeated Record records = 1; }
package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

// ContentType is the media type used when records travel over HTTP.
const ContentType = "application/x-protobuf"

var ErrMalformed = errors.New("malformed wire payload")

const (
	entryID protowire.Number = iota + 1
	entryURI
	entryDisplayName
	entryDateAdded
	entryDateModified
	entrySize
	entryWidth
	entryHeight
	entryMIMEType
	entryBucket
	entryPath
)

const (
	recordEntry protowire.Number = iota + 1
	recordMediaKind
	recordFavorite
	recordDeleted
	recordDeletedAt
	recordHidden
	recordCreatedAt
	recordUpdatedAt
)

const listRecords protowire.Number = 1

func appendVarint(b []byte, n protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, n, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendString(b []byte, n protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, n, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, n protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, n, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, n protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, n, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// MarshalEntry encodes e as an Entry message.
func MarshalEntry(e models.CatalogEntry) []byte {
	return appendEntry(nil, e)
}

func appendEntry(b []byte, e models.CatalogEntry) []byte {
	b = appendVarint(b, entryID, e.ID)
	b = appendString(b, entryURI, e.URI)
	b = appendString(b, entryDisplayName, e.DisplayName)
	b = appendVarint(b, entryDateAdded, e.DateAdded)
	b = appendVarint(b, entryDateModified, e.DateModified)
	b = appendVarint(b, entrySize, e.Size)
	b = appendVarint(b, entryWidth, int64(e.Width))
	b = appendVarint(b, entryHeight, int64(e.Height))
	b = appendString(b, entryMIMEType, e.MIMEType)
	b = appendString(b, entryBucket, e.Bucket)
	b = appendString(b, entryPath, e.Path)
	return b
}

// MarshalRecord encodes r as a Record message.
func MarshalRecord(r models.MetadataRecord) []byte {
	var b []byte
	b = appendMessage(b, recordEntry, MarshalEntry(r.CatalogEntry))
	b = appendString(b, recordMediaKind, string(r.MediaKind))
	b = appendBool(b, recordFavorite, r.IsFavorite)
	b = appendBool(b, recordDeleted, r.IsDeleted)
	if r.DeletedAt != nil {
		// written even when zero: presence carries meaning
		b = protowire.AppendTag(b, recordDeletedAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.DeletedAt.Unix()))
	}
	b = appendBool(b, recordHidden, r.IsHidden)
	b = appendVarint(b, recordCreatedAt, r.CreatedAt.Unix())
	b = appendVarint(b, recordUpdatedAt, r.UpdatedAt.Unix())
	return b
}

// MarshalRecords encodes a RecordList.
func MarshalRecords(records []models.MetadataRecord) []byte {
	var b []byte
	for _, r := range records {
		b = appendMessage(b, listRecords, MarshalRecord(r))
	}
	return b
}

// fields walks every field of a message, handing varints and byte slices to fn.
// Fields of other wire types are skipped.
func fields(b []byte, fn func(n protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
			}
			if err := fn(num, typ, v, nil); err != nil {
				return err
			}
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
			}
			if err := fn(num, typ, 0, v); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func expect(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, got)
	}
	return nil
}

// UnmarshalEntry decodes an Entry message.
func UnmarshalEntry(b []byte) (models.CatalogEntry, error) {
	var e models.CatalogEntry
	err := fields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case entryID, entryDateAdded, entryDateModified, entrySize, entryWidth, entryHeight:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
		case entryURI, entryDisplayName, entryMIMEType, entryBucket, entryPath:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
		}
		switch num {
		case entryID:
			e.ID = int64(v)
		case entryURI:
			e.URI = string(raw)
		case entryDisplayName:
			e.DisplayName = string(raw)
		case entryDateAdded:
			e.DateAdded = int64(v)
		case entryDateModified:
			e.DateModified = int64(v)
		case entrySize:
			e.Size = int64(v)
		case entryWidth:
			e.Width = int(int64(v))
		case entryHeight:
			e.Height = int(int64(v))
		case entryMIMEType:
			e.MIMEType = string(raw)
		case entryBucket:
			e.Bucket = string(raw)
		case entryPath:
			e.Path = string(raw)
		}
		return nil
	})
	return e, err
}

// UnmarshalRecord decodes a Record message. Timestamps come back in UTC.
func UnmarshalRecord(b []byte) (models.MetadataRecord, error) {
	var r models.MetadataRecord
	var created, updated int64
	err := fields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case recordEntry, recordMediaKind:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
		case recordFavorite, recordDeleted, recordDeletedAt, recordHidden, recordCreatedAt, recordUpdatedAt:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
		}
		switch num {
		case recordEntry:
			e, err := UnmarshalEntry(raw)
			if err != nil {
				return err
			}
			r.CatalogEntry = e
		case recordMediaKind:
			r.MediaKind = models.MediaKind(raw)
		case recordFavorite:
			r.IsFavorite = protowire.DecodeBool(v)
		case recordDeleted:
			r.IsDeleted = protowire.DecodeBool(v)
		case recordDeletedAt:
			t := time.Unix(int64(v), 0).UTC()
			r.DeletedAt = &t
		case recordHidden:
			r.IsHidden = protowire.DecodeBool(v)
		case recordCreatedAt:
			created = int64(v)
		case recordUpdatedAt:
			updated = int64(v)
		}
		return nil
	})
	if err != nil {
		return models.MetadataRecord{}, err
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	r.UpdatedAt = time.Unix(updated, 0).UTC()
	if !r.Consistent() {
		return models.MetadataRecord{}, fmt.Errorf("%w: record %d has inconsistent delete state", ErrMalformed, r.ID)
	}
	return r, nil
}

// UnmarshalRecords decodes a RecordList.
func UnmarshalRecords(b []byte) ([]models.MetadataRecord, error) {
	out := make([]models.MetadataRecord, 0)
	err := fields(b, func(num protowire.Number, typ protowire.Type, _ uint64, raw []byte) error {
		if num != listRecords {
			return nil
		}
		if err := expect(num, typ, protowire.BytesType); err != nil {
			return err
		}
		r, err := UnmarshalRecord(raw)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
