// Package catalog defines the boundary to the external media catalog: the
// source of truth for which media exist. Implementations live in the
// fscatalog, s3catalog and memcatalog subpackages; consent prompts live in
// consent.
package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"golang.org/x/crypto/blake2b"
)

// Reader produces a complete snapshot of the catalog or fails entirely.
type Reader interface {
	ScanAll(ctx context.Context) ([]models.CatalogEntry, error)
}

// Deleter removes one item from the catalog. Deleting an item that is
// already gone succeeds.
type Deleter interface {
	Delete(ctx context.Context, id int64) error
}

type Catalog interface {
	Reader
	Deleter
}

// Locator is implemented by catalogs that can hand out a fetchable URL for
// an item.
type Locator interface {
	Locate(ctx context.Context, id int64) (string, error)
}

// ErrNotLocatable is returned by Locate when the catalog has no URLs to offer.
var ErrNotLocatable = errors.New("catalog cannot locate items")

// Consenter asks the user, once per batch, whether the given items may be
// permanently deleted.
type Consenter interface {
	RequestDelete(ctx context.Context, ids []int64) (models.ConsentResult, error)
}

// IDFromKey derives a stable positive identifier from a catalog key such as a
// relative path or an object key.
func IDFromKey(key string) int64 {
	sum := blake2b.Sum256([]byte(key))
	id := int64(binary.BigEndian.Uint64(sum[:8]) & (1<<63 - 1))
	if id == 0 {
		return 1
	}
	return id
}

// Unavailable marks err as a catalog failure unless it already is one.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, common.ErrCatalogUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrCatalogUnavailable, err)
}

type timeoutCatalog struct {
	inner   Catalog
	timeout time.Duration
}

// WithTimeout bounds every call to c. A scan that does not finish in time is
// reported as ErrCatalogUnavailable and its partial result is discarded.
func WithTimeout(c Catalog, timeout time.Duration) Catalog {
	return &timeoutCatalog{inner: c, timeout: timeout}
}

func (t *timeoutCatalog) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *timeoutCatalog) ScanAll(ctx context.Context) ([]models.CatalogEntry, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()

	type result struct {
		entries []models.CatalogEntry
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		entries, err := t.inner.ScanAll(ctx)
		ch <- result{entries: entries, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, Unavailable(res.err)
		}
		// a reader that ignored cancellation may hand back a partial list
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: scan aborted: %w", common.ErrCatalogUnavailable, err)
		}
		return res.entries, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: scan aborted: %w", common.ErrCatalogUnavailable, ctx.Err())
	}
}

func (t *timeoutCatalog) Delete(ctx context.Context, id int64) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Delete(ctx, id)
}

func (t *timeoutCatalog) Locate(ctx context.Context, id int64) (string, error) {
	l, ok := t.inner.(Locator)
	if !ok {
		return "", ErrNotLocatable
	}
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return l.Locate(ctx, id)
}
