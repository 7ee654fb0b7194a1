// Package memcatalog is an in-memory, ordered media catalog. It backs the
// "memory" catalog kind for demos and drives the engine tests, including
// failure injection.
package memcatalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/tidwall/btree"
)

type Catalog struct {
	mu         sync.RWMutex
	entries    *btree.Map[int64, models.CatalogEntry]
	scanErr    error
	deleteErrs map[int64]error
	deleted    []int64
	scans      int

	// OnScan, when set, runs after the snapshot is taken and before it is
	// returned. Tests use it to block or to race mutations against a run.
	OnScan func(ctx context.Context) error
}

func New(entries ...models.CatalogEntry) *Catalog {
	c := &Catalog{
		entries:    btree.NewMap[int64, models.CatalogEntry](0),
		deleteErrs: make(map[int64]error),
	}
	c.Put(entries...)
	return c
}

// Put adds or replaces entries.
func (c *Catalog) Put(entries ...models.CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries.Set(e.ID, e)
	}
}

// Remove drops entries as if they vanished from the catalog.
func (c *Catalog) Remove(ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.entries.Delete(id)
	}
}

// FailScans makes every ScanAll return err until called with nil.
func (c *Catalog) FailScans(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanErr = err
}

// FailDelete makes Delete of id return err until called with nil.
func (c *Catalog) FailDelete(id int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.deleteErrs, id)
		return
	}
	c.deleteErrs[id] = err
}

func (c *Catalog) Has(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries.Get(id)
	return ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Deleted lists identifiers removed through Delete, in call order.
func (c *Catalog) Deleted() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int64(nil), c.deleted...)
}

// Scans counts completed ScanAll calls.
func (c *Catalog) Scans() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scans
}

func (c *Catalog) ScanAll(ctx context.Context) ([]models.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.scanErr != nil {
		err := c.scanErr
		c.mu.Unlock()
		return nil, err
	}
	out := make([]models.CatalogEntry, 0, c.entries.Len())
	c.entries.Scan(func(_ int64, e models.CatalogEntry) bool {
		out = append(out, e)
		return true
	})
	c.scans++
	hook := c.OnScan
	c.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Catalog) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.deleteErrs[id]; ok {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	c.entries.Delete(id)
	c.deleted = append(c.deleted, id)
	return nil
}
