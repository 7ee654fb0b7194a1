// Package fscatalog exposes a directory tree as a media catalog. Identifiers
// are derived from paths relative to the root, so they survive restarts.
package fscatalog

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// mediaExtensions limits the walk to files that can be media. Content
// sniffing decides the final MIME type.
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".heic": true, ".heif": true,
	".mp4": true, ".mov": true, ".m4v": true, ".mkv": true, ".webm": true, ".avi": true, ".3gp": true,
	".mp3": true, ".m4a": true, ".flac": true, ".ogg": true, ".oga": true, ".wav": true, ".aac": true, ".opus": true,
}

// IsMediaPath reports whether a file name has a media extension.
func IsMediaPath(name string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(name))]
}

type Catalog struct {
	root    string
	workers int
	logger  logging.Logger

	mu    sync.RWMutex
	index map[int64]string
}

type Option func(*Catalog)

func WithWorkers(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

func New(root string, opts ...Option) *Catalog {
	c := &Catalog{
		root:    root,
		workers: runtime.NumCPU(),
		logger:  logging.Discard(),
		index:   make(map[int64]string),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Catalog) Root() string { return c.root }

// ScanAll walks the tree and describes every media file. Any unreadable
// directory fails the whole scan; files that vanish mid-walk are skipped.
func (c *Catalog) ScanAll(ctx context.Context) ([]models.CatalogEntry, error) {
	root, err := filepath.Abs(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog root: %w", err)
	}
	if st, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("failed to stat catalog root: %w", err)
	} else if !st.IsDir() {
		return nil, fmt.Errorf("catalog root %s is not a directory", root)
	}

	g, gctx := errgroup.WithContext(ctx)
	paths := make(chan string, 100)

	g.Go(func() error {
		defer close(paths)
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !IsMediaPath(d.Name()) {
				return nil
			}
			select {
			case paths <- path:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var (
		mu      sync.Mutex
		entries []models.CatalogEntry
		index   = make(map[int64]string)
	)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for path := range paths {
				e, ok, err := c.describe(root, path)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				mu.Lock()
				entries = append(entries, e)
				index[e.ID] = path
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()

	return entries, nil
}

// describe builds the entry for one file. ok is false when the file
// disappeared between the walk and the stat.
func (c *Catalog) describe(root, path string) (models.CatalogEntry, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.CatalogEntry{}, false, nil
	}
	if err != nil {
		return models.CatalogEntry{}, false, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return models.CatalogEntry{}, false, err
	}
	rel = filepath.ToSlash(rel)

	e := models.CatalogEntry{
		ID:           catalog.IDFromKey(rel),
		URI:          (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
		DisplayName:  info.Name(),
		DateAdded:    info.ModTime().Unix(),
		DateModified: info.ModTime().Unix(),
		Size:         info.Size(),
		Bucket:       filepath.Base(filepath.Dir(path)),
		Path:         path,
	}
	e.MIMEType = c.detectMIME(path)
	if models.KindFromMIME(e.MIMEType) == models.MediaKindImage {
		e.Width, e.Height = imageSize(path)
	}
	return e, true, nil
}

func (c *Catalog) detectMIME(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err == nil && mt.String() != "application/octet-stream" {
		base, _, _ := strings.Cut(mt.String(), ";")
		return base
	}
	if err != nil {
		c.logger.Debug(context.Background(), "mime sniffing failed", "path", path, "error", err)
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		base, _, _ := strings.Cut(byExt, ";")
		return base
	}
	return "application/octet-stream"
}

// imageSize decodes only the header. Unknown or corrupt images report 0x0.
func imageSize(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// Delete removes the file behind id. Unknown identifiers trigger one rescan
// so deletes work before the first sync of a process.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	path, ok := c.lookup(id)
	if !ok {
		if _, err := c.ScanAll(ctx); err != nil {
			return catalog.Unavailable(err)
		}
		if path, ok = c.lookup(id); !ok {
			return nil
		}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	c.mu.Lock()
	delete(c.index, id)
	c.mu.Unlock()
	return nil
}

func (c *Catalog) lookup(id int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.index[id]
	return p, ok
}
