// Package bootstrap turns a config.Config into a running library: logger,
// store, catalog and consent provider. Both binaries build on it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/mediakeeper/internal/catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog/consent"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog/fscatalog"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog/memcatalog"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog/s3catalog"
	"github.com/dmitrijs2005/mediakeeper/internal/config"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/repomanager"
	"github.com/dmitrijs2005/mediakeeper/internal/services"
)

// Deps are the pieces a binary supplies itself.
type Deps struct {
	Consenter catalog.Consenter
	OnSync    func(models.SyncReport, error)
}

type Runtime struct {
	Config  *config.Config
	Logger  logging.Logger
	Repos   *repomanager.SQLRepositoryManager
	Catalog catalog.Catalog
	Library *services.Library

	logCloser io.Closer
}

func NewLogger(cfg *config.Config) (logging.Logger, io.Closer, error) {
	opts := logging.DefaultOptions()
	opts.Level = cfg.LogLevel
	opts.JSON = cfg.LogJSON
	opts.File = cfg.LogFile
	return logging.New(opts)
}

// NewCatalog opens the backend named by cfg.CatalogKind and bounds every
// call with cfg.CatalogTimeout.
func NewCatalog(ctx context.Context, cfg *config.Config, logger logging.Logger) (catalog.Catalog, error) {
	var c catalog.Catalog
	switch cfg.CatalogKind {
	case config.CatalogFS:
		c = fscatalog.New(cfg.CatalogRoot, fscatalog.WithLogger(logger.With("module", "fscatalog")))
	case config.CatalogS3:
		client, err := s3catalog.NewClient(ctx, s3catalog.Options{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		c = s3catalog.New(client, cfg.S3Bucket, cfg.S3Prefix)
	case config.CatalogMemory:
		c = memcatalog.New()
	default:
		return nil, fmt.Errorf("unknown catalog kind %q", cfg.CatalogKind)
	}
	return catalog.WithTimeout(c, cfg.CatalogTimeout), nil
}

// NewConsenter picks the consent policy. A prompt needs an interactive
// terminal feeding lines; without one every request is refused.
func NewConsenter(cfg *config.Config, lines <-chan string, out io.Writer, interactive bool) catalog.Consenter {
	switch cfg.ConsentMode {
	case config.ConsentAuto:
		return consent.Auto{}
	case config.ConsentPrompt:
		if interactive && lines != nil {
			return consent.NewPrompt(lines, out, cfg.ConsentTimeout)
		}
	}
	return consent.Deny{}
}

// Build opens the store and the catalog and assembles the library. The
// caller owns the returned Runtime and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger, deps Deps) (*Runtime, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repos, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	cat, err := NewCatalog(ctx, cfg, logger)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("catalog init error: %w", err)
	}

	consenter := deps.Consenter
	if consenter == nil {
		consenter = consent.Deny{}
	}

	lib := services.NewLibrary(repos, cat, consenter, services.Options{
		Retention: cfg.RetentionWindow,
		Location:  loc,
		Logger:    logger.With("module", "library"),
		OnSync:    deps.OnSync,
	})

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Repos:   repos,
		Catalog: cat,
		Library: lib,
	}, nil
}

// WithLogCloser hands ownership of the log writer to the runtime.
func (r *Runtime) WithLogCloser(c io.Closer) *Runtime {
	r.logCloser = c
	return r
}

func (r *Runtime) Close() error {
	var errs []error
	if r.Repos != nil {
		errs = append(errs, r.Repos.Close())
	}
	if r.logCloser != nil {
		errs = append(errs, r.logCloser.Close())
	}
	return errors.Join(errs...)
}
